package core

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// Manual transformation programs.
//
// A program is a list of statements, one per line, applied in order to a
// working copy of the dataset. Expressions are CEL with the current row
// bound to `row`: numbers are doubles, text is a string and missing cells
// are null. A result of NaN or ±Inf fails the statement, since numeric
// columns hold only finite values. CEL has no I/O and a bounded evaluation cost, so a program can
// only reshape the data it is given.
//
//	filter <expr>              keep rows where expr is true
//	set <col> = <expr>         assign expr to col, creating it if needed
//	drop <col>[, <col>...]     remove columns
//	rename <old> <new>         rename a column
//	dropna [<col>...]          remove rows with a missing cell
//	fillna <col> <expr>        fill missing cells of col
//	dedupe                     remove duplicate rows
//	sort <col> [asc|desc]      stable sort, missing values last
//	head <n>                   keep the first n rows
//	clean                      run the automatic cleaner
//	# ...                      comment
//
// Column names containing spaces or commas can be double-quoted.

// Statement is one parsed line of a program.
type Statement struct {
	Line int
	Op   string
	Args []string
	Expr string
	Text string
}

// ManualOptions bounds what a program may do.
type ManualOptions struct {
	MaxStatements int
	CostLimit     uint64
}

// TransformResult is the outcome of a successful program run.
type TransformResult struct {
	Dataset *Dataset
	// Report is set when the program ran `clean`; the last run wins.
	Report  *Report
	Applied int
}

// Transformer runs manual programs.
type Transformer struct {
	env     *cel.Env
	cleaner *Cleaner
	opts    ManualOptions
}

// NewTransformer builds the expression environment. The cleaner serves the
// `clean` statement.
func NewTransformer(cleaner *Cleaner, opts ManualOptions) (*Transformer, error) {
	env, err := cel.NewEnv(
		cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create expression environment: %w", err)
	}
	if cleaner == nil {
		cleaner = NewCleaner(DefaultCleanerOptions())
	}
	return &Transformer{env: env, cleaner: cleaner, opts: opts}, nil
}

// ParseProgram splits src into statements. Blank lines and comments are
// skipped; syntax problems are returned as *UserCodeError.
func ParseProgram(src string) ([]Statement, error) {
	var stmts []Statement
	for i, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		st, err := parseStatement(line)
		if err != nil {
			return nil, &UserCodeError{Line: i + 1, Statement: line, Err: err}
		}
		st.Line = i + 1
		st.Text = line
		stmts = append(stmts, st)
	}
	return stmts, nil
}

func parseStatement(line string) (Statement, error) {
	op, rest, _ := strings.Cut(line, " ")
	op = strings.ToLower(op)
	rest = strings.TrimSpace(rest)
	st := Statement{Op: op}

	switch op {
	case "filter":
		if rest == "" {
			return st, errors.New("filter needs an expression")
		}
		st.Expr = rest

	case "set":
		name, expr, ok := strings.Cut(rest, "=")
		if !ok || strings.HasPrefix(expr, "=") {
			return st, errors.New("usage: set <column> = <expression>")
		}
		args, err := splitArgs(name)
		if err != nil {
			return st, err
		}
		if len(args) != 1 || strings.TrimSpace(expr) == "" {
			return st, errors.New("usage: set <column> = <expression>")
		}
		st.Args = args
		st.Expr = strings.TrimSpace(expr)

	case "drop", "rename", "dropna", "sort", "head":
		args, err := splitArgs(rest)
		if err != nil {
			return st, err
		}
		st.Args = args
		if err := checkArity(op, args); err != nil {
			return st, err
		}

	case "fillna":
		tok := firstToken(rest)
		args, err := splitArgs(tok)
		if err != nil {
			return st, err
		}
		expr := strings.TrimSpace(strings.TrimPrefix(rest, tok))
		if len(args) != 1 || expr == "" {
			return st, errors.New("usage: fillna <column> <expression>")
		}
		st.Args = args
		st.Expr = expr

	case "dedupe", "clean":
		if rest != "" {
			return st, fmt.Errorf("%s takes no arguments", op)
		}

	default:
		return st, fmt.Errorf("unknown statement %q", op)
	}
	return st, nil
}

func checkArity(op string, args []string) error {
	switch op {
	case "drop":
		if len(args) == 0 {
			return errors.New("usage: drop <column>[, <column>...]")
		}
	case "rename":
		if len(args) != 2 {
			return errors.New("usage: rename <old> <new>")
		}
	case "sort":
		if len(args) == 0 || len(args) > 2 {
			return errors.New("usage: sort <column> [asc|desc]")
		}
		if len(args) == 2 {
			if d := strings.ToLower(args[1]); d != "asc" && d != "desc" {
				return fmt.Errorf("sort direction must be asc or desc, got %q", args[1])
			}
		}
	case "head":
		if len(args) != 1 {
			return errors.New("usage: head <n>")
		}
		if n, err := strconv.Atoi(args[0]); err != nil || n < 0 {
			return fmt.Errorf("head needs a non-negative integer, got %q", args[0])
		}
	}
	return nil
}

// splitArgs splits on whitespace and commas, honouring double quotes.
func splitArgs(s string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quoted  bool
		pending bool
	)
	flush := func() {
		if pending {
			args = append(args, cur.String())
			cur.Reset()
			pending = false
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			pending = true
		case quoted:
			cur.WriteRune(r)
		case r == ',' || r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
			pending = true
		}
	}
	if quoted {
		return nil, errors.New("unterminated quote")
	}
	flush()
	return args, nil
}

// firstToken returns the leading argument of s including any quotes.
func firstToken(s string) string {
	if strings.HasPrefix(s, `"`) {
		if end := strings.Index(s[1:], `"`); end >= 0 {
			return s[:end+2]
		}
		return s
	}
	tok, _, _ := strings.Cut(s, " ")
	return tok
}

// Run parses and applies src to a copy of ds. On error ds is untouched and
// the error is a *UserCodeError naming the failing line.
func (t *Transformer) Run(ctx context.Context, ds *Dataset, src string) (*TransformResult, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	stmts, err := ParseProgram(src)
	if err != nil {
		return nil, err
	}
	if len(stmts) == 0 {
		return nil, &UserCodeError{Line: 1, Err: errors.New("program is empty")}
	}
	if t.opts.MaxStatements > 0 && len(stmts) > t.opts.MaxStatements {
		last := stmts[t.opts.MaxStatements]
		return nil, &UserCodeError{
			Line:      last.Line,
			Statement: last.Text,
			Err:       fmt.Errorf("program exceeds %d statements", t.opts.MaxStatements),
		}
	}

	res := &TransformResult{Dataset: ds.Clone()}
	for _, st := range stmts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, report, err := t.apply(res.Dataset, st)
		if err != nil {
			return nil, &UserCodeError{Line: st.Line, Statement: st.Text, Err: err}
		}
		res.Dataset = next
		if report != nil {
			res.Report = report
		}
		res.Applied++
	}
	return res, nil
}

func (t *Transformer) apply(ds *Dataset, st Statement) (*Dataset, *Report, error) {
	switch st.Op {
	case "filter":
		out, err := t.filter(ds, st.Expr)
		return out, nil, err
	case "set":
		out, err := t.set(ds, st.Args[0], st.Expr)
		return out, nil, err
	case "drop":
		out, err := dropColumns(ds, st.Args)
		return out, nil, err
	case "rename":
		out, err := renameColumn(ds, st.Args[0], st.Args[1])
		return out, nil, err
	case "dropna":
		out, err := dropMissing(ds, st.Args)
		return out, nil, err
	case "fillna":
		out, err := t.fillMissing(ds, st.Args[0], st.Expr)
		return out, nil, err
	case "dedupe":
		out, _ := dropDuplicates(ds)
		return out, nil, nil
	case "sort":
		desc := len(st.Args) == 2 && strings.EqualFold(st.Args[1], "desc")
		out, err := sortRows(ds, st.Args[0], desc)
		return out, nil, err
	case "head":
		n, _ := strconv.Atoi(st.Args[0])
		return ds.Head(n), nil, nil
	case "clean":
		return t.cleaner.Clean(ds)
	default:
		return nil, nil, fmt.Errorf("unknown statement %q", st.Op)
	}
}

func (t *Transformer) compile(expr string) (cel.Program, error) {
	ast, iss := t.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, iss.Err())
	}
	var opts []cel.ProgramOption
	if t.opts.CostLimit > 0 {
		opts = append(opts, cel.CostLimit(t.opts.CostLimit))
	}
	prg, err := t.env.Program(ast, opts...)
	if err != nil {
		return nil, fmt.Errorf("prepare %q: %w", expr, err)
	}
	return prg, nil
}

func rowBinding(ds *Dataset, r int) map[string]any {
	row := make(map[string]any, ds.NumCols())
	for i := range ds.Columns {
		col := &ds.Columns[i]
		row[col.Name] = cellValue(col.Cells[r], col.Kind)
	}
	return map[string]any{"row": row}
}

func evalRow(prg cel.Program, ds *Dataset, r int) (any, error) {
	out, _, err := prg.Eval(rowBinding(ds, r))
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", r+1, err)
	}
	v, err := nativeValue(out)
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", r+1, err)
	}
	return v, nil
}

// nativeValue converts an expression result to nil, float64, string or bool.
func nativeValue(v ref.Val) (any, error) {
	switch x := v.(type) {
	case types.Null:
		return nil, nil
	case types.Double:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("non-finite result %v", f)
		}
		return f, nil
	case types.Int:
		return float64(x), nil
	case types.Uint:
		return float64(x), nil
	case types.String:
		return string(x), nil
	case types.Bool:
		return bool(x), nil
	default:
		return nil, fmt.Errorf("unsupported result type %s", v.Type().TypeName())
	}
}

func (t *Transformer) filter(ds *Dataset, expr string) (*Dataset, error) {
	prg, err := t.compile(expr)
	if err != nil {
		return nil, err
	}
	keep := make([]int, 0, ds.NumRows())
	for r := 0; r < ds.NumRows(); r++ {
		v, err := evalRow(prg, ds, r)
		if err != nil {
			return nil, err
		}
		ok, isBool := v.(bool)
		if !isBool {
			return nil, fmt.Errorf("row %d: filter must evaluate to a bool, got %v", r+1, v)
		}
		if ok {
			keep = append(keep, r)
		}
	}
	return ds.SelectRows(keep), nil
}

func (t *Transformer) set(ds *Dataset, name, expr string) (*Dataset, error) {
	prg, err := t.compile(expr)
	if err != nil {
		return nil, err
	}
	vals := make([]any, ds.NumRows())
	for r := range vals {
		if vals[r], err = evalRow(prg, ds, r); err != nil {
			return nil, err
		}
	}
	return withColumn(ds, columnFromValues(name, vals)), nil
}

func (t *Transformer) fillMissing(ds *Dataset, name, expr string) (*Dataset, error) {
	col, ok := ds.Column(name)
	if !ok {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	prg, err := t.compile(expr)
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(col.Cells))
	for r, cell := range col.Cells {
		if !cell.Missing {
			vals[r] = cellValue(cell, col.Kind)
			continue
		}
		if vals[r], err = evalRow(prg, ds, r); err != nil {
			return nil, err
		}
	}
	return withColumn(ds, columnFromValues(name, vals)), nil
}

// withColumn replaces the named column or appends it.
func withColumn(ds *Dataset, col Column) *Dataset {
	out := ds.Clone()
	if i := out.Index(col.Name); i >= 0 {
		out.Columns[i] = col
	} else {
		out.Columns = append(out.Columns, col)
	}
	return out
}

func dropColumns(ds *Dataset, names []string) (*Dataset, error) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		if ds.Index(n) < 0 {
			return nil, fmt.Errorf("unknown column %q", n)
		}
		drop[n] = true
	}
	out := &Dataset{}
	for i := range ds.Columns {
		if !drop[ds.Columns[i].Name] {
			out.Columns = append(out.Columns, ds.Columns[i].clone())
		}
	}
	if out.NumCols() == 0 {
		return nil, errors.New("cannot drop every column")
	}
	return out, nil
}

func renameColumn(ds *Dataset, from, to string) (*Dataset, error) {
	i := ds.Index(from)
	if i < 0 {
		return nil, fmt.Errorf("unknown column %q", from)
	}
	if from != to && ds.Index(to) >= 0 {
		return nil, fmt.Errorf("column %q already exists", to)
	}
	out := ds.Clone()
	out.Columns[i].Name = to
	return out, nil
}

func dropMissing(ds *Dataset, names []string) (*Dataset, error) {
	cols := make([]int, 0, ds.NumCols())
	if len(names) == 0 {
		for i := range ds.Columns {
			cols = append(cols, i)
		}
	}
	for _, n := range names {
		i := ds.Index(n)
		if i < 0 {
			return nil, fmt.Errorf("unknown column %q", n)
		}
		cols = append(cols, i)
	}

	keep := make([]int, 0, ds.NumRows())
	for r := 0; r < ds.NumRows(); r++ {
		complete := true
		for _, c := range cols {
			if ds.Columns[c].Cells[r].Missing {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, r)
		}
	}
	return ds.SelectRows(keep), nil
}

func sortRows(ds *Dataset, name string, desc bool) (*Dataset, error) {
	col, ok := ds.Column(name)
	if !ok {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	order := make([]int, ds.NumRows())
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		ca, cb := col.Cells[a], col.Cells[b]
		switch {
		case ca.Missing && cb.Missing:
			return 0
		case ca.Missing:
			return 1
		case cb.Missing:
			return -1
		}
		var c int
		if col.Kind == KindNumeric {
			c = cmp.Compare(ca.Num, cb.Num)
		} else {
			c = strings.Compare(ca.Text, cb.Text)
		}
		if desc {
			return -c
		}
		return c
	})
	return ds.SelectRows(order), nil
}
