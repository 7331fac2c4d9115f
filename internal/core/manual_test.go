package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransformer(t *testing.T) *Transformer {
	t.Helper()
	tr, err := NewTransformer(nil, ManualOptions{MaxStatements: 20, CostLimit: 10000})
	require.NoError(t, err)
	return tr
}

func peopleDataset(t *testing.T) *Dataset {
	return mustDataset(t,
		num("age", 25, 30, nil, 200, 30),
		text("city", "A", "B", "B", nil, "B"),
	)
}

func TestParseProgram(t *testing.T) {
	src := "# tidy up\n\nfilter row.age > 18\nset \"full name\" = row.first + ' ' + row.last\ndrop a, \"b c\"\nfillna city 'Unknown'\nsort age desc\nhead 3\nclean\r\n"
	stmts, err := ParseProgram(src)
	require.NoError(t, err)
	require.Len(t, stmts, 7)

	assert.Equal(t, "filter", stmts[0].Op)
	assert.Equal(t, 3, stmts[0].Line)
	assert.Equal(t, "row.age > 18", stmts[0].Expr)

	assert.Equal(t, []string{"full name"}, stmts[1].Args)
	assert.Equal(t, "row.first + ' ' + row.last", stmts[1].Expr)

	assert.Equal(t, []string{"a", "b c"}, stmts[2].Args)
	assert.Equal(t, []string{"city"}, stmts[3].Args)
	assert.Equal(t, "'Unknown'", stmts[3].Expr)
	assert.Equal(t, []string{"age", "desc"}, stmts[4].Args)
	assert.Equal(t, "clean", stmts[6].Op)
}

func TestParseProgram_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"unknown", "explode everything", 1},
		{"filter without expr", "dedupe\nfilter", 2},
		{"set without equals", "set a row.b", 1},
		{"rename arity", "rename a", 1},
		{"sort direction", "sort a sideways", 1},
		{"head not number", "head many", 1},
		{"dedupe args", "dedupe a", 1},
		{"unterminated", "drop \"a", 1},
		{"fillna no expr", "fillna a", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProgram(tt.src)
			var ue *UserCodeError
			require.True(t, errors.As(err, &ue), "want *UserCodeError, got %v", err)
			assert.Equal(t, tt.line, ue.Line)
		})
	}
}

func TestTransformer_Statements(t *testing.T) {
	tr := newTestTransformer(t)
	ctx := context.Background()

	t.Run("filter", func(t *testing.T) {
		res, err := tr.Run(ctx, peopleDataset(t), "filter row.age != null && row.age < 100")
		require.NoError(t, err)
		age, _ := res.Dataset.Column("age")
		assert.Equal(t, []float64{25, 30, 30}, age.Numbers())
		assert.Equal(t, 1, res.Applied)
	})

	t.Run("set new numeric column", func(t *testing.T) {
		res, err := tr.Run(ctx, peopleDataset(t), "dropna age\nset decade = row.age / 10.0")
		require.NoError(t, err)
		dec, ok := res.Dataset.Column("decade")
		require.True(t, ok)
		assert.Equal(t, KindNumeric, dec.Kind)
		assert.Equal(t, []float64{2.5, 3, 20, 3}, dec.Numbers())
	})

	t.Run("set replaces and re-infers", func(t *testing.T) {
		res, err := tr.Run(ctx, peopleDataset(t), `set age = row.age == null ? "unknown" : "known"`)
		require.NoError(t, err)
		age, _ := res.Dataset.Column("age")
		assert.Equal(t, KindText, age.Kind)
		assert.Equal(t, "unknown", age.Cells[2].Text)
		assert.Equal(t, 0, res.Dataset.Index("age"), "column keeps its position")
	})

	t.Run("drop and rename", func(t *testing.T) {
		res, err := tr.Run(ctx, peopleDataset(t), "rename city town\ndrop age")
		require.NoError(t, err)
		assert.Equal(t, []string{"town"}, res.Dataset.Names())
	})

	t.Run("dropna any column", func(t *testing.T) {
		res, err := tr.Run(ctx, peopleDataset(t), "dropna")
		require.NoError(t, err)
		assert.Equal(t, 3, res.Dataset.NumRows())
	})

	t.Run("fillna", func(t *testing.T) {
		res, err := tr.Run(ctx, peopleDataset(t), "fillna city 'Unknown'\nfillna age 0")
		require.NoError(t, err)
		city, _ := res.Dataset.Column("city")
		assert.Equal(t, "Unknown", city.Cells[3].Text)
		age, _ := res.Dataset.Column("age")
		assert.Equal(t, KindNumeric, age.Kind)
		assert.Equal(t, 0.0, age.Cells[2].Num)
	})

	t.Run("dedupe", func(t *testing.T) {
		res, err := tr.Run(ctx, peopleDataset(t), "dedupe")
		require.NoError(t, err)
		assert.Equal(t, 4, res.Dataset.NumRows())
	})

	t.Run("sort desc keeps missing last", func(t *testing.T) {
		res, err := tr.Run(ctx, peopleDataset(t), "sort age desc")
		require.NoError(t, err)
		assert.Equal(t, []string{"200", ""}, res.Dataset.Record(0))
		assert.Equal(t, []string{"30", "B"}, res.Dataset.Record(1))
		assert.Equal(t, []string{"", "B"}, res.Dataset.Record(4))
	})

	t.Run("head", func(t *testing.T) {
		res, err := tr.Run(ctx, peopleDataset(t), "head 2")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Dataset.NumRows())
	})

	t.Run("clean sets report", func(t *testing.T) {
		res, err := tr.Run(ctx, peopleDataset(t), "clean")
		require.NoError(t, err)
		require.NotNil(t, res.Report)
		assert.Equal(t, 2, res.Report.MissingHandled())
	})
}

func TestTransformer_ErrorLeavesInputUntouched(t *testing.T) {
	tr := newTestTransformer(t)
	ds := peopleDataset(t)
	snapshot := ds.Clone()

	_, err := tr.Run(context.Background(), ds, "drop city\nfilter row.city == 'A'")
	var ue *UserCodeError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 2, ue.Line)
	assert.Equal(t, "filter row.city == 'A'", ue.Statement)
	assert.True(t, ds.Equal(snapshot))
}

func TestTransformer_Errors(t *testing.T) {
	tr := newTestTransformer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		src  string
	}{
		{"empty program", "# nothing\n"},
		{"compile error", "filter row.age >"},
		{"non-bool filter", "filter row.age"},
		{"unknown column", "sort nope"},
		{"drop all", "drop age, city"},
		{"rename collision", "rename age city"},
		{"unsupported result", "set x = [1, 2]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Run(ctx, peopleDataset(t), tt.src)
			var ue *UserCodeError
			assert.True(t, errors.As(err, &ue), "want *UserCodeError, got %v", err)
		})
	}
}

func TestTransformer_NonFiniteResult(t *testing.T) {
	tr := newTestTransformer(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		src     string
		wantRow string
	}{
		{"division by zero", "set r = 1.0 / (row.age - 30.0)", "row 2"},
		{"nan fill", "fillna age 0.0 / (row.age == null ? 0.0 : 1.0)", "row 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := peopleDataset(t)
			_, err := tr.Run(ctx, ds, tt.src)

			var ue *UserCodeError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, 1, ue.Line)
			assert.Contains(t, ue.Error(), tt.wantRow)
			assert.Contains(t, ue.Error(), "non-finite")
			assert.NoError(t, ds.Validate())
		})
	}
}

func TestTransformer_Limits(t *testing.T) {
	tr, err := NewTransformer(nil, ManualOptions{MaxStatements: 2})
	require.NoError(t, err)

	_, err = tr.Run(context.Background(), peopleDataset(t), "dedupe\ndedupe\ndedupe")
	var ue *UserCodeError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 3, ue.Line)

	costly, err := NewTransformer(nil, ManualOptions{CostLimit: 1})
	require.NoError(t, err)
	_, err = costly.Run(context.Background(), peopleDataset(t),
		"set s = row.city + row.city + row.city + row.city")
	assert.Error(t, err)
}

func TestTransformer_Canceled(t *testing.T) {
	tr := newTestTransformer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Run(ctx, peopleDataset(t), "dedupe")
	assert.ErrorIs(t, err, context.Canceled)
}
