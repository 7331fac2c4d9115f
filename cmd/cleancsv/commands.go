package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	logLevel string
	quantile string
	k        float64
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "cleancsv",
		Short:         "Clean, transform and inspect tabular data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupWriter(cmd.ErrOrStderr(), g.logLevel, "text")
		},
	}
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level: debug|info|warn|error")
	root.PersistentFlags().StringVar(&g.quantile, "quantile", "linear", "Quantile method: linear|empirical|nearest")
	root.PersistentFlags().Float64Var(&g.k, "iqr-multiplier", core.DefaultIQRMultiplier, "IQR multiplier for outlier bounds")

	root.AddCommand(
		newCleanCmd(g),
		newTransformCmd(g),
		newInspectCmd(g),
	)
	return root
}

func newCleanCmd(g *globalFlags) *cobra.Command {
	var out, format string

	cmd := &cobra.Command{
		Use:   "clean <file|url>",
		Short: "Run automatic cleaning and write the result",
		Long: `Fill missing values, drop duplicate rows and drop IQR outliers.

The report is printed to stderr. Use "-" to read CSV from stdin.

Example: cleancsv clean data.csv -o cleaned_data.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(g)
			if err != nil {
				return err
			}
			ds, err := readSource(cmd.Context(), svc, cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			cleaned, report, err := svc.CleanDataset(cmd.Context(), args[0], ds)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), report.Summary())
			return writeOutput(cmd.OutOrStdout(), cleaned, out, format)
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&format, "format", "", "Output format csv|xlsx (default: from -o extension, else csv)")
	return cmd
}

func newTransformCmd(g *globalFlags) *cobra.Command {
	var out, format, programFile, program string

	cmd := &cobra.Command{
		Use:   "transform <file|url>",
		Short: "Apply a transformation program",
		Long: `Apply a program of one statement per line:

  filter <expr>  set <col> = <expr>  drop <col>...  rename <old> <new>
  dropna [<col>...]  fillna <col> <expr>  dedupe  sort <col> [asc|desc]
  head <n>  clean

Expressions are CEL and see the current row as "row".

Example: cleancsv transform data.csv -e 'filter row.age >= 18' -o adults.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := program
			if programFile != "" {
				b, err := os.ReadFile(programFile)
				if err != nil {
					return fmt.Errorf("read program: %w", err)
				}
				src = string(b)
			}
			if strings.TrimSpace(src) == "" {
				return fmt.Errorf("a program is required: use -p <file> or -e <statements>")
			}

			svc, err := newService(g)
			if err != nil {
				return err
			}
			ds, err := readSource(cmd.Context(), svc, cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			res, err := svc.TransformDataset(cmd.Context(), ds, src)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Applied %d statements, %d rows remain\n", res.Applied, res.Dataset.NumRows())
			if res.Report != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), res.Report.Summary())
			}
			return writeOutput(cmd.OutOrStdout(), res.Dataset, out, format)
		},
	}

	cmd.Flags().StringVarP(&programFile, "program", "p", "", "File containing the program")
	cmd.Flags().StringVarP(&program, "expr", "e", "", "Program text")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&format, "format", "", "Output format csv|xlsx (default: from -o extension, else csv)")
	return cmd
}

func newInspectCmd(g *globalFlags) *cobra.Command {
	var rows int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <file|url>",
		Short: "Print the first rows and a profile of each column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(g)
			if err != nil {
				return err
			}
			ds, err := readSource(cmd.Context(), svc, cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			p := core.BuildPreview(ds, rows)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}
			return printPreview(cmd.OutOrStdout(), p)
		},
	}

	cmd.Flags().IntVarP(&rows, "rows", "n", core.DefaultPreviewRows, "Rows to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the preview as JSON")
	return cmd
}

func newService(g *globalFlags) (*core.Service, error) {
	method, err := core.ParseQuantileMethod(g.quantile)
	if err != nil {
		return nil, err
	}
	opts := core.DefaultOptions()
	opts.Cleaner = core.CleanerOptions{QuantileMethod: method, IQRMultiplier: g.k}
	// Files on the command line are the user's own; no upload cap.
	opts.MaxUploadBytes = 0
	opts.FetchAllowPrivate = true
	return core.NewService(opts, nil)
}

// readSource loads a URL, a local file, or stdin when arg is "-".
func readSource(ctx context.Context, svc *core.Service, stdin io.Reader, arg string) (*core.Dataset, error) {
	switch {
	case arg == "-":
		return svc.ReadUpload("stdin", "text/csv", stdin)
	case strings.HasPrefix(arg, "http://"), strings.HasPrefix(arg, "https://"):
		return svc.FetchURL(ctx, arg)
	}

	f, err := os.Open(arg)
	if err != nil {
		return nil, &core.IngestionError{Source: arg, Err: err}
	}
	defer f.Close()
	return svc.ReadUpload(filepath.Base(arg), "", f)
}

// writeOutput writes ds to path, or to stdout when path is empty.
func writeOutput(stdout io.Writer, ds *core.Dataset, path, format string) error {
	if format == "" && path != "" {
		format = strings.TrimPrefix(filepath.Ext(path), ".")
	}
	f, err := core.ParseFormat(format)
	if err != nil {
		return err
	}

	if path == "" {
		return core.Export(stdout, ds, f)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := core.Export(file, ds, f); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func printPreview(w io.Writer, p *core.Preview) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(p.Columns, "\t"))
	for _, row := range p.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	fmt.Fprintf(tw, "\n%d of %d rows\n\n", p.ShownRows(), p.TotalRows)

	fmt.Fprintln(tw, "column\tkind\tmissing\tdistinct\tmin\tmax\tmean")
	for _, prof := range p.Profiles {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			prof.Name, prof.Kind, prof.Missing, prof.Distinct,
			formatStat(prof.Min), formatStat(prof.Max), formatStat(prof.Mean))
	}
	return tw.Flush()
}

func formatStat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', 6, 64)
}
