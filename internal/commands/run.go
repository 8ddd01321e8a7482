package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lvillar/tplmerge"
	"github.com/lvillar/tplmerge/batch"
)

type runOptions struct {
	output    string
	outputDir string
	quiet     bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Merge every row of the active spreadsheet",
		Long: `Merge every row of the active spreadsheet into the template its asset
column names. Rows naming a template that is not in the template directory
are skipped. Errors of single rows are reported and do not stop the run.`,
		Example: `  tplmerge activate people.xlsx
  tplmerge run
  tplmerge run --output-dir /tmp/out -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "Output format (text, json, yaml)")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "", "Write outputs here instead of the configured directory")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not show progress")
	return cmd
}

func runBatch(cmd *cobra.Command, opts *runOptions) error {
	a, err := requireApp(cmd)
	if err != nil {
		return err
	}
	job, err := a.Job(cmd.Context())
	if err != nil {
		return err
	}
	if opts.outputDir != "" {
		job.OutputDir = opts.outputDir
	}

	var runnerOpts []batch.Option
	if progress := progressWriter(cmd.ErrOrStderr()); progress != nil && !opts.quiet {
		runnerOpts = append(runnerOpts, batch.WithProgress(func(current, total int, _ map[tplmerge.AssetKind]int) {
			_, _ = fmt.Fprintf(progress, "\rProcessing %d/%d", current, total)
			if current == total {
				_, _ = fmt.Fprintln(progress)
			}
		}))
	}

	summary, err := a.NewRunner(runnerOpts...).Run(cmd.Context(), job)
	if summary == nil {
		return err
	}
	if done, werr := writeStructured(cmd.OutOrStdout(), opts.output, summary); done {
		if werr != nil {
			return werr
		}
		return err
	}
	printSummary(cmd.OutOrStdout(), summary)
	return err
}

// progressWriter returns w when it is a terminal.
func progressWriter(w io.Writer) io.Writer {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return f
}

func printSummary(w io.Writer, s *batch.Summary) {
	_, _ = fmt.Fprintf(w, "Run %s %s: %d images, %d documents, %d skipped\n",
		s.RunID, s.State, s.Counts[tplmerge.KindImage], s.Counts[tplmerge.KindDocument], s.Skipped)
	for _, path := range s.Results {
		_, _ = fmt.Fprintf(w, "  wrote %s\n", path)
	}
	for _, msg := range s.Errors {
		_, _ = fmt.Fprintf(w, "  error: %s\n", msg)
	}
}
