package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lvillar/tplmerge"
)

// templateSetFile is the import and export format of one template set.
type templateSetFile struct {
	TemplateSet  string                       `json:"templateSet"`
	Placements   tplmerge.Placements          `json:"placements"`
	Replacements tplmerge.PdfReplacementTable `json:"replacements"`
}

func registerPlacementsCmd(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "placements",
		Short: "Manage the placements of a template set",
	}

	cmd.AddCommand(newPlacementsShowCmd())
	cmd.AddCommand(newPlacementsImportCmd())
	cmd.AddCommand(newPlacementsGCCmd())

	parent.AddCommand(cmd)
}

func newPlacementsShowCmd() *cobra.Command {
	var templateSet string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the placements and replacement table as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := requireApp(cmd)
			if err != nil {
				return err
			}
			id := templateSet
			if id == "" {
				id = a.TemplateSetID()
			}
			if id == "" {
				return &tplmerge.ConfigError{Field: "spreadsheet"}
			}
			s, err := a.Settings(cmd.Context())
			if err != nil {
				return err
			}
			_, err = writeStructured(cmd.OutOrStdout(), "json", templateSetFile{
				TemplateSet:  id,
				Placements:   s.TemplatePlacements(id),
				Replacements: s.Replacements(id),
			})
			return err
		},
	}

	cmd.Flags().StringVarP(&templateSet, "template-set", "t", "", "Template set (default the active one)")
	return cmd
}

func newPlacementsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Replace the placements of a template set from a file",
		Long: `Replace the placements and the replacement table of a template set with
the contents of a file written by "placements show". Without a templateSet
member the active set is replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := requireApp(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var f templateSetFile
			if err := json.Unmarshal(data, &f); err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}
			ctx := cmd.Context()
			if f.Placements != nil {
				if err := a.SavePlacements(ctx, f.TemplateSet, f.Placements); err != nil {
					return err
				}
			}
			if f.Replacements != nil {
				if err := a.SaveReplacements(ctx, f.TemplateSet, f.Replacements); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newPlacementsGCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Remove settings of columns the active spreadsheet no longer has",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := requireApp(cmd)
			if err != nil {
				return err
			}
			sh, err := a.Spreadsheet()
			if err != nil {
				return err
			}
			changed, err := a.CollectGarbage(cmd.Context(), sh.Columns)
			if err != nil {
				return err
			}
			if changed {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Removed settings of missing columns.")
			} else {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Nothing to remove.")
			}
			return nil
		},
	}
}
