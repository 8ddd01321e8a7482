package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lvillar/tplmerge/assets"
	"github.com/lvillar/tplmerge/internal/app"
	"github.com/lvillar/tplmerge/pdffill"
)

type assetEntry struct {
	Kind string `json:"kind" yaml:"kind"`
	Name string `json:"name" yaml:"name"`
	// Family is the font family a placement names to use a font file.
	Family string `json:"family,omitempty" yaml:"family,omitempty"`
}

func newAssetsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "assets",
		Short: "List templates, fonts and outputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := requireApp(cmd)
			if err != nil {
				return err
			}
			entries, err := listAssets(a)
			if err != nil {
				return err
			}
			if done, err := writeStructured(cmd.OutOrStdout(), output, entries); done {
				return err
			}
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No assets found.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "KIND\tNAME\tFAMILY")
			for _, e := range entries {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", e.Kind, e.Name, dash(e.Family))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json, yaml)")
	return cmd
}

func listAssets(a *app.App) ([]assetEntry, error) {
	paths := a.Config.Paths
	groups := []struct {
		kind string
		dir  string
		list func(string) ([]string, error)
	}{
		{"image", paths.ImageDir, assets.ListImages},
		{"document", paths.ImageDir, assets.ListDocuments},
		{"font", paths.FontDir, assets.ListFonts},
		{"output", paths.OutputDir, assets.ListOutputs},
	}

	entries := []assetEntry{}
	for _, g := range groups {
		if g.dir == "" {
			continue
		}
		names, err := g.list(g.dir)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			e := assetEntry{Kind: g.kind, Name: name}
			if g.kind == "font" {
				e.Family = assets.FontFamily(name)
			}
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func newFieldsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "fields <template.pdf>",
		Short: "List the form fields of a PDF template",
		Long: `List the form fields of a PDF template in the template directory. Field
names are the fully qualified names that replacement tables map columns to.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := requireApp(cmd)
			if err != nil {
				return err
			}
			fields, err := a.FormFields(args[0])
			if err != nil {
				return err
			}
			return printFields(cmd, output, fields)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json, yaml)")
	return cmd
}

func printFields(cmd *cobra.Command, output string, fields []pdffill.FieldInfo) error {
	if done, err := writeStructured(cmd.OutOrStdout(), output, fields); done {
		return err
	}
	if len(fields) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No form fields.")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tTYPE\tPAGE\tVALUE")
	for _, f := range fields {
		page := "-"
		if f.Page > 0 {
			page = fmt.Sprint(f.Page)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Name, f.Type, page, dash(f.Value))
	}
	return w.Flush()
}
