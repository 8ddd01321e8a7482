package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lvillar/tplmerge/sheet"
)

func registerSheetsCmd(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Inspect spreadsheets",
	}

	cmd.AddCommand(newSheetsListCmd())
	cmd.AddCommand(newSheetsColumnsCmd())

	parent.AddCommand(cmd)
}

func newSheetsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the spreadsheets in the spreadsheet directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := requireApp(cmd)
			if err != nil {
				return err
			}
			names, err := sheet.ListSpreadsheets(a.Config.Paths.SpreadsheetDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(names) == 0 {
				_, _ = fmt.Fprintln(out, "No spreadsheets found.")
				return nil
			}
			for _, name := range names {
				marker := " "
				if name == a.Config.ActiveSpreadsheet {
					marker = "*"
				}
				_, _ = fmt.Fprintf(out, "%s %s\n", marker, name)
			}
			return nil
		},
	}
}

func newSheetsColumnsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "columns",
		Short: "Print the column names of the active spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := requireApp(cmd)
			if err != nil {
				return err
			}
			sh, err := a.Spreadsheet()
			if err != nil {
				return err
			}
			if done, err := writeStructured(cmd.OutOrStdout(), output, sh.Columns); done {
				return err
			}
			for _, col := range sh.Columns {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), col)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json, yaml)")
	return cmd
}

func newActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <spreadsheet>",
		Short: "Select the spreadsheet whose rows are merged",
		Long: `Select the spreadsheet whose rows are merged. Its base name becomes the
active template set; a template set without placements starts from a copy
of the previously active one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := requireApp(cmd)
			if err != nil {
				return err
			}
			id, err := a.Activate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Active template set: %s\n", id)
			return nil
		},
	}
}
