package commands

import (
	"github.com/spf13/cobra"
)

type configSetOptions struct {
	spreadsheetDir string
	imageDir       string
	outputDir      string
	fontDir        string
	scale          float64
	format         string
	quality        int
	flatten        bool
}

func registerConfigCmd(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the settings file",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigResetCmd())

	parent.AddCommand(cmd)
}

func newConfigShowCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := requireApp(cmd)
			if err != nil {
				return err
			}
			if output == "" || output == "text" {
				output = "yaml"
			}
			_, err = writeStructured(cmd.OutOrStdout(), output, a.Config)
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "Output format (json, yaml)")
	return cmd
}

func newConfigSetCmd() *cobra.Command {
	opts := &configSetOptions{}

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update directories and output settings",
		Example: `  tplmerge config set --sheets ./data --images ./templates --output-dir ./out
  tplmerge config set --scale 2 --format jpeg --quality 85`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := requireApp(cmd)
			if err != nil {
				return err
			}
			cfg := a.Config
			flags := cmd.Flags()
			if flags.Changed("sheets") {
				cfg.Paths.SpreadsheetDir = opts.spreadsheetDir
			}
			if flags.Changed("images") {
				cfg.Paths.ImageDir = opts.imageDir
			}
			if flags.Changed("output-dir") {
				cfg.Paths.OutputDir = opts.outputDir
			}
			if flags.Changed("fonts") {
				cfg.Paths.FontDir = opts.fontDir
			}
			if flags.Changed("scale") {
				cfg.ImageScale = opts.scale
			}
			if flags.Changed("format") {
				cfg.Output.Format = opts.format
			}
			if flags.Changed("quality") {
				cfg.Output.JPEGQuality = opts.quality
			}
			if flags.Changed("flatten") {
				cfg.Output.FlattenPDF = opts.flatten
			}
			return a.SaveConfig()
		},
	}

	cmd.Flags().StringVar(&opts.spreadsheetDir, "sheets", "", "Spreadsheet directory")
	cmd.Flags().StringVar(&opts.imageDir, "images", "", "Template asset directory")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "", "Output directory")
	cmd.Flags().StringVar(&opts.fontDir, "fonts", "", "Font directory")
	cmd.Flags().Float64Var(&opts.scale, "scale", 0, "Image render scale (0 keeps template size)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Image output format (auto, png, jpeg)")
	cmd.Flags().IntVar(&opts.quality, "quality", 0, "JPEG quality")
	cmd.Flags().BoolVar(&opts.flatten, "flatten", false, "Flatten filled PDF forms")
	return cmd
}

func newConfigResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear all configured directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := requireApp(cmd)
			if err != nil {
				return err
			}
			a.Config.ResetPaths()
			return a.SaveConfig()
		},
	}
}
