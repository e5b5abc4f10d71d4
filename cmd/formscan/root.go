package main

import (
	"github.com/spf13/cobra"

	"github.com/formscan/formscan/internal/api"
	"github.com/formscan/formscan/version"
)

var (
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "formscan",
	Short: "Field-region OCR extraction for scanned forms",
	Long: `formscan extracts machine-readable field values from scanned forms.

Rectangular field regions defined on a form template are applied to newly
scanned documents (images or multi-page PDFs); each region is cropped and
run through Tesseract OCR, producing a field-name to text mapping.

The server also runs asynchronous bulk text extraction jobs over whole
documents.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.formscan/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
