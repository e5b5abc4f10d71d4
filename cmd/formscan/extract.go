package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/formscan/formscan/internal/api"
	"github.com/formscan/formscan/internal/config"
	"github.com/formscan/formscan/internal/jobs"
	"github.com/formscan/formscan/internal/ocr"
	"github.com/formscan/formscan/internal/schema"
)

var (
	extractFieldsFile string
	extractPagesFile  string
	extractLanguage   string
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract field regions from a document without a server",
	Long: `Extract runs field-region OCR locally, without a running server.

The input file may be an image or a PDF. Field regions come from a JSON
file: --fields takes a flat field list applied to the first page, --pages
takes a page-number to field-list map for multi-page documents. When both
are given the per-page map wins.

Examples:
  formscan extract form.png --fields fields.json
  formscan extract form.pdf --pages pages.json --language deu`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if extractFieldsFile == "" && extractPagesFile == "" {
			return fmt.Errorf("one of --fields or --pages is required")
		}

		payload, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		source, err := loadFieldSource()
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		}))

		cfgMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := cfgMgr.Get()

		// One-shot engine: in-memory ledger, local pool, local Tesseract.
		pool := jobs.NewPool(jobs.PoolConfig{
			Workers:   cfg.OCR.WorkerPoolSize,
			QueueSize: cfg.OCR.QueueSize,
			Logger:    logger,
		})
		engine := ocr.NewEngine(ocr.EngineConfig{
			Pool:   pool,
			Ledger: jobs.NewMemoryLedger(),
			Recognizer: ocr.NewTesseract(ocr.TesseractConfig{
				TessdataPrefix: cfg.OCR.TessdataPrefix,
				Languages:      cfg.OCR.Languages,
			}),
			DPI:             cfg.OCR.DPI,
			DefaultLanguage: cfg.OCR.DefaultLanguage,
			Logger:          logger,
		})

		poolCtx, poolCancel := context.WithCancel(cmd.Context())
		defer poolCancel()
		go pool.Start(poolCtx)

		fields, err := engine.ExtractFields(cmd.Context(), payload, source, extractLanguage)
		if err != nil {
			return err
		}

		return api.Output(fields)
	},
}

// loadFieldSource reads the field definitions from the flag-named files.
func loadFieldSource() (ocr.FieldSource, error) {
	if extractPagesFile != "" {
		data, err := os.ReadFile(extractPagesFile)
		if err != nil {
			return ocr.FieldSource{}, err
		}
		pages, err := schema.ParsePageSet(data)
		if err != nil {
			return ocr.FieldSource{}, err
		}
		return ocr.PageFields(pages), nil
	}

	data, err := os.ReadFile(extractFieldsFile)
	if err != nil {
		return ocr.FieldSource{}, err
	}
	fields, err := schema.ParseFieldList(data)
	if err != nil {
		return ocr.FieldSource{}, err
	}
	return ocr.FlatFields(fields), nil
}

func init() {
	extractCmd.Flags().StringVar(&extractFieldsFile, "fields", "", "JSON file with a flat field list")
	extractCmd.Flags().StringVar(&extractPagesFile, "pages", "", "JSON file with a page-number to field-list map")
	extractCmd.Flags().StringVar(&extractLanguage, "language", "", "Tesseract language code (default from config)")

	rootCmd.AddCommand(extractCmd)
}
