package endpoints

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/formscan/formscan/internal/api"
	"github.com/formscan/formscan/internal/ocr"
	"github.com/formscan/formscan/internal/schema"
	"github.com/formscan/formscan/internal/svcctx"
)

// ExtractFieldsRequest is the request body for field-region extraction.
// Exactly one of PageParams (single page) or AllPageParams (per-page, keyed
// by page number strings) should be supplied.
type ExtractFieldsRequest struct {
	ImageBase64   string          `json:"image_base64"`
	PageParams    json.RawMessage `json:"page_params,omitempty"`
	AllPageParams json.RawMessage `json:"all_page_params,omitempty"`
	Language      string          `json:"language,omitempty"`
}

// ExtractFieldsResponse maps field ids to extracted text.
type ExtractFieldsResponse struct {
	Fields map[string]string `json:"fields"`
}

// ExtractFieldsEndpoint handles POST /api/extract/fields.
type ExtractFieldsEndpoint struct{}

func (e *ExtractFieldsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/extract/fields", e.handler
}

func (e *ExtractFieldsEndpoint) RequiresInit() bool { return true }

func (e *ExtractFieldsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ExtractFieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ImageBase64 == "" {
		writeError(w, http.StatusBadRequest, "image_base64 is required")
		return
	}
	payload, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid base64 payload")
		return
	}

	source, err := parseFieldSource(req.PageParams, req.AllPageParams)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	engine := svcctx.EngineFrom(r.Context())
	fields, err := engine.ExtractFields(r.Context(), payload, source, req.Language)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ExtractFieldsResponse{Fields: fields})
}

// parseFieldSource resolves the two wire shapes into a FieldSource once,
// at the boundary. The per-page shape wins when both are present.
func parseFieldSource(pageParams, allPageParams json.RawMessage) (ocr.FieldSource, error) {
	if len(allPageParams) > 0 {
		pages, err := schema.ParsePageSet(allPageParams)
		if err != nil {
			return ocr.FieldSource{}, err
		}
		return ocr.PageFields(pages), nil
	}
	if len(pageParams) > 0 {
		fields, err := schema.ParseFieldList(pageParams)
		if err != nil {
			return ocr.FieldSource{}, err
		}
		return ocr.FlatFields(fields), nil
	}
	return ocr.FieldSource{}, nil
}

func (e *ExtractFieldsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		inputPath  string
		fieldsPath string
		pagesPath  string
		language   string
	)
	cmd := &cobra.Command{
		Use:   "extract-fields",
		Short: "Extract field regions from an image or PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				return fmt.Errorf("--input is required")
			}
			if fieldsPath == "" && pagesPath == "" {
				return fmt.Errorf("--fields or --pages is required")
			}

			payload, err := os.ReadFile(inputPath)
			if err != nil {
				return err
			}

			req := ExtractFieldsRequest{
				ImageBase64: base64.StdEncoding.EncodeToString(payload),
				Language:    language,
			}
			if pagesPath != "" {
				if req.AllPageParams, err = os.ReadFile(pagesPath); err != nil {
					return err
				}
			} else {
				if req.PageParams, err = os.ReadFile(fieldsPath); err != nil {
					return err
				}
			}

			client := api.NewClient(getServerURL())
			var resp ExtractFieldsResponse
			if err := client.Post(cmd.Context(), "/api/extract/fields", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "Image or PDF file (required)")
	cmd.Flags().StringVar(&fieldsPath, "fields", "", "JSON file with a flat field list")
	cmd.Flags().StringVar(&pagesPath, "pages", "", "JSON file with per-page field lists")
	cmd.Flags().StringVar(&language, "language", "", "OCR language code")
	return cmd
}
