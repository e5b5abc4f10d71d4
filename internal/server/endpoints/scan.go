package endpoints

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/formscan/formscan/internal/api"
	"github.com/formscan/formscan/internal/svcctx"
)

// ScanRequest is the request body for submitting a bulk text job.
type ScanRequest struct {
	ImageBase64 string `json:"image_base64"`
	Language    string `json:"language,omitempty"`
}

// ScanEndpoint handles POST /api/ocr/scan. It creates an asynchronous job
// that extracts all text from the payload; results are read back via the
// jobs endpoints.
type ScanEndpoint struct{}

func (e *ScanEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/ocr/scan", e.handler
}

func (e *ScanEndpoint) RequiresInit() bool { return true }

func (e *ScanEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
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

	engine := svcctx.EngineFrom(r.Context())
	jobID, err := engine.SubmitTextJob(r.Context(), payload, req.Language)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	record, err := engine.GetJob(r.Context(), jobID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, record)
}

func (e *ScanEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		inputPath string
		language  string
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Submit an image or PDF for bulk text extraction",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				return fmt.Errorf("--input is required")
			}
			payload, err := os.ReadFile(inputPath)
			if err != nil {
				return err
			}

			client := api.NewClient(getServerURL())
			var resp map[string]any
			err = client.Post(cmd.Context(), "/api/ocr/scan", ScanRequest{
				ImageBase64: base64.StdEncoding.EncodeToString(payload),
				Language:    language,
			}, &resp)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "Image or PDF file (required)")
	cmd.Flags().StringVar(&language, "language", "", "OCR language code")
	return cmd
}
