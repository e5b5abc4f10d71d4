package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/formscan/formscan/internal/api"
	"github.com/formscan/formscan/internal/jobs"
	"github.com/formscan/formscan/internal/ocr"
	"github.com/formscan/formscan/internal/svcctx"
)

// HealthResponse is the response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server string          `json:"server"`
	Pool   jobs.PoolStatus `json:"pool"`
	Ledger string          `json:"ledger"`
	OCR    OCRStatus       `json:"ocr"`
}

// OCRStatus reports the active recognition settings.
type OCRStatus struct {
	DefaultLanguage string   `json:"default_language"`
	Languages       []string `json:"languages"`
	DPI             int      `json:"dpi"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Server: "running", Ledger: "not_initialized"}

	if pool := svcctx.PoolFrom(r.Context()); pool != nil {
		resp.Pool = pool.Status()
	}
	if ledger := svcctx.LedgerFrom(r.Context()); ledger != nil {
		resp.Ledger = "ok"
		if _, err := ledger.List(r.Context(), jobs.ListFilter{Limit: 1}); err != nil {
			resp.Ledger = "unhealthy"
		}
	}
	if store := svcctx.ConfigStoreFrom(r.Context()); store != nil {
		cfg := store.Get()
		resp.OCR = OCRStatus{
			DefaultLanguage: cfg.OCR.DefaultLanguage,
			Languages:       cfg.OCR.Languages,
			DPI:             cfg.OCR.DPI,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeEngineError maps engine error categories to HTTP statuses:
// caller mistakes are 400, undecodable payloads 422, missing jobs 404,
// a saturated worker pool 503, anything else 500.
func writeEngineError(w http.ResponseWriter, err error) {
	var inputErr *ocr.InputError
	var decodeErr *ocr.DecodeError
	switch {
	case errors.As(err, &inputErr):
		writeError(w, http.StatusBadRequest, inputErr.Error())
	case errors.As(err, &decodeErr):
		writeError(w, http.StatusUnprocessableEntity, decodeErr.Error())
	case errors.Is(err, jobs.ErrNotFound):
		writeError(w, http.StatusNotFound, "Job not found")
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "server busy, try again later")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
