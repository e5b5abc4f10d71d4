package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/formscan/formscan/internal/jobs"
)

// Task names registered on the worker pool.
const (
	TaskExtractFields = "extract_fields"
	TaskBulkText      = "bulk_text"
)

// EngineConfig configures the extraction engine.
type EngineConfig struct {
	// Pool runs the CPU-bound work. Required; the engine registers its
	// task handlers on it during construction.
	Pool *jobs.Pool
	// Ledger persists bulk-text job records. Required for SubmitTextJob.
	Ledger jobs.Ledger
	// Recognizer converts crops and pages to text. Required.
	Recognizer Recognizer
	// Rasterizer overrides the poppler-backed document renderer
	// (used by tests).
	Rasterizer Rasterizer
	// DPI is the document rendering resolution. Zero uses DefaultDPI.
	DPI int
	// DefaultLanguage is used when a call carries no language code.
	// Empty uses DefaultLanguage ("eng").
	DefaultLanguage string
	Logger          *slog.Logger
}

// Engine is the field-region extraction engine. It classifies payloads,
// rasterizes documents, crops and recognizes declared regions, and merges
// per-page results. All CPU-heavy work runs on the injected worker pool so
// the serving goroutines are never blocked by OCR.
type Engine struct {
	pool        *jobs.Pool
	ledger      jobs.Ledger
	rast        Rasterizer
	ext         *Extractor
	rec         Recognizer
	defaultLang string
	logger      *slog.Logger
}

// NewEngine creates an engine and registers its task handlers on the pool.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defaultLang := cfg.DefaultLanguage
	if defaultLang == "" {
		defaultLang = DefaultLanguage
	}
	rast := cfg.Rasterizer
	if rast == nil {
		rast = &Poppler{DPI: cfg.DPI, Logger: logger}
	}

	e := &Engine{
		pool:        cfg.Pool,
		ledger:      cfg.Ledger,
		rast:        rast,
		ext:         NewExtractor(cfg.Recognizer, defaultLang, logger),
		rec:         cfg.Recognizer,
		defaultLang: defaultLang,
		logger:      logger.With("component", "engine"),
	}

	e.pool.RegisterHandler(TaskExtractFields, e.handleExtractFields)
	e.pool.RegisterHandler(TaskBulkText, e.handleBulkText)

	return e
}

type extractFieldsRequest struct {
	payload  []byte
	source   FieldSource
	language string
}

// ExtractFields runs field-region extraction over the payload and returns
// the field-id to text map. The call suspends until a pool worker finishes
// the work; concurrent callers are limited only by the pool size.
//
// Structural problems (empty payload, no fields, undecodable input) fail
// the whole call. Per-field recognition failures do not: those fields come
// back as "".
func (e *Engine) ExtractFields(ctx context.Context, payload []byte, source FieldSource, language string) (map[string]string, error) {
	if len(payload) == 0 {
		return nil, &InputError{Reason: "empty payload"}
	}
	if source.Empty() {
		return nil, ErrNoFields
	}

	res, err := e.pool.Do(ctx, TaskExtractFields, &extractFieldsRequest{
		payload:  payload,
		source:   source,
		language: language,
	})
	if err != nil {
		return nil, err
	}
	return res.(map[string]string), nil
}

func (e *Engine) handleExtractFields(ctx context.Context, payload any) (any, error) {
	req := payload.(*extractFieldsRequest)

	switch Detect(req.payload) {
	case KindDocument:
		return e.extractDocumentFields(ctx, req)
	default:
		img, err := imaging.Decode(bytes.NewReader(req.payload))
		if err != nil {
			return nil, &DecodeError{Err: err}
		}
		return e.ext.ExtractRegions(ctx, img, req.source.PageOne(), req.language), nil
	}
}

func (e *Engine) extractDocumentFields(ctx context.Context, req *extractFieldsRequest) (map[string]string, error) {
	pages, err := e.rast.Rasterize(ctx, req.payload)
	if err != nil {
		return nil, err
	}

	results := make([]PageResult, 0, len(pages))
	for _, n := range req.source.Pages() {
		// Declared pages beyond the rasterized count are skipped, as are
		// pages with no fields - the extractor never runs for them.
		if n < 1 || n > len(pages) {
			continue
		}
		fields := req.source.ForPage(n)
		if len(fields) == 0 {
			continue
		}
		results = append(results, PageResult{
			Page:   n,
			Fields: e.ext.ExtractRegions(ctx, pages[n-1], fields, req.language),
		})
	}

	return MergePages(results), nil
}

type bulkTextRequest struct {
	jobID    string
	payload  []byte
	language string
}

// SubmitTextJob starts an asynchronous whole-document text extraction job
// and returns its id. Pool capacity is claimed before the job record is
// created, so a submission the pool cannot accept (queue full, shutdown)
// surfaces to the caller and no record is ever written - the ledger only
// holds jobs that will actually run pending -> processing -> terminal.
// Unlike field extraction, any recognition error fails the whole job -
// there are no independent sub-regions to isolate.
func (e *Engine) SubmitTextJob(ctx context.Context, payload []byte, language string) (string, error) {
	if len(payload) == 0 {
		return "", &InputError{Reason: "empty payload"}
	}

	jobID := uuid.New().String()
	res, err := e.pool.Reserve(TaskBulkText, &bulkTextRequest{
		jobID:    jobID,
		payload:  payload,
		language: language,
	})
	if err != nil {
		return "", fmt.Errorf("submit text job: %w", err)
	}

	if err := e.ledger.Create(ctx, jobs.NewRecord(jobID, jobs.JobTypeBulkText)); err != nil {
		res.Cancel()
		return "", fmt.Errorf("create job record: %w", err)
	}
	res.Release()

	e.logger.Info("text job submitted", "job_id", jobID, "bytes", len(payload))
	return jobID, nil
}

func (e *Engine) handleBulkText(ctx context.Context, payload any) (any, error) {
	req := payload.(*bulkTextRequest)

	// processing starts when a worker picks the job up, not at submission.
	e.setJobStatus(ctx, req.jobID, jobs.StatusProcessing, "", "")

	text, err := e.extractAllText(ctx, req.payload, req.language)
	if err != nil {
		e.logger.Error("text job failed", "job_id", req.jobID, "error", err)
		e.setJobStatus(ctx, req.jobID, jobs.StatusFailed, "", err.Error())
		return nil, err
	}

	e.setJobStatus(ctx, req.jobID, jobs.StatusCompleted, text, "")
	e.logger.Info("text job completed", "job_id", req.jobID, "chars", len(text))
	return text, nil
}

// extractAllText recognizes every page of the payload and concatenates the
// results. Document pages are joined with a page marker; blank pages are
// dropped.
func (e *Engine) extractAllText(ctx context.Context, payload []byte, language string) (string, error) {
	lang := language
	if lang == "" {
		lang = e.defaultLang
	}

	if Detect(payload) == KindDocument {
		pages, err := e.rast.Rasterize(ctx, payload)
		if err != nil {
			return "", err
		}
		parts := make([]string, 0, len(pages))
		for i, page := range pages {
			text, err := e.rec.Recognize(ctx, page, lang)
			if err != nil {
				return "", err
			}
			if text = strings.TrimSpace(text); text != "" {
				parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", i+1, text))
			}
		}
		return strings.Join(parts, "\n\n"), nil
	}

	img, err := imaging.Decode(bytes.NewReader(payload))
	if err != nil {
		return "", &DecodeError{Err: err}
	}
	text, err := e.rec.Recognize(ctx, img, lang)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// GetJob returns a job record from the ledger.
func (e *Engine) GetJob(ctx context.Context, jobID string) (*jobs.Record, error) {
	return e.ledger.Get(ctx, jobID)
}

// ListJobs returns job records matching the filter.
func (e *Engine) ListJobs(ctx context.Context, filter jobs.ListFilter) ([]*jobs.Record, error) {
	return e.ledger.List(ctx, filter)
}

// setJobStatus writes a status transition with retries. Ledger updates are
// idempotent by job id, so at-least-once delivery is safe.
func (e *Engine) setJobStatus(ctx context.Context, jobID string, status jobs.Status, resultText, errMsg string) {
	err := retry.Do(
		func() error {
			return e.ledger.UpdateStatus(ctx, jobID, status, resultText, errMsg)
		},
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		e.logger.Error("failed to update job status", "job_id", jobID, "status", status, "error", err)
	}
}
