package jobs

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when no job with the given id exists.
var ErrNotFound = errors.New("job not found")

// ListFilter specifies criteria for listing jobs.
type ListFilter struct {
	Status Status // Filter by status (empty = all)
	Limit  int    // Max results (0 = default 100)
}

// Ledger is the durable store of job records. The engine writes to it at
// exactly two points per job: the transition to processing and the terminal
// transition. UpdateStatus must be idempotent by job id - updating a job
// already in a terminal state is a no-op, never a regression.
type Ledger interface {
	Create(ctx context.Context, record *Record) error
	Get(ctx context.Context, jobID string) (*Record, error)
	List(ctx context.Context, filter ListFilter) ([]*Record, error)
	UpdateStatus(ctx context.Context, jobID string, status Status, resultText, errMsg string) error
	Close() error
}

// MemoryLedger is an in-memory Ledger for tests and the local CLI path.
type MemoryLedger struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[string]*Record)}
}

func (l *MemoryLedger) Create(ctx context.Context, record *Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.records[record.JobID]; exists {
		return errors.New("job already exists: " + record.JobID)
	}
	cp := *record
	l.records[record.JobID] = &cp
	l.order = append(l.order, record.JobID)
	return nil
}

func (l *MemoryLedger) Get(ctx context.Context, jobID string) (*Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	record, ok := l.records[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *record
	return &cp, nil
}

func (l *MemoryLedger) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	// Newest first.
	records := make([]*Record, 0)
	for i := len(l.order) - 1; i >= 0 && len(records) < limit; i-- {
		record := l.records[l.order[i]]
		if filter.Status != "" && record.Status != filter.Status {
			continue
		}
		cp := *record
		records = append(records, &cp)
	}
	return records, nil
}

func (l *MemoryLedger) UpdateStatus(ctx context.Context, jobID string, status Status, resultText, errMsg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[jobID]
	if !ok {
		return ErrNotFound
	}
	if record.Status.Terminal() {
		// At-most-one terminal transition; retried writes are no-ops.
		return nil
	}
	record.Status = status
	record.UpdatedAt = time.Now().UTC()
	if resultText != "" {
		record.ResultText = resultText
	}
	if errMsg != "" {
		record.Error = errMsg
	}
	return nil
}

func (l *MemoryLedger) Close() error { return nil }
