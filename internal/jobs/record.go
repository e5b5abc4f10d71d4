package jobs

import "time"

// Status represents the current state of an OCR job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is a final state. A job in a terminal
// state never transitions again; retried ledger writes become no-ops.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JobTypeBulkText is the whole-document text dump job flavor.
const JobTypeBulkText = "bulk_text"

// Record is a job record as stored in the ledger.
// ResultText is set only on completed jobs, Error only on failed ones.
type Record struct {
	JobID      string    `json:"job_id"`
	JobType    string    `json:"job_type"`
	Status     Status    `json:"status"`
	ResultText string    `json:"result_text,omitempty"`
	Error      string    `json:"error_message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewRecord creates a pending job record.
func NewRecord(jobID, jobType string) *Record {
	now := time.Now().UTC()
	return &Record{
		JobID:     jobID,
		JobType:   jobType,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
