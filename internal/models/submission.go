package models

import (
	"time"
)

// Submission lifecycle states persisted in Postgres. Confirmed and failed
// (with attempts exhausted) are terminal.
const (
	StatusQueued    = "queued"
	StatusSubmitted = "submitted"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// Audit event types written by the orchestrator. Free-form tags; these are
// the ones the orchestrator itself emits.
const (
	EventCreated          = "created"
	EventAttemptStarted   = "attempt_started"
	EventAttemptSucceeded = "attempt_succeeded"
	EventAttemptFailed    = "attempt_failed"
	EventAssemblyFailed   = "assembly_failed"
	EventRetryScheduled   = "retry_scheduled"
	EventAbandoned        = "abandoned"
	EventSubmissionRetry  = "submission_retry"
	EventDeadlineMissed   = "deadline_missed"
	EventLeaseReclaimed   = "lease_reclaimed"
)

// Submission is one attempt-to-deliver-a-bid, persisted in Postgres.
// Exclusively mutated by the orchestrator; read-only to callers.
type Submission struct {
	ID                 string      `json:"id"`
	RFPID              string      `json:"rfp_id"`
	Portal             string      `json:"portal"`
	Priority           int         `json:"priority"`
	Deadline           time.Time   `json:"deadline"`
	ScheduledTime      time.Time   `json:"scheduled_time"`
	Status             string      `json:"status"`
	Attempts           int         `json:"attempts"`
	AssemblyFailures   int         `json:"assembly_failures"`
	MaxRetries         int         `json:"max_retries"`
	Document           BidDocument `json:"document"`
	ConfirmationNumber *string     `json:"confirmation_number,omitempty"`
	SubmittedAt        *time.Time  `json:"submitted_at,omitempty"`
	ConfirmedAt        *time.Time  `json:"confirmed_at,omitempty"`
	LastError          *string     `json:"last_error,omitempty"`
	IdempotencyKey     *string     `json:"idempotency_key,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// Terminal reports whether no further automatic transitions apply.
func (s Submission) Terminal() bool {
	switch s.Status {
	case StatusConfirmed:
		return true
	case StatusFailed:
		return s.Attempts >= s.MaxRetries
	}
	return false
}

// AuditEntry is one append-only row in a submission's history. The ordered
// sequence of entries per job is the source of truth for what happened.
type AuditEntry struct {
	Seq          int64             `json:"seq"`
	SubmissionID string            `json:"submission_id"`
	EventType    string            `json:"event_type"`
	Success      bool              `json:"success"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// RFP is the solicitation a bid responds to, as seen by the orchestrator.
type RFP struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Agency       string    `json:"agency"`
	Solicitation string    `json:"solicitation_number"`
	Deadline     time.Time `json:"deadline"`
}

// Statistics is the on-demand aggregate returned by GetStatistics.
type Statistics struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"by_status"`
	SuccessRate float64        `json:"success_rate"`
}
