package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/models"
)

// Memory is an in-process store with the same surface as the Postgres
// store, used by tests and local development without a database. All
// reads return copies, so callers always observe whole-row snapshots.
type Memory struct {
	mu          sync.RWMutex
	submissions map[string]models.Submission
	audit       map[string][]models.AuditEntry
	rfps        map[string]models.RFP
	idempotency map[string]string
	seq         int64

	// FailAuditAppend forces Append errors, for escalation tests.
	FailAuditAppend bool
}

func NewMemory() *Memory {
	return &Memory{
		submissions: map[string]models.Submission{},
		audit:       map[string][]models.AuditEntry{},
		rfps:        map[string]models.RFP{},
		idempotency: map[string]string{},
	}
}

func (m *Memory) CreateSubmission(_ context.Context, p CreateParams) (models.Submission, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.MaxRetries == 0 {
		p.MaxRetries = 3
	}
	if p.IdempotencyKey != "" {
		if id, ok := m.idempotency[p.IdempotencyKey]; ok {
			return m.submissions[id], true, nil
		}
	}

	now := time.Now().UTC()
	sub := models.Submission{
		ID:             uuid.New().String(),
		RFPID:          p.RFPID,
		Portal:         p.Portal,
		Priority:       p.Priority,
		Deadline:       p.Deadline,
		ScheduledTime:  p.ScheduledTime,
		Status:         models.StatusQueued,
		MaxRetries:     p.MaxRetries,
		Document:       p.Document,
		IdempotencyKey: emptyToNil(p.IdempotencyKey),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.submissions[sub.ID] = sub
	if p.IdempotencyKey != "" {
		m.idempotency[p.IdempotencyKey] = sub.ID
	}
	return sub, false, nil
}

func (m *Memory) GetSubmission(_ context.Context, id string) (models.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.submissions[id]
	if !ok {
		return models.Submission{}, fmt.Errorf("submission: %w", ErrNotFound)
	}
	return sub, nil
}

func (m *Memory) MarkSubmitted(_ context.Context, id string, attempts int, at time.Time) error {
	return m.update(id, func(sub *models.Submission) {
		sub.Status = models.StatusSubmitted
		sub.Attempts = attempts
		if sub.SubmittedAt == nil {
			t := at
			sub.SubmittedAt = &t
		}
	})
}

func (m *Memory) MarkConfirmed(_ context.Context, id, confirmation string, at time.Time) error {
	return m.update(id, func(sub *models.Submission) {
		sub.Status = models.StatusConfirmed
		if sub.ConfirmationNumber == nil {
			c := confirmation
			sub.ConfirmationNumber = &c
		}
		if sub.ConfirmedAt == nil {
			t := at
			sub.ConfirmedAt = &t
		}
		sub.LastError = nil
	})
}

func (m *Memory) MarkFailed(_ context.Context, id, lastErr string) error {
	return m.update(id, func(sub *models.Submission) {
		sub.Status = models.StatusFailed
		e := lastErr
		sub.LastError = &e
	})
}

func (m *Memory) MarkQueued(_ context.Context, id string, attempts, assemblyFailures int, scheduledTime time.Time, lastErr *string) error {
	return m.update(id, func(sub *models.Submission) {
		sub.Status = models.StatusQueued
		sub.Attempts = attempts
		sub.AssemblyFailures = assemblyFailures
		sub.ScheduledTime = scheduledTime
		sub.LastError = lastErr
	})
}

func (m *Memory) update(id string, fn func(*models.Submission)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.submissions[id]
	if !ok {
		return fmt.Errorf("submission: %w", ErrNotFound)
	}
	fn(&sub)
	sub.UpdatedAt = time.Now().UTC()
	m.submissions[id] = sub
	return nil
}

func (m *Memory) AppendAudit(_ context.Context, entry models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAuditAppend {
		return fmt.Errorf("audit sink unavailable")
	}
	m.seq++
	entry.Seq = m.seq
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	m.audit[entry.SubmissionID] = append(m.audit[entry.SubmissionID], entry)
	return nil
}

func (m *Memory) ListAudit(_ context.Context, submissionID string) ([]models.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.audit[submissionID]
	out := make([]models.AuditEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (m *Memory) GetRFP(_ context.Context, id string) (models.RFP, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rfp, ok := m.rfps[id]
	if !ok {
		return models.RFP{}, fmt.Errorf("rfp: %w", ErrNotFound)
	}
	return rfp, nil
}

func (m *Memory) UpsertRFP(_ context.Context, rfp models.RFP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rfps[rfp.ID] = rfp
	return nil
}

func (m *Memory) CountByStatus(_ context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := map[string]int{}
	for _, sub := range m.submissions {
		counts[sub.Status]++
	}
	return counts, nil
}
