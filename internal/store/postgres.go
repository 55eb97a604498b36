package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/models"
)

// ErrNotFound is returned when a submission or RFP id is unknown.
var ErrNotFound = errors.New("not found")

// Store wraps pgxpool for Postgres persistence of submissions, audit
// history, and RFP records.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// CreateParams collects inputs required to insert a submission.
type CreateParams struct {
	RFPID          string
	Portal         string
	Priority       int
	Deadline       time.Time
	ScheduledTime  time.Time
	MaxRetries     int
	Document       models.BidDocument
	IdempotencyKey string
	IdempotencyTTL time.Duration
}

// CreateSubmission inserts a submission row, honoring idempotency if a key
// is provided. The boolean reports whether an existing job was reused.
func (s *Store) CreateSubmission(ctx context.Context, p CreateParams) (models.Submission, bool, error) {
	if p.MaxRetries == 0 {
		p.MaxRetries = 3
	}

	docJSON, err := json.Marshal(p.Document)
	if err != nil {
		return models.Submission{}, false, fmt.Errorf("marshal document: %w", err)
	}

	// If an idempotency key already exists, short-circuit before creating anything.
	if p.IdempotencyKey != "" {
		if existing, found, err := s.FindByIdempotencyKey(ctx, p.IdempotencyKey); err != nil {
			return models.Submission{}, false, err
		} else if found {
			return existing, true, nil
		}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Submission{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // safe no-op on commit

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err = tx.Exec(ctx, `
		INSERT INTO submissions (id, rfp_id, portal, priority, deadline, scheduled_time, status, attempts, assembly_failures, max_retries, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, $8, $9, $10, $10)
	`, id, p.RFPID, p.Portal, p.Priority, p.Deadline, p.ScheduledTime, models.StatusQueued, p.MaxRetries, docJSON, now)
	if err != nil {
		return models.Submission{}, false, fmt.Errorf("insert submission: %w", err)
	}

	if p.IdempotencyKey != "" {
		expires := now.Add(p.IdempotencyTTL)
		tag, err := tx.Exec(ctx, `
			INSERT INTO idempotency_keys (key, submission_id, expires_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (key) DO NOTHING
		`, p.IdempotencyKey, id, expires)
		if err != nil {
			return models.Submission{}, false, fmt.Errorf("insert idempotency key: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Someone else claimed the key after our initial check; return the existing job.
			if err := tx.Rollback(ctx); err != nil {
				return models.Submission{}, false, fmt.Errorf("rollback after idempotency conflict: %w", err)
			}
			existing, found, err := s.FindByIdempotencyKey(ctx, p.IdempotencyKey)
			if err != nil {
				return models.Submission{}, false, err
			}
			if !found {
				return models.Submission{}, false, errors.New("idempotency conflict but no existing submission found")
			}
			return existing, true, nil
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Submission{}, false, fmt.Errorf("commit: %w", err)
	}

	return models.Submission{
		ID:             id,
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
	}, false, nil
}

// FindByIdempotencyKey returns the submission mapped to the key if present and unexpired.
func (s *Store) FindByIdempotencyKey(ctx context.Context, key string) (models.Submission, bool, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		SELECT submission_id FROM idempotency_keys WHERE key = $1 AND (expires_at IS NULL OR expires_at > NOW())
	`, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Submission{}, false, nil
	}
	if err != nil {
		return models.Submission{}, false, fmt.Errorf("query idempotency key: %w", err)
	}
	sub, err := s.GetSubmission(ctx, id)
	if err != nil {
		return models.Submission{}, false, err
	}
	return sub, true, nil
}

const submissionColumns = `id, rfp_id, portal, priority, deadline, scheduled_time, status, attempts, assembly_failures, max_retries, document, confirmation_number, submitted_at, confirmed_at, last_error, idempotency_key, created_at, updated_at`

// GetSubmission fetches a submission by id.
func (s *Store) GetSubmission(ctx context.Context, id string) (models.Submission, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	return scanSubmission(row)
}

func scanSubmission(row pgx.Row) (models.Submission, error) {
	var sub models.Submission
	var docJSON []byte
	var confirmation, lastErr, idem pgtype.Text
	var submittedAt, confirmedAt pgtype.Timestamptz

	err := row.Scan(&sub.ID, &sub.RFPID, &sub.Portal, &sub.Priority, &sub.Deadline, &sub.ScheduledTime,
		&sub.Status, &sub.Attempts, &sub.AssemblyFailures, &sub.MaxRetries, &docJSON,
		&confirmation, &submittedAt, &confirmedAt, &lastErr, &idem, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Submission{}, fmt.Errorf("submission: %w", ErrNotFound)
		}
		return models.Submission{}, fmt.Errorf("scan submission: %w", err)
	}
	if err := json.Unmarshal(docJSON, &sub.Document); err != nil {
		return models.Submission{}, fmt.Errorf("unmarshal document: %w", err)
	}
	sub.ConfirmationNumber = textPtr(confirmation)
	sub.LastError = textPtr(lastErr)
	sub.IdempotencyKey = textPtr(idem)
	sub.SubmittedAt = timePtr(submittedAt)
	sub.ConfirmedAt = timePtr(confirmedAt)
	return sub, nil
}

// MarkSubmitted records a delivery attempt going out the door. The
// submitted_at timestamp is set only on its first occurrence.
func (s *Store) MarkSubmitted(ctx context.Context, id string, attempts int, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE submissions
		SET status = $2, attempts = $3, submitted_at = COALESCE(submitted_at, $4), updated_at = NOW()
		WHERE id = $1
	`, id, models.StatusSubmitted, attempts, at)
	return err
}

// MarkConfirmed transitions a job to confirmed. Confirmation data is set
// once and never overwritten.
func (s *Store) MarkConfirmed(ctx context.Context, id, confirmation string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE submissions
		SET status = $2,
		    confirmation_number = COALESCE(confirmation_number, $3),
		    confirmed_at = COALESCE(confirmed_at, $4),
		    last_error = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, id, models.StatusConfirmed, confirmation, at)
	return err
}

// MarkFailed records a terminal failure.
func (s *Store) MarkFailed(ctx context.Context, id, lastErr string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE submissions SET status = $2, last_error = $3, updated_at = NOW() WHERE id = $1
	`, id, models.StatusFailed, lastErr)
	return err
}

// MarkQueued returns a job to the queue, recording counters and the
// earliest time it becomes eligible again.
func (s *Store) MarkQueued(ctx context.Context, id string, attempts, assemblyFailures int, scheduledTime time.Time, lastErr *string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE submissions
		SET status = $2, attempts = $3, assembly_failures = $4, scheduled_time = $5, last_error = $6, updated_at = NOW()
		WHERE id = $1
	`, id, models.StatusQueued, attempts, assemblyFailures, scheduledTime, lastErr)
	return err
}

// AppendAudit adds one append-only audit row. A failure here is escalated
// by the orchestrator, never swallowed.
func (s *Store) AppendAudit(ctx context.Context, entry models.AuditEntry) error {
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO submission_audit_logs (submission_id, event_type, success, details, error_message, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.SubmissionID, entry.EventType, entry.Success, detailsJSON, emptyToNil(entry.ErrorMessage), ts)
	if err != nil {
		return fmt.Errorf("insert audit row: %w", err)
	}
	return nil
}

// ListAudit returns a job's audit history in append order.
func (s *Store) ListAudit(ctx context.Context, submissionID string) ([]models.AuditEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, submission_id, event_type, success, details, error_message, ts
		FROM submission_audit_logs WHERE submission_id = $1 ORDER BY seq ASC
	`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("query audit rows: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var detailsJSON []byte
		var errMsg pgtype.Text
		if err := rows.Scan(&e.Seq, &e.SubmissionID, &e.EventType, &e.Success, &detailsJSON, &errMsg, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal details: %w", err)
			}
		}
		if errMsg.Valid {
			e.ErrorMessage = errMsg.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetRFP looks up a solicitation record.
func (s *Store) GetRFP(ctx context.Context, id string) (models.RFP, error) {
	var rfp models.RFP
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, agency, solicitation_number, deadline FROM rfps WHERE id = $1
	`, id).Scan(&rfp.ID, &rfp.Title, &rfp.Agency, &rfp.Solicitation, &rfp.Deadline)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RFP{}, fmt.Errorf("rfp: %w", ErrNotFound)
	}
	if err != nil {
		return models.RFP{}, fmt.Errorf("query rfp: %w", err)
	}
	return rfp, nil
}

// UpsertRFP inserts or refreshes a solicitation record.
func (s *Store) UpsertRFP(ctx context.Context, rfp models.RFP) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rfps (id, title, agency, solicitation_number, deadline)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET title = $2, agency = $3, solicitation_number = $4, deadline = $5
	`, rfp.ID, rfp.Title, rfp.Agency, rfp.Solicitation, rfp.Deadline)
	return err
}

// CountByStatus returns per-status submission counts, computed on demand.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM submissions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func textPtr(t pgtype.Text) *string {
	if t.Valid {
		return &t.String
	}
	return nil
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if t.Valid {
		v := t.Time
		return &v
	}
	return nil
}

func emptyToNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
