package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/archive"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/assembler"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/config"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/models"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/notify"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/portal"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/store"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/telemetry"
)

// Input errors reported synchronously to callers. None of them create or
// mutate job state.
var (
	ErrUnknownRFP     = errors.New("rfp does not exist")
	ErrPastDeadline   = errors.New("rfp deadline has already elapsed")
	ErrUnknownPortal  = errors.New("portal is not registered")
	ErrNotFound       = errors.New("submission not found")
	ErrRetryExhausted = errors.New("submission retries exhausted")
	ErrNotRetryable   = errors.New("submission is not in a retryable state")
)

// Store is the persistence capability the orchestrator is constructed
// with. Both the Postgres store and the in-memory store satisfy it.
type Store interface {
	CreateSubmission(ctx context.Context, p store.CreateParams) (models.Submission, bool, error)
	GetSubmission(ctx context.Context, id string) (models.Submission, error)
	MarkSubmitted(ctx context.Context, id string, attempts int, at time.Time) error
	MarkConfirmed(ctx context.Context, id, confirmation string, at time.Time) error
	MarkFailed(ctx context.Context, id, lastErr string) error
	MarkQueued(ctx context.Context, id string, attempts, assemblyFailures int, scheduledTime time.Time, lastErr *string) error
	GetRFP(ctx context.Context, id string) (models.RFP, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// AuditLog is the append-only history sink. A write failure is escalated
// to the caller of the operation that produced it, never swallowed.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry models.AuditEntry) error
}

// Queue is the priority/deadline queue with atomic admission.
type Queue interface {
	Enqueue(ctx context.Context, jobID string, priority int, deadline, runAt time.Time) error
	Schedule(ctx context.Context, jobID string, priority int, deadline, runAt time.Time) error
	PromoteScheduled(ctx context.Context, now time.Time, limit int64) (int, error)
	Admit(ctx context.Context, batch, maxInFlight int) ([]string, error)
	ExtendLease(ctx context.Context, jobID string, extension time.Duration) error
	Ack(ctx context.Context, jobID string) error
	Remove(ctx context.Context, jobID string) error
	RequeueExpired(ctx context.Context, now time.Time, limit int64) ([]string, error)
	InFlight(ctx context.Context) (int64, error)
	ReadyDepth(ctx context.Context) (int64, error)
}

// Orchestrator owns the submission queue, drives each job through its
// state machine, and is the sole writer of job state.
type Orchestrator struct {
	cfg       config.Config
	store     Store
	audit     AuditLog
	queue     Queue
	portals   *portal.Registry
	assembler *assembler.Assembler
	notifier  notify.Sink
	archiver  archive.Archiver
	logger    *zap.SugaredLogger
}

func New(cfg config.Config, st Store, audit AuditLog, q Queue, registry *portal.Registry, asm *assembler.Assembler, sink notify.Sink, logger *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		store:     st,
		audit:     audit,
		queue:     q,
		portals:   registry,
		assembler: asm,
		notifier:  sink,
		logger:    logger.Named("orchestrator"),
	}
}

// SetArchiver enables best-effort archival of delivered packages.
func (o *Orchestrator) SetArchiver(a archive.Archiver) { o.archiver = a }

// SubmitRequest carries everything needed to queue a delivery job.
type SubmitRequest struct {
	RFPID          string
	Portal         string
	Priority       int
	Document       models.BidDocument
	MaxRetries     int       // 0 means the configured default
	ScheduledTime  time.Time // optional earliest-eligible time
	IdempotencyKey string
}

// Submit validates the request, creates a queued job, and enqueues it.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (models.Submission, error) {
	rfp, err := o.store.GetRFP(ctx, req.RFPID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Submission{}, fmt.Errorf("%w: %q", ErrUnknownRFP, req.RFPID)
		}
		return models.Submission{}, fmt.Errorf("look up rfp: %w", err)
	}
	if !rfp.Deadline.After(time.Now()) {
		return models.Submission{}, fmt.Errorf("%w: %q closed at %s", ErrPastDeadline, req.RFPID, rfp.Deadline.UTC().Format(time.RFC3339))
	}
	if !o.portals.Known(req.Portal) {
		return models.Submission{}, fmt.Errorf("%w: %q", ErrUnknownPortal, req.Portal)
	}

	maxRetries := req.MaxRetries
	if maxRetries == 0 {
		maxRetries = o.cfg.MaxRetries
	}
	scheduled := req.ScheduledTime
	if scheduled.IsZero() {
		scheduled = time.Now()
	}

	sub, reused, err := o.store.CreateSubmission(ctx, store.CreateParams{
		RFPID:          req.RFPID,
		Portal:         req.Portal,
		Priority:       req.Priority,
		Deadline:       rfp.Deadline,
		ScheduledTime:  scheduled,
		MaxRetries:     maxRetries,
		Document:       req.Document,
		IdempotencyKey: req.IdempotencyKey,
		IdempotencyTTL: o.cfg.IdempotencyTTL,
	})
	if err != nil {
		return models.Submission{}, fmt.Errorf("create submission: %w", err)
	}
	if reused {
		return sub, nil
	}

	if err := o.writeAudit(ctx, models.AuditEntry{
		SubmissionID: sub.ID,
		EventType:    models.EventCreated,
		Success:      true,
		Details:      map[string]string{"rfp_id": sub.RFPID, "portal": sub.Portal, "priority": fmt.Sprint(sub.Priority)},
	}); err != nil {
		return models.Submission{}, err
	}

	if err := o.queue.Enqueue(ctx, sub.ID, sub.Priority, sub.Deadline, sub.ScheduledTime); err != nil {
		return models.Submission{}, fmt.Errorf("enqueue submission: %w", err)
	}

	telemetry.SubmitCounter.Inc()
	o.sendNotification(ctx, notify.EventQueued, sub, nil)
	return sub, nil
}

// ProcessQueue is the scheduling tick: promote due jobs, reclaim expired
// leases, admit up to the free concurrency slots, and drive each admitted
// job through one delivery attempt. Safe to call concurrently with itself;
// admission is atomic in the queue. Returns the number of jobs admitted.
func (o *Orchestrator) ProcessQueue(ctx context.Context) (int, error) {
	now := time.Now()
	if _, err := o.queue.PromoteScheduled(ctx, now, int64(o.cfg.ScheduledBatchSize)); err != nil {
		return 0, fmt.Errorf("promote scheduled: %w", err)
	}

	reclaimed, err := o.queue.RequeueExpired(ctx, now, int64(o.cfg.AdmitBatchSize))
	if err != nil {
		return 0, fmt.Errorf("requeue expired leases: %w", err)
	}
	for _, id := range reclaimed {
		sub, err := o.store.GetSubmission(ctx, id)
		if err != nil {
			o.logger.Warnw("reclaimed job not loadable", "id", id, "err", err)
			continue
		}
		if sub.Terminal() {
			// The worker finished but its Ack never landed; drop the stale
			// queue entry rather than resurrecting a terminal job.
			if err := o.queue.Remove(ctx, id); err != nil {
				return 0, fmt.Errorf("drop stale queue entry: %w", err)
			}
			continue
		}
		if err := o.store.MarkQueued(ctx, id, sub.Attempts, sub.AssemblyFailures, now, sub.LastError); err != nil {
			return 0, fmt.Errorf("requeue reclaimed job: %w", err)
		}
		if err := o.writeAudit(ctx, models.AuditEntry{
			SubmissionID: id,
			EventType:    models.EventLeaseReclaimed,
			Details:      map[string]string{"attempts": fmt.Sprint(sub.Attempts)},
		}); err != nil {
			return 0, err
		}
	}

	if depth, err := o.queue.ReadyDepth(ctx); err == nil {
		telemetry.QueueDepthGauge.Set(float64(depth))
	}

	ids, err := o.queue.Admit(ctx, o.cfg.AdmitBatchSize, o.cfg.MaxConcurrentSubmissions)
	if err != nil {
		return 0, fmt.Errorf("admit jobs: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrentSubmissions)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			telemetry.InFlightGauge.Inc()
			defer telemetry.InFlightGauge.Dec()
			return o.attemptDelivery(gctx, id)
		})
	}
	return len(ids), g.Wait()
}

// attemptDelivery runs one admitted job through assembly, delivery, and
// outcome classification. The returned error is reserved for audit-write
// escalation; delivery failures are recorded in job state, not returned.
func (o *Orchestrator) attemptDelivery(ctx context.Context, id string) error {
	sub, err := o.store.GetSubmission(ctx, id)
	if err != nil {
		o.logger.Warnw("admitted job not loadable, dropping lease", "id", id, "err", err)
		return o.queue.Ack(ctx, id)
	}
	if sub.Status != models.StatusQueued {
		// Stale queue entry; the job moved on without us.
		return o.queue.Ack(ctx, id)
	}

	now := time.Now()
	if now.After(sub.Deadline) {
		// Late jobs are never silently dropped; flag them for operators
		// and keep going.
		telemetry.DeadlineWarnings.Inc()
		if err := o.writeAudit(ctx, models.AuditEntry{
			SubmissionID: sub.ID,
			EventType:    models.EventDeadlineMissed,
			Details:      map[string]string{"deadline": sub.Deadline.UTC().Format(time.RFC3339)},
		}); err != nil {
			return err
		}
		o.sendNotification(ctx, notify.EventDeadlineWarning, sub, map[string]string{"deadline": sub.Deadline.UTC().Format(time.RFC3339)})
	}

	reqs, err := o.portals.Requirements(sub.Portal)
	if err != nil {
		return o.terminate(ctx, sub, sub.Attempts, err.Error(), models.EventAttemptFailed)
	}
	adapter, err := o.portals.Adapter(sub.Portal)
	if err != nil {
		return o.terminate(ctx, sub, sub.Attempts, err.Error(), models.EventAttemptFailed)
	}

	// The delivery timeout may exceed the queue's visibility window. Push
	// the lease past the slowest allowed attempt, or a concurrent tick
	// would reclaim and re-admit a job that is still being delivered.
	timeout := o.deliveryTimeout(reqs)
	if err := o.queue.ExtendLease(ctx, sub.ID, timeout+o.cfg.VisibilityTimeout); err != nil {
		o.logger.Warnw("extend lease failed", "id", sub.ID, "err", err)
	}

	pkg, err := o.assembler.Assemble(sub.ID, sub.Document, reqs)
	if err != nil {
		return o.assemblyFailed(ctx, sub, err.Error())
	}
	if violations := o.assembler.Validate(pkg, reqs); len(violations) > 0 {
		return o.assemblyFailed(ctx, sub, "package validation: "+strings.Join(violations, "; "))
	}

	// The package left the system: this is a real delivery attempt.
	attempts := sub.Attempts + 1
	if err := o.store.MarkSubmitted(ctx, sub.ID, attempts, now); err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	if err := o.writeAudit(ctx, models.AuditEntry{
		SubmissionID: sub.ID,
		EventType:    models.EventAttemptStarted,
		Success:      true,
		Details:      map[string]string{"attempt": fmt.Sprint(attempts), "portal": sub.Portal},
	}); err != nil {
		return err
	}

	outcome := o.deliver(ctx, adapter, timeout, pkg)

	switch {
	case outcome.Success:
		confirmedAt := time.Now()
		if err := o.store.MarkConfirmed(ctx, sub.ID, outcome.ConfirmationNumber, confirmedAt); err != nil {
			return fmt.Errorf("mark confirmed: %w", err)
		}
		if err := o.writeAudit(ctx, models.AuditEntry{
			SubmissionID: sub.ID,
			EventType:    models.EventAttemptSucceeded,
			Success:      true,
			Details:      map[string]string{"attempt": fmt.Sprint(attempts), "confirmation_number": outcome.ConfirmationNumber},
		}); err != nil {
			return err
		}
		telemetry.DeliveryConfirmed.Inc()
		o.archivePackage(ctx, pkg)
		o.sendNotification(ctx, notify.EventSucceeded, sub, map[string]string{"confirmation_number": outcome.ConfirmationNumber})
		return o.queue.Ack(ctx, sub.ID)

	case outcome.Retryable() && attempts <= sub.MaxRetries:
		backoff := backoffWithJitter(o.cfg.BackoffInitial, o.cfg.BackoffMax, attempts)
		nextRun := time.Now().Add(backoff)
		msg := outcome.ErrMessage
		if err := o.store.MarkQueued(ctx, sub.ID, attempts, sub.AssemblyFailures, nextRun, &msg); err != nil {
			return fmt.Errorf("requeue after failure: %w", err)
		}
		if err := o.writeAudit(ctx, models.AuditEntry{
			SubmissionID: sub.ID,
			EventType:    models.EventAttemptFailed,
			Details:      map[string]string{"attempt": fmt.Sprint(attempts), "class": outcome.ErrClass},
			ErrorMessage: outcome.ErrMessage,
		}); err != nil {
			return err
		}
		if err := o.writeAudit(ctx, models.AuditEntry{
			SubmissionID: sub.ID,
			EventType:    models.EventRetryScheduled,
			Success:      true,
			Details:      map[string]string{"next_run": nextRun.UTC().Format(time.RFC3339), "attempts": fmt.Sprint(attempts)},
		}); err != nil {
			return err
		}
		telemetry.DeliveryRetried.Inc()
		if err := o.queue.Ack(ctx, sub.ID); err != nil {
			return fmt.Errorf("ack before reschedule: %w", err)
		}
		return o.queue.Schedule(ctx, sub.ID, sub.Priority, sub.Deadline, nextRun)

	case outcome.Retryable():
		// Retryable class, but nothing left to retry with.
		if err := o.failTerminally(ctx, sub, attempts, outcome.ErrMessage, true); err != nil {
			return err
		}
		return o.queue.Ack(ctx, sub.ID)

	default:
		// Non-retryable: resubmitting the identical package cannot help.
		if err := o.failTerminally(ctx, sub, attempts, outcome.ErrMessage, false); err != nil {
			return err
		}
		return o.queue.Ack(ctx, sub.ID)
	}
}

// deliveryTimeout allows slow portals a window beyond the configured
// floor, sized off their observed average latency.
func (o *Orchestrator) deliveryTimeout(reqs portal.Requirements) time.Duration {
	timeout := o.cfg.PortalTimeout
	if reqs.AverageLatency > 0 && reqs.AverageLatency*5 > timeout {
		timeout = reqs.AverageLatency * 5
	}
	return timeout
}

// deliver invokes the adapter under the given timeout. Transport errors
// and timeouts are folded into a retryable outcome.
func (o *Orchestrator) deliver(ctx context.Context, adapter portal.Adapter, timeout time.Duration, pkg models.Package) portal.Outcome {
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome, err := adapter.Submit(dctx, pkg)
	if err != nil {
		return portal.Outcome{ErrClass: portal.ErrClassRetryable, ErrMessage: err.Error()}
	}
	return outcome
}

// assemblyFailed records an attempt that never left the system. Portal
// attempts are not incremented; a separate counter bounds retries so a
// persistent assembly error cannot loop forever.
func (o *Orchestrator) assemblyFailed(ctx context.Context, sub models.Submission, msg string) error {
	telemetry.AssemblyFailures.Inc()
	failures := sub.AssemblyFailures + 1

	if err := o.writeAudit(ctx, models.AuditEntry{
		SubmissionID: sub.ID,
		EventType:    models.EventAssemblyFailed,
		Details:      map[string]string{"assembly_failures": fmt.Sprint(failures)},
		ErrorMessage: msg,
	}); err != nil {
		return err
	}

	if failures <= sub.MaxRetries {
		backoff := backoffWithJitter(o.cfg.BackoffInitial, o.cfg.BackoffMax, failures)
		nextRun := time.Now().Add(backoff)
		if err := o.store.MarkQueued(ctx, sub.ID, sub.Attempts, failures, nextRun, &msg); err != nil {
			return fmt.Errorf("requeue after assembly failure: %w", err)
		}
		if err := o.writeAudit(ctx, models.AuditEntry{
			SubmissionID: sub.ID,
			EventType:    models.EventRetryScheduled,
			Success:      true,
			Details:      map[string]string{"next_run": nextRun.UTC().Format(time.RFC3339)},
		}); err != nil {
			return err
		}
		if err := o.queue.Ack(ctx, sub.ID); err != nil {
			return fmt.Errorf("ack before reschedule: %w", err)
		}
		return o.queue.Schedule(ctx, sub.ID, sub.Priority, sub.Deadline, nextRun)
	}

	if err := o.failTerminally(ctx, sub, sub.Attempts, msg, true); err != nil {
		return err
	}
	return o.queue.Ack(ctx, sub.ID)
}

// failTerminally moves a job to failed, with the abandoned marker when
// retries were exhausted rather than forbidden.
func (o *Orchestrator) failTerminally(ctx context.Context, sub models.Submission, attempts int, msg string, exhausted bool) error {
	if err := o.store.MarkFailed(ctx, sub.ID, msg); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if err := o.writeAudit(ctx, models.AuditEntry{
		SubmissionID: sub.ID,
		EventType:    models.EventAttemptFailed,
		Details:      map[string]string{"attempt": fmt.Sprint(attempts)},
		ErrorMessage: msg,
	}); err != nil {
		return err
	}
	if exhausted {
		if err := o.writeAudit(ctx, models.AuditEntry{
			SubmissionID: sub.ID,
			EventType:    models.EventAbandoned,
			Details:      map[string]string{"attempts": fmt.Sprint(attempts), "max_retries": fmt.Sprint(sub.MaxRetries)},
		}); err != nil {
			return err
		}
	}
	telemetry.DeliveryAbandoned.Inc()
	o.sendNotification(ctx, notify.EventFailed, sub, map[string]string{"error": msg})
	return nil
}

// terminate fails a job for a structural reason outside the normal
// attempt path (e.g. its portal vanished from the registry).
func (o *Orchestrator) terminate(ctx context.Context, sub models.Submission, attempts int, msg, event string) error {
	if err := o.store.MarkFailed(ctx, sub.ID, msg); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if err := o.writeAudit(ctx, models.AuditEntry{
		SubmissionID: sub.ID,
		EventType:    event,
		Details:      map[string]string{"attempt": fmt.Sprint(attempts)},
		ErrorMessage: msg,
	}); err != nil {
		return err
	}
	telemetry.DeliveryAbandoned.Inc()
	o.sendNotification(ctx, notify.EventFailed, sub, map[string]string{"error": msg})
	return o.queue.Ack(ctx, sub.ID)
}

// RetrySubmission is the explicit operator-triggered retry of a failed
// job. Attempts are not incremented here; they only count actual portal
// deliveries.
func (o *Orchestrator) RetrySubmission(ctx context.Context, id string) (models.Submission, error) {
	sub, err := o.store.GetSubmission(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Submission{}, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return models.Submission{}, fmt.Errorf("load submission: %w", err)
	}
	if sub.Status != models.StatusFailed {
		return models.Submission{}, fmt.Errorf("%w: status is %q", ErrNotRetryable, sub.Status)
	}
	if sub.Attempts >= sub.MaxRetries {
		// Reported, non-fatal: the job stays failed.
		return sub, fmt.Errorf("%w: %d of %d attempts used", ErrRetryExhausted, sub.Attempts, sub.MaxRetries)
	}

	now := time.Now()
	if err := o.store.MarkQueued(ctx, sub.ID, sub.Attempts, sub.AssemblyFailures, now, sub.LastError); err != nil {
		return models.Submission{}, fmt.Errorf("requeue submission: %w", err)
	}
	if err := o.writeAudit(ctx, models.AuditEntry{
		SubmissionID: sub.ID,
		EventType:    models.EventSubmissionRetry,
		Success:      true,
		Details:      map[string]string{"attempts": fmt.Sprint(sub.Attempts)},
	}); err != nil {
		return models.Submission{}, err
	}
	if err := o.queue.Enqueue(ctx, sub.ID, sub.Priority, sub.Deadline, now); err != nil {
		return models.Submission{}, fmt.Errorf("enqueue submission: %w", err)
	}
	return o.store.GetSubmission(ctx, id)
}

// GetJobStatus returns a read-only snapshot of a job. Never blocks on
// in-flight work.
func (o *Orchestrator) GetJobStatus(ctx context.Context, id string) (models.Submission, error) {
	sub, err := o.store.GetSubmission(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Submission{}, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return models.Submission{}, err
	}
	return sub, nil
}

// GetStatistics computes aggregate counts on demand; nothing is cached.
func (o *Orchestrator) GetStatistics(ctx context.Context) (models.Statistics, error) {
	counts, err := o.store.CountByStatus(ctx)
	if err != nil {
		return models.Statistics{}, fmt.Errorf("count submissions: %w", err)
	}
	stats := models.Statistics{ByStatus: counts}
	for _, n := range counts {
		stats.Total += n
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(counts[models.StatusConfirmed]) / float64(stats.Total)
	}
	return stats, nil
}

// Run drives ProcessQueue on the configured tick until context cancellation.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := o.ProcessQueue(ctx)
			if err != nil {
				o.logger.Errorw("process queue", "admitted", n, "err", err)
			}
		}
	}
}

// writeAudit escalates append failures: losing audit history is a
// correctness issue, so the error propagates to the operation's caller.
func (o *Orchestrator) writeAudit(ctx context.Context, entry models.AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := o.audit.AppendAudit(ctx, entry); err != nil {
		telemetry.AuditWriteFailures.Inc()
		o.logger.Errorw("audit write failed", "id", entry.SubmissionID, "event", entry.EventType, "err", err)
		return fmt.Errorf("append audit %q: %w", entry.EventType, err)
	}
	return nil
}

// sendNotification is best-effort and off the critical path: a sink error
// is logged and dropped, never failing the state transition behind it.
func (o *Orchestrator) sendNotification(ctx context.Context, eventType string, sub models.Submission, extra map[string]string) {
	payload := map[string]string{
		"submission_id": sub.ID,
		"rfp_id":        sub.RFPID,
		"portal":        sub.Portal,
	}
	for k, v := range extra {
		payload[k] = v
	}
	if err := o.notifier.Notify(ctx, eventType, payload); err != nil {
		o.logger.Warnw("notification failed", "event", eventType, "id", sub.ID, "err", err)
	}
}

// archivePackage keeps delivery evidence; failures are logged only.
func (o *Orchestrator) archivePackage(ctx context.Context, pkg models.Package) {
	if o.archiver == nil {
		return
	}
	if loc, err := o.archiver.StorePackage(ctx, pkg); err != nil {
		o.logger.Warnw("package archive failed", "id", pkg.SubmissionID, "err", err)
	} else {
		o.logger.Debugw("package archived", "id", pkg.SubmissionID, "location", loc)
	}
}

func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return base
	}
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	wait := time.Duration(exp)
	if wait > max {
		wait = max
	}
	jitter := time.Duration(rand.Int63n(int64(wait/2) + 1))
	return wait/2 + jitter
}
