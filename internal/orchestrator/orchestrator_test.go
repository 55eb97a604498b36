package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/assembler"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/config"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/convert"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/models"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/portal"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/queue"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/store"
)

type capturedEvent struct {
	Event   string
	Payload map[string]string
}

// captureSink records notifications for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []capturedEvent
	fail   bool
}

func (c *captureSink) Notify(_ context.Context, eventType string, payload map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return context.DeadlineExceeded
	}
	c.events = append(c.events, capturedEvent{Event: eventType, Payload: payload})
	return nil
}

func (c *captureSink) eventTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Event
	}
	return out
}

type fixture struct {
	orc   *Orchestrator
	store *store.Memory
	queue *queue.SubmissionQueue
	mock  *portal.Mock
	sink  *captureSink
	cfg   config.Config
}

func testConfig() config.Config {
	return config.Config{
		MaxConcurrentSubmissions: 2,
		MaxRetries:               3,
		VisibilityTimeout:        time.Minute,
		PortalTimeout:            2 * time.Second,
		BackoffInitial:           0,
		BackoffMax:               0,
		AdmitBatchSize:           10,
		ScheduledBatchSize:       100,
		IdempotencyTTL:           time.Hour,
	}
}

func newFixture(t *testing.T, cfg config.Config, reqs portal.Requirements) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mem := store.NewMemory()
	mock := portal.NewMock()
	mock.SetLatency(time.Millisecond)
	registry := portal.NewRegistry()
	registry.Register(mock, reqs)

	sink := &captureSink{}
	q := queue.New(client, cfg.VisibilityTimeout)
	orc := New(cfg, mem, mem, q, registry, assembler.New(convert.New()), sink, zap.NewNop().Sugar())
	return &fixture{orc: orc, store: mem, queue: q, mock: mock, sink: sink, cfg: cfg}
}

func mockReqs() portal.Requirements {
	return portal.Requirements{
		RequiredFormat:         models.FormatJSON,
		RequiredForms:          []string{"SF-1449"},
		RequiredCertifications: []string{"SAM Registration"},
		MaxPackageBytes:        10 << 20,
	}
}

func (f *fixture) seedRFP(t *testing.T, id string, deadline time.Time) {
	t.Helper()
	require.NoError(t, f.store.UpsertRFP(context.Background(), models.RFP{
		ID:           id,
		Title:        "Janitorial Services IDIQ",
		Agency:       "GSA",
		Solicitation: "47QSMD20R0001",
		Deadline:     deadline,
	}))
}

func testDocument(rfpID string) models.BidDocument {
	return models.BidDocument{
		Title:        "Technical and Price Proposal",
		RFPID:        rfpID,
		Solicitation: "47QSMD20R0001",
		Vendor: models.Vendor{
			Name:     "Acme Federal LLC",
			UEI:      "ABC123DEF456",
			CageCode: "1A2B3",
			POCEmail: "bids@acmefederal.example",
		},
		Sections: []models.BidSection{
			{Heading: "Technical Approach", Body: "We will do the work."},
			{Heading: "Past Performance", Body: "We have done the work before."},
		},
		TotalPrice: 125000,
	}
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testConfig(), mockReqs())

	_, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "nope", Portal: "mock", Document: testDocument("nope")})
	require.ErrorIs(t, err, ErrUnknownRFP)

	f.seedRFP(t, "rfp-past", time.Now().Add(-time.Hour))
	_, err = f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-past", Portal: "mock", Document: testDocument("rfp-past")})
	require.ErrorIs(t, err, ErrPastDeadline)

	f.seedRFP(t, "rfp-1", time.Now().Add(24*time.Hour))
	_, err = f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-1", Portal: "ebuy", Document: testDocument("rfp-1")})
	require.ErrorIs(t, err, ErrUnknownPortal)

	// No job state was created by any rejected submit.
	stats, err := f.orc.GetStatistics(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.Total)
}

func TestSubmitThenConfirm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testConfig(), mockReqs())
	f.seedRFP(t, "rfp-1", time.Now().Add(24*time.Hour))

	sub, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-1", Portal: "mock", Priority: 5, Document: testDocument("rfp-1")})
	require.NoError(t, err)
	require.Equal(t, models.StatusQueued, sub.Status)
	require.Zero(t, sub.Attempts)

	n, err := f.orc.ProcessQueue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := f.orc.GetJobStatus(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, got.Status)
	require.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.ConfirmationNumber)
	require.NotEmpty(t, *got.ConfirmationNumber)
	require.NotNil(t, got.SubmittedAt)
	require.NotNil(t, got.ConfirmedAt)

	entries, err := f.store.ListAudit(ctx, sub.ID)
	require.NoError(t, err)
	types := make([]string, len(entries))
	for i, e := range entries {
		types[i] = e.EventType
	}
	require.Equal(t, []string{
		models.EventCreated,
		models.EventAttemptStarted,
		models.EventAttemptSucceeded,
	}, types)

	require.Equal(t, []string{"queued", "submission_successful"}, f.sink.eventTypes())
}

func TestRetryableFailuresThenSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testConfig(), mockReqs())
	f.seedRFP(t, "rfp-1", time.Now().Add(24*time.Hour))
	f.mock.Script(portal.MockRetryable, portal.MockRetryable, portal.MockSucceed)

	sub, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-1", Portal: "mock", MaxRetries: 2, Document: testDocument("rfp-1")})
	require.NoError(t, err)

	for cycle, wantAttempts := range []int{1, 2} {
		n, err := f.orc.ProcessQueue(ctx)
		require.NoError(t, err)
		require.Equalf(t, 1, n, "cycle %d", cycle)

		got, err := f.orc.GetJobStatus(ctx, sub.ID)
		require.NoError(t, err)
		require.Equal(t, models.StatusQueued, got.Status)
		require.Equal(t, wantAttempts, got.Attempts)
	}

	n, err := f.orc.ProcessQueue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := f.orc.GetJobStatus(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, got.Status)
	require.Equal(t, 3, got.Attempts)
	require.NotNil(t, got.ConfirmationNumber)
	require.NotEmpty(t, *got.ConfirmationNumber)
}

func TestNonRetryableFailsImmediately(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testConfig(), mockReqs())
	f.seedRFP(t, "rfp-1", time.Now().Add(24*time.Hour))
	f.mock.Script(portal.MockNonRetryable)

	sub, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-1", Portal: "mock", MaxRetries: 1, Document: testDocument("rfp-1")})
	require.NoError(t, err)

	_, err = f.orc.ProcessQueue(ctx)
	require.NoError(t, err)

	got, err := f.orc.GetJobStatus(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, got.Status)
	require.Equal(t, 1, got.Attempts)

	_, err = f.orc.RetrySubmission(ctx, sub.ID)
	require.ErrorIs(t, err, ErrRetryExhausted)

	// The job stays failed and only one delivery ever reached the portal.
	got, err = f.orc.GetJobStatus(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, got.Status)
	require.Equal(t, 1, f.mock.Calls())
	require.Contains(t, f.sink.eventTypes(), "submission_failed")
}

func TestRetryableExhaustionAbandons(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testConfig(), mockReqs())
	f.seedRFP(t, "rfp-1", time.Now().Add(24*time.Hour))
	f.mock.Script(portal.MockRetryable, portal.MockRetryable, portal.MockRetryable)

	sub, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-1", Portal: "mock", MaxRetries: 2, Document: testDocument("rfp-1")})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = f.orc.ProcessQueue(ctx)
		require.NoError(t, err)
	}

	got, err := f.orc.GetJobStatus(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, got.Status)
	require.Equal(t, 3, got.Attempts)

	entries, err := f.store.ListAudit(ctx, sub.ID)
	require.NoError(t, err)
	var abandoned bool
	for _, e := range entries {
		if e.EventType == models.EventAbandoned {
			abandoned = true
		}
	}
	require.True(t, abandoned, "exhausted job must carry an abandoned audit entry")

	// Nothing left in the queue; further ticks admit nothing.
	n, err := f.orc.ProcessQueue(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestExplicitRetryRequeuesFailedJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testConfig(), mockReqs())
	f.seedRFP(t, "rfp-1", time.Now().Add(24*time.Hour))
	f.mock.Script(portal.MockNonRetryable, portal.MockSucceed)

	sub, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-1", Portal: "mock", MaxRetries: 3, Document: testDocument("rfp-1")})
	require.NoError(t, err)

	_, err = f.orc.ProcessQueue(ctx)
	require.NoError(t, err)

	got, err := f.orc.GetJobStatus(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, got.Status)
	require.Equal(t, 1, got.Attempts)

	requeued, err := f.orc.RetrySubmission(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusQueued, requeued.Status)
	require.Equal(t, 1, requeued.Attempts, "explicit retry must not touch the attempt counter")

	_, err = f.orc.ProcessQueue(ctx)
	require.NoError(t, err)

	got, err = f.orc.GetJobStatus(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, got.Status)
	require.Equal(t, 2, got.Attempts)
}

func TestRetryErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testConfig(), mockReqs())

	_, err := f.orc.RetrySubmission(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	f.seedRFP(t, "rfp-1", time.Now().Add(24*time.Hour))
	sub, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-1", Portal: "mock", Document: testDocument("rfp-1")})
	require.NoError(t, err)

	_, err = f.orc.RetrySubmission(ctx, sub.ID)
	require.ErrorIs(t, err, ErrNotRetryable, "queued jobs are not operator-retryable")

	_, err = f.orc.ProcessQueue(ctx)
	require.NoError(t, err)
	_, err = f.orc.RetrySubmission(ctx, sub.ID)
	require.ErrorIs(t, err, ErrNotRetryable, "confirmed jobs are terminal")
}

func TestAssemblyFailureDoesNotCountAttempts(t *testing.T) {
	ctx := context.Background()
	reqs := mockReqs()
	reqs.RequiredForms = []string{"SF-999"} // no generator registered
	f := newFixture(t, testConfig(), reqs)
	f.seedRFP(t, "rfp-1", time.Now().Add(24*time.Hour))

	sub, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-1", Portal: "mock", MaxRetries: 2, Document: testDocument("rfp-1")})
	require.NoError(t, err)

	_, err = f.orc.ProcessQueue(ctx)
	require.NoError(t, err)

	got, err := f.orc.GetJobStatus(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusQueued, got.Status)
	require.Zero(t, got.Attempts, "nothing reached the portal")
	require.Equal(t, 1, got.AssemblyFailures)
	require.Zero(t, f.mock.Calls())

	// Persistent assembly failure exhausts without wasting portal calls.
	for i := 0; i < 2; i++ {
		_, err = f.orc.ProcessQueue(ctx)
		require.NoError(t, err)
	}
	got, err = f.orc.GetJobStatus(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, got.Status)
	require.Zero(t, got.Attempts)
	require.Zero(t, f.mock.Calls())
}

func TestOrderingAcrossJobs(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxConcurrentSubmissions = 1
	cfg.AdmitBatchSize = 1
	f := newFixture(t, cfg, mockReqs())

	now := time.Now()
	f.seedRFP(t, "rfp-a", now.Add(1*time.Hour))
	f.seedRFP(t, "rfp-b", now.Add(2*time.Hour))
	f.seedRFP(t, "rfp-c", now.Add(5*time.Hour))

	a, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-a", Portal: "mock", Priority: 5, Document: testDocument("rfp-a")})
	require.NoError(t, err)
	b, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-b", Portal: "mock", Priority: 5, Document: testDocument("rfp-b")})
	require.NoError(t, err)
	c, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-c", Portal: "mock", Priority: 9, Document: testDocument("rfp-c")})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		n, err := f.orc.ProcessQueue(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}

	var delivered []string
	for _, pkg := range f.mock.Packages {
		delivered = append(delivered, pkg.SubmissionID)
	}
	require.Equal(t, []string{c.ID, a.ID, b.ID}, delivered)
}

func TestLateJobIsFlaggedNotDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testConfig(), mockReqs())
	f.seedRFP(t, "rfp-1", time.Now().Add(30*time.Millisecond))

	sub, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-1", Portal: "mock", Document: testDocument("rfp-1")})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	n, err := f.orc.ProcessQueue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n, "late jobs are still admitted")

	got, err := f.orc.GetJobStatus(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, got.Status)

	entries, err := f.store.ListAudit(ctx, sub.ID)
	require.NoError(t, err)
	var flagged bool
	for _, e := range entries {
		if e.EventType == models.EventDeadlineMissed {
			flagged = true
		}
	}
	require.True(t, flagged)
	require.Contains(t, f.sink.eventTypes(), "deadline_warning")
}

func TestConfirmationIsStable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testConfig(), mockReqs())
	f.seedRFP(t, "rfp-1", time.Now().Add(24*time.Hour))

	sub, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-1", Portal: "mock", Document: testDocument("rfp-1")})
	require.NoError(t, err)
	_, err = f.orc.ProcessQueue(ctx)
	require.NoError(t, err)

	first, err := f.orc.GetJobStatus(ctx, sub.ID)
	require.NoError(t, err)
	second, err := f.orc.GetJobStatus(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, *first.ConfirmationNumber, *second.ConfirmationNumber)
	require.True(t, first.ConfirmedAt.Equal(*second.ConfirmedAt))

	// Further ticks cannot disturb a terminal job.
	n, err := f.orc.ProcessQueue(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	third, err := f.orc.GetJobStatus(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, *first.ConfirmationNumber, *third.ConfirmationNumber)
}

func TestConcurrentProcessQueue(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxConcurrentSubmissions = 3
	f := newFixture(t, cfg, mockReqs())

	deadline := time.Now().Add(24 * time.Hour)
	for i := 0; i < 6; i++ {
		id := string(rune('a' + i))
		f.seedRFP(t, "rfp-"+id, deadline)
		_, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-" + id, Portal: "mock", Priority: i, Document: testDocument("rfp-" + id)})
		require.NoError(t, err)
	}

	// Concurrent ticks race over the same ready set; every job must be
	// delivered exactly once. Errors are collected and asserted on the
	// test goroutine.
	errc := make(chan error, 4*5)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if _, err := f.orc.ProcessQueue(ctx); err != nil {
					errc <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errc)
	for err := range errc {
		require.NoError(t, err)
	}

	require.Equal(t, 6, f.mock.Calls())

	stats, err := f.orc.GetStatistics(ctx)
	require.NoError(t, err)
	require.Equal(t, 6, stats.Total)
	require.Equal(t, 6, stats.ByStatus[models.StatusConfirmed])
	require.InDelta(t, 1.0, stats.SuccessRate, 1e-9)
}

func TestSlowDeliveryKeepsItsLease(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.VisibilityTimeout = 20 * time.Millisecond
	f := newFixture(t, cfg, mockReqs())
	f.seedRFP(t, "rfp-1", time.Now().Add(24*time.Hour))
	f.mock.SetLatency(150 * time.Millisecond)

	sub, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-1", Portal: "mock", Document: testDocument("rfp-1")})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.orc.ProcessQueue(ctx)
		done <- err
	}()

	// A second tick fires while the first delivery is still running, well
	// past the original visibility window. The extended lease must keep
	// the job out of reach.
	time.Sleep(60 * time.Millisecond)
	n, err := f.orc.ProcessQueue(ctx)
	require.NoError(t, err)
	require.Zero(t, n, "an in-flight job must not be re-admitted")

	require.NoError(t, <-done)
	require.Equal(t, 1, f.mock.Calls(), "exactly one delivery reached the portal")

	got, err := f.orc.GetJobStatus(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, got.Status)
	require.Equal(t, 1, got.Attempts)

	entries, err := f.store.ListAudit(ctx, sub.ID)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotEqual(t, models.EventLeaseReclaimed, e.EventType)
	}
}

func TestReclaimDropsTerminalJobs(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.VisibilityTimeout = time.Millisecond
	f := newFixture(t, cfg, mockReqs())
	f.seedRFP(t, "rfp-1", time.Now().Add(24*time.Hour))

	sub, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-1", Portal: "mock", Document: testDocument("rfp-1")})
	require.NoError(t, err)

	// The job is confirmed while its queue entry still holds a lease:
	// the worker finished but its Ack was lost.
	ids, err := f.queue.Admit(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, []string{sub.ID}, ids)
	require.NoError(t, f.store.MarkConfirmed(ctx, sub.ID, "CONF-123", time.Now()))
	time.Sleep(5 * time.Millisecond)

	n, err := f.orc.ProcessQueue(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	got, err := f.orc.GetJobStatus(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, got.Status)
	require.Equal(t, "CONF-123", *got.ConfirmationNumber)
	require.Zero(t, f.mock.Calls(), "a terminal job never goes back to the portal")

	depth, err := f.queue.ReadyDepth(ctx)
	require.NoError(t, err)
	require.Zero(t, depth, "the stale queue entry is dropped, not requeued")
}

func TestStatisticsConsistency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testConfig(), mockReqs())
	f.seedRFP(t, "rfp-1", time.Now().Add(24*time.Hour))
	f.seedRFP(t, "rfp-2", time.Now().Add(24*time.Hour))
	f.mock.Script(portal.MockSucceed, portal.MockNonRetryable)

	_, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-1", Portal: "mock", Priority: 9, Document: testDocument("rfp-1")})
	require.NoError(t, err)
	_, err = f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-2", Portal: "mock", Priority: 1, MaxRetries: 1, Document: testDocument("rfp-2")})
	require.NoError(t, err)

	_, err = f.orc.ProcessQueue(ctx)
	require.NoError(t, err)

	stats, err := f.orc.GetStatistics(ctx)
	require.NoError(t, err)
	sum := 0
	for _, n := range stats.ByStatus {
		sum += n
	}
	require.Equal(t, stats.Total, sum)
	require.Equal(t, 2, stats.Total)
	require.InDelta(t, 0.5, stats.SuccessRate, 1e-9)
}

func TestIdempotentSubmitReusesJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testConfig(), mockReqs())
	f.seedRFP(t, "rfp-1", time.Now().Add(24*time.Hour))

	first, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-1", Portal: "mock", IdempotencyKey: "bid-42", Document: testDocument("rfp-1")})
	require.NoError(t, err)
	second, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-1", Portal: "mock", IdempotencyKey: "bid-42", Document: testDocument("rfp-1")})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	// Only one queue entry exists despite the duplicate request.
	_, err = f.orc.ProcessQueue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, f.mock.Calls())
}

func TestAuditWriteFailureEscalates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testConfig(), mockReqs())
	f.seedRFP(t, "rfp-1", time.Now().Add(24*time.Hour))
	f.store.FailAuditAppend = true

	_, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-1", Portal: "mock", Document: testDocument("rfp-1")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "audit")
}

func TestNotificationFailureDoesNotAffectOutcome(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testConfig(), mockReqs())
	f.seedRFP(t, "rfp-1", time.Now().Add(24*time.Hour))
	f.sink.fail = true

	sub, err := f.orc.Submit(ctx, SubmitRequest{RFPID: "rfp-1", Portal: "mock", Document: testDocument("rfp-1")})
	require.NoError(t, err)

	_, err = f.orc.ProcessQueue(ctx)
	require.NoError(t, err)

	got, err := f.orc.GetJobStatus(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, got.Status)
}
