package portal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/models"
)

// Forced outcome classes the mock can be scripted with.
const (
	MockSucceed      = "succeed"
	MockRetryable    = "retryable"
	MockNonRetryable = "non_retryable"
)

// Mock is the test portal. Outcomes follow a scripted sequence (default:
// always succeed) and every call sleeps for a small simulated latency so
// timing-dependent callers are exercised honestly.
type Mock struct {
	mu       sync.Mutex
	name     string
	latency  time.Duration
	script   []string
	calls    int
	Packages []models.Package
}

func NewMock() *Mock {
	return &Mock{name: "mock", latency: 5 * time.Millisecond}
}

// NewMockNamed builds a mock that registers under a different portal name,
// useful when a test needs several independent portals.
func NewMockNamed(name string) *Mock {
	m := NewMock()
	m.name = name
	return m
}

func (m *Mock) Name() string { return m.name }

// Script sets the forced outcome sequence. Calls beyond the script succeed.
func (m *Mock) Script(outcomes ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append([]string(nil), outcomes...)
	m.calls = 0
}

// SetLatency overrides the simulated delivery latency.
func (m *Mock) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// Calls reports how many deliveries the mock has received.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Mock) Submit(ctx context.Context, pkg models.Package) (Outcome, error) {
	m.mu.Lock()
	forced := MockSucceed
	if m.calls < len(m.script) {
		forced = m.script[m.calls]
	}
	m.calls++
	call := m.calls
	latency := m.latency
	m.Packages = append(m.Packages, pkg)
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return Outcome{ErrClass: ErrClassRetryable, ErrMessage: ctx.Err().Error()}, nil
	case <-time.After(latency):
	}

	switch forced {
	case MockRetryable:
		return Outcome{ErrClass: ErrClassRetryable, ErrMessage: "simulated portal busy"}, nil
	case MockNonRetryable:
		return Outcome{ErrClass: ErrClassNonRetryable, ErrMessage: "simulated content rejection"}, nil
	default:
		return Outcome{Success: true, ConfirmationNumber: fmt.Sprintf("MOCK-%06d", call)}, nil
	}
}
