package portal

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/models"
)

// Error classes a delivery outcome can carry. Retryable covers the
// network/timeout/portal-busy class; non-retryable means resubmitting the
// identical package cannot help.
const (
	ErrClassRetryable    = "retryable"
	ErrClassNonRetryable = "non_retryable"
)

// Outcome is the structured result of one delivery attempt.
type Outcome struct {
	Success            bool
	ConfirmationNumber string
	ErrClass           string
	ErrMessage         string
}

// Retryable reports whether a failed outcome may be attempted again.
func (o Outcome) Retryable() bool {
	return !o.Success && o.ErrClass == ErrClassRetryable
}

// Adapter knows how to physically submit a package to one portal and
// report a structured outcome. A transport-level error return is treated
// by callers as a retryable failure.
type Adapter interface {
	Name() string
	Submit(ctx context.Context, pkg models.Package) (Outcome, error)
}

// Requirements is the per-portal submission profile. Configuration only;
// never mutated at runtime.
type Requirements struct {
	Portal                 string
	RequiredFormat         string
	RequiredForms          []string
	RequiredCertifications []string
	MaxPackageBytes        int64
	AverageLatency         time.Duration
}

// Registry maps portal names to their adapter and requirement profile.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	profiles map[string]Requirements
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: map[string]Adapter{},
		profiles: map[string]Requirements{},
	}
}

// Register binds an adapter and its requirement profile under the adapter's name.
func (r *Registry) Register(a Adapter, reqs Requirements) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reqs.Portal = a.Name()
	r.adapters[a.Name()] = a
	r.profiles[a.Name()] = reqs
}

// Adapter returns the adapter for a portal name.
func (r *Registry) Adapter(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("portal %q is not registered", name)
	}
	return a, nil
}

// Requirements returns the submission profile for a portal name.
func (r *Registry) Requirements(name string) (Requirements, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[name]
	if !ok {
		return Requirements{}, fmt.Errorf("portal %q is not registered", name)
	}
	return p, nil
}

// Known reports whether a portal name is registered.
func (r *Registry) Known(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[name]
	return ok
}

// Names lists registered portals in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
