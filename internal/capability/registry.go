package capability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nholik/deploy-sentinel/internal/healthreport"
	"github.com/rs/zerolog"
)

// InitFunc attempts to construct a capability's real implementation.
type InitFunc func(ctx context.Context) (any, error)

// FallbackFunc builds the inert substitute used when an optional
// capability fails to load. Fallbacks must uphold the capability's call
// contract and mark their results as degraded.
type FallbackFunc func() any

// Definition declares one capability for registration.
type Definition struct {
	Name     string
	Required bool
	Init     InitFunc
	Fallback FallbackFunc
}

type entry struct {
	def    Definition
	status healthreport.CapabilityStatus
	impl   any
	detail string
}

// Registry initializes capabilities independently and records one
// status per capability. Degradation is one-way: a capability that
// entered FALLBACK_ACTIVE or FAILED_FATAL never reports LOADED again
// within the process lifetime.
type Registry struct {
	logger zerolog.Logger

	mu          sync.RWMutex
	order       []string
	entries     map[string]*entry
	initialized bool
}

// NewRegistry constructs an empty capability registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Register declares a capability. Optional capabilities must provide a
// fallback; duplicate names are rejected.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return errors.New("capability name is required")
	}
	if def.Init == nil {
		return fmt.Errorf("capability %q: init func is required", def.Name)
	}
	if !def.Required && def.Fallback == nil {
		return fmt.Errorf("capability %q: optional capabilities require a fallback", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[def.Name]; ok {
		return fmt.Errorf("capability %q already registered", def.Name)
	}
	r.entries[def.Name] = &entry{
		def:    def,
		status: healthreport.StatusNotAttempted,
	}
	r.order = append(r.order, def.Name)
	return nil
}

// InitAll initializes every registered capability in isolation. One
// capability failing never prevents the others from being attempted.
// A required capability failing makes the whole startup fail after all
// capabilities have been tried.
func (r *Registry) InitAll(ctx context.Context) error {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	r.mu.RUnlock()

	var fatal []string
	for _, name := range names {
		if err := r.initOne(ctx, name); err != nil {
			fatal = append(fatal, fmt.Sprintf("%s: %v", name, err))
		}
	}

	r.mu.Lock()
	r.initialized = true
	r.mu.Unlock()

	if len(fatal) > 0 {
		return fmt.Errorf("required capabilities failed: %v", fatal)
	}
	return nil
}

func (r *Registry) initOne(ctx context.Context, name string) error {
	r.mu.RLock()
	current := r.entries[name]
	r.mu.RUnlock()
	if current == nil {
		return fmt.Errorf("capability %q not registered", name)
	}

	impl, err := current.def.Init(ctx)
	if err == nil {
		r.setLoaded(name, impl)
		r.logger.Info().Str("capability", name).Msg("capability loaded")
		return nil
	}

	if current.def.Required {
		r.setStatus(name, healthreport.StatusFailedFatal, err.Error(), nil)
		r.logger.Error().Err(err).Str("capability", name).Msg("required capability failed")
		return err
	}

	r.setStatus(name, healthreport.StatusFallbackActive, err.Error(), current.def.Fallback())
	r.logger.Warn().Err(err).Str("capability", name).Msg("optional capability degraded to fallback")
	return nil
}

func (r *Registry) setLoaded(name string, impl any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[name]
	// One-way degradation: never upgrade back to loaded.
	switch e.status {
	case healthreport.StatusFallbackActive, healthreport.StatusFailedFatal:
		return
	}
	e.status = healthreport.StatusLoaded
	e.impl = impl
	e.detail = ""
}

func (r *Registry) setStatus(name string, status healthreport.CapabilityStatus, detail string, impl any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[name]
	e.status = status
	e.detail = detail
	if impl != nil {
		e.impl = impl
	}
}

// Get returns the active implementation for a capability, which is the
// fallback when the real one failed to load.
func (r *Registry) Get(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok || e.impl == nil {
		return nil, false
	}
	return e.impl, true
}

// Status returns the recorded status of one capability.
func (r *Registry) Status(name string) (healthreport.CapabilityStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return "", false
	}
	return e.status, true
}

// Ready reports whether initialization has completed.
func (r *Registry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

// Report aggregates the per-capability view. The service is healthy iff
// every required capability loaded; optional capability loss never
// makes it globally unhealthy.
func (r *Registry) Report() healthreport.Report {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report := healthreport.Report{
		Healthy:      true,
		Capabilities: make(map[string]healthreport.CapabilityHealth, len(r.entries)),
		GeneratedAt:  time.Now().UTC(),
	}
	for name, e := range r.entries {
		report.Capabilities[name] = healthreport.CapabilityHealth{
			Name:     name,
			Status:   e.status,
			Required: e.def.Required,
			Detail:   e.detail,
		}
		if e.def.Required && e.status != healthreport.StatusLoaded {
			report.Healthy = false
		}
	}
	return report
}
