package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/nholik/deploy-sentinel/internal/healthreport"
	"github.com/rs/zerolog"
)

type fakeSearch struct {
	degraded bool
}

func TestRegistry_OptionalFailureSubstitutesFallback(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())

	mustRegister(t, registry, Definition{
		Name:     "vector-search",
		Init:     func(ctx context.Context) (any, error) { return nil, errors.New("index download failed") },
		Fallback: func() any { return &fakeSearch{degraded: true} },
	})

	if err := registry.InitAll(context.Background()); err != nil {
		t.Fatalf("optional failure must not fail startup: %v", err)
	}

	status, ok := registry.Status("vector-search")
	if !ok || status != healthreport.StatusFallbackActive {
		t.Fatalf("status = %s, want FALLBACK_ACTIVE", status)
	}

	impl, ok := registry.Get("vector-search")
	if !ok {
		t.Fatal("fallback implementation should be available")
	}
	search, ok := impl.(*fakeSearch)
	if !ok || !search.degraded {
		t.Fatalf("fallback implementation = %#v", impl)
	}

	report := registry.Report()
	if !report.Healthy {
		t.Fatal("optional capability loss must not make the service unhealthy")
	}
}

func TestRegistry_FailuresAreIsolated(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())

	mustRegister(t, registry, Definition{
		Name:     "heavy-model-a",
		Init:     func(ctx context.Context) (any, error) { return nil, errors.New("out of memory") },
		Fallback: func() any { return "mock-model" },
	})
	mustRegister(t, registry, Definition{
		Name: "heavy-model-b",
		Init: func(ctx context.Context) (any, error) { return "real-model", nil },
		Fallback: func() any {
			t.Fatal("fallback should not be used for a healthy capability")
			return nil
		},
	})

	if err := registry.InitAll(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}

	if status, _ := registry.Status("heavy-model-a"); status != healthreport.StatusFallbackActive {
		t.Fatalf("heavy-model-a status = %s", status)
	}
	if status, _ := registry.Status("heavy-model-b"); status != healthreport.StatusLoaded {
		t.Fatalf("one capability's failure leaked into another: %s", status)
	}
}

func TestRegistry_RequiredFailureIsFatalButOthersStillAttempted(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())

	mustRegister(t, registry, Definition{
		Name:     "core-db",
		Required: true,
		Init:     func(ctx context.Context) (any, error) { return nil, errors.New("connection refused") },
	})
	optionalAttempted := false
	mustRegister(t, registry, Definition{
		Name: "vector-search",
		Init: func(ctx context.Context) (any, error) {
			optionalAttempted = true
			return "index", nil
		},
		Fallback: func() any { return "mock" },
	})

	err := registry.InitAll(context.Background())
	if err == nil {
		t.Fatal("required capability failure must fail startup")
	}
	if !optionalAttempted {
		t.Fatal("remaining capabilities must still be attempted")
	}

	report := registry.Report()
	if report.Healthy {
		t.Fatal("report must be unhealthy when a required capability failed")
	}
	if report.Capabilities["core-db"].Status != healthreport.StatusFailedFatal {
		t.Fatalf("core-db status = %s", report.Capabilities["core-db"].Status)
	}
}

func TestRegistry_DegradationIsOneWay(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())

	attempts := 0
	mustRegister(t, registry, Definition{
		Name: "flaky-cache",
		Init: func(ctx context.Context) (any, error) {
			attempts++
			if attempts == 1 {
				return nil, errors.New("first attempt fails")
			}
			return "real-cache", nil
		},
		Fallback: func() any { return "noop-cache" },
	})

	if err := registry.InitAll(context.Background()); err != nil {
		t.Fatalf("first init: %v", err)
	}
	if status, _ := registry.Status("flaky-cache"); status != healthreport.StatusFallbackActive {
		t.Fatalf("status after first init = %s", status)
	}

	// A second init pass succeeds, but the recorded degradation must
	// not be upgraded within this process lifetime.
	if err := registry.InitAll(context.Background()); err != nil {
		t.Fatalf("second init: %v", err)
	}
	if status, _ := registry.Status("flaky-cache"); status != healthreport.StatusFallbackActive {
		t.Fatalf("degradation reversed: %s", status)
	}
}

func TestRegistry_NotAttemptedBeforeInit(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())
	mustRegister(t, registry, Definition{
		Name:     "vector-search",
		Init:     func(ctx context.Context) (any, error) { return "x", nil },
		Fallback: func() any { return "mock" },
	})

	if registry.Ready() {
		t.Fatal("registry should not be ready before InitAll")
	}
	status, ok := registry.Status("vector-search")
	if !ok || status != healthreport.StatusNotAttempted {
		t.Fatalf("status = %s, want NOT_ATTEMPTED", status)
	}
}

func TestRegistry_RegisterValidation(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())

	if err := registry.Register(Definition{}); err == nil {
		t.Fatal("nameless capability accepted")
	}
	if err := registry.Register(Definition{Name: "x"}); err == nil {
		t.Fatal("capability without init accepted")
	}
	if err := registry.Register(Definition{
		Name: "x",
		Init: func(ctx context.Context) (any, error) { return nil, nil },
	}); err == nil {
		t.Fatal("optional capability without fallback accepted")
	}

	mustRegister(t, registry, Definition{
		Name:     "dup",
		Init:     func(ctx context.Context) (any, error) { return nil, nil },
		Fallback: func() any { return nil },
	})
	if err := registry.Register(Definition{
		Name:     "dup",
		Init:     func(ctx context.Context) (any, error) { return nil, nil },
		Fallback: func() any { return nil },
	}); err == nil {
		t.Fatal("duplicate capability accepted")
	}
}

func mustRegister(t *testing.T, registry *Registry, def Definition) {
	t.Helper()
	if err := registry.Register(def); err != nil {
		t.Fatalf("register %s: %v", def.Name, err)
	}
}
