package healthreport

import (
	"testing"
)

func TestClassify_FullyHealthy(t *testing.T) {
	report := Report{
		Healthy: true,
		Capabilities: map[string]CapabilityHealth{
			"vector-search": {Name: "vector-search", Status: StatusLoaded},
			"heavy-model-a": {Name: "heavy-model-a", Status: StatusLoaded},
		},
	}
	if got := Classify(report); got != ClassFull {
		t.Fatalf("classification = %s, want FULL", got)
	}
}

func TestClassify_DegradedButServing(t *testing.T) {
	report := Report{
		Healthy: true,
		Capabilities: map[string]CapabilityHealth{
			"core-api":      {Name: "core-api", Status: StatusLoaded, Required: true},
			"heavy-model-a": {Name: "heavy-model-a", Status: StatusFailedFatal},
		},
	}
	if got := Classify(report); got != ClassDegraded {
		t.Fatalf("classification = %s, want DEGRADED (process up, optional capability lost)", got)
	}
}

func TestClassify_FallbackIsDegraded(t *testing.T) {
	report := Report{
		Healthy: true,
		Capabilities: map[string]CapabilityHealth{
			"vector-search": {Name: "vector-search", Status: StatusFallbackActive},
		},
	}
	if got := Classify(report); got != ClassDegraded {
		t.Fatalf("classification = %s, want DEGRADED", got)
	}
}

func TestClassify_Down(t *testing.T) {
	report := Report{
		Healthy: false,
		Capabilities: map[string]CapabilityHealth{
			"core-api": {Name: "core-api", Status: StatusFailedFatal, Required: true},
		},
	}
	if got := Classify(report); got != ClassDown {
		t.Fatalf("classification = %s, want DOWN", got)
	}
}

func TestDegradedCapabilities_SortedNames(t *testing.T) {
	report := Report{
		Healthy: true,
		Capabilities: map[string]CapabilityHealth{
			"zeta":  {Name: "zeta", Status: StatusFallbackActive},
			"alpha": {Name: "alpha", Status: StatusFailedFatal},
			"mid":   {Name: "mid", Status: StatusLoaded},
		},
	}
	got := DegradedCapabilities(report)
	if len(got) != 2 || got[0] != "alpha" || got[1] != "zeta" {
		t.Fatalf("degraded capabilities = %v", got)
	}
}

func TestParse_ValidReport(t *testing.T) {
	body := []byte(`{"healthy":true,"capabilities":{"vector-search":{"name":"vector-search","status":"FALLBACK_ACTIVE"}}}`)
	report, err := Parse(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !report.Healthy {
		t.Fatal("healthy not parsed")
	}
	if report.Capabilities["vector-search"].Status != StatusFallbackActive {
		t.Fatalf("capability status = %s", report.Capabilities["vector-search"].Status)
	}
}

func TestParse_MissingCapabilitiesYieldsEmptyMap(t *testing.T) {
	report, err := Parse([]byte(`{"healthy":true}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if report.Capabilities == nil {
		t.Fatal("capabilities map should be initialized")
	}
}

func TestParse_RejectsNonReports(t *testing.T) {
	for _, body := range []string{
		`{"status":"ok"}`,
		`"OK"`,
		`plain text`,
		``,
	} {
		if _, err := Parse([]byte(body)); err == nil {
			t.Fatalf("body %q accepted as health report", body)
		}
	}
}
