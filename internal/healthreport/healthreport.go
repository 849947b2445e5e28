package healthreport

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// CapabilityStatus represents the load state of one optional subsystem.
type CapabilityStatus string

const (
	StatusNotAttempted   CapabilityStatus = "NOT_ATTEMPTED"
	StatusLoaded         CapabilityStatus = "LOADED"
	StatusFallbackActive CapabilityStatus = "FALLBACK_ACTIVE"
	StatusFailedFatal    CapabilityStatus = "FAILED_FATAL"
)

// CapabilityHealth captures the reported state of a single capability.
type CapabilityHealth struct {
	Name     string           `json:"name"`
	Status   CapabilityStatus `json:"status"`
	Required bool             `json:"required"`
	Detail   string           `json:"detail,omitempty"`
}

// Report is the aggregated health document a deployed service exposes.
// Healthy reflects whether the process can serve requests; it is
// independent of optional capability state.
type Report struct {
	Healthy      bool                        `json:"healthy"`
	Capabilities map[string]CapabilityHealth `json:"capabilities"`
	GeneratedAt  time.Time                   `json:"generated_at"`
}

// Classification is the caller-level reading of a healthy report.
type Classification string

const (
	ClassFull     Classification = "FULL"
	ClassDegraded Classification = "DEGRADED"
	ClassDown     Classification = "DOWN"
)

// Classify distinguishes fully-loaded, degraded-but-serving and down.
// A report that is healthy but carries fallback or fatal capability
// statuses is degraded, not down.
func Classify(r Report) Classification {
	if !r.Healthy {
		return ClassDown
	}
	for _, ch := range r.Capabilities {
		switch ch.Status {
		case StatusFallbackActive, StatusFailedFatal:
			return ClassDegraded
		}
	}
	return ClassFull
}

// DegradedCapabilities returns the names of capabilities that did not
// load cleanly, sorted for deterministic output.
func DegradedCapabilities(r Report) []string {
	names := make([]string, 0)
	for name, ch := range r.Capabilities {
		switch ch.Status {
		case StatusFallbackActive, StatusFailedFatal:
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Parse decodes a report body. Bodies without a top-level "healthy"
// field are rejected so plain liveness responses are not mistaken for
// capability reports.
func Parse(body []byte) (Report, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Report{}, fmt.Errorf("parse health report: %w", err)
	}
	if _, ok := raw["healthy"]; !ok {
		return Report{}, fmt.Errorf("body is not a health report")
	}

	var report Report
	if err := json.Unmarshal(body, &report); err != nil {
		return Report{}, fmt.Errorf("parse health report: %w", err)
	}
	if report.Capabilities == nil {
		report.Capabilities = map[string]CapabilityHealth{}
	}
	return report, nil
}
