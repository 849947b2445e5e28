package notify

import (
	"context"
	"time"
)

// Event describes the outcome of one orchestration run.
type Event struct {
	RunID                string        `json:"run_id"`
	Target               string        `json:"target"`
	Variant              string        `json:"variant"`
	Outcome              string        `json:"outcome"`
	Rounds               int           `json:"rounds"`
	FailedEndpoints      []string      `json:"failed_endpoints,omitempty"`
	DegradedCapabilities []string      `json:"degraded_capabilities,omitempty"`
	Duration             time.Duration `json:"duration"`
	Detail               string        `json:"detail,omitempty"`
}

// Notifier delivers orchestration outcomes to external systems.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}
