package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// DryRunNotifier logs outcome events without sending notifications.
type DryRunNotifier struct {
	logger zerolog.Logger
	inner  Notifier
}

// NewDryRunNotifier returns a notifier that suppresses delivery and logs instead.
func NewDryRunNotifier(logger zerolog.Logger, inner Notifier) *DryRunNotifier {
	return &DryRunNotifier{logger: logger, inner: inner}
}

// Notify implements Notifier.
func (n *DryRunNotifier) Notify(_ context.Context, event Event) error {
	n.logger.Info().
		Str("run_id", event.RunID).
		Str("target", event.Target).
		Str("variant", event.Variant).
		Str("outcome", event.Outcome).
		Int("rounds", event.Rounds).
		Strs("failed_endpoints", event.FailedEndpoints).
		Msg("[DRY-RUN] Would notify")
	return nil
}
