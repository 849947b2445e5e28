package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

// SlackNotifier posts orchestration outcomes to a Slack webhook.
type SlackNotifier struct {
	logger     zerolog.Logger
	webhookURL string
	timing     timingConfig
	poster     *httpPoster
}

// SlackOption customizes SlackNotifier behavior.
type SlackOption func(*SlackNotifier)

// WithSlackTiming overrides timing parameters (primarily for testing).
func WithSlackTiming(rateInterval time.Duration, rateBurst int, backoffInitial, backoffMax, backoffMaxElapsed time.Duration) SlackOption {
	return func(s *SlackNotifier) {
		s.timing.rateInterval = rateInterval
		s.timing.rateBurst = rateBurst
		s.timing.backoffInitial = backoffInitial
		s.timing.backoffMax = backoffMax
		s.timing.backoffMaxElapsed = backoffMaxElapsed
	}
}

// NewSlackNotifier creates a Slack notifier or a noop notifier when the webhook is empty.
func NewSlackNotifier(logger zerolog.Logger, webhookURL string, opts ...SlackOption) Notifier {
	if webhookURL == "" {
		return NewNoop(logger, "slack webhook not configured; notifications disabled")
	}

	notifier := &SlackNotifier{
		logger:     logger,
		webhookURL: webhookURL,
		timing:     defaultTiming,
	}

	for _, opt := range opts {
		opt(notifier)
	}

	notifier.poster = newHTTPPoster(logger, "slack", webhookURL, "application/json", notifier.timing)

	return notifier
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, event Event) error {
	if err := n.poster.waitForRateLimit(ctx, event.Target); err != nil {
		return err
	}

	message := buildSlackMessage(event)
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal slack message: %w", err)
	}

	if err := n.poster.postWithRetry(ctx, payload); err != nil {
		return err
	}

	n.logger.Debug().
		Str("target", event.Target).
		Str("outcome", event.Outcome).
		Msg("slack notification sent")

	return nil
}

func buildSlackMessage(event Event) slack.WebhookMessage {
	summary := fmt.Sprintf("%s Deploy %s on %s: %s", outcomeEmoji(event.Outcome), event.Variant, event.Target, event.Outcome)
	header := slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", summary, false, false))
	contextBlock := slack.NewContextBlock("",
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Target: *%s*", event.Target), false, false),
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Run: `%s`", event.RunID), false, false),
	)

	blocks := []slack.Block{header, contextBlock, buildOutcomeBlock(event)}
	blockSet := slack.Blocks{BlockSet: blocks}
	return slack.WebhookMessage{
		Text:   summary,
		Blocks: &blockSet,
	}
}

func buildOutcomeBlock(event Event) slack.Block {
	title := fmt.Sprintf("*%s* variant `%s` → `%s`", event.Target, event.Variant, event.Outcome)
	text := slack.NewTextBlockObject("mrkdwn", title, false, false)

	fields := make([]*slack.TextBlockObject, 0, 4)
	if event.Rounds > 0 {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Rounds:*\n%d", event.Rounds), false, false))
	}
	if event.Duration > 0 {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Duration:*\n%s", event.Duration.Round(time.Second)), false, false))
	}
	if len(event.FailedEndpoints) > 0 {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", "*Never passed:*\n"+strings.Join(event.FailedEndpoints, ", "), false, false))
	}
	if len(event.DegradedCapabilities) > 0 {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", "*Degraded:*\n"+strings.Join(event.DegradedCapabilities, ", "), false, false))
	}
	if event.Detail != "" {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", "*Detail:*\n"+event.Detail, false, false))
	}

	return slack.NewSectionBlock(text, fields, nil)
}

func outcomeEmoji(outcome string) string {
	switch outcome {
	case "HEALTHY":
		return ":white_check_mark:"
	case "DEGRADED":
		return ":warning:"
	case "CANCELLED":
		return ":octagonal_sign:"
	default:
		return ":x:"
	}
}
