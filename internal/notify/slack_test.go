package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

func TestSlackNotifierEmptyURLIsNoop(t *testing.T) {
	notifier := NewSlackNotifier(zerolog.Nop(), "")
	if _, ok := notifier.(*NoopNotifier); !ok {
		t.Fatalf("expected NoopNotifier, got %T", notifier)
	}
	if err := notifier.Notify(context.Background(), outcomeEvent()); err != nil {
		t.Fatalf("noop Notify error: %v", err)
	}
}

func TestSlackNotifierPostsBlocks(t *testing.T) {
	var payload slack.WebhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Errorf("unmarshal slack payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(zerolog.Nop(), server.URL,
		WithSlackTiming(time.Millisecond, 1, time.Millisecond, 2*time.Millisecond, 20*time.Millisecond))

	event := outcomeEvent()
	event.Outcome = "DEGRADED"
	event.DegradedCapabilities = []string{"heavy-model-a"}

	if err := notifier.Notify(context.Background(), event); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	if !strings.Contains(payload.Text, "DEGRADED") {
		t.Fatalf("summary text = %q", payload.Text)
	}
	if payload.Blocks == nil || len(payload.Blocks.BlockSet) != 3 {
		t.Fatalf("expected header, context and outcome blocks, got %+v", payload.Blocks)
	}
}

func TestSlackNotifierRetryAfter(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(zerolog.Nop(), server.URL,
		WithSlackTiming(time.Millisecond, 1, time.Millisecond, 2*time.Millisecond, 5*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := notifier.Notify(ctx, outcomeEvent()); err != nil {
		t.Fatalf("expected retry after 429, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}
