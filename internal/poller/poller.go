package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/nholik/deploy-sentinel/internal/healthreport"
	"github.com/rs/zerolog"
)

const (
	defaultProbeTimeout  = 10 * time.Second
	probeBodyLimit int64 = 1 << 20
)

// State is the poller's lifecycle state.
type State string

const (
	StateIdle     State = "IDLE"
	StateProbing  State = "PROBING"
	StateHealthy  State = "HEALTHY"
	StateTimedOut State = "TIMED_OUT"
)

// ReasonCancelled is reported when the poller is aborted before a
// fully successful round.
const ReasonCancelled = "cancelled"

// ReasonBudgetExhausted is reported when every round in the budget
// failed.
const ReasonBudgetExhausted = "round budget exhausted"

// Result is the poller's terminal outcome. Report carries the last
// health document parsed from any probe, which on timeout is the
// best-available partial view.
type Result struct {
	State           State
	Rounds          int
	Report          healthreport.Report
	HasReport       bool
	FailedEndpoints []string
	Reason          string
}

// Poller drives rounds of ordered endpoint probes until a round fully
// succeeds or the round budget runs out. Probes within a round fan out
// concurrently; rounds are strictly sequential with a fixed interval
// between them.
type Poller struct {
	logger        zerolog.Logger
	baseURL       string
	endpoints     []string
	maxRounds     int
	roundInterval time.Duration
	client        *retryablehttp.Client
	sleep         func(ctx context.Context, wait time.Duration) bool

	mu    sync.Mutex
	state State
}

// Option customizes poller behavior.
type Option func(*Poller)

// WithSleep overrides the inter-round sleep (for deterministic tests).
func WithSleep(sleep func(ctx context.Context, wait time.Duration) bool) Option {
	return func(p *Poller) {
		p.sleep = sleep
	}
}

// WithProbeTimeout bounds each individual endpoint probe.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(p *Poller) {
		p.client.HTTPClient.Timeout = timeout
	}
}

// New constructs a poller for the given base URL and ordered endpoint
// chain.
func New(logger zerolog.Logger, baseURL string, endpoints []string, maxRounds int, roundInterval time.Duration, opts ...Option) (*Poller, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("poller base url must not be empty")
	}
	if len(endpoints) == 0 {
		return nil, errors.New("endpoint chain must not be empty")
	}
	if maxRounds <= 0 {
		return nil, errors.New("max rounds must be greater than zero")
	}
	if roundInterval <= 0 {
		return nil, errors.New("round interval must be greater than zero")
	}

	// Per-probe retries stay off; the retry budget lives in the round
	// loop, one fixed-interval round at a time.
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = func(_ context.Context, _ *http.Response, _ error) (bool, error) {
		return false, nil
	}
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: defaultProbeTimeout}

	p := &Poller{
		logger:        logger,
		baseURL:       strings.TrimRight(baseURL, "/"),
		endpoints:     append([]string(nil), endpoints...),
		maxRounds:     maxRounds,
		roundInterval: roundInterval,
		client:        client,
		sleep:         sleepWithContext,
		state:         StateIdle,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// State returns the poller's current state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) setState(state State) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

// Run executes poll rounds until a round fully succeeds, the budget is
// exhausted, or ctx is cancelled. Cancellation transitions directly to
// TimedOut with reason "cancelled".
func (p *Poller) Run(ctx context.Context) Result {
	p.setState(StateProbing)

	var (
		lastReport healthreport.Report
		hasReport  bool
	)
	passedEver := make(map[string]bool, len(p.endpoints))

	for round := 1; round <= p.maxRounds; round++ {
		if ctx.Err() != nil {
			return p.finishCancelled(round-1, lastReport, hasReport, passedEver)
		}

		outcomes := p.probeRound(ctx, round)

		roundPassed := true
		for _, outcome := range outcomes {
			if outcome.passed {
				passedEver[outcome.endpoint] = true
			} else {
				roundPassed = false
			}
			if outcome.hasReport {
				lastReport = outcome.report
				hasReport = true
			}
		}

		if ctx.Err() != nil {
			return p.finishCancelled(round, lastReport, hasReport, passedEver)
		}

		if roundPassed {
			p.setState(StateHealthy)
			p.logger.Info().
				Int("round", round).
				Msg("all health endpoints passed")
			return Result{
				State:     StateHealthy,
				Rounds:    round,
				Report:    lastReport,
				HasReport: hasReport,
			}
		}

		p.logger.Warn().
			Int("round", round).
			Int("max_rounds", p.maxRounds).
			Strs("failed", failedInRound(outcomes)).
			Msg("health round failed")

		if round < p.maxRounds {
			if !p.sleep(ctx, p.roundInterval) {
				return p.finishCancelled(round, lastReport, hasReport, passedEver)
			}
		}
	}

	p.setState(StateTimedOut)
	return Result{
		State:           StateTimedOut,
		Rounds:          p.maxRounds,
		Report:          lastReport,
		HasReport:       hasReport,
		FailedEndpoints: p.neverPassed(passedEver),
		Reason:          ReasonBudgetExhausted,
	}
}

func (p *Poller) finishCancelled(rounds int, report healthreport.Report, hasReport bool, passedEver map[string]bool) Result {
	p.setState(StateTimedOut)
	return Result{
		State:           StateTimedOut,
		Rounds:          rounds,
		Report:          report,
		HasReport:       hasReport,
		FailedEndpoints: p.neverPassed(passedEver),
		Reason:          ReasonCancelled,
	}
}

func (p *Poller) neverPassed(passedEver map[string]bool) []string {
	failed := make([]string, 0)
	for _, endpoint := range p.endpoints {
		if !passedEver[endpoint] {
			failed = append(failed, endpoint)
		}
	}
	sort.Strings(failed)
	return failed
}

type probeOutcome struct {
	endpoint  string
	passed    bool
	report    healthreport.Report
	hasReport bool
	err       error
}

// probeRound fans probes out concurrently, one per endpoint, and
// reduces to per-endpoint outcomes in chain order.
func (p *Poller) probeRound(ctx context.Context, round int) []probeOutcome {
	outcomes := make([]probeOutcome, len(p.endpoints))

	var wg sync.WaitGroup
	for i, endpoint := range p.endpoints {
		wg.Add(1)
		go func(i int, endpoint string) {
			defer wg.Done()
			outcomes[i] = p.probe(ctx, endpoint)
		}(i, endpoint)
	}
	wg.Wait()

	for _, outcome := range outcomes {
		event := p.logger.Debug().
			Int("round", round).
			Str("endpoint", outcome.endpoint).
			Bool("passed", outcome.passed)
		if outcome.err != nil {
			event = event.Err(outcome.err)
		}
		event.Msg("probe finished")
	}

	return outcomes
}

func (p *Poller) probe(ctx context.Context, endpoint string) probeOutcome {
	outcome := probeOutcome{endpoint: endpoint}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+endpoint, nil)
	if err != nil {
		outcome.err = fmt.Errorf("build probe request: %w", err)
		return outcome
	}

	resp, err := p.client.Do(req)
	if err != nil {
		outcome.err = fmt.Errorf("probe %s: %w", endpoint, err)
		return outcome
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, probeBodyLimit))
	if err != nil {
		outcome.err = fmt.Errorf("read probe body: %w", err)
		return outcome
	}

	outcome.passed = resp.StatusCode >= 200 && resp.StatusCode < 300

	if report, parseErr := healthreport.Parse(body); parseErr == nil {
		outcome.report = report
		outcome.hasReport = true
	}

	return outcome
}

func failedInRound(outcomes []probeOutcome) []string {
	failed := make([]string, 0)
	for _, outcome := range outcomes {
		if !outcome.passed {
			failed = append(failed, outcome.endpoint)
		}
	}
	return failed
}

func sleepWithContext(ctx context.Context, wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
