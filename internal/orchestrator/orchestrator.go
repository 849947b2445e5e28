package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nholik/deploy-sentinel/internal/artifact"
	"github.com/nholik/deploy-sentinel/internal/deploy"
	"github.com/nholik/deploy-sentinel/internal/healthreport"
	"github.com/nholik/deploy-sentinel/internal/metrics"
	"github.com/nholik/deploy-sentinel/internal/notify"
	"github.com/nholik/deploy-sentinel/internal/poller"
	"github.com/rs/zerolog"
)

// HealthPoller is the verification loop run after a deploy returns.
type HealthPoller interface {
	Run(ctx context.Context) poller.Result
}

// PollerFactory builds a poller for one run's endpoint chain.
type PollerFactory func(baseURL string, endpoints []string, maxRounds int, roundInterval time.Duration) (HealthPoller, error)

// RunSpec carries everything one orchestration run needs. The target is
// passed explicitly; nothing reads ambient deploy-tool session state.
type RunSpec struct {
	Target         deploy.Target
	Variant        artifact.Variant
	BaseURL        string
	Endpoints      []string
	MaxRounds      int
	RoundInterval  time.Duration
	DeployTimeout  time.Duration
	OverallTimeout time.Duration
}

// Result is the reported outcome of one orchestration run.
type Result struct {
	RunID          string
	Outcome        Outcome
	Attempt        *deploy.Attempt
	Poll           poller.Result
	Classification healthreport.Classification
	RestoreErr     error
	Err            error
	Duration       time.Duration
}

// Orchestrator drives one run end to end: backup, swap, deploy, poll,
// restore. The restore is registered once after a successful backup and
// executes on every exit path.
type Orchestrator struct {
	logger        zerolog.Logger
	controller    *artifact.Controller
	driver        deploy.Driver
	pollerFactory PollerFactory
	locker        *targetLocker
	metrics       *metrics.Metrics
	notifier      notify.Notifier
}

// Option customizes orchestrator behavior.
type Option func(*Orchestrator)

// WithPollerFactory overrides how verification pollers are built.
func WithPollerFactory(factory PollerFactory) Option {
	return func(o *Orchestrator) {
		o.pollerFactory = factory
	}
}

// WithMetrics attaches a metrics registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithNotifier attaches an outcome notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

// New constructs an Orchestrator around a controller and a driver.
// lockDir holds the per-target run lockfiles.
func New(logger zerolog.Logger, controller *artifact.Controller, driver deploy.Driver, lockDir string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:     logger,
		controller: controller,
		driver:     driver,
		locker:     newTargetLocker(lockDir),
	}
	o.pollerFactory = func(baseURL string, endpoints []string, maxRounds int, roundInterval time.Duration) (HealthPoller, error) {
		return poller.New(logger, baseURL, endpoints, maxRounds, roundInterval)
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Run executes one orchestration run. The original active artifact is
// back in place by the time Run returns, whatever the outcome.
func (o *Orchestrator) Run(ctx context.Context, spec RunSpec) (result Result) {
	started := time.Now()
	runID := uuid.NewString()
	result.RunID = runID

	logger := o.logger.With().
		Str("run_id", runID).
		Str("target", spec.Target.Key()).
		Str("variant", string(spec.Variant)).
		Logger()

	defer func() {
		result.Duration = time.Since(started)
		o.report(ctx, logger, spec, &result)
	}()

	lock, err := o.locker.Acquire(spec.Target, runID)
	if err != nil {
		logger.Error().Err(err).Msg("could not lock target")
		result.Outcome = OutcomePreconditionFailed
		result.Err = err
		return result
	}
	defer o.locker.Release(lock)

	runCtx := ctx
	if spec.OverallTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, spec.OverallTimeout)
		defer cancel()
	}

	backup, err := o.controller.Backup()
	if err != nil {
		logger.Error().Err(err).Msg("backup failed")
		result.Outcome = OutcomePreconditionFailed
		result.Err = err
		return result
	}

	// The one restore registration. Every path below, cancellation
	// included, exits through here.
	defer func() {
		if restoreErr := o.controller.Restore(backup); restoreErr != nil {
			logger.Error().Err(restoreErr).Msg("restore failed")
			result.RestoreErr = restoreErr
			o.countRestore("error")
			return
		}
		o.countRestore("ok")
	}()

	if err := o.controller.Swap(spec.Variant); err != nil {
		logger.Error().Err(err).Msg("variant swap failed")
		result.Outcome = OutcomePreconditionFailed
		result.Err = err
		return result
	}

	attempt, err := o.driver.Deploy(runCtx, spec.Target, spec.Variant, spec.DeployTimeout)
	result.Attempt = attempt
	if err != nil {
		if runCtx.Err() != nil {
			logger.Warn().Err(err).Msg("run aborted during deploy")
			result.Outcome = OutcomeCancelled
			result.Err = err
			return result
		}
		logger.Error().Err(err).Msg("deploy precondition failed")
		result.Outcome = OutcomePreconditionFailed
		result.Err = err
		return result
	}
	o.countAttempt(spec.Target.Environment, string(attempt.Status))

	if attempt.Status != deploy.AttemptSuccess {
		if runCtx.Err() != nil {
			result.Outcome = OutcomeCancelled
			return result
		}
		logger.Error().
			Str("attempt_id", attempt.ID).
			Msg("deploy attempt failed; skipping health verification")
		result.Outcome = OutcomeDeployFailed
		return result
	}

	healthPoller, err := o.pollerFactory(spec.BaseURL, spec.Endpoints, spec.MaxRounds, spec.RoundInterval)
	if err != nil {
		result.Outcome = OutcomePreconditionFailed
		result.Err = err
		return result
	}

	pollResult := healthPoller.Run(runCtx)
	result.Poll = pollResult
	o.countPoll(spec.Target.Environment, pollResult)

	switch pollResult.State {
	case poller.StateHealthy:
		result.Classification = healthreport.ClassFull
		if pollResult.HasReport {
			result.Classification = healthreport.Classify(pollResult.Report)
		}
		if result.Classification == healthreport.ClassDegraded {
			logger.Warn().
				Strs("capabilities", healthreport.DegradedCapabilities(pollResult.Report)).
				Msg("deployment serving with degraded capabilities")
			result.Outcome = OutcomeDegraded
		} else {
			result.Outcome = OutcomeHealthy
		}
	case poller.StateTimedOut:
		if pollResult.Reason == poller.ReasonCancelled {
			result.Outcome = OutcomeCancelled
		} else {
			result.Outcome = OutcomeVerificationTimeout
		}
	default:
		result.Outcome = OutcomeVerificationTimeout
	}

	return result
}

func (o *Orchestrator) report(ctx context.Context, logger zerolog.Logger, spec RunSpec, result *Result) {
	if o.metrics != nil {
		o.metrics.ObserveOrchestrationDuration(result.Duration)
	}

	var event *zerolog.Event
	switch result.Outcome {
	case OutcomeHealthy, OutcomeDegraded:
		event = logger.Info()
	default:
		event = logger.Error()
	}
	if result.Err != nil {
		event = event.Err(result.Err)
	}
	event.
		Str("outcome", string(result.Outcome)).
		Int("exit_code", result.Outcome.ExitCode()).
		Dur("duration", result.Duration).
		Msg("orchestration finished")

	if o.notifier == nil {
		return
	}

	// Notification delivery survives run cancellation.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()

	notifyEvent := notify.Event{
		RunID:           result.RunID,
		Target:          spec.Target.Key(),
		Variant:         string(spec.Variant),
		Outcome:         string(result.Outcome),
		Rounds:          result.Poll.Rounds,
		FailedEndpoints: result.Poll.FailedEndpoints,
		Duration:        result.Duration,
	}
	if result.Poll.HasReport {
		notifyEvent.DegradedCapabilities = healthreport.DegradedCapabilities(result.Poll.Report)
	}
	if result.Err != nil {
		notifyEvent.Detail = result.Err.Error()
	}
	if err := o.notifier.Notify(notifyCtx, notifyEvent); err != nil {
		logger.Warn().Err(err).Msg("outcome notification failed")
	}
}

func (o *Orchestrator) countAttempt(environment, status string) {
	if o.metrics != nil {
		o.metrics.IncDeployAttempts(environment, status)
	}
}

func (o *Orchestrator) countPoll(environment string, pollResult poller.Result) {
	if o.metrics == nil {
		return
	}
	o.metrics.IncPollRounds(environment, string(pollResult.State))
	for _, endpoint := range pollResult.FailedEndpoints {
		o.metrics.IncProbeFailures(endpoint)
	}
}

func (o *Orchestrator) countRestore(outcome string) {
	if o.metrics != nil {
		o.metrics.IncRestores(outcome)
	}
}

// IsPrecondition reports whether err belongs to the fatal, never-retried
// class of failures.
func IsPrecondition(err error) bool {
	var preErr *artifact.PreconditionError
	var variantErr *artifact.VariantMissingError
	var envErr *deploy.EnvironmentError
	var lockErr *LockContentionError
	return errors.As(err, &preErr) || errors.As(err, &variantErr) || errors.As(err, &envErr) || errors.As(err, &lockErr)
}
