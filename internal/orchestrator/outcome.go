package orchestrator

// Outcome is the terminal classification of one orchestration run.
type Outcome string

const (
	OutcomeHealthy             Outcome = "HEALTHY"
	OutcomeDegraded            Outcome = "DEGRADED"
	OutcomePreconditionFailed  Outcome = "PRECONDITION_FAILED"
	OutcomeDeployFailed        Outcome = "DEPLOY_FAILED"
	OutcomeVerificationTimeout Outcome = "VERIFICATION_TIMEOUT"
	OutcomeCancelled           Outcome = "CANCELLED"
)

// ExitCode maps an outcome to the CLI exit code contract. A degraded
// deployment is still a serving deployment, so it exits zero like a
// fully healthy one.
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeHealthy, OutcomeDegraded:
		return 0
	case OutcomePreconditionFailed:
		return 1
	case OutcomeDeployFailed:
		return 2
	case OutcomeVerificationTimeout:
		return 3
	case OutcomeCancelled:
		return 4
	default:
		return 1
	}
}
