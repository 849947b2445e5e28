package deploy

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nholik/deploy-sentinel/internal/artifact"
)

// AttemptStatus is the terminal state of one deployment attempt.
type AttemptStatus string

const (
	AttemptPending AttemptStatus = "PENDING"
	AttemptSuccess AttemptStatus = "SUCCESS"
	AttemptFailure AttemptStatus = "FAILURE"
)

// Attempt records one invocation of the external deploy operation.
// Attempts are transient; they live only for the duration of a run.
type Attempt struct {
	ID        string
	Target    Target
	Variant   artifact.Variant
	StartedAt time.Time
	EndedAt   time.Time
	Status    AttemptStatus
	Output    string
}

// NewAttempt creates a pending attempt for the given target and variant.
func NewAttempt(target Target, variant artifact.Variant) *Attempt {
	return &Attempt{
		ID:        uuid.NewString(),
		Target:    target,
		Variant:   variant,
		StartedAt: time.Now().UTC(),
		Status:    AttemptPending,
	}
}

// Finish sets the terminal status. The status is set exactly once;
// finishing an already-finished attempt is an error.
func (a *Attempt) Finish(status AttemptStatus, output string) error {
	if a.Status != AttemptPending {
		return errors.New("attempt already finished")
	}
	if status == AttemptPending {
		return errors.New("cannot finish attempt as pending")
	}
	a.Status = status
	a.Output = output
	a.EndedAt = time.Now().UTC()
	return nil
}

// Duration reports how long the attempt ran.
func (a *Attempt) Duration() time.Duration {
	if a.EndedAt.IsZero() {
		return 0
	}
	return a.EndedAt.Sub(a.StartedAt)
}
