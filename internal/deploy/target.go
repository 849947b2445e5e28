package deploy

import (
	"errors"
	"fmt"
	"strings"
)

// Target identifies one deployment destination. It is immutable for the
// duration of an attempt and is passed explicitly through every call;
// nothing reads ambient CLI session state.
type Target struct {
	Environment string
	Profile     string
	Region      string
}

// Validate rejects incomplete targets before any artifact mutation.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Environment) == "" {
		return errors.New("target environment is required")
	}
	if strings.TrimSpace(t.Profile) == "" {
		return errors.New("target instance profile is required")
	}
	if strings.TrimSpace(t.Region) == "" {
		return errors.New("target region is required")
	}
	return nil
}

// Key returns a stable identity used for run-level locking.
func (t Target) Key() string {
	return fmt.Sprintf("%s@%s/%s", t.Environment, t.Region, t.Profile)
}

func (t Target) String() string {
	return t.Key()
}
