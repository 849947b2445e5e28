package deploy

import "fmt"

// EnvironmentError reports a deploy-tool precondition failure: the
// external CLI is not installed or required credentials are absent.
// These are never retried.
type EnvironmentError struct {
	Reason string
	Err    error
}

func (e *EnvironmentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deploy environment: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("deploy environment: %s", e.Reason)
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}
