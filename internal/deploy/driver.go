package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/nholik/deploy-sentinel/internal/artifact"
	"github.com/rs/zerolog"
)

// Driver invokes the external deployment operation for a target.
type Driver interface {
	Deploy(ctx context.Context, target Target, variant artifact.Variant, timeout time.Duration) (*Attempt, error)
}

// CommandDriver shells out to a cloud deploy CLI. The call blocks until
// the tool exits or the timeout budget elapses; the driver never retries
// on its own.
type CommandDriver struct {
	logger         zerolog.Logger
	tool           string
	extraArgs      []string
	credentialEnvs []string
	lookPath       func(string) (string, error)
	runCommand     func(ctx context.Context, tool string, args []string) ([]byte, error)
}

// CommandOption customizes driver behavior.
type CommandOption func(*CommandDriver)

// WithExtraArgs appends fixed arguments to every deploy invocation.
func WithExtraArgs(args ...string) CommandOption {
	return func(d *CommandDriver) {
		d.extraArgs = append(d.extraArgs, args...)
	}
}

// WithCredentialEnvs names environment variables that must be present
// before a deploy is attempted. Values are passed through opaquely.
func WithCredentialEnvs(names ...string) CommandOption {
	return func(d *CommandDriver) {
		d.credentialEnvs = append(d.credentialEnvs, names...)
	}
}

// WithLookPath overrides tool resolution (for testing).
func WithLookPath(fn func(string) (string, error)) CommandOption {
	return func(d *CommandDriver) {
		d.lookPath = fn
	}
}

// WithRunCommand overrides command execution (for testing).
func WithRunCommand(fn func(ctx context.Context, tool string, args []string) ([]byte, error)) CommandOption {
	return func(d *CommandDriver) {
		d.runCommand = fn
	}
}

// NewCommandDriver constructs a driver for the named deploy tool.
func NewCommandDriver(logger zerolog.Logger, tool string, opts ...CommandOption) (*CommandDriver, error) {
	if strings.TrimSpace(tool) == "" {
		return nil, errors.New("deploy tool name must not be empty")
	}

	driver := &CommandDriver{
		logger:   logger,
		tool:     tool,
		lookPath: exec.LookPath,
	}
	driver.runCommand = driver.defaultRunCommand

	for _, opt := range opts {
		opt(driver)
	}

	return driver, nil
}

// Deploy runs one deploy invocation against the target. Precondition
// failures return an EnvironmentError and no attempt; a non-zero tool
// exit finishes the attempt as failure with its raw output preserved.
func (d *CommandDriver) Deploy(ctx context.Context, target Target, variant artifact.Variant, timeout time.Duration) (*Attempt, error) {
	if err := target.Validate(); err != nil {
		return nil, &EnvironmentError{Reason: "invalid target", Err: err}
	}
	if _, err := d.lookPath(d.tool); err != nil {
		return nil, &EnvironmentError{Reason: fmt.Sprintf("deploy tool %q not found", d.tool), Err: err}
	}
	for _, name := range d.credentialEnvs {
		if value, ok := os.LookupEnv(name); !ok || strings.TrimSpace(value) == "" {
			return nil, &EnvironmentError{Reason: fmt.Sprintf("credential %s is not set", name)}
		}
	}
	if timeout <= 0 {
		return nil, &EnvironmentError{Reason: "deploy timeout must be greater than zero"}
	}

	attempt := NewAttempt(target, variant)
	args := d.buildArgs(target, timeout)

	d.logger.Info().
		Str("attempt_id", attempt.ID).
		Str("target", target.Key()).
		Str("variant", string(variant)).
		Str("tool", d.tool).
		Dur("timeout", timeout).
		Msg("deploy starting")

	deployCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, err := d.runCommand(deployCtx, d.tool, args)
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			_ = attempt.Finish(AttemptFailure, string(output))
			exitCode := -1
			if exitErr.ProcessState != nil {
				exitCode = exitErr.ExitCode()
			}
			d.logger.Error().
				Str("attempt_id", attempt.ID).
				Str("target", target.Key()).
				Int("exit_code", exitCode).
				Msg("deploy command failed")
			return attempt, nil
		case errors.Is(deployCtx.Err(), context.DeadlineExceeded):
			_ = attempt.Finish(AttemptFailure, string(output))
			d.logger.Error().
				Str("attempt_id", attempt.ID).
				Str("target", target.Key()).
				Msg("deploy command timed out")
			return attempt, nil
		default:
			return nil, &EnvironmentError{Reason: fmt.Sprintf("run %s", d.tool), Err: err}
		}
	}

	_ = attempt.Finish(AttemptSuccess, string(output))
	d.logger.Info().
		Str("attempt_id", attempt.ID).
		Str("target", target.Key()).
		Dur("duration", attempt.Duration()).
		Msg("deploy command succeeded")

	return attempt, nil
}

func (d *CommandDriver) buildArgs(target Target, timeout time.Duration) []string {
	minutes := int(timeout / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	args := []string{
		"deploy", target.Environment,
		"--profile", target.Profile,
		"--region", target.Region,
		"--timeout", fmt.Sprintf("%d", minutes),
	}
	return append(args, d.extraArgs...)
}

func (d *CommandDriver) defaultRunCommand(ctx context.Context, tool string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Env = os.Environ()
	return cmd.CombinedOutput()
}
