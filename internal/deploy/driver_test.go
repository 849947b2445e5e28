package deploy

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/nholik/deploy-sentinel/internal/artifact"
	"github.com/rs/zerolog"
)

var testTarget = Target{
	Environment: "staging-api",
	Profile:     "t3.small",
	Region:      "us-east-1",
}

func TestCommandDriver_ToolMissing(t *testing.T) {
	driver, err := NewCommandDriver(zerolog.Nop(), "definitely-not-a-cli",
		WithLookPath(func(string) (string, error) {
			return "", exec.ErrNotFound
		}))
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	_, err = driver.Deploy(context.Background(), testTarget, artifact.VariantMinimal, time.Minute)
	if err == nil {
		t.Fatal("expected error for missing tool")
	}
	var envErr *EnvironmentError
	if !errors.As(err, &envErr) {
		t.Fatalf("expected EnvironmentError, got %T: %v", err, err)
	}
}

func TestCommandDriver_MissingCredential(t *testing.T) {
	driver, err := NewCommandDriver(zerolog.Nop(), "eb",
		WithLookPath(func(string) (string, error) { return "/usr/bin/eb", nil }),
		WithCredentialEnvs("DSENTINEL_TEST_MISSING_CRED"))
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	_, err = driver.Deploy(context.Background(), testTarget, artifact.VariantMinimal, time.Minute)
	var envErr *EnvironmentError
	if !errors.As(err, &envErr) {
		t.Fatalf("expected EnvironmentError for missing credential, got %v", err)
	}
}

func TestCommandDriver_NonZeroExitIsAttemptFailure(t *testing.T) {
	driver, err := NewCommandDriver(zerolog.Nop(), "eb",
		WithLookPath(func(string) (string, error) { return "/usr/bin/eb", nil }),
		WithRunCommand(func(ctx context.Context, tool string, args []string) ([]byte, error) {
			return []byte("ERROR: environment update failed"), &exec.ExitError{}
		}))
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	attempt, err := driver.Deploy(context.Background(), testTarget, artifact.VariantConservative, time.Minute)
	if err != nil {
		t.Fatalf("non-zero exit should not be an error: %v", err)
	}
	if attempt.Status != AttemptFailure {
		t.Fatalf("attempt status = %s, want FAILURE", attempt.Status)
	}
	if attempt.Output != "ERROR: environment update failed" {
		t.Fatalf("raw output not preserved: %q", attempt.Output)
	}
}

func TestCommandDriver_Success(t *testing.T) {
	var gotArgs []string
	driver, err := NewCommandDriver(zerolog.Nop(), "eb",
		WithLookPath(func(string) (string, error) { return "/usr/bin/eb", nil }),
		WithRunCommand(func(ctx context.Context, tool string, args []string) ([]byte, error) {
			gotArgs = args
			return []byte("Environment update completed successfully."), nil
		}))
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	attempt, err := driver.Deploy(context.Background(), testTarget, artifact.VariantMinimal, 5*time.Minute)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if attempt.Status != AttemptSuccess {
		t.Fatalf("attempt status = %s, want SUCCESS", attempt.Status)
	}
	if attempt.ID == "" {
		t.Fatal("attempt should have an ID")
	}
	if attempt.Target != testTarget {
		t.Fatalf("attempt target = %+v, want %+v", attempt.Target, testTarget)
	}
	if len(gotArgs) == 0 || gotArgs[0] != "deploy" || gotArgs[1] != "staging-api" {
		t.Fatalf("unexpected deploy args: %v", gotArgs)
	}
}

func TestCommandDriver_InvalidTarget(t *testing.T) {
	driver, err := NewCommandDriver(zerolog.Nop(), "eb")
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	_, err = driver.Deploy(context.Background(), Target{Environment: "x"}, artifact.VariantMinimal, time.Minute)
	var envErr *EnvironmentError
	if !errors.As(err, &envErr) {
		t.Fatalf("expected EnvironmentError for invalid target, got %v", err)
	}
}

func TestAttempt_FinishSetsStatusExactlyOnce(t *testing.T) {
	attempt := NewAttempt(testTarget, artifact.VariantFull)
	if attempt.Status != AttemptPending {
		t.Fatalf("new attempt status = %s, want PENDING", attempt.Status)
	}

	if err := attempt.Finish(AttemptSuccess, "done"); err != nil {
		t.Fatalf("first finish: %v", err)
	}
	if err := attempt.Finish(AttemptFailure, "again"); err == nil {
		t.Fatal("second finish should fail")
	}
	if attempt.Status != AttemptSuccess {
		t.Fatalf("status mutated by second finish: %s", attempt.Status)
	}
	if attempt.Output != "done" {
		t.Fatalf("output mutated by second finish: %q", attempt.Output)
	}
}

func TestTarget_Validate(t *testing.T) {
	if err := testTarget.Validate(); err != nil {
		t.Fatalf("valid target rejected: %v", err)
	}
	for _, target := range []Target{
		{Profile: "p", Region: "r"},
		{Environment: "e", Region: "r"},
		{Environment: "e", Profile: "p"},
	} {
		if err := target.Validate(); err == nil {
			t.Fatalf("incomplete target %+v accepted", target)
		}
	}
}

func TestTarget_Key(t *testing.T) {
	key := testTarget.Key()
	if key != "staging-api@us-east-1/t3.small" {
		t.Fatalf("key = %s", key)
	}
	other := testTarget
	other.Region = "eu-west-1"
	if other.Key() == key {
		t.Fatal("different regions must produce different keys")
	}
}
