package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envLogLevel        = "DSENTINEL_LOG_LEVEL"
	envDeployTool      = "DSENTINEL_DEPLOY_TOOL"
	envTargetsFile     = "DSENTINEL_TARGETS_FILE"
	envActiveArtifact  = "DSENTINEL_ACTIVE_ARTIFACT"
	envVariantsDir     = "DSENTINEL_VARIANTS_DIR"
	envLockDir         = "DSENTINEL_LOCK_DIR"
	envMaxRounds       = "DSENTINEL_MAX_ROUNDS"
	envRoundInterval   = "DSENTINEL_ROUND_INTERVAL"
	envDeployTimeout   = "DSENTINEL_DEPLOY_TIMEOUT"
	envOverallTimeout  = "DSENTINEL_OVERALL_TIMEOUT"
	envSlackWebhookURL = "DSENTINEL_SLACK_WEBHOOK_URL"
	envWebhookURL      = "DSENTINEL_WEBHOOK_URL"
	envMetricsPort     = "DSENTINEL_METRICS_PORT"
)

const (
	defaultDeployTool     = "eb"
	defaultMaxRounds      = 10
	defaultRoundInterval  = 15 * time.Second
	defaultDeployTimeout  = 10 * time.Minute
	defaultOverallTimeout = 20 * time.Minute
)

// Config describes runtime configuration loaded from the environment.
type Config struct {
	LogLevel        string
	DeployTool      string
	TargetsFile     string
	ActiveArtifact  string
	VariantsDir     string
	LockDir         string
	MaxRounds       int
	RoundInterval   time.Duration
	DeployTimeout   time.Duration
	OverallTimeout  time.Duration
	SlackWebhookURL string
	WebhookURL      string
	MetricsPort     int
}

// Load reads configuration from environment variables and a local .env file if present.
// Existing environment variables take precedence over values in .env.
func Load() (Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Config{}, err
	}

	cfg := Config{
		DeployTool:     defaultDeployTool,
		LockDir:        os.TempDir(),
		MaxRounds:      defaultMaxRounds,
		RoundInterval:  defaultRoundInterval,
		DeployTimeout:  defaultDeployTimeout,
		OverallTimeout: defaultOverallTimeout,
	}

	if value, ok := lookupTrimmed(envLogLevel); ok {
		cfg.LogLevel = value
	}
	if value, ok := lookupTrimmed(envDeployTool); ok {
		cfg.DeployTool = value
	}
	if value, ok := lookupTrimmed(envTargetsFile); ok {
		cfg.TargetsFile = value
	}
	if value, ok := lookupTrimmed(envActiveArtifact); ok {
		cfg.ActiveArtifact = value
	}
	if value, ok := lookupTrimmed(envVariantsDir); ok {
		cfg.VariantsDir = value
	}
	if value, ok := lookupTrimmed(envLockDir); ok {
		cfg.LockDir = value
	}
	if value, ok := lookupTrimmed(envSlackWebhookURL); ok {
		cfg.SlackWebhookURL = value
	}
	if value, ok := lookupTrimmed(envWebhookURL); ok {
		cfg.WebhookURL = value
	}

	if value, ok := lookupTrimmed(envMaxRounds); ok {
		rounds, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envMaxRounds, err)
		}
		if rounds <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than zero", envMaxRounds)
		}
		cfg.MaxRounds = rounds
	}

	if value, ok := lookupTrimmed(envMetricsPort); ok {
		port, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envMetricsPort, err)
		}
		if port < 0 || port > 65535 {
			return Config{}, fmt.Errorf("%s must be between 0 and 65535", envMetricsPort)
		}
		cfg.MetricsPort = port
	}

	var err error
	if cfg.RoundInterval, err = durationFromEnv(envRoundInterval, cfg.RoundInterval); err != nil {
		return Config{}, err
	}
	if cfg.DeployTimeout, err = durationFromEnv(envDeployTimeout, cfg.DeployTimeout); err != nil {
		return Config{}, err
	}
	if cfg.OverallTimeout, err = durationFromEnv(envOverallTimeout, cfg.OverallTimeout); err != nil {
		return Config{}, err
	}

	if cfg.ActiveArtifact == "" {
		return Config{}, errors.New("DSENTINEL_ACTIVE_ARTIFACT is required")
	}
	if cfg.VariantsDir == "" {
		return Config{}, errors.New("DSENTINEL_VARIANTS_DIR is required")
	}

	if cfg.SlackWebhookURL != "" {
		if err := validateURL(cfg.SlackWebhookURL, envSlackWebhookURL); err != nil {
			return Config{}, err
		}
	}
	if cfg.WebhookURL != "" {
		if err := validateURL(cfg.WebhookURL, envWebhookURL); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := lookupTrimmed(key)
	if !ok {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero", key)
	}
	return parsed, nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}

func validateURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include scheme and host", name)
	}
	return nil
}
