package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultEndpointChain is the ordered liveness chain probed when a
// target does not declare its own.
var DefaultEndpointChain = []string{"/health", "/api/v1/system/status", "/ready"}

// TargetEntry represents a single deployable environment in the targets file.
type TargetEntry struct {
	Environment    string   `yaml:"environment"`
	Profile        string   `yaml:"profile"`
	Region         string   `yaml:"region"`
	BaseURL        string   `yaml:"base_url"`
	Endpoints      []string `yaml:"endpoints,omitempty"`
	CredentialEnvs []string `yaml:"credential_envs,omitempty"`
}

// TargetsFile is the parsed YAML structure for environment configuration:
// targets: [{environment, profile, region, base_url, endpoints, credential_envs}]
type TargetsFile struct {
	Targets []TargetEntry `yaml:"targets"`
}

// LoadTargetsFile parses a YAML targets file from the given path.
// Returns nil if path is empty (no targets file).
func LoadTargetsFile(path string) ([]TargetEntry, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}

	var tf TargetsFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse targets file: %w", err)
	}

	if err := validateTargets(tf.Targets); err != nil {
		return nil, err
	}

	for i := range tf.Targets {
		if len(tf.Targets[i].Endpoints) == 0 {
			tf.Targets[i].Endpoints = append([]string(nil), DefaultEndpointChain...)
		}
	}

	return tf.Targets, nil
}

// FindTarget selects an entry by environment name.
func FindTarget(entries []TargetEntry, environment string) (TargetEntry, error) {
	for _, entry := range entries {
		if entry.Environment == environment {
			return entry, nil
		}
	}
	return TargetEntry{}, fmt.Errorf("environment %q not found in targets file", environment)
}

// validateTargets ensures all target entries are valid.
func validateTargets(entries []TargetEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("targets file contains no targets")
	}

	seen := make(map[string]bool)

	for i, entry := range entries {
		if entry.Environment == "" {
			return fmt.Errorf("target %d: environment is required", i)
		}
		if entry.Profile == "" {
			return fmt.Errorf("target %q: profile is required", entry.Environment)
		}
		if entry.Region == "" {
			return fmt.Errorf("target %q: region is required", entry.Environment)
		}
		if entry.BaseURL == "" {
			return fmt.Errorf("target %q: base_url is required", entry.Environment)
		}
		if err := validateHTTPURL(entry.BaseURL, "base_url"); err != nil {
			return fmt.Errorf("target %q: %w", entry.Environment, err)
		}

		if seen[entry.Environment] {
			return fmt.Errorf("target %q: duplicate environment", entry.Environment)
		}
		seen[entry.Environment] = true

		for _, endpoint := range entry.Endpoints {
			if !strings.HasPrefix(endpoint, "/") {
				return fmt.Errorf("target %q: endpoint %q must start with /", entry.Environment, endpoint)
			}
		}
	}

	return nil
}

func validateHTTPURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid %s: scheme must be http or https", name)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include host", name)
	}
	return nil
}
