package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nholik/deploy-sentinel/internal/artifact"
	"github.com/nholik/deploy-sentinel/internal/config"
	"github.com/nholik/deploy-sentinel/internal/deploy"
	"github.com/nholik/deploy-sentinel/internal/logging"
	"github.com/nholik/deploy-sentinel/internal/metrics"
	"github.com/nholik/deploy-sentinel/internal/notify"
	"github.com/nholik/deploy-sentinel/internal/orchestrator"
	"github.com/nholik/deploy-sentinel/internal/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy <environment>",
	Short: "Deploy a variant to an environment and verify its health",
	Long: `Deploy swaps the named artifact variant into place, triggers the
external deploy tool against the chosen environment, polls the health
endpoint chain under a bounded round budget, and restores the original
artifact regardless of outcome.

Exit codes: 0 healthy or degraded-but-serving, 1 precondition failure,
2 deploy command failed, 3 health verification timed out, 4 cancelled.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		variantName, _ := cmd.Flags().GetString("variant")
		profile, _ := cmd.Flags().GetString("profile")
		region, _ := cmd.Flags().GetString("region")
		baseURL, _ := cmd.Flags().GetString("base-url")
		maxRounds, _ := cmd.Flags().GetInt("max-rounds")
		roundInterval, _ := cmd.Flags().GetDuration("round-interval")
		overallTimeout, _ := cmd.Flags().GetDuration("overall-timeout")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger := logging.NewWithLevel(cfg.LogLevel)

		entry, err := resolveTarget(cfg, args[0], profile, region, baseURL)
		if err != nil {
			return err
		}

		variant, err := artifact.ParseVariant(variantName)
		if err != nil {
			return err
		}

		if maxRounds <= 0 {
			maxRounds = cfg.MaxRounds
		}
		if roundInterval <= 0 {
			roundInterval = cfg.RoundInterval
		}
		if overallTimeout <= 0 {
			overallTimeout = cfg.OverallTimeout
		}

		controller := artifact.NewController(cfg.ActiveArtifact, cfg.VariantsDir, logger)
		driver, err := deploy.NewCommandDriver(logger, cfg.DeployTool,
			deploy.WithCredentialEnvs(entry.CredentialEnvs...))
		if err != nil {
			return err
		}

		metricsCollector := metrics.New()
		orch := orchestrator.New(logger, controller, driver, cfg.LockDir,
			orchestrator.WithMetrics(metricsCollector),
			orchestrator.WithNotifier(buildNotifier(logger, cfg, dryRun)),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		server.Start(ctx, logger, nil, metricsCollector, 0, cfg.MetricsPort)

		result := orch.Run(ctx, orchestrator.RunSpec{
			Target: deploy.Target{
				Environment: entry.Environment,
				Profile:     entry.Profile,
				Region:      entry.Region,
			},
			Variant:        variant,
			BaseURL:        entry.BaseURL,
			Endpoints:      entry.Endpoints,
			MaxRounds:      maxRounds,
			RoundInterval:  roundInterval,
			DeployTimeout:  cfg.DeployTimeout,
			OverallTimeout: overallTimeout,
		})

		if result.RestoreErr != nil {
			fmt.Fprintf(os.Stderr, "WARNING: artifact restore failed: %v\n", result.RestoreErr)
		}

		os.Exit(result.Outcome.ExitCode())
		return nil
	},
}

// resolveTarget merges the targets file entry with flag overrides.
// Flags win; with no targets file all fields must come from flags.
func resolveTarget(cfg config.Config, environment, profile, region, baseURL string) (config.TargetEntry, error) {
	entry := config.TargetEntry{
		Environment: environment,
		Profile:     profile,
		Region:      region,
		BaseURL:     baseURL,
		Endpoints:   append([]string(nil), config.DefaultEndpointChain...),
	}

	targets, err := config.LoadTargetsFile(cfg.TargetsFile)
	if err != nil {
		return config.TargetEntry{}, err
	}
	if len(targets) == 0 {
		return entry, nil
	}

	found, err := config.FindTarget(targets, environment)
	if err != nil {
		return config.TargetEntry{}, err
	}
	if profile != "" {
		found.Profile = profile
	}
	if region != "" {
		found.Region = region
	}
	if baseURL != "" {
		found.BaseURL = baseURL
	}
	return found, nil
}

func buildNotifier(logger zerolog.Logger, cfg config.Config, dryRun bool) notify.Notifier {
	notifiers := make([]notify.Notifier, 0, 2)

	slackNotifier := notify.NewSlackNotifier(logger, cfg.SlackWebhookURL)
	notifiers = append(notifiers, slackNotifier)

	webhookNotifier, err := notify.NewWebhookNotifier(logger, cfg.WebhookURL, "")
	if err != nil {
		logger.Error().Err(err).Msg("webhook notifier disabled")
	} else if webhookNotifier != nil {
		notifiers = append(notifiers, webhookNotifier)
	}

	combined := notify.Notifier(notify.NewMultiNotifier(notifiers...))
	if dryRun {
		return notify.NewDryRunNotifier(logger, combined)
	}
	return combined
}

func init() {
	deployCmd.Flags().String("variant", string(artifact.VariantConservative), "artifact variant to deploy (full, conservative, minimal)")
	deployCmd.Flags().String("profile", "", "instance/resource profile (overrides targets file)")
	deployCmd.Flags().String("region", "", "target region (overrides targets file)")
	deployCmd.Flags().String("base-url", "", "health probe base URL (overrides targets file)")
	deployCmd.Flags().Int("max-rounds", 0, "maximum health poll rounds")
	deployCmd.Flags().Duration("round-interval", 0, "delay between poll rounds")
	deployCmd.Flags().Duration("overall-timeout", 0, "wall-clock ceiling for the whole run")
	deployCmd.Flags().Bool("dry-run", false, "log notifications instead of sending them")
}
