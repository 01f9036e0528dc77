package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/slotbooker/internal/artifacts"
	"github.com/example/slotbooker/internal/browser"
	"github.com/example/slotbooker/internal/config"
	"github.com/example/slotbooker/internal/db"
	"github.com/example/slotbooker/internal/migrate"
	"github.com/example/slotbooker/internal/notify"
	"github.com/example/slotbooker/internal/octiv"
	"github.com/example/slotbooker/internal/orchestrator"
	"github.com/example/slotbooker/internal/runlog"
	"github.com/example/slotbooker/internal/runs"
)

func newRunCmd() *cobra.Command {
	var (
		configPath  string
		classesPath string
		retry       int
		testMode    bool
		debug       bool
		timeout     time.Duration
	)

	c := &cobra.Command{
		Use:   "run",
		Short: "Perform one booking run (or the login check with --test)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv(configPath, classesPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("retry") {
				cfg.RetryLimit = retry
			}
			if testMode {
				cfg.TestMode = true
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			store, err := artifactStore(cfg)
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			runID := uuid.NewString()
			rec := runlog.New(jsonHandler(os.Stdout, level), store)
			base := slog.New(rec).With("run_id", runID)
			logger := base.With("component", "orchestrator")

			lifetime, err := octiv.SessionBudget(cfg.ExecutionBookingTime, time.Now(), timeout)
			if err != nil {
				return fmt.Errorf("EXECUTION_BOOKING_TIME: %w", err)
			}
			o := &orchestrator.Orchestrator{
				Sessions: &browser.Manager{Headless: cfg.Headless, Timeout: lifetime},
				Agents:   octiv.Factory{Logger: base.With("component", "octiv")},
				Recorder: rec,
				Notifier: notifier(cfg, base),
				Logger:   logger,
				RunID:    runID,
			}

			if cfg.DatabaseURL != "" && !cfg.TestMode {
				d, err := db.Open(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer d.Close()
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
				o.Runs = runs.NewRepo(d)
			}

			outcome, err := o.Run(ctx, cfg.RunConfig())
			if err != nil {
				return err
			}
			if !cfg.TestMode {
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: booked=%t attempts=%d\n", runID, outcome.Booked, outcome.AttemptsMade)
			}
			return nil
		},
	}

	c.Flags().StringVar(&configPath, "config", config.DefaultConfigPath, "path to config.yaml")
	c.Flags().StringVar(&classesPath, "classes", config.DefaultClassesPath, "path to classes.yaml")
	c.Flags().IntVar(&retry, "retry", orchestrator.DefaultRetryLimit, "maximum booking attempts (overrides RETRY_LIMIT)")
	c.Flags().BoolVar(&testMode, "test", false, "only check that a login with a placeholder password is rejected")
	c.Flags().BoolVar(&debug, "debug", false, "log at debug level")
	c.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "upper bound on the browser lifetime, counted from EXECUTION_BOOKING_TIME")
	return c
}

func artifactStore(cfg config.Config) (artifacts.Store, error) {
	if cfg.ArtifactStore == "minio" {
		return artifacts.NewMinIOStore(cfg.MinIO)
	}
	return artifacts.DirStore{Dir: cfg.ArtifactDir}, nil
}

func notifier(cfg config.Config, logger *slog.Logger) orchestrator.Notifier {
	if cfg.Mail.Enabled() {
		return notify.NewMailer(cfg.Mail)
	}
	return notify.Noop{Logger: logger.With("component", "notify")}
}
