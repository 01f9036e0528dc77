package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/slotbooker/internal/auth"
	"github.com/example/slotbooker/internal/config"
	"github.com/example/slotbooker/internal/db"
	"github.com/example/slotbooker/internal/migrate"
	"github.com/example/slotbooker/internal/runs"
	"github.com/example/slotbooker/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the run history dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.DashboardFromEnv()
			if err != nil {
				return err
			}
			logger := slog.New(jsonHandler(os.Stdout, slog.LevelInfo)).With("component", "dashboard")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}

			if migrateUp {
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
			}

			ws := &web.Server{
				Auth:   auth.NewStore(cfg.User, cfg.PasswordHash, cfg.CookieHashKey, cfg.CookieBlockKey),
				Runs:   runs.NewRepo(d),
				Logger: logger,
				Ping:   d.Ping,
			}
			return web.Start(ctx, cfg.ListenAddr, ws.Routes(), logger)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")

	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
