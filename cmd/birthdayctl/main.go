// Command birthdayctl is the Birthday Notifier operations CLI.
//
// Usage:
//
//	birthdayctl migrate
//	birthdayctl resolve Jakarta
//	birthdayctl sweep
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/birthday-notifier/internal/config"
	"github.com/albapepper/birthday-notifier/internal/db"
	"github.com/albapepper/birthday-notifier/internal/event"
	"github.com/albapepper/birthday-notifier/internal/mailer"
	"github.com/albapepper/birthday-notifier/internal/scheduler"
	"github.com/albapepper/birthday-notifier/internal/timezone"
	"github.com/albapepper/birthday-notifier/internal/user"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "birthdayctl",
		Short: "Birthday Notifier operations CLI",
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(resolveCmd())
	root.AddCommand(sweepCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				if err := pool.Migrate(ctx); err != nil {
					return err
				}
				logger.Info("Schema applied")
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// resolve command
// --------------------------------------------------------------------------

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <city>",
		Short: "Resolve a city name to its timezone candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := timezone.Default()
			if err != nil {
				return err
			}
			candidates := resolver.Resolve(args[0])
			if len(candidates) == 0 {
				return fmt.Errorf("no timezone match for city %q", args[0])
			}
			for _, c := range candidates {
				fmt.Printf("%s\t%s\t%s\n", c.City, c.Country, c.Timezone)
			}
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// sweep command
// --------------------------------------------------------------------------

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one recovery sweep over unsent records and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				types, err := event.Types(cfg.EventTypes)
				if err != nil {
					return err
				}
				resolver, err := timezone.Default()
				if err != nil {
					return err
				}
				smtp, err := mailer.New(cfg, logger)
				if err != nil {
					return err
				}
				if smtp == nil {
					return fmt.Errorf("SMTP_HOST must be configured to run a sweep")
				}

				sched := scheduler.New(user.NewStore(pool.Pool), resolver, smtp, scheduler.Config{
					Types:          types,
					Fire:           event.FireTime{Hour: cfg.FireHour, Minute: cfg.FireMinute, Second: cfg.FireSecond},
					Interval:       cfg.PollInterval,
					RecoveryWindow: cfg.RecoveryWindow,
					SendTimeout:    cfg.SMTPTimeout * 2,
				}, logger)
				sched.Recover(ctx)
				return nil
			})
		},
	}
}

// withPool loads configuration, opens the pool, and runs fn with a
// signal-aware context.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}
