package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/md-rashed-zaman/slotledger/libs/config"
	"github.com/md-rashed-zaman/slotledger/libs/db"
	"github.com/md-rashed-zaman/slotledger/libs/runtime"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/exceptions"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/reconcile"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/storage/migrations"
)

type rootOptions struct {
	databaseURL string
	timeout     time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "bookingctl",
		Short:         "Operator tasks for the booking service database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.databaseURL, "database-url", config.String("DATABASE_URL", ""), "Postgres connection string")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", time.Minute, "overall command timeout")

	root.AddCommand(
		newMigrateCommand(opts),
		newReconcileCommand(opts),
		newSlotsCommand(opts),
	)
	return root
}

// withRepository opens the database for the duration of fn.
func withRepository(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, pool *db.Pool, repo *storage.Repository) error) error {
	if strings.TrimSpace(opts.databaseURL) == "" {
		return fmt.Errorf("--database-url or DATABASE_URL is required")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	pool, err := db.Open(ctx, opts.databaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()
	return fn(ctx, pool, storage.NewRepository(pool, outbox.NewRepository()))
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd, opts, func(ctx context.Context, pool *db.Pool, repo *storage.Repository) error {
				if err := repo.Migrate(ctx); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				version, err := db.MigrationVersion(ctx, pool, migrations.FS)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
				return nil
			})
		},
	}
}

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	var lockKey int64
	var batch int
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation sweep and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd, opts, func(ctx context.Context, _ *db.Pool, repo *storage.Repository) error {
				logger := runtime.NewLoggerWithConfig("bookingctl", runtime.LogConfig{Level: config.String("LOG_LEVEL", "info")})
				report, err := reconcile.New(repo, logger, reconcile.Config{BatchSize: batch, LockKey: lockKey}).SweepOnce(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().Int64Var(&lockKey, "lock-key", 5150001, "advisory lock key shared with the service")
	cmd.Flags().IntVar(&batch, "batch", 500, "maximum rows per repair kind")
	return cmd
}

func newSlotsCommand(opts *rootOptions) *cobra.Command {
	var date, tz string
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print the bookable slots of a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			zone, err := calendar.NewZone(tz)
			if err != nil {
				return err
			}
			if date == "" {
				date = zone.Key(zone.Today(time.Now()))
			}
			return withRepository(cmd, opts, func(ctx context.Context, _ *db.Pool, repo *storage.Repository) error {
				logger := slog.New(slog.NewTextHandler(io.Discard, nil))
				resolver := availability.NewResolver(zone,
					schedule.NewService(repo, nil, logger),
					exceptions.NewService(repo, zone, logger),
					repo,
				)
				res, err := resolver.AvailableSlots(ctx, date)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "calendar date (YYYY-MM-DD), default today in the business timezone")
	cmd.Flags().StringVar(&tz, "timezone", config.String("BUSINESS_TIMEZONE", "UTC"), "business IANA timezone")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
