package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"myapp.dev/internal/migrate"
	"myapp.dev/internal/obs"
	"myapp.dev/ops/migrations"
)

type options struct {
	dsn            string
	migrationsPath string
	seedsPath      string
	timeout        time.Duration
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	obs.Init(obs.LogConfig{Env: os.Getenv("NODE_ENV"), Level: os.Getenv("LOG_LEVEL"), Service: "migrate"})
	defer func() { _ = obs.Sync() }()

	if err := rootCmd().Execute(); err != nil {
		obs.L().Error("migrate failed", obs.Err(err))
		_ = obs.Sync()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply schema migrations and seed data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&o.dsn, "dsn", os.Getenv("DB_CONNECTION_STRING"), "PostgreSQL DSN (defaults to DB_CONNECTION_STRING)")
	cmd.PersistentFlags().StringVar(&o.migrationsPath, "migrations", "", "directory of SQL migrations (defaults to the embedded set)")
	cmd.PersistentFlags().StringVar(&o.seedsPath, "seeds", "", "directory of SQL seeds (defaults to the embedded set)")
	cmd.PersistentFlags().DurationVar(&o.timeout, "timeout", 2*time.Minute, "overall timeout")

	cmd.AddCommand(
		runCmd(o, "up", "Apply all pending migrations", func(ctx context.Context, m *migrate.Manager) error {
			return m.Up(ctx)
		}),
		runCmd(o, "down", "Roll back the latest migration", func(ctx context.Context, m *migrate.Manager) error {
			return m.Down(ctx)
		}),
		runCmd(o, "seed", "Apply seed files", func(ctx context.Context, m *migrate.Manager) error {
			return m.Seed(ctx)
		}),
		runCmd(o, "status", "Print migration status", func(ctx context.Context, m *migrate.Manager) error {
			lines, err := m.Status(ctx)
			if err != nil {
				return err
			}
			for _, l := range lines {
				fmt.Println(l)
			}
			return nil
		}),
	)
	return cmd
}

func runCmd(o *options, use, short string, fn func(context.Context, *migrate.Manager) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.dsn == "" {
				return errors.New("missing DSN: provide via --dsn or DB_CONNECTION_STRING")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
			defer cancel()

			db, err := sql.Open("pgx", o.dsn)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("ping db: %w", err)
			}

			start := time.Now()
			if err := fn(ctx, migrate.NewManager(db, o.schema(), o.seeds())); err != nil {
				return err
			}
			obs.L().Info("migrate done", obs.Op(use), obs.DurationMs(time.Since(start)), zap.Bool("embedded", o.migrationsPath == ""))
			return nil
		},
	}
}

func (o *options) schema() fs.FS {
	if o.migrationsPath != "" {
		return os.DirFS(o.migrationsPath)
	}
	return migrations.Schema()
}

func (o *options) seeds() fs.FS {
	if o.seedsPath != "" {
		return os.DirFS(o.seedsPath)
	}
	return migrations.Seeds()
}
