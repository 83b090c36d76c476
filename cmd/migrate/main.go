package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/residency-backend/pkg/config"
	"github.com/angelmondragon/residency-backend/pkg/db"
	"github.com/angelmondragon/residency-backend/pkg/logger"
	"github.com/angelmondragon/residency-backend/pkg/migrate"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var dir string

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the residency Postgres schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dir, "dir", "", "migrations directory on disk (default: set embedded in the binary)")

	withDB := func(use, short string, args cobra.PositionalArgs, run func(ctx context.Context, sqlDB *sql.DB, args []string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  args,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithDB(cmd.Context(), cmd.Name(), dir, func(ctx context.Context, sqlDB *sql.DB) error {
					return run(ctx, sqlDB, args)
				})
			},
		}
	}

	for _, command := range []string{"up", "down", "status", "redo"} {
		root.AddCommand(withDB(command, "goose "+command, cobra.NoArgs, func(ctx context.Context, sqlDB *sql.DB, _ []string) error {
			return migrate.Run(ctx, sqlDB, dir, command)
		}))
	}
	root.AddCommand(withDB("version <YYYYMMDDHHMMSS>", "migrate up or down to a version", cobra.ExactArgs(1), func(ctx context.Context, sqlDB *sql.DB, args []string) error {
		return migrate.MigrateToVersion(ctx, sqlDB, dir, args[0])
	}))

	root.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "write an empty SQL migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := dir
			if target == "" {
				target = migrate.DefaultDir
			}
			path, err := migrate.CreateSQLMigration(target, args[0], time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "created migration:", path)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "check migration filenames and goose annotations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if dir == "" {
				err = migrate.ValidateEmbedded()
			} else {
				err = migrate.ValidateDir(dir)
			}
			if err != nil {
				return fmt.Errorf("migration validation failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration validation passed")
			return nil
		},
	})

	return root
}

func runWithDB(ctx context.Context, command, dir string, fn func(ctx context.Context, sqlDB *sql.DB) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	source := dir
	if source == "" {
		source = "embedded"
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": command, "source": source})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "resource not working: database", err)
		return err
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("extract sql.DB: %w", err)
	}

	logg.Info(ctx, "migrate.start")
	if err := fn(ctx, sqlDB); err != nil {
		logg.Error(ctx, "migrate.failed", err)
		return err
	}
	logg.Info(ctx, "migrate.done")
	return nil
}
