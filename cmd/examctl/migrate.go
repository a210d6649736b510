package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/logger"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.PersistentFlags().String("path", "migrations", "Directory holding migration files")

	run := func(use, short string, args cobra.PositionalArgs, fn func(m *migrate.Migrate, args []string) (string, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  args,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := newMigrate(cmd)
				if err != nil {
					return err
				}
				defer m.Close()

				msg, err := fn(m, args)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			},
		}
	}

	cmd.AddCommand(
		run("up", "Apply all pending migrations", cobra.NoArgs, func(m *migrate.Migrate, _ []string) (string, error) {
			if err := ignoreNoChange(m.Up()); err != nil {
				return "", fmt.Errorf("up: %w", err)
			}
			return "Migrated up successfully", nil
		}),
		run("down", "Roll back every migration", cobra.NoArgs, func(m *migrate.Migrate, _ []string) (string, error) {
			if err := ignoreNoChange(m.Down()); err != nil {
				return "", fmt.Errorf("down: %w", err)
			}
			return "Migrated down successfully", nil
		}),
		run("steps <n>", "Apply n migrations (negative rolls back)", cobra.ExactArgs(1), func(m *migrate.Migrate, args []string) (string, error) {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return "", fmt.Errorf("invalid step count %q", args[0])
			}
			if err := ignoreNoChange(m.Steps(n)); err != nil {
				return "", fmt.Errorf("steps: %w", err)
			}
			return fmt.Sprintf("Moved %d steps", n), nil
		}),
		run("version", "Print the current schema version", cobra.NoArgs, func(m *migrate.Migrate, _ []string) (string, error) {
			v, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				return "No migrations applied", nil
			}
			if err != nil {
				return "", fmt.Errorf("version: %w", err)
			}
			return fmt.Sprintf("Version: %d, Dirty: %t", v, dirty), nil
		}),
		run("force <version>", "Set the version without running migrations", cobra.ExactArgs(1), func(m *migrate.Migrate, args []string) (string, error) {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return "", fmt.Errorf("invalid version %q", args[0])
			}
			if err := m.Force(v); err != nil {
				return "", fmt.Errorf("force: %w", err)
			}
			return fmt.Sprintf("Forced version to %d", v), nil
		}),
	)
	return cmd
}

func newMigrate(cmd *cobra.Command) (*migrate.Migrate, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	dir, _ := cmd.Flags().GetString("path")

	m, err := migrate.New("file://"+dir, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = cfg.LogLevel
	}
	format, _ := cmd.Flags().GetString("log-format")
	if format == "" {
		format = cfg.LogFormat
	}
	log := logger.New(os.Stderr, level, format)
	m.Log = migrateLogger{
		log:     log.With().Str("component", "migrate").Logger(),
		verbose: zerolog.GlobalLevel() <= zerolog.DebugLevel,
	}
	return m, nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// migrateLogger routes migrate's progress lines through zerolog.
type migrateLogger struct {
	log     zerolog.Logger
	verbose bool
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.log.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool { return l.verbose }
