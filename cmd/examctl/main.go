// Command examctl is the operator CLI: database migrations, account
// provisioning and exam setup from a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/database"
	"github.com/stemsi/examguard-backend/internal/logger"
	"github.com/stemsi/examguard-backend/internal/repository"
	"github.com/stemsi/examguard-backend/internal/service"
	"github.com/stemsi/examguard-backend/internal/validator"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "examctl",
		Short:        "Operator tooling for the ExamGuard backend",
		SilenceUsage: true,
	}

	f := root.PersistentFlags()
	f.String("log-level", "", "Log level (debug, info, warn, error); defaults to LOG_LEVEL")
	f.String("log-format", "", "Log format (pretty, json); defaults to LOG_FORMAT")

	root.AddCommand(
		migrateCmd(),
		createTeacherCmd(),
		createStudentCmd(),
		seedStudentsCmd(),
		createExamCmd(),
		seedQuestionsCmd(),
	)
	return root
}

// env is what every database-backed command needs.
type env struct {
	cfg  *config.Config
	log  zerolog.Logger
	pool *pgxpool.Pool
	auth *service.AuthService
}

// bootstrap loads configuration, sets up logging on stderr so stdout stays
// clean for prompts, and opens the PostgreSQL pool. Redis is not needed by
// any CLI path.
func bootstrap(cmd *cobra.Command) (*env, error) {
	cfg := config.Load()

	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = cfg.LogLevel
	}
	format, _ := cmd.Flags().GetString("log-format")
	if format == "" {
		format = cfg.LogFormat
	}
	log := logger.New(os.Stderr, level, format)
	validator.Setup()

	pool, err := database.NewPostgresPool(cmd.Context(), cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	auth := service.NewAuthService(cfg, nil,
		repository.NewTeacherRepository(pool),
		repository.NewStudentRepository(pool),
	)
	return &env{cfg: cfg, log: log, pool: pool, auth: auth}, nil
}

func (e *env) close() { e.pool.Close() }

func (e *env) examService() *service.ExamService {
	return service.NewExamService(
		repository.NewExamRepository(e.pool),
		repository.NewQuestionRepository(e.pool),
		nil,
		e.log,
	)
}
