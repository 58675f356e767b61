package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
)

var rootCmd = &cobra.Command{
	Use:           "helpdeskctl",
	Short:         "Operational commands for the helpdesk service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createUserCmd)
	rootCmd.AddCommand(syncPermissionsCmd)
}

// session holds what every subcommand needs once config is loaded.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
	pg     *persistence.Postgres
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return &session{cfg: cfg, logger: logger, pg: pg}, nil
}

func (s *session) Close() {
	s.pg.Close()
	_ = s.logger.Sync()
}
