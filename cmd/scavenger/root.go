package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/substitution-api/internal/models"
	"github.com/noah-isme/substitution-api/pkg/config"
	"github.com/noah-isme/substitution-api/pkg/database"
	"github.com/noah-isme/substitution-api/pkg/logger"
)

var (
	yearFlag     string
	semesterFlag string
)

var rootCmd = &cobra.Command{
	Use:          "scavenger",
	Short:        "Timetable import and substitute matching tools",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&yearFlag, "year", "", "school year (defaults to ACTIVE_SCHOOL_YEAR)")
	rootCmd.PersistentFlags().StringVar(&semesterFlag, "semester", "", "semester (defaults to ACTIVE_SEMESTER)")
}

// env bundles what every subcommand needs from configuration.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	term   models.Term
}

func loadEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	active := models.Term{SchoolYear: cfg.Term.SchoolYear, Semester: cfg.Term.Semester}
	term := models.Term{SchoolYear: yearFlag, Semester: semesterFlag}.Or(active)
	return &env{cfg: cfg, logger: logr, term: term}, nil
}

func (e *env) openDB(ctx context.Context) (*sqlx.DB, error) {
	db, err := database.NewPostgres(ctx, e.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}
