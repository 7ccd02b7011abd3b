package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/substitution-api/internal/models"
	"github.com/noah-isme/substitution-api/internal/repository"
	"github.com/noah-isme/substitution-api/internal/service"
	"github.com/noah-isme/substitution-api/pkg/timetable"
)

var matchOpts struct {
	date    string
	start   string
	end     string
	exclude string
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "List teachers free during a window",
	RunE:  runMatch,
}

func init() {
	f := matchCmd.Flags()
	f.StringVar(&matchOpts.date, "date", "", "date (YYYY-MM-DD)")
	f.StringVar(&matchOpts.start, "start", "", "period start, e.g. 9:00 AM")
	f.StringVar(&matchOpts.end, "end", "", "period end, e.g. 10:00 AM")
	f.StringVar(&matchOpts.exclude, "exclude", "", "requesting teacher id")
	_ = matchCmd.MarkFlagRequired("date")
	_ = matchCmd.MarkFlagRequired("start")
	_ = matchCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	date, err := time.Parse("2006-01-02", matchOpts.date)
	if err != nil {
		return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
	}
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.logger.Sync() //nolint:errcheck

	schoolDay, err := timetable.SchoolDay(e.cfg.Import.SchoolDayFrom, e.cfg.Import.SchoolDayTo)
	if err != nil {
		return err
	}
	db, err := e.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	requests := repository.NewRequestRepository(db)
	svc := service.NewAvailabilityService(repository.NewScheduleRepository(db), requests,
		repository.NewUserRepository(db), requests, schoolDay, e.logger)
	candidates, err := svc.FindAvailable(ctx, models.AvailabilityQuery{
		Date:             date,
		PeriodStart:      matchOpts.start,
		PeriodEnd:        matchOpts.end,
		ExcludeTeacherID: matchOpts.exclude,
		Term:             e.term,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(candidates) == 0 {
		fmt.Fprintln(out, "nobody is free")
		return nil
	}
	for _, c := range candidates {
		fmt.Fprintf(out, "%s\t%s\t%s\n", c.ID, c.FullName, c.Email)
	}
	return nil
}
