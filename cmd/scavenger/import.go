package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/noah-isme/substitution-api/internal/dto"
	"github.com/noah-isme/substitution-api/internal/repository"
	"github.com/noah-isme/substitution-api/internal/service"
	"github.com/noah-isme/substitution-api/pkg/timetable"
)

var importOpts struct {
	file        string
	teacherID   string
	teacherName string
	department  string
	dryRun      bool
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Extract one teacher's classes from a timetable file and store them",
	RunE:  runImport,
}

func init() {
	f := importCmd.Flags()
	f.StringVar(&importOpts.file, "file", "", "timetable file (.csv or .xlsx)")
	f.StringVar(&importOpts.teacherID, "teacher-id", "", "profile id receiving the schedule")
	f.StringVar(&importOpts.teacherName, "teacher-name", "", "name as printed in the timetable")
	f.StringVar(&importOpts.department, "department", "", "department the classes belong to")
	f.BoolVar(&importOpts.dryRun, "dry-run", false, "print the extracted slots without writing")
	_ = importCmd.MarkFlagRequired("file")
	_ = importCmd.MarkFlagRequired("teacher-name")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.logger.Sync() //nolint:errcheck

	format, err := timetable.DetectFormat(importOpts.file)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(importOpts.file)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(importOpts.file), err)
	}
	matcher, err := timetable.NewNameMatcher(e.cfg.Import.NameMatcher, e.cfg.Import.MaxEditDist)
	if err != nil {
		return err
	}
	scanner := timetable.NewScanner(matcher, e.cfg.Import.BlankRowLimit)

	if importOpts.dryRun {
		return printScan(cmd, scanner, format, content)
	}
	if importOpts.teacherID == "" || importOpts.department == "" {
		return errors.New("--teacher-id and --department are required unless --dry-run is set")
	}

	db, err := e.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	users := repository.NewUserRepository(db)
	svc := service.NewImportService(repository.NewScheduleRepository(db), users, validator.New(), e.logger,
		service.WithImportScanner(scanner))
	result := svc.Import(ctx, dto.ImportTimetableRequest{
		TeacherID:   importOpts.teacherID,
		TeacherName: importOpts.teacherName,
		Department:  importOpts.department,
		Term:        e.term,
		Format:      format,
		Content:     content,
	}, "cli")

	fmt.Fprintln(cmd.OutOrStdout(), result.Message)
	if !result.Success {
		return errors.New("import failed")
	}
	return nil
}

func printScan(cmd *cobra.Command, scanner *timetable.Scanner, format timetable.Format, content []byte) error {
	rows, err := timetable.ReadRows(format, bytes.NewReader(content))
	if err != nil {
		return err
	}
	result := scanner.Scan(rows, importOpts.teacherName)
	out := cmd.OutOrStdout()
	if !result.Found {
		fmt.Fprintf(out, "no row matches %q\n", result.Token)
		return nil
	}
	fmt.Fprintf(out, "block rows %d-%d, stopped at %s\n", result.NameRow+1, result.LastRow+1, result.Stop)
	for _, slot := range result.Slots {
		fmt.Fprintf(out, "%-9s %s - %s  %s\n", timetable.DayName(slot.Day), slot.Start, slot.End, slot.Subject)
	}
	return nil
}
