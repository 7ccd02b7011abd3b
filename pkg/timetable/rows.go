package timetable

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format identifies an uploaded timetable encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat picks the decoder from a file name extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt", "":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported timetable file %q", filename)
	}
}

// ReadRows decodes r according to format into trimmed, quote-stripped cells.
func ReadRows(format Format, r io.Reader) ([][]string, error) {
	switch format {
	case FormatXLSX:
		return ReadXLSX(r)
	case FormatCSV, "":
		return ReadCSV(r)
	default:
		return nil, fmt.Errorf("unsupported timetable format %q", format)
	}
}

// ReadCSV decodes newline-delimited comma-separated text. Each physical line is one row,
// so blank lines are kept as single empty-cell rows. Ragged rows are accepted.
func ReadCSV(r io.Reader) ([][]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	rows := make([][]string, 0, 64)
	for sc.Scan() {
		rows = append(rows, splitLine(strings.TrimSuffix(sc.Text(), "\r")))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read timetable csv: %w", err)
	}
	return rows, nil
}

func splitLine(line string) []string {
	if strings.TrimSpace(line) == "" {
		return []string{""}
	}
	cr := csv.NewReader(strings.NewReader(line))
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	record, err := cr.Read()
	if err != nil {
		record = strings.Split(line, ",")
	}
	return normalise(record)
}

// ReadXLSX decodes the first worksheet of an Excel workbook.
func ReadXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open timetable workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("timetable workbook has no sheets")
	}
	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	rows := make([][]string, len(raw))
	for i, record := range raw {
		if len(record) == 0 {
			rows[i] = []string{""}
			continue
		}
		rows[i] = normalise(record)
	}
	return rows, nil
}

func normalise(record []string) []string {
	out := make([]string, len(record))
	for i, c := range record {
		out[i] = strings.TrimSpace(strings.ReplaceAll(c, `"`, ""))
	}
	return out
}
