package timetable

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadCSVKeepsBlankLinesAndStripsQuotes(t *testing.T) {
	input := "JUAN,\"x\"\r\n\r\n 7:40-8:40, \"Math, 7\",\n,,\n"
	rows, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"JUAN", "x"},
		{""},
		{"7:40-8:40", "Math, 7", ""},
		{"", "", ""},
	}, rows)
}

func TestReadCSVFallsBackOnMalformedQuotes(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader(`"7:40-8:40,"A`))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotContains(t, strings.Join(rows[0], ""), `"`)
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"JUAN DELA CRUZ INDIVIDUAL SCHEDULE"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"7:40-8:40", " 7A ", "", "", "", "7A"}))
	buf := &bytes.Buffer{}
	require.NoError(t, f.Write(buf))
	require.NoError(t, f.Close())

	rows, err := ReadRows(FormatXLSX, buf)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{""}, rows[1])
	assert.Equal(t, "7A", rows[2][1])

	res := NewScanner(nil, 0).Scan(rows, "Juan")
	require.True(t, res.Found)
	assert.Len(t, res.Slots, 2)
}

func TestReadXLSXRejectsGarbage(t *testing.T) {
	_, err := ReadXLSX(strings.NewReader("not a workbook"))
	require.Error(t, err)
}

func TestDetectFormat(t *testing.T) {
	f, err := DetectFormat("Science.CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = DetectFormat("timetable.xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = DetectFormat("timetable.pdf")
	require.Error(t, err)
}
