package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/miradorstack/mirador-zones/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCSVReaderParsesRows(t *testing.T) {
	input := "\ufeffИНН,Зона,Дата_утверждения,Комментарий\n" +
		"7701,З,2024-01-10,first\n" +
		"\n" +
		"7701,Ж,10.02.2024,\n" +
		"7702,Ч,2024-03-01 00:00:00,x\n"

	records, err := NewCSVReader(Options{}).Read(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, models.ZoneRecord{Entity: "7701", Zone: "З", ApprovedAt: date(2024, 1, 10), Row: 0}, records[0])
	assert.Equal(t, date(2024, 2, 10), records[1].ApprovedAt)
	assert.Equal(t, "Ч", records[2].Zone)
	assert.Equal(t, 2, records[2].Row)
}

func TestCSVReaderSemicolonDelimiter(t *testing.T) {
	input := "ИНН;Зона;Дата_утверждения\n1;A;2024-01-01\n"
	records, err := NewCSVReader(Options{}).Read(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "A", records[0].Zone)
}

func TestCSVReaderCustomColumns(t *testing.T) {
	opts := Options{Columns: Columns{Entity: "inn", Zone: "zone", Date: "approved"}, DateLayouts: []string{"02/01/2006"}}
	input := "approved,zone,inn\n31/01/2024,B,42\n"
	records, err := NewCSVReader(opts).Read(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "42", records[0].Entity)
	assert.Equal(t, date(2024, 1, 31), records[0].ApprovedAt)
}

func TestCSVReaderRejectsMissingColumns(t *testing.T) {
	input := "ИНН,Зона\n1,A\n"
	_, err := NewCSVReader(Options{}).Read(context.Background(), strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMalformedInput))
	assert.Contains(t, err.Error(), "Дата_утверждения")
}

func TestCSVReaderRejectsBadDate(t *testing.T) {
	input := "ИНН,Зона,Дата_утверждения\n1,A,2024-01-01\n2,B,yesterday\n"
	_, err := NewCSVReader(Options{}).Read(context.Background(), strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMalformedInput))
	assert.Contains(t, err.Error(), "line 3")
}

func TestCSVReaderHeaderOnlyIsEmpty(t *testing.T) {
	records, err := NewCSVReader(Options{}).Read(context.Background(), strings.NewReader("ИНН,Зона,Дата_утверждения\n"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCSVReaderEmptyInputIsMalformed(t *testing.T) {
	_, err := NewCSVReader(Options{}).Read(context.Background(), strings.NewReader(""))
	assert.True(t, errors.Is(err, models.ErrMalformedInput))
}

func buildWorkbook(t *testing.T, sheet string, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellRef, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestXLSXReaderParsesDateCells(t *testing.T) {
	data := buildWorkbook(t, "Sheet1", [][]interface{}{
		{"ИНН", "Зона", "Дата_утверждения"},
		{"7701", "З", date(2024, 1, 10)},
		{"7701", "Ч", "2024-02-15"},
	})

	records, err := NewXLSXReader(Options{}).Read(context.Background(), strings.NewReader(string(data)))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, date(2024, 1, 10), records[0].ApprovedAt)
	assert.Equal(t, date(2024, 2, 15), records[1].ApprovedAt)
	assert.Equal(t, "Ч", records[1].Zone)
}

func TestXLSXReaderNamedSheet(t *testing.T) {
	data := buildWorkbook(t, "zones", [][]interface{}{
		{"ИНН", "Зона", "Дата_утверждения"},
		{"1", "A", "2024-01-01"},
	})

	records, err := NewXLSXReader(Options{Sheet: "zones"}).Read(context.Background(), strings.NewReader(string(data)))
	require.NoError(t, err)
	require.Len(t, records, 1)

	_, err = NewXLSXReader(Options{Sheet: "missing"}).Read(context.Background(), strings.NewReader(string(data)))
	assert.True(t, errors.Is(err, models.ErrMalformedInput))
}

func TestXLSXReaderRejectsOutOfRangeSerial(t *testing.T) {
	data := buildWorkbook(t, "Sheet1", [][]interface{}{
		{"ИНН", "Зона", "Дата_утверждения"},
		{"7701", "З", "20240110"},
	})

	_, err := NewXLSXReader(Options{}).Read(context.Background(), strings.NewReader(string(data)))
	assert.True(t, errors.Is(err, models.ErrMalformedInput))
}

func TestXLSXReaderRejectsGarbage(t *testing.T) {
	_, err := NewXLSXReader(Options{}).Read(context.Background(), strings.NewReader("not a zip"))
	assert.True(t, errors.Is(err, models.ErrMalformedInput))
}

func TestForSource(t *testing.T) {
	assert.IsType(t, &XLSXReader{}, ForSource("book.XLSX", nil, Options{}))
	assert.IsType(t, &CSVReader{}, ForSource("table.csv", zipMagic, Options{}))
	assert.IsType(t, &XLSXReader{}, ForSource("upload", []byte("PK\x03\x04rest"), Options{}))
	assert.IsType(t, &CSVReader{}, ForSource("upload", []byte("ИНН,"), Options{}))
}
