package ingest

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/miradorstack/mirador-zones/internal/models"
	"github.com/miradorstack/mirador-zones/internal/utils"
)

// XLSXReader streams rows of one worksheet of an Excel workbook.
type XLSXReader struct {
	opts Options
}

// NewXLSXReader creates an XLSX reader.
func NewXLSXReader(opts Options) *XLSXReader {
	return &XLSXReader{opts: opts}
}

// Read parses the configured sheet (or the first one) with raw cell values so that
// date cells arrive as Excel serial numbers regardless of their display format.
func (x *XLSXReader) Read(ctx context.Context, r io.Reader) ([]models.ZoneRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, malformed("open workbook", err)
	}
	defer f.Close()

	sheet, err := x.sheet(f)
	if err != nil {
		return nil, err
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, malformed(fmt.Sprintf("read sheet %q", sheet), err)
	}
	defer rows.Close()

	builder := newTableBuilder(x.opts, x.parseDate)
	rowIdx := 0
	for rows.Next() {
		rowIdx++
		if rowIdx%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		vals, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, malformed(fmt.Sprintf("row %d", rowIdx), err)
		}
		if err := builder.add(rowIdx, vals); err != nil {
			return nil, err
		}
	}
	if err := rows.Error(); err != nil {
		return nil, malformed("iterate rows", err)
	}
	return builder.finish()
}

func (x *XLSXReader) sheet(f *excelize.File) (string, error) {
	if x.opts.Sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return "", malformed("workbook has no sheets", nil)
		}
		return sheets[0], nil
	}
	idx, err := f.GetSheetIndex(x.opts.Sheet)
	if err != nil || idx < 0 {
		return "", malformed(fmt.Sprintf("sheet %q not found", x.opts.Sheet), err)
	}
	return x.opts.Sheet, nil
}

// maxExcelSerial is the serial of 9999-12-31, the last date Excel can represent.
const maxExcelSerial = 2958466

// parseDate accepts Excel serial dates first, then the textual layouts.
func (x *XLSXReader) parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial > 0 && serial < maxExcelSerial {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
		return utils.DateOf(t), nil
	}
	return utils.ParseDate(value, x.opts.DateLayouts...)
}
