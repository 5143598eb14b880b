// Package report renders analytics results as delimited UTF-8 tables.
//
// Every table ends without a trailing newline. Dates use utils.DateLayout and
// booleans are rendered as True/False.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Derived-table column names appended after the configured input columns.
const (
	ColPrevZone   = "prev_zone"
	ColNextZone   = "next_zone"
	ColNextDate   = "next_date"
	ColZoneChange = "zone_change"
	ColStep       = "step"
)

func writeTable(w io.Writer, header []string, rows [][]string) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	_, err := w.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return err
}

func formatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func parseBool(v string) (bool, error) {
	switch v {
	case "True", "true", "TRUE", "1":
		return true, nil
	case "False", "false", "FALSE", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
