// Package ingest reads raw zone assignments from spreadsheet uploads.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/miradorstack/mirador-zones/internal/models"
	"github.com/miradorstack/mirador-zones/internal/utils"
)

// Default column names of the analyst's export.
const (
	DefaultEntityColumn = "ИНН"
	DefaultZoneColumn   = "Зона"
	DefaultDateColumn   = "Дата_утверждения"
)

// Columns names the header cells holding the required fields.
type Columns struct {
	Entity string `yaml:"entity"`
	Zone   string `yaml:"zone"`
	Date   string `yaml:"date"`
}

// DefaultColumns returns the column names used by the upstream export.
func DefaultColumns() Columns {
	return Columns{Entity: DefaultEntityColumn, Zone: DefaultZoneColumn, Date: DefaultDateColumn}
}

// Options configures the readers.
type Options struct {
	Columns Columns
	// Sheet selects the worksheet of an XLSX upload; empty means the first sheet.
	Sheet string
	// DateLayouts are tried before utils.DefaultDateLayouts.
	DateLayouts []string
}

// Reader parses an upload into zone records, rejecting the whole input on any error.
type Reader interface {
	Read(ctx context.Context, r io.Reader) ([]models.ZoneRecord, error)
}

var zipMagic = []byte("PK\x03\x04")

// ForSource picks a reader from the file extension, falling back to content sniffing.
func ForSource(name string, head []byte, opts Options) Reader {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return NewXLSXReader(opts)
	case ".csv", ".txt":
		return NewCSVReader(opts)
	}
	if bytes.HasPrefix(head, zipMagic) {
		return NewXLSXReader(opts)
	}
	return NewCSVReader(opts)
}

func malformed(msg string, err error) error {
	return utils.KindError(models.ErrMalformedInput, "ingest", msg, err)
}

// tableBuilder turns header + data rows into records; both readers feed it.
type tableBuilder struct {
	opts       Options
	parseDate  func(string) (time.Time, error)
	entityIdx  int
	zoneIdx    int
	dateIdx    int
	haveHeader bool
	records    []models.ZoneRecord
}

func newTableBuilder(opts Options, parseDate func(string) (time.Time, error)) *tableBuilder {
	if opts.Columns.Entity == "" || opts.Columns.Zone == "" || opts.Columns.Date == "" {
		opts.Columns = DefaultColumns()
	}
	if parseDate == nil {
		parseDate = func(v string) (time.Time, error) { return utils.ParseDate(v, opts.DateLayouts...) }
	}
	return &tableBuilder{opts: opts, parseDate: parseDate}
}

// add consumes one row; line is the 1-based line or row number used in error messages.
func (b *tableBuilder) add(line int, cells []string) error {
	if isBlank(cells) {
		return nil
	}
	if !b.haveHeader {
		return b.header(cells)
	}
	return b.row(line, cells)
}

func (b *tableBuilder) header(cells []string) error {
	index := make(map[string]int, len(cells))
	for i, raw := range cells {
		name := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	lookup := func(name string) int {
		i, ok := index[name]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}
	b.entityIdx = lookup(b.opts.Columns.Entity)
	b.zoneIdx = lookup(b.opts.Columns.Zone)
	b.dateIdx = lookup(b.opts.Columns.Date)
	if len(missing) > 0 {
		return malformed(fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")), nil)
	}
	b.haveHeader = true
	return nil
}

func (b *tableBuilder) row(line int, cells []string) error {
	entity := strings.TrimSpace(cell(cells, b.entityIdx))
	if entity == "" {
		return malformed(fmt.Sprintf("line %d: empty %s", line, b.opts.Columns.Entity), nil)
	}
	zone := strings.TrimSpace(cell(cells, b.zoneIdx))
	if zone == "" {
		return malformed(fmt.Sprintf("line %d: empty %s", line, b.opts.Columns.Zone), nil)
	}
	date, err := b.parseDate(cell(cells, b.dateIdx))
	if err != nil {
		return malformed(fmt.Sprintf("line %d: invalid %s", line, b.opts.Columns.Date), err)
	}

	b.records = append(b.records, models.ZoneRecord{
		Entity:     entity,
		Zone:       zone,
		ApprovedAt: date,
		Row:        len(b.records),
	})
	return nil
}

func (b *tableBuilder) finish() ([]models.ZoneRecord, error) {
	if !b.haveHeader {
		return nil, malformed("no header row found", nil)
	}
	if b.records == nil {
		return []models.ZoneRecord{}, nil
	}
	return b.records, nil
}

func cell(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
