package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"

	"github.com/miradorstack/mirador-zones/internal/models"
)

// CSVReader reads comma- or semicolon-delimited text exports.
type CSVReader struct {
	opts Options
}

// NewCSVReader creates a CSV reader.
func NewCSVReader(opts Options) *CSVReader {
	return &CSVReader{opts: opts}
}

// Read parses the whole input; any malformed row rejects it.
func (c *CSVReader) Read(ctx context.Context, r io.Reader) ([]models.ZoneRecord, error) {
	buffered := bufio.NewReader(r)
	firstLine, _ := buffered.Peek(4096)

	reader := csv.NewReader(buffered)
	reader.Comma = sniffDelimiter(firstLine)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	builder := newTableBuilder(c.opts, nil)
	line := 0
	for {
		if line%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, malformed("read csv", err)
		}
		if err := builder.add(line, record); err != nil {
			return nil, err
		}
	}
	return builder.finish()
}

func sniffDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	if bytes.Count(head, []byte{';'}) > bytes.Count(head, []byte{','}) {
		return ';'
	}
	return ','
}
