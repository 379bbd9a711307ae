// Package tabular streams header-keyed rows out of delimited data files.
//
// Rows are produced lazily, one record at a time, so a completions file never
// has to fit in memory. Every call to Source.Open starts a fresh pass.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

// utf8BOM is prepended to the first header by several spreadsheet exporters.
const utf8BOM = "\ufeff"

// Row is one record keyed by its column header.
type Row map[string]string

// First returns the value of the first key in keys that is present in the row.
func (r Row) First(keys []string) (string, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok {
			return v, true
		}
	}
	return "", false
}

// Get returns the trimmed value of the first present key, or "".
func (r Row) Get(keys []string) string {
	v, _ := r.First(keys)
	return strings.TrimSpace(v)
}

// ErrNoHeader is returned when the input has no header record.
var ErrNoHeader = errors.New("missing header row")

// Scan returns a lazy sequence of rows read from r. The first record is taken
// as the header. A read error is yielded once and ends the sequence.
func Scan(r io.Reader) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.ReuseRecord = true

		header, err := cr.Read()
		if errors.Is(err, io.EOF) {
			yield(nil, ErrNoHeader)
			return
		}
		if err != nil {
			yield(nil, fmt.Errorf("failed to read header: %w", err))
			return
		}
		header = cleanHeader(header)

		for {
			record, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("failed to read record: %w", err))
				return
			}

			row := make(Row, len(header))
			for i, name := range header {
				if i < len(record) {
					row[name] = record[i]
				}
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// cleanHeader copies the header (the reader reuses its backing array) and
// strips whitespace and a leading byte-order mark.
func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}
