package normalizer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/domain"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/mapping"
)

const byteOrderMark = "\ufeff"

// ErrMalformedExport marks an export body the CSV reader gave up on.
// Stray quotes are not malformed: they are kept as literal characters.
var ErrMalformedExport = errors.New("malformed export")

// WarningKind distinguishes recoverable row problems.
type WarningKind int

const (
	// WarningDatetime: a datetime cell was replaced by null.
	WarningDatetime WarningKind = iota + 1
	// WarningMissingKey: the row had no natural key and was dropped.
	WarningMissingKey
)

func (k WarningKind) String() string {
	switch k {
	case WarningDatetime:
		return "invalid_datetime"
	case WarningMissingKey:
		return "missing_key"
	default:
		return "unknown"
	}
}

// Warning describes one recovered row problem.
type Warning struct {
	Kind   WarningKind
	Line   int
	Column string
	Value  string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s at line %d column %s: %q", w.Kind, w.Line, w.Column, w.Value)
}

// Normalize parses a CSV export and maps it onto sink columns.
// Columns keep header order; headers outside the mapping are dropped, as are rows without a natural key.
func Normalize(raw []byte) (*domain.RecordSet, []Warning, error) {
	raw = bytes.ToValidUTF8(bytes.TrimPrefix(raw, []byte(byteOrderMark)), []byte("\ufffd"))

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &domain.RecordSet{}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read header: %v", ErrMalformedExport, err)
	}

	set, positions := mapHeader(header)
	keyIdx := set.ColumnIndex(mapping.KeyColumn)

	var warnings []Warning
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformedExport, err)
		}
		line, _ := reader.FieldPos(0)

		values := make([]any, len(set.Columns))
		for i, col := range set.Columns {
			cell, present := cellAt(row, positions[i])
			if !present {
				continue
			}

			if !mapping.IsDatetime(col) {
				values[i] = nullable(cell)
				continue
			}

			canonical, ok, err := CanonicalDatetime(cell)
			if err != nil {
				warnings = append(warnings, Warning{Kind: WarningDatetime, Line: line, Column: col, Value: cell})
			}
			if ok {
				values[i] = canonical
			}
		}

		key := keyOf(values, keyIdx)
		if key == "" {
			warnings = append(warnings, Warning{Kind: WarningMissingKey, Line: line, Column: mapping.KeyColumn})
			continue
		}

		set.Records = append(set.Records, domain.AttributionRecord{
			AppsFlyerID: key,
			Line:        line,
			Values:      values,
		})
	}

	return set, warnings, nil
}

// mapHeader resolves export headers to sink columns, returning the column list and,
// for each column, the index of its source cell. Repeated headers keep their first occurrence.
func mapHeader(header []string) (*domain.RecordSet, []int) {
	set := &domain.RecordSet{}
	var positions []int
	seen := make(map[string]bool, len(header))

	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, byteOrderMark)
		}
		col, ok := mapping.SinkColumn(h)
		if !ok || seen[col] {
			continue
		}
		seen[col] = true
		set.Columns = append(set.Columns, col)
		positions = append(positions, i)
	}

	return set, positions
}

func cellAt(row []string, idx int) (string, bool) {
	if idx >= len(row) {
		return "", false
	}
	return row[idx], true
}

func keyOf(values []any, idx int) string {
	if idx < 0 {
		return ""
	}
	s, _ := values[idx].(string)
	return s
}

// nullable maps null tokens to nil and passes every other value through unchanged.
func nullable(v string) any {
	if isNullToken(strings.TrimSpace(v)) {
		return nil
	}
	return v
}
