package domain

// AttributionRecord is one normalized export row.
// Values line up 1:1 with the Columns of the RecordSet that owns it; a nil value is the sink null.
type AttributionRecord struct {
	AppsFlyerID string
	Line        int
	Values      []any
}

// RecordSet is the output of one normalized export: a shared column list plus its rows.
type RecordSet struct {
	Columns []string
	Records []AttributionRecord
}

// ColumnIndex returns the position of a sink column, or -1.
func (s *RecordSet) ColumnIndex(column string) int {
	for i, c := range s.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Value returns the value of column in record i.
func (s *RecordSet) Value(i int, column string) (any, bool) {
	idx := s.ColumnIndex(column)
	if idx < 0 || i < 0 || i >= len(s.Records) {
		return nil, false
	}
	return s.Records[i].Values[idx], true
}

// Rows returns the row tuples in insert order.
func (s *RecordSet) Rows() [][]any {
	rows := make([][]any, len(s.Records))
	for i, r := range s.Records {
		rows[i] = r.Values
	}
	return rows
}

// Len returns the number of records.
func (s *RecordSet) Len() int {
	return len(s.Records)
}

// WithRecords returns a set sharing this set's columns but holding only records.
func (s *RecordSet) WithRecords(records []AttributionRecord) *RecordSet {
	return &RecordSet{Columns: s.Columns, Records: records}
}
