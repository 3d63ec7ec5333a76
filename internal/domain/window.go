package domain

import "time"

// DateTimeLayout is the canonical rendering shared by the export API and the sink.
const DateTimeLayout = "2006-01-02 15:04:05"

// TimeWindow bounds one export request and its dedup query.
type TimeWindow struct {
	From     time.Time
	To       time.Time
	Location *time.Location
}

// FromString renders the lower bound in local time without sub-second precision.
func (w TimeWindow) FromString() string {
	return w.From.In(w.Location).Format(DateTimeLayout)
}

// ToString renders the upper bound in local time without sub-second precision.
func (w TimeWindow) ToString() string {
	return w.To.In(w.Location).Format(DateTimeLayout)
}

// Valid reports whether From is strictly before To.
func (w TimeWindow) Valid() bool {
	return w.From.Before(w.To)
}
