package window

import (
	"fmt"
	"time"

	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/config"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/domain"
)

// Planner computes the window for one sync run.
type Planner interface {
	Plan() domain.TimeWindow
}

// Clock returns the current instant.
type Clock func() time.Time

// Rolling covers the last Lookback up to now, in Location.
type Rolling struct {
	Lookback time.Duration
	Location *time.Location
	Now      Clock
}

// Plan returns [now-lookback, now], truncated to whole seconds.
func (r Rolling) Plan() domain.TimeWindow {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	to := now().In(r.Location).Truncate(time.Second)
	return domain.TimeWindow{
		From:     to.Add(-r.Lookback),
		To:       to,
		Location: r.Location,
	}
}

// Day covers one calendar day in Location, from 00:00:00 to 23:59:59.
type Day struct {
	Date     time.Time
	Location *time.Location
}

// Plan returns the bounds of the configured day.
func (d Day) Plan() domain.TimeWindow {
	y, m, day := d.Date.Date()
	from := time.Date(y, m, day, 0, 0, 0, 0, d.Location)
	return domain.TimeWindow{
		From:     from,
		To:       from.AddDate(0, 0, 1).Add(-time.Second),
		Location: d.Location,
	}
}

// FromConfig builds the planner selected by the sync configuration.
func FromConfig(cfg config.Sync, now Clock) (Planner, error) {
	if now == nil {
		now = time.Now
	}
	loc := cfg.Location()

	switch cfg.Window {
	case config.WindowRolling:
		return Rolling{Lookback: cfg.Lookback(), Location: loc, Now: now}, nil
	case config.WindowDay:
		date := now().In(loc)
		if cfg.Day != "" {
			parsed, err := time.ParseInLocation("2006-01-02", cfg.Day, loc)
			if err != nil {
				return nil, fmt.Errorf("failed to parse sync day: %w", err)
			}
			date = parsed
		}
		return Day{Date: date, Location: loc}, nil
	default:
		return nil, fmt.Errorf("unsupported window strategy: %s", cfg.Window)
	}
}
