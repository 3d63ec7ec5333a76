package normalizer

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/domain"
)

// ErrInvalidDatetime marks a non-empty datetime cell that could not be canonicalized.
var ErrInvalidDatetime = errors.New("invalid datetime")

var datetimePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2}) (\d{1,2}):(\d{1,2}):(\d{1,2})(?:\.\d+)?$`)

// CanonicalDatetime renders v as "YYYY-MM-DD HH:MM:SS".
// ok is false when the value maps to the sink null; err is ErrInvalidDatetime when v was
// neither a null token nor a valid datetime.
func CanonicalDatetime(v string) (canonical string, ok bool, err error) {
	s := strings.TrimSpace(v)
	if isNullToken(s) || strings.EqualFold(s, "n/a") {
		return "", false, nil
	}

	m := datetimePattern.FindStringSubmatch(s)
	if m == nil {
		return "", false, fmt.Errorf("%w: %q", ErrInvalidDatetime, v)
	}

	parts := make([]int, 6)
	for i := range parts {
		parts[i], _ = strconv.Atoi(m[i+1])
	}
	year, month, day, hour, minute, second := parts[0], parts[1], parts[2], parts[3], parts[4], parts[5]

	if hour > 23 || minute > 59 || second > 59 {
		return "", false, fmt.Errorf("%w: %q out of range", ErrInvalidDatetime, v)
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", false, fmt.Errorf("%w: %q is not a calendar date", ErrInvalidDatetime, v)
	}

	return t.Format(domain.DateTimeLayout), true, nil
}

func isNullToken(s string) bool {
	return s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none")
}
