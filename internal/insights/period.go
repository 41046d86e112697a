package insights

import (
	"fmt"
	"strings"
	"time"

	"github.com/Axinion/DynamicActive-Task/internal/model"
)

// Period is a trailing analysis window.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod accepts "week" or "month", case-insensitively.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodWeek, PeriodMonth:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", model.ErrInvalidPeriod, s)
	}
}

// Duration is 7 days for a week and 30 days for a month.
func (p Period) Duration() time.Duration {
	if p == PeriodMonth {
		return 30 * 24 * time.Hour
	}
	return 7 * 24 * time.Hour
}

// Window returns the interval [now-Duration, now].
func (p Period) Window(now time.Time) (start, end time.Time) {
	return now.Add(-p.Duration()), now
}
