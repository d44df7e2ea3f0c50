package types

import (
	"time"

	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/samber/lo"
)

// WindowSize buckets usage aggregates for display
type WindowSize string

const (
	WindowSizeDay   WindowSize = "day"
	WindowSizeWeek  WindowSize = "week"
	WindowSizeMonth WindowSize = "month"
)

func (w WindowSize) String() string {
	return string(w)
}

func (w WindowSize) Validate() error {
	allowed := []WindowSize{
		WindowSizeDay,
		WindowSizeWeek,
		WindowSizeMonth,
	}
	if !lo.Contains(allowed, w) {
		return ierr.NewError("invalid window size").
			WithHint("Window size must be day, week or month").
			WithReportableDetails(map[string]any{
				"window_size":    w,
				"allowed_values": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// BucketKey returns the display key the given instant aggregates under.
// Weeks key on the ISO year-week pair.
func (w WindowSize) BucketKey(t time.Time) string {
	switch w {
	case WindowSizeWeek:
		year, week := t.ISOWeek()
		return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).
			AddDate(0, 0, (week-1)*7).Format("2006-01-02")
	case WindowSizeMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

// UsageRecordFilter represents filters for usage record queries
type UsageRecordFilter struct {
	SubscriptionID string     `json:"subscription_id,omitempty" form:"subscription_id"`
	Metric         string     `json:"metric,omitempty" form:"metric"`
	StartTime      *time.Time `json:"start_time,omitempty" form:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty" form:"end_time"`
}

// Validate validates the usage record filter
func (f *UsageRecordFilter) Validate() error {
	if f.StartTime != nil && f.EndTime != nil && f.EndTime.Before(*f.StartTime) {
		return ierr.NewError("invalid time range").
			WithHint("End time must not be before start time").
			Mark(ierr.ErrValidation)
	}
	return nil
}
