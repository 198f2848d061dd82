package model

import (
	"fmt"
	"time"
)

// Window is the time-scoped aggregation granularity for best scores.
type Window string

const (
	WindowDaily   Window = "daily"
	WindowWeekly  Window = "weekly"
	WindowAllTime Window = "all-time"
)

// AllTimeBucket is the single permanent bucket shared by every submission.
const AllTimeBucket = "all"

// ParseWindow maps a query parameter to a Window. An empty value means
// all-time, per the API contract.
func ParseWindow(s string) (Window, error) {
	switch s {
	case "daily":
		return WindowDaily, nil
	case "weekly":
		return WindowWeekly, nil
	case "", "all-time":
		return WindowAllTime, nil
	default:
		return "", fmt.Errorf("unknown window %q", s)
	}
}

// Bucket computes the bucket identifier a timestamp falls into for this
// window. Buckets are computed in UTC so every server agrees on boundaries.
func (w Window) Bucket(ts time.Time) string {
	ts = ts.UTC()
	switch w {
	case WindowDaily:
		return "d:" + ts.Format("20060102")
	case WindowWeekly:
		year, week := ts.ISOWeek()
		return fmt.Sprintf("w:%d-W%02d", year, week)
	default:
		return AllTimeBucket
	}
}

// BucketsFor returns the three bucket identifiers a submission at ts
// belongs to: daily, weekly and all-time.
func BucketsFor(ts time.Time) [3]string {
	return [3]string{
		WindowDaily.Bucket(ts),
		WindowWeekly.Bucket(ts),
		AllTimeBucket,
	}
}
