// Package schedule holds the pure date arithmetic of a report cycle: the
// lookback windows, their report names and the waits between them. Nothing
// here reads the wall clock; callers pass the current instant explicitly.
package schedule

import (
	"fmt"
	"time"
)

// TimestampLayout is the fixed-precision UTC layout the reporting API expects.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Window is the [Start, End) lookback range of one analysis, in UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) String() string {
	return w.Start.Format(time.RFC3339) + " -> " + w.End.Format(time.RFC3339)
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WindowFor returns the window of the index-th report of the cycle that
// starts on day at startHour UTC. The first window ends at startHour:00.
func WindowFor(day time.Time, startHour, index int, interval time.Duration) Window {
	end := Day(day).Add(time.Duration(startHour)*time.Hour + time.Duration(index)*interval)
	return Window{Start: end.Add(-interval), End: end}
}

// Windows returns count contiguous windows for the cycle.
func Windows(day time.Time, startHour, count int, interval time.Duration) []Window {
	out := make([]Window, count)
	for i := range out {
		out[i] = WindowFor(day, startHour, i, interval)
	}
	return out
}

// ReportName builds "{prefix}-{YYYY-MM-DD}-{HHMM}-{HHMM}" from the cycle day
// and the window bounds.
func ReportName(prefix string, day time.Time, w Window) string {
	return fmt.Sprintf("%s-%s-%s-%s",
		prefix,
		Day(day).Format("2006-01-02"),
		w.Start.UTC().Format("1504"),
		w.End.UTC().Format("1504"),
	)
}

// FormatTimestamp renders t as the API timestamp, milliseconds fixed to .000.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimestampLayout)
}

// WaitUntil returns how long to sleep from now until boundary. A result
// <= 0 means the boundary has already passed.
func WaitUntil(now, boundary time.Time) time.Duration {
	return boundary.Sub(now)
}
