package types

import "time"

// MonthBounds returns the usage aggregation window containing t:
// first of the month 00:00:00 to last of the month 23:59:59.999 in UTC.
func MonthBounds(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0).Add(-time.Millisecond)
	return start, end
}

// UsageWindow is a closed aggregation window. The zero value means the
// current calendar month at query time.
type UsageWindow struct {
	Start time.Time `json:"start" form:"start" time_format:"2006-01-02T15:04:05Z07:00"`
	End   time.Time `json:"end" form:"end" time_format:"2006-01-02T15:04:05Z07:00"`
}

func (w UsageWindow) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Resolve returns the concrete window, defaulting to the current month.
func (w UsageWindow) Resolve(now time.Time) UsageWindow {
	if w.IsZero() {
		start, end := MonthBounds(now)
		return UsageWindow{Start: start, End: end}
	}
	return UsageWindow{Start: w.Start.UTC(), End: w.End.UTC()}
}
