package rules

import "time"

func firstNonNil(a, b *time.Time) *time.Time {
	if a != nil {
		return a
	}
	return b
}

// minutesBetween returns the minute duration between start and end when
// both are known, or nil otherwise.
func minutesBetween(start, end *time.Time) *float64 {
	if start == nil || end == nil {
		return nil
	}
	minutes := end.Sub(*start).Minutes()
	return &minutes
}
