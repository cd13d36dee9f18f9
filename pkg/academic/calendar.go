package academic

import "time"

// WindowDays is the length of the calendar view.
const WindowDays = 14

// Window is a run of consecutive calendar days.
type Window struct {
	Start time.Time
	Days  []time.Time
}

// TwoWeekWindow returns the 14 days beginning at start's midnight.
func TwoWeekWindow(start time.Time) Window {
	day0 := midnight(start)
	days := make([]time.Time, WindowDays)
	for i := range days {
		days[i] = day0.AddDate(0, 0, i)
	}
	return Window{Start: day0, Days: days}
}

// End returns the last day of the window.
func (w Window) End() time.Time {
	return w.Days[len(w.Days)-1]
}

// Next returns the window immediately after w.
func (w Window) Next() Window {
	return TwoWeekWindow(w.Start.AddDate(0, 0, WindowDays))
}

// Prev returns the window immediately before w.
func (w Window) Prev() Window {
	return TwoWeekWindow(w.Start.AddDate(0, 0, -WindowDays))
}

// Contains reports whether t falls on one of the window's days.
func (w Window) Contains(t time.Time) bool {
	d := midnight(t.In(w.Start.Location()))
	return !d.Before(w.Start) && !d.After(w.End())
}

// WeekStart returns the Monday on or before t.
func WeekStart(t time.Time) time.Time {
	d := midnight(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
