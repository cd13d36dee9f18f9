package academic

import (
	"fmt"
	"time"
)

// SchoolYear is the calendar-year span of an academic year.
type SchoolYear struct {
	StartYear int    `json:"start_year"`
	EndYear   int    `json:"end_year"`
	Label     string `json:"label"`
}

// CurrentSchoolYear resolves the academic year containing now. A start month after the
// end month means the year wraps across January.
func CurrentSchoolYear(startMonth, endMonth time.Month, now time.Time) SchoolYear {
	year := now.Year()
	if startMonth <= endMonth {
		return newSchoolYear(year, year)
	}
	if now.Month() >= startMonth {
		return newSchoolYear(year, year+1)
	}
	return newSchoolYear(year-1, year)
}

// MonthFromIndex converts a 0-based month index (0 = January) to time.Month.
func MonthFromIndex(idx int) (time.Month, error) {
	if idx < 0 || idx > 11 {
		return 0, fmt.Errorf("month index %d out of range", idx)
	}
	return time.Month(idx + 1), nil
}

func newSchoolYear(start, end int) SchoolYear {
	label := fmt.Sprintf("%d-%d", start, end)
	if start == end {
		label = fmt.Sprintf("%d", start)
	}
	return SchoolYear{StartYear: start, EndYear: end, Label: label}
}
