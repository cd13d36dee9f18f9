// Package academic holds the pure grading and date helpers shared by the dashboards.
package academic

import (
	"errors"
	"math"
)

// ErrScoreOutOfRange is returned for scores outside [0, 100].
var ErrScoreOutOfRange = errors.New("score must be between 0 and 100")

// ibBoundaries lists the inclusive lower bound for IB grades 7 down to 2.
var ibBoundaries = []struct {
	min   float64
	grade int
}{
	{80, 7},
	{70, 6},
	{60, 5},
	{52, 4},
	{44, 3},
	{34, 2},
}

// CalculateIBGrade maps a percentage score to an IB grade from 1 to 7.
func CalculateIBGrade(score float64) (int, error) {
	if math.IsNaN(score) || score < 0 || score > 100 {
		return 0, ErrScoreOutOfRange
	}
	for _, b := range ibBoundaries {
		if score >= b.min {
			return b.grade, nil
		}
	}
	return 1, nil
}

// LetterGrade buckets a percentage into A-F.
func LetterGrade(pct float64) string {
	switch {
	case pct >= 90:
		return "A"
	case pct >= 80:
		return "B"
	case pct >= 70:
		return "C"
	case pct >= 60:
		return "D"
	default:
		return "F"
	}
}

// Score is marks out of total as an unrounded percentage. Grade boundaries are applied to it.
func Score(marks, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return marks / total * 100
}

// Percentage is Score rounded to two decimals for display.
func Percentage(marks, total float64) float64 {
	return math.Round(Score(marks, total)*100) / 100
}
