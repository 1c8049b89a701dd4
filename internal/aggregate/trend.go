package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/MarcoPoloResearchLab/gradebook/internal/document"
	"github.com/MarcoPoloResearchLab/gradebook/internal/grading"
)

// Filter narrows a trend or weekday view. Empty fields match everything;
// TermID restricts by the named active term's date range.
type Filter struct {
	StudentID string
	SubjectID string
	TermID    string
}

// BucketKey identifies one weekly trend bucket.
type BucketKey struct {
	Year  int
	Month int
	// Week is the 1-based week of the month: days 1-7 are week 1.
	Week int
}

// Label renders the bucket for a chart axis, e.g. "Sep W2".
func (k BucketKey) Label() string {
	return fmt.Sprintf("%s W%d", time.Month(k.Month).String()[:3], k.Week)
}

// TrendPoint is one weekly bucket of the trend series.
type TrendPoint struct {
	Key BucketKey
	// Percent is the unweighted mean of per-assignment percentages in the
	// bucket. This is intentionally not the weighted rollup formula: the
	// trend view reports how individual scores moved, not the cumulative
	// grade.
	Percent float64
	// Count is the number of assignments in the bucket.
	Count int
}

// TrendSeries groups the matching assignments into weekly buckets keyed by
// (year, month, week-of-month). Buckets appear in chronological order of first
// occurrence; weeks with no data are omitted entirely, so the axis is
// irregular by design.
func TrendSeries(doc *document.Document, filter Filter) []TrendPoint {
	matched := filterAssignments(doc, filter)
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Date.Before(matched[j].Date)
	})

	order := make([]BucketKey, 0)
	values := make(map[BucketKey][]float64)
	for _, assignment := range matched {
		key := BucketKey{
			Year:  assignment.Date.Year(),
			Month: assignment.Date.Month(),
			Week:  assignment.Date.WeekOfMonth(),
		}
		if _, seen := values[key]; !seen {
			order = append(order, key)
		}
		values[key] = append(values[key], grading.Percent(assignment.Correct, assignment.Total))
	}

	points := make([]TrendPoint, 0, len(order))
	for _, key := range order {
		bucket := values[key]
		points = append(points, TrendPoint{
			Key:     key,
			Percent: grading.MeanPercent(bucket),
			Count:   len(bucket),
		})
	}
	return points
}

// WeekdayAverage is the unweighted mean percent of assignments falling on one
// day of the week, nil when that weekday has no data.
type WeekdayAverage struct {
	Weekday time.Weekday
	Percent *float64
	Count   int
}

// WeekdayAverages buckets the matching assignments by day of week, Sunday
// through Saturday.
func WeekdayAverages(doc *document.Document, filter Filter) [7]WeekdayAverage {
	var buckets [7][]float64
	for _, assignment := range filterAssignments(doc, filter) {
		day := assignment.Date.Weekday()
		buckets[day] = append(buckets[day], grading.Percent(assignment.Correct, assignment.Total))
	}

	var averages [7]WeekdayAverage
	for day := range buckets {
		averages[day] = WeekdayAverage{Weekday: time.Weekday(day), Count: len(buckets[day])}
		if len(buckets[day]) > 0 {
			percent := grading.MeanPercent(buckets[day])
			averages[day].Percent = &percent
		}
	}
	return averages
}

func filterAssignments(doc *document.Document, filter Filter) []document.Assignment {
	var termRange *document.Term
	if filter.TermID != "" {
		for _, term := range doc.ActiveTerms() {
			if term.ID == filter.TermID {
				copied := term
				termRange = &copied
				break
			}
		}
	}

	matched := make([]document.Assignment, 0, len(doc.Assignments))
	for _, assignment := range doc.Assignments {
		if filter.StudentID != "" && assignment.StudentID != filter.StudentID {
			continue
		}
		if filter.SubjectID != "" && assignment.SubjectID != filter.SubjectID {
			continue
		}
		if termRange != nil && !termRange.Contains(assignment.Date) {
			continue
		}
		matched = append(matched, assignment)
	}
	return matched
}
