package aggregate

import (
	"testing"
	"time"
)

func TestTrendSeriesAveragesBucketWithoutWeighting(t *testing.T) {
	f := newFixture(t)
	// Same calendar week, different point scales. 60% and 80% must average
	// to 70.0, not to the weighted 14/20 = 70.0 coincidence, so pick scales
	// where the two formulas disagree: 3/5 = 60% and 16/20 = 80% weighted
	// would give 19/25 = 76.0.
	f.mustAssignment(t, f.ada.ID, f.math.ID, 5, 3, "2025-09-08")
	f.mustAssignment(t, f.ada.ID, f.math.ID, 20, 16, "2025-09-10")

	points := TrendSeries(f.doc, Filter{StudentID: f.ada.ID})
	if len(points) != 1 {
		t.Fatalf("expected a single bucket, got %d", len(points))
	}
	if points[0].Percent != 70.0 {
		t.Fatalf("expected unweighted mean 70.0, got %v", points[0].Percent)
	}
	if points[0].Count != 2 {
		t.Fatalf("expected 2 assignments in the bucket, got %d", points[0].Count)
	}
}

func TestTrendSeriesBucketsByWeekOfMonth(t *testing.T) {
	f := newFixture(t)
	f.mustAssignment(t, f.ada.ID, f.math.ID, 10, 9, "2025-09-02")
	f.mustAssignment(t, f.ada.ID, f.math.ID, 10, 7, "2025-09-07")
	f.mustAssignment(t, f.ada.ID, f.math.ID, 10, 8, "2025-09-08")
	f.mustAssignment(t, f.ada.ID, f.math.ID, 10, 6, "2025-10-01")

	points := TrendSeries(f.doc, Filter{StudentID: f.ada.ID})
	if len(points) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(points))
	}

	expected := []struct {
		key     BucketKey
		percent float64
		count   int
	}{
		{BucketKey{Year: 2025, Month: 9, Week: 1}, 80.0, 2},
		{BucketKey{Year: 2025, Month: 9, Week: 2}, 80.0, 1},
		{BucketKey{Year: 2025, Month: 10, Week: 1}, 60.0, 1},
	}
	for i, want := range expected {
		if points[i].Key != want.key {
			t.Fatalf("bucket %d: expected key %+v, got %+v", i, want.key, points[i].Key)
		}
		if points[i].Percent != want.percent || points[i].Count != want.count {
			t.Fatalf("bucket %d: expected %v%% over %d, got %v%% over %d",
				i, want.percent, want.count, points[i].Percent, points[i].Count)
		}
	}
}

func TestTrendSeriesOrdersBucketsChronologically(t *testing.T) {
	f := newFixture(t)
	// Insert out of order; the series must still come out sorted by date.
	f.mustAssignment(t, f.ada.ID, f.math.ID, 10, 6, "2025-10-20")
	f.mustAssignment(t, f.ada.ID, f.math.ID, 10, 9, "2025-09-02")
	f.mustAssignment(t, f.ada.ID, f.math.ID, 10, 7, "2025-10-05")

	points := TrendSeries(f.doc, Filter{StudentID: f.ada.ID})
	if len(points) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(points))
	}
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1].Key, points[i].Key
		if cur.Year < prev.Year ||
			(cur.Year == prev.Year && cur.Month < prev.Month) ||
			(cur.Year == prev.Year && cur.Month == prev.Month && cur.Week < prev.Week) {
			t.Fatalf("buckets out of order: %+v before %+v", prev, cur)
		}
	}
}

func TestTrendSeriesFilters(t *testing.T) {
	f := newFixture(t)
	f.mustAssignment(t, f.ada.ID, f.math.ID, 10, 8, "2025-09-02")
	f.mustAssignment(t, f.ada.ID, f.reading.ID, 10, 6, "2025-09-02")
	f.mustAssignment(t, f.ben.ID, f.math.ID, 10, 4, "2025-09-02")
	// Second term.
	f.mustAssignment(t, f.ada.ID, f.math.ID, 10, 10, "2025-11-02")

	bySubject := TrendSeries(f.doc, Filter{StudentID: f.ada.ID, SubjectID: f.math.ID})
	total := 0
	for _, point := range bySubject {
		total += point.Count
	}
	if total != 2 {
		t.Fatalf("subject filter should match 2 assignments, got %d", total)
	}

	firstTermID := f.doc.ActiveTerms()[0].ID
	byTerm := TrendSeries(f.doc, Filter{StudentID: f.ada.ID, TermID: firstTermID})
	total = 0
	for _, point := range byTerm {
		total += point.Count
	}
	if total != 2 {
		t.Fatalf("term filter should match 2 assignments in the first term, got %d", total)
	}
}

func TestBucketKeyLabel(t *testing.T) {
	key := BucketKey{Year: 2025, Month: 9, Week: 2}
	if got := key.Label(); got != "Sep W2" {
		t.Fatalf("expected label %q, got %q", "Sep W2", got)
	}
}

func TestWeekdayAverages(t *testing.T) {
	f := newFixture(t)
	// 2025-09-01 is a Monday, 2025-09-08 the next Monday, 2025-09-03 a
	// Wednesday.
	f.mustAssignment(t, f.ada.ID, f.math.ID, 10, 6, "2025-09-01")
	f.mustAssignment(t, f.ada.ID, f.math.ID, 10, 8, "2025-09-08")
	f.mustAssignment(t, f.ada.ID, f.math.ID, 10, 9, "2025-09-03")

	averages := WeekdayAverages(f.doc, Filter{StudentID: f.ada.ID})

	monday := averages[time.Monday]
	if monday.Percent == nil || *monday.Percent != 70.0 || monday.Count != 2 {
		t.Fatalf("unexpected Monday bucket: %+v", monday)
	}
	wednesday := averages[time.Wednesday]
	if wednesday.Percent == nil || *wednesday.Percent != 90.0 || wednesday.Count != 1 {
		t.Fatalf("unexpected Wednesday bucket: %+v", wednesday)
	}
	if averages[time.Sunday].Percent != nil || averages[time.Saturday].Percent != nil {
		t.Fatalf("days without data must stay nil")
	}
}

func TestBuildReportCard(t *testing.T) {
	f := newFixture(t)
	f.mustAssignment(t, f.ada.ID, f.math.ID, 10, 9, "2025-09-01")
	f.mustAssignment(t, f.ada.ID, f.math.ID, 10, 7, "2025-11-01")

	card, err := BuildReportCard(f.doc, f.ada.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if card.StudentName != "Ada" {
		t.Fatalf("expected student name Ada, got %q", card.StudentName)
	}
	if card.YearName != "2025-2026" {
		t.Fatalf("expected year name 2025-2026, got %q", card.YearName)
	}
	if len(card.TermNames) != 4 {
		t.Fatalf("expected 4 term names, got %d", len(card.TermNames))
	}
	if len(card.Rows) != 1 {
		t.Fatalf("expected 1 subject row, got %d", len(card.Rows))
	}

	row := card.Rows[0]
	if row.SubjectName != "Math" || row.YearPercent != 80.0 || row.YearLetter != "B-" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.PerTermLetter[0] == nil || *row.PerTermLetter[0] != "A-" {
		t.Fatalf("expected first term letter A-, got %v", row.PerTermLetter[0])
	}
	if row.PerTermLetter[2] != nil {
		t.Fatalf("terms without data must carry no letter")
	}
	if card.OverallLetter == nil || *card.OverallLetter != "B-" {
		t.Fatalf("expected overall letter B-, got %v", card.OverallLetter)
	}
}

func TestBuildReportCardUnknownStudent(t *testing.T) {
	f := newFixture(t)
	if _, err := BuildReportCard(f.doc, "missing"); err == nil {
		t.Fatalf("expected an error for an unknown student")
	}
}
