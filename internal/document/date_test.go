package document

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseCalendarDate(t *testing.T) {
	date, err := ParseCalendarDate("2025-08-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if date.Year() != 2025 || date.Month() != 8 || date.Day() != 1 {
		t.Fatalf("unexpected components: %v", date)
	}
	if date.String() != "2025-08-01" {
		t.Fatalf("unexpected string form: %s", date)
	}
}

func TestParseCalendarDateRejectsMalformedInput(t *testing.T) {
	for _, input := range []string{"", "2025", "2025-13-01", "2025-00-10", "2025-01-32", "august 1"} {
		if _, err := ParseCalendarDate(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestCalendarDateOrdering(t *testing.T) {
	earlier := mustDate(t, "2025-08-31")
	later := mustDate(t, "2025-09-01")
	if !earlier.Before(later) {
		t.Fatalf("expected %s before %s", earlier, later)
	}
	if !later.After(earlier) {
		t.Fatalf("expected %s after %s", later, earlier)
	}
	if earlier.Compare(earlier) != 0 {
		t.Fatalf("expected equal comparison to be zero")
	}
}

func TestCalendarDateWithinIsInclusive(t *testing.T) {
	start := mustDate(t, "2025-08-01")
	end := mustDate(t, "2025-10-15")
	if !start.Within(start, end) {
		t.Fatalf("range start should be inside")
	}
	if !end.Within(start, end) {
		t.Fatalf("range end should be inside")
	}
	if mustDate(t, "2025-10-16").Within(start, end) {
		t.Fatalf("day after range end should be outside")
	}
}

func TestWeekOfMonth(t *testing.T) {
	tests := []struct {
		date     string
		expected int
	}{
		{"2025-09-01", 1},
		{"2025-09-07", 1},
		{"2025-09-08", 2},
		{"2025-09-14", 2},
		{"2025-09-15", 3},
		{"2025-09-29", 5},
	}
	for _, tt := range tests {
		if got := mustDate(t, tt.date).WeekOfMonth(); got != tt.expected {
			t.Fatalf("WeekOfMonth(%s) = %d, want %d", tt.date, got, tt.expected)
		}
	}
}

func TestAddDaysNormalizesAcrossBoundaries(t *testing.T) {
	if got := mustDate(t, "2025-12-31").AddDays(1); got.String() != "2026-01-01" {
		t.Fatalf("unexpected date: %s", got)
	}
	if got := mustDate(t, "2024-02-28").AddDays(1); got.String() != "2024-02-29" {
		t.Fatalf("expected leap day, got %s", got)
	}
}

func TestDaysUntilIsInclusive(t *testing.T) {
	start := mustDate(t, "2025-08-01")
	if got := start.DaysUntil(mustDate(t, "2025-08-01")); got != 1 {
		t.Fatalf("same-day span should be 1, got %d", got)
	}
	if got := start.DaysUntil(mustDate(t, "2025-08-04")); got != 4 {
		t.Fatalf("expected 4-day span, got %d", got)
	}
	if got := start.DaysUntil(mustDate(t, "2025-07-31")); got != 0 {
		t.Fatalf("reversed span should be 0, got %d", got)
	}
}

func TestCalendarDateJSONRoundTrip(t *testing.T) {
	original := mustDate(t, "2025-03-16")
	encoded, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}
	if string(encoded) != `"2025-03-16"` {
		t.Fatalf("unexpected encoding: %s", encoded)
	}
	var decoded CalendarDate
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	if decoded.Compare(original) != 0 {
		t.Fatalf("round trip changed value: %s", decoded)
	}
}

func TestCalendarDateJSONToleratesEmptyString(t *testing.T) {
	var decoded CalendarDate
	if err := json.Unmarshal([]byte(`""`), &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decoded.IsZero() {
		t.Fatalf("empty string should decode to zero date")
	}
}

func TestWeekday(t *testing.T) {
	// 2025-08-01 is a Friday.
	if got := mustDate(t, "2025-08-01").Weekday(); got != time.Friday {
		t.Fatalf("expected Friday, got %s", got)
	}
}
