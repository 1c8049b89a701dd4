package document

import (
	"errors"
	"fmt"
)

// ErrInvalidTermRange indicates a school-year range too short to split into terms.
var ErrInvalidTermRange = errors.New("document: invalid term range")

// DefaultTerms builds the nominal four-term academic year starting in August of
// baseYear and ending in June of the following year.
func DefaultTerms(baseYear int, ids IDProvider) ([]Term, error) {
	bounds := []struct {
		name       string
		startYear  int
		startMonth int
		startDay   int
		endYear    int
		endMonth   int
		endDay     int
	}{
		{"Term 1", baseYear, 8, 1, baseYear, 10, 15},
		{"Term 2", baseYear, 10, 16, baseYear, 12, 31},
		{"Term 3", baseYear + 1, 1, 1, baseYear + 1, 3, 15},
		{"Term 4", baseYear + 1, 3, 16, baseYear + 1, 6, 1},
	}

	terms := make([]Term, 0, TermsPerYear)
	for _, bound := range bounds {
		id, err := ids.NewID()
		if err != nil {
			return nil, err
		}
		start, err := NewCalendarDate(bound.startYear, bound.startMonth, bound.startDay)
		if err != nil {
			return nil, err
		}
		end, err := NewCalendarDate(bound.endYear, bound.endMonth, bound.endDay)
		if err != nil {
			return nil, err
		}
		terms = append(terms, Term{ID: id, Name: bound.name, Start: start, End: end})
	}
	return terms, nil
}

// GenerateTerms splits an inclusive school-year range into four contiguous
// terms of near-equal length, handing remainder days to the earliest terms.
func GenerateTerms(start, end CalendarDate, ids IDProvider) ([]Term, error) {
	totalDays := start.DaysUntil(end)
	if totalDays < TermsPerYear {
		return nil, fmt.Errorf("%w: %s through %s spans %d days, need at least %d",
			ErrInvalidTermRange, start, end, totalDays, TermsPerYear)
	}

	base := totalDays / TermsPerYear
	extra := totalDays % TermsPerYear
	lengths := [TermsPerYear]int{base, base, base, base}
	for i := 0; i < extra; i++ {
		lengths[i]++
	}

	terms := make([]Term, 0, TermsPerYear)
	cursor := start
	for i, length := range lengths {
		id, err := ids.NewID()
		if err != nil {
			return nil, err
		}
		termEnd := cursor.AddDays(length - 1)
		terms = append(terms, Term{
			ID:    id,
			Name:  fmt.Sprintf("Term %d", i+1),
			Start: cursor,
			End:   termEnd,
		})
		cursor = termEnd.AddDays(1)
	}
	return terms, nil
}

// TermForDate scans terms in order and returns the id of the first whose
// inclusive range contains the date. An empty result is not an error: dates
// outside the school year (summer, for one) belong to no term.
func TermForDate(terms []Term, date CalendarDate) string {
	for _, term := range terms {
		if term.Contains(date) {
			return term.ID
		}
	}
	return ""
}

// SchoolYearName derives a "2025-2026" style label from a term list.
func SchoolYearName(terms []Term) string {
	if len(terms) == 0 {
		return "School Year"
	}
	return fmt.Sprintf("%d-%d", terms[0].Start.Year(), terms[len(terms)-1].End.Year())
}

// ActiveTerms returns the terms of the current school year, falling back to
// the legacy flat list when no year matches.
func (d *Document) ActiveTerms() []Term {
	for _, year := range d.Years {
		if year.ID == d.CurrentYearID {
			return year.Terms
		}
	}
	return d.Terms
}

// AllTerms returns the union of every school year's terms plus any legacy flat
// terms not already present, preserving insertion order. Backfill resolves
// against this full historical set.
func (d *Document) AllTerms() []Term {
	seen := make(map[string]bool)
	out := make([]Term, 0, len(d.Terms)+len(d.Years)*TermsPerYear)
	for _, year := range d.Years {
		for _, term := range year.Terms {
			if !seen[term.ID] {
				seen[term.ID] = true
				out = append(out, term)
			}
		}
	}
	for _, term := range d.Terms {
		if !seen[term.ID] {
			seen[term.ID] = true
			out = append(out, term)
		}
	}
	return out
}

// CurrentYear returns the active school year, or nil when none matches.
func (d *Document) CurrentYear() *SchoolYear {
	for i := range d.Years {
		if d.Years[i].ID == d.CurrentYearID {
			return &d.Years[i]
		}
	}
	return nil
}

// EnsureYears lazily migrates a pre-years document: when the years collection
// is empty it synthesizes a single school year wrapping the flat term list and
// points the current-year reference at it. Running it again is a no-op.
func (d *Document) EnsureYears(ids IDProvider) (bool, error) {
	changed := false
	if len(d.Years) == 0 {
		id, err := ids.NewID()
		if err != nil {
			return false, err
		}
		d.Years = []SchoolYear{{
			ID:    id,
			Name:  SchoolYearName(d.Terms),
			Terms: cloneTerms(d.Terms),
		}}
		d.CurrentYearID = id
		changed = true
	}
	if d.CurrentYear() == nil {
		d.CurrentYearID = d.Years[0].ID
		changed = true
	}
	return changed, nil
}

// Normalize restores the load-time invariants: the flat term list must hold
// exactly four terms and the school name must be non-empty. It returns whether
// any repair ran.
func (d *Document) Normalize(baseYear int, ids IDProvider) (bool, error) {
	repaired := false
	if len(d.Terms) != TermsPerYear {
		terms, err := DefaultTerms(baseYear, ids)
		if err != nil {
			return repaired, err
		}
		d.Terms = terms
		repaired = true
	}
	if d.SchoolName == "" {
		d.SchoolName = DefaultSchoolName
		repaired = true
	}
	yearsChanged, err := d.EnsureYears(ids)
	if err != nil {
		return repaired, err
	}
	return repaired || yearsChanged, nil
}

// NewDefaultDocument builds the freshly initialized dataset used when nothing
// has been persisted yet: four default terms, one school year wrapping them,
// and empty collections.
func NewDefaultDocument(baseYear int, ids IDProvider) (*Document, error) {
	terms, err := DefaultTerms(baseYear, ids)
	if err != nil {
		return nil, err
	}
	doc := &Document{
		Students:    []Student{},
		Subjects:    []Subject{},
		Assignments: []Assignment{},
		Terms:       terms,
		Years:       []SchoolYear{},
		SchoolName:  DefaultSchoolName,
	}
	if _, err := doc.EnsureYears(ids); err != nil {
		return nil, err
	}
	return doc, nil
}
