package document

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultSchoolName labels a document whose owner has not named the school.
	DefaultSchoolName = "Homeschool Grading Calculator"

	// TermsPerYear is the fixed number of grading terms in one school year.
	TermsPerYear = 4

	maxNameLength = 190
)

var (
	// ErrInvalidName indicates an empty or oversized entity name.
	ErrInvalidName = errors.New("document: invalid name")
	// ErrInvalidScore indicates an assignment score outside total >= 1 and
	// 0 <= correct <= total.
	ErrInvalidScore = errors.New("document: invalid score")
	// ErrUnknownStudent indicates a student reference that resolves to nothing.
	ErrUnknownStudent = errors.New("document: unknown student")
	// ErrUnknownSubject indicates a subject reference that resolves to nothing.
	ErrUnknownSubject = errors.New("document: unknown subject")
	// ErrUnknownAssignment indicates an assignment id that resolves to nothing.
	ErrUnknownAssignment = errors.New("document: unknown assignment")
)

// Student is a graded pupil. The id is immutable once assigned.
type Student struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Subject is a course of study.
type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Term is one grading period: a named inclusive date range.
type Term struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Start CalendarDate `json:"start"`
	End   CalendarDate `json:"end"`
}

// Contains reports whether the date falls inside the term's inclusive range.
func (t Term) Contains(date CalendarDate) bool {
	return date.Within(t.Start, t.End)
}

// SchoolYear groups exactly four terms under a name such as "2025-2026".
type SchoolYear struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Terms []Term `json:"terms"`
}

// Assignment is the core fact record: one graded piece of work.
type Assignment struct {
	ID        string       `json:"id"`
	StudentID string       `json:"studentId"`
	SubjectID string       `json:"subjectId"`
	Total     int          `json:"total"`
	Correct   int          `json:"correct"`
	Date      CalendarDate `json:"date"`
	// TermID is resolved from the active terms once at creation and is not
	// tracked when term boundaries change afterward; BackfillTerms is the
	// explicit repair. Empty when the date fell outside every term.
	TermID string `json:"termId,omitempty"`
}

// Document is the aggregate root: the whole dataset persisted and replicated
// as a single unit. Terms holds the legacy flat term list that predates school
// years; EnsureYears migrates it into Years on load.
type Document struct {
	Students            []Student    `json:"students"`
	Subjects            []Subject    `json:"subjects"`
	Assignments         []Assignment `json:"assignments"`
	Terms               []Term       `json:"terms"`
	Years               []SchoolYear `json:"years"`
	CurrentYearID       string       `json:"currentYearId,omitempty"`
	SchoolName          string       `json:"schoolName"`
	AssignmentsPageSize int          `json:"assignmentsPageSize,omitempty"`
	// UpdatedAt is the logical timestamp in wall-clock milliseconds. Replicas
	// are reconciled by comparing this value alone.
	UpdatedAt int64 `json:"_updatedAt,omitempty"`
}

// StudentByID returns the student with the given id, or nil.
func (d *Document) StudentByID(id string) *Student {
	for i := range d.Students {
		if d.Students[i].ID == id {
			return &d.Students[i]
		}
	}
	return nil
}

// SubjectByID returns the subject with the given id, or nil.
func (d *Document) SubjectByID(id string) *Subject {
	for i := range d.Subjects {
		if d.Subjects[i].ID == id {
			return &d.Subjects[i]
		}
	}
	return nil
}

// AssignmentByID returns the assignment with the given id, or nil.
func (d *Document) AssignmentByID(id string) *Assignment {
	for i := range d.Assignments {
		if d.Assignments[i].ID == id {
			return &d.Assignments[i]
		}
	}
	return nil
}

// Clone returns a deep copy so callers can hold a snapshot while the original
// keeps mutating.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	copied := *d
	copied.Students = append([]Student(nil), d.Students...)
	copied.Subjects = append([]Subject(nil), d.Subjects...)
	copied.Assignments = append([]Assignment(nil), d.Assignments...)
	copied.Terms = cloneTerms(d.Terms)
	copied.Years = make([]SchoolYear, 0, len(d.Years))
	for _, year := range d.Years {
		copiedYear := year
		copiedYear.Terms = cloneTerms(year.Terms)
		copied.Years = append(copied.Years, copiedYear)
	}
	return &copied
}

func cloneTerms(terms []Term) []Term {
	return append([]Term(nil), terms...)
}

func validateName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(trimmed) > maxNameLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return trimmed, nil
}

func validateScore(correct, total int) error {
	if total < 1 {
		return fmt.Errorf("%w: total %d must be at least 1", ErrInvalidScore, total)
	}
	if correct < 0 {
		return fmt.Errorf("%w: correct %d must not be negative", ErrInvalidScore, correct)
	}
	if correct > total {
		return fmt.Errorf("%w: correct %d exceeds total %d", ErrInvalidScore, correct, total)
	}
	return nil
}
