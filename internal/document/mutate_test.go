package document

import (
	"errors"
	"testing"
)

func TestAddStudentValidatesName(t *testing.T) {
	ids := &sequenceIDProvider{}
	doc := mustDefaultDocument(t, ids)

	if _, err := doc.AddStudent(ids, "   "); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}

	student := mustAddStudent(t, doc, ids, "  Ada  ")
	if student.Name != "Ada" {
		t.Fatalf("expected trimmed name, got %q", student.Name)
	}
	if doc.StudentByID(student.ID) == nil {
		t.Fatalf("student should be retrievable by id")
	}
}

func TestAddAssignmentResolvesTermFromActiveTerms(t *testing.T) {
	ids := &sequenceIDProvider{}
	doc := mustDefaultDocument(t, ids)
	student := mustAddStudent(t, doc, ids, "Ada")
	subject := mustAddSubject(t, doc, ids, "Math")

	inTerm := mustAddAssignment(t, doc, ids, student.ID, subject.ID, 10, 9, "2025-09-10")
	if inTerm.TermID != doc.ActiveTerms()[0].ID {
		t.Fatalf("expected assignment to land in the first term")
	}

	summer := mustAddAssignment(t, doc, ids, student.ID, subject.ID, 10, 9, "2026-07-04")
	if summer.TermID != "" {
		t.Fatalf("summer assignment should have no term, got %q", summer.TermID)
	}
}

func TestAddAssignmentValidation(t *testing.T) {
	ids := &sequenceIDProvider{}
	doc := mustDefaultDocument(t, ids)
	student := mustAddStudent(t, doc, ids, "Ada")
	subject := mustAddSubject(t, doc, ids, "Math")
	date := mustDate(t, "2025-09-10")

	tests := []struct {
		name      string
		studentID string
		subjectID string
		total     int
		correct   int
		expected  error
	}{
		{name: "unknown-student", studentID: "nope", subjectID: subject.ID, total: 10, correct: 5, expected: ErrUnknownStudent},
		{name: "unknown-subject", studentID: student.ID, subjectID: "nope", total: 10, correct: 5, expected: ErrUnknownSubject},
		{name: "zero-total", studentID: student.ID, subjectID: subject.ID, total: 0, correct: 0, expected: ErrInvalidScore},
		{name: "negative-correct", studentID: student.ID, subjectID: subject.ID, total: 10, correct: -1, expected: ErrInvalidScore},
		{name: "correct-exceeds-total", studentID: student.ID, subjectID: subject.ID, total: 10, correct: 11, expected: ErrInvalidScore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := doc.AddAssignment(ids, tt.studentID, tt.subjectID, tt.total, tt.correct, date); !errors.Is(err, tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, err)
			}
		})
	}
	if len(doc.Assignments) != 0 {
		t.Fatalf("failed validations must not append assignments")
	}
}

func TestUpdateAssignmentEnforcesScoreBoundOnEdit(t *testing.T) {
	ids := &sequenceIDProvider{}
	doc := mustDefaultDocument(t, ids)
	student := mustAddStudent(t, doc, ids, "Ada")
	subject := mustAddSubject(t, doc, ids, "Math")
	assignment := mustAddAssignment(t, doc, ids, student.ID, subject.ID, 10, 8, "2025-09-10")

	// The edit path re-validates the bound just like creation does.
	if _, err := doc.UpdateAssignment(assignment.ID, 10, 11, assignment.Date); !errors.Is(err, ErrInvalidScore) {
		t.Fatalf("expected ErrInvalidScore on edit, got %v", err)
	}

	updated, err := doc.UpdateAssignment(assignment.ID, 20, 18, mustDate(t, "2025-11-02"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Total != 20 || updated.Correct != 18 {
		t.Fatalf("score not updated: %+v", updated)
	}
	if updated.TermID != doc.ActiveTerms()[1].ID {
		t.Fatalf("term should re-resolve from the new date")
	}
}

func TestRemoveStudentCascadesToAssignments(t *testing.T) {
	ids := &sequenceIDProvider{}
	doc := mustDefaultDocument(t, ids)
	ada := mustAddStudent(t, doc, ids, "Ada")
	ben := mustAddStudent(t, doc, ids, "Ben")
	math := mustAddSubject(t, doc, ids, "Math")
	mustAddAssignment(t, doc, ids, ada.ID, math.ID, 10, 9, "2025-09-10")
	mustAddAssignment(t, doc, ids, ada.ID, math.ID, 10, 7, "2025-09-12")
	kept := mustAddAssignment(t, doc, ids, ben.ID, math.ID, 10, 8, "2025-09-12")

	doc.RemoveStudent(ada.ID)

	if doc.StudentByID(ada.ID) != nil {
		t.Fatalf("student should be removed")
	}
	if len(doc.Assignments) != 1 || doc.Assignments[0].ID != kept.ID {
		t.Fatalf("expected only the other student's assignment to remain, got %d", len(doc.Assignments))
	}
	for _, assignment := range doc.Assignments {
		if doc.StudentByID(assignment.StudentID) == nil {
			t.Fatalf("orphaned assignment %s references deleted student", assignment.ID)
		}
	}
}

func TestRemoveSubjectCascadesToAssignments(t *testing.T) {
	ids := &sequenceIDProvider{}
	doc := mustDefaultDocument(t, ids)
	ada := mustAddStudent(t, doc, ids, "Ada")
	math := mustAddSubject(t, doc, ids, "Math")
	art := mustAddSubject(t, doc, ids, "Art")
	mustAddAssignment(t, doc, ids, ada.ID, math.ID, 10, 9, "2025-09-10")
	kept := mustAddAssignment(t, doc, ids, ada.ID, art.ID, 10, 8, "2025-09-12")

	doc.RemoveSubject(math.ID)

	if doc.SubjectByID(math.ID) != nil {
		t.Fatalf("subject should be removed")
	}
	if len(doc.Assignments) != 1 || doc.Assignments[0].ID != kept.ID {
		t.Fatalf("expected only the other subject's assignment to remain")
	}
}

func TestBackfillTermsIsIdempotent(t *testing.T) {
	ids := &sequenceIDProvider{}
	doc := mustDefaultDocument(t, ids)
	ada := mustAddStudent(t, doc, ids, "Ada")
	math := mustAddSubject(t, doc, ids, "Math")
	assignment := mustAddAssignment(t, doc, ids, ada.ID, math.ID, 10, 9, "2025-09-10")

	// Shift the first term so the assignment's stored reference goes stale.
	terms := cloneTerms(doc.ActiveTerms())
	terms[0].Start = mustDate(t, "2025-09-15")
	terms[0].End = mustDate(t, "2025-10-15")
	terms[1].Start = mustDate(t, "2025-10-16")
	if err := doc.ReplaceActiveTerms(terms); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.AssignmentByID(assignment.ID).TermID != terms[0].ID {
		t.Fatalf("stored term reference should not auto-track boundary edits")
	}

	changed := doc.BackfillTerms()
	if changed != 1 {
		t.Fatalf("expected 1 backfilled record, got %d", changed)
	}
	if doc.AssignmentByID(assignment.ID).TermID != "" {
		t.Fatalf("assignment date now precedes every term, reference should clear")
	}

	if changedAgain := doc.BackfillTerms(); changedAgain != 0 {
		t.Fatalf("second run should change nothing, got %d", changedAgain)
	}
}

func TestBackfillTermsSearchesAllYears(t *testing.T) {
	ids := &sequenceIDProvider{}
	doc := mustDefaultDocument(t, ids)
	ada := mustAddStudent(t, doc, ids, "Ada")
	math := mustAddSubject(t, doc, ids, "Math")
	assignment := mustAddAssignment(t, doc, ids, ada.ID, math.ID, 10, 9, "2025-09-10")
	firstYearTermID := assignment.TermID

	nextTerms, err := DefaultTerms(2026, ids)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := doc.AddSchoolYear(ids, nextTerms); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The active year no longer covers the assignment's date, but the
	// historical set still does, so backfill must leave it alone.
	if changed := doc.BackfillTerms(); changed != 0 {
		t.Fatalf("expected no changes, got %d", changed)
	}
	if doc.AssignmentByID(assignment.ID).TermID != firstYearTermID {
		t.Fatalf("assignment should keep its historical term")
	}
}

func TestCloneIsolatesMutations(t *testing.T) {
	ids := &sequenceIDProvider{}
	doc := mustDefaultDocument(t, ids)
	ada := mustAddStudent(t, doc, ids, "Ada")
	math := mustAddSubject(t, doc, ids, "Math")
	mustAddAssignment(t, doc, ids, ada.ID, math.ID, 10, 9, "2025-09-10")

	snapshot := doc.Clone()
	doc.RemoveStudent(ada.ID)
	doc.Years[0].Terms[0].Name = "Renamed"

	if len(snapshot.Students) != 1 || len(snapshot.Assignments) != 1 {
		t.Fatalf("snapshot should be unaffected by later mutations")
	}
	if snapshot.Years[0].Terms[0].Name == "Renamed" {
		t.Fatalf("snapshot terms share storage with the original")
	}
}

func TestSetSchoolName(t *testing.T) {
	ids := &sequenceIDProvider{}
	doc := mustDefaultDocument(t, ids)
	if err := doc.SetSchoolName(""); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if err := doc.SetSchoolName("Maple Grove Academy"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.SchoolName != "Maple Grove Academy" {
		t.Fatalf("unexpected school name: %q", doc.SchoolName)
	}
}
