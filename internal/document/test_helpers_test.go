package document

import (
	"fmt"
	"testing"
)

type sequenceIDProvider struct {
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("id-%d", p.next), nil
}

func mustDate(t *testing.T, value string) CalendarDate {
	t.Helper()
	date, err := ParseCalendarDate(value)
	if err != nil {
		t.Fatalf("unexpected date error for %q: %v", value, err)
	}
	return date
}

func mustDefaultDocument(t *testing.T, ids IDProvider) *Document {
	t.Helper()
	doc, err := NewDefaultDocument(2025, ids)
	if err != nil {
		t.Fatalf("unexpected default document error: %v", err)
	}
	return doc
}

func mustAddStudent(t *testing.T, doc *Document, ids IDProvider, name string) Student {
	t.Helper()
	student, err := doc.AddStudent(ids, name)
	if err != nil {
		t.Fatalf("unexpected add student error: %v", err)
	}
	return student
}

func mustAddSubject(t *testing.T, doc *Document, ids IDProvider, name string) Subject {
	t.Helper()
	subject, err := doc.AddSubject(ids, name)
	if err != nil {
		t.Fatalf("unexpected add subject error: %v", err)
	}
	return subject
}

func mustAddAssignment(t *testing.T, doc *Document, ids IDProvider, studentID, subjectID string, total, correct int, date string) Assignment {
	t.Helper()
	assignment, err := doc.AddAssignment(ids, studentID, subjectID, total, correct, mustDate(t, date))
	if err != nil {
		t.Fatalf("unexpected add assignment error: %v", err)
	}
	return assignment
}
