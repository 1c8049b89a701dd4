package document

import "fmt"

// AddStudent appends a new student and returns it.
func (d *Document) AddStudent(ids IDProvider, name string) (Student, error) {
	trimmed, err := validateName(name)
	if err != nil {
		return Student{}, err
	}
	id, err := ids.NewID()
	if err != nil {
		return Student{}, err
	}
	student := Student{ID: id, Name: trimmed}
	d.Students = append(d.Students, student)
	return student, nil
}

// AddSubject appends a new subject and returns it.
func (d *Document) AddSubject(ids IDProvider, name string) (Subject, error) {
	trimmed, err := validateName(name)
	if err != nil {
		return Subject{}, err
	}
	id, err := ids.NewID()
	if err != nil {
		return Subject{}, err
	}
	subject := Subject{ID: id, Name: trimmed}
	d.Subjects = append(d.Subjects, subject)
	return subject, nil
}

// RemoveStudent deletes the student and cascades to every assignment that
// references it. Removing an unknown id is a no-op.
func (d *Document) RemoveStudent(id string) {
	d.Students = filterStudents(d.Students, id)
	kept := d.Assignments[:0]
	for _, assignment := range d.Assignments {
		if assignment.StudentID != id {
			kept = append(kept, assignment)
		}
	}
	d.Assignments = kept
}

// RemoveSubject deletes the subject and cascades to every assignment that
// references it.
func (d *Document) RemoveSubject(id string) {
	kept := d.Subjects[:0]
	for _, subject := range d.Subjects {
		if subject.ID != id {
			kept = append(kept, subject)
		}
	}
	d.Subjects = kept
	keptAssignments := d.Assignments[:0]
	for _, assignment := range d.Assignments {
		if assignment.SubjectID != id {
			keptAssignments = append(keptAssignments, assignment)
		}
	}
	d.Assignments = keptAssignments
}

func filterStudents(students []Student, id string) []Student {
	kept := students[:0]
	for _, student := range students {
		if student.ID != id {
			kept = append(kept, student)
		}
	}
	return kept
}

// AddAssignment records a graded piece of work. The term reference is resolved
// once from the active terms; it is not revisited when term boundaries move.
func (d *Document) AddAssignment(ids IDProvider, studentID, subjectID string, total, correct int, date CalendarDate) (Assignment, error) {
	if d.StudentByID(studentID) == nil {
		return Assignment{}, fmt.Errorf("%w: %s", ErrUnknownStudent, studentID)
	}
	if d.SubjectByID(subjectID) == nil {
		return Assignment{}, fmt.Errorf("%w: %s", ErrUnknownSubject, subjectID)
	}
	if err := validateScore(correct, total); err != nil {
		return Assignment{}, err
	}
	id, err := ids.NewID()
	if err != nil {
		return Assignment{}, err
	}
	assignment := Assignment{
		ID:        id,
		StudentID: studentID,
		SubjectID: subjectID,
		Total:     total,
		Correct:   correct,
		Date:      date,
		TermID:    TermForDate(d.ActiveTerms(), date),
	}
	d.Assignments = append(d.Assignments, assignment)
	return assignment, nil
}

// UpdateAssignment rewrites the date and score of an existing assignment,
// re-resolving the term from the new date. The correct <= total bound holds on
// edits exactly as it does on creation.
func (d *Document) UpdateAssignment(id string, total, correct int, date CalendarDate) (Assignment, error) {
	assignment := d.AssignmentByID(id)
	if assignment == nil {
		return Assignment{}, fmt.Errorf("%w: %s", ErrUnknownAssignment, id)
	}
	if err := validateScore(correct, total); err != nil {
		return Assignment{}, err
	}
	assignment.Total = total
	assignment.Correct = correct
	assignment.Date = date
	assignment.TermID = TermForDate(d.ActiveTerms(), date)
	return *assignment, nil
}

// RemoveAssignment deletes a single assignment. Unknown ids are a no-op.
func (d *Document) RemoveAssignment(id string) {
	kept := d.Assignments[:0]
	for _, assignment := range d.Assignments {
		if assignment.ID != id {
			kept = append(kept, assignment)
		}
	}
	d.Assignments = kept
}

// ClearAssignments drops every assignment while keeping students, subjects,
// and term configuration.
func (d *Document) ClearAssignments() {
	d.Assignments = d.Assignments[:0]
}

// SetSchoolName renames the school.
func (d *Document) SetSchoolName(name string) error {
	trimmed, err := validateName(name)
	if err != nil {
		return err
	}
	d.SchoolName = trimmed
	return nil
}

// AddSchoolYear appends a new school year built from the provided terms and
// makes it current.
func (d *Document) AddSchoolYear(ids IDProvider, terms []Term) (SchoolYear, error) {
	if len(terms) != TermsPerYear {
		return SchoolYear{}, fmt.Errorf("%w: %d terms, need %d", ErrInvalidTermRange, len(terms), TermsPerYear)
	}
	id, err := ids.NewID()
	if err != nil {
		return SchoolYear{}, err
	}
	year := SchoolYear{ID: id, Name: SchoolYearName(terms), Terms: cloneTerms(terms)}
	d.Years = append(d.Years, year)
	d.CurrentYearID = id
	return year, nil
}

// SetCurrentYear switches the active school year.
func (d *Document) SetCurrentYear(yearID string) error {
	for _, year := range d.Years {
		if year.ID == yearID {
			d.CurrentYearID = yearID
			return nil
		}
	}
	return fmt.Errorf("document: unknown school year %s", yearID)
}

// ReplaceActiveTerms swaps the current year's terms (or the legacy flat list
// when no year is active) for an edited set.
func (d *Document) ReplaceActiveTerms(terms []Term) error {
	if len(terms) != TermsPerYear {
		return fmt.Errorf("%w: %d terms, need %d", ErrInvalidTermRange, len(terms), TermsPerYear)
	}
	if year := d.CurrentYear(); year != nil {
		year.Terms = cloneTerms(terms)
		year.Name = SchoolYearName(terms)
		return nil
	}
	d.Terms = cloneTerms(terms)
	return nil
}

// BackfillTerms re-resolves every assignment's term reference against the full
// historical term set and reports how many records changed. Assignments do not
// track term boundary edits on their own; this is the escape hatch. Running it
// twice with no intervening edits changes nothing the second time.
func (d *Document) BackfillTerms() int {
	terms := d.AllTerms()
	changed := 0
	for i := range d.Assignments {
		resolved := TermForDate(terms, d.Assignments[i].Date)
		if d.Assignments[i].TermID != resolved {
			d.Assignments[i].TermID = resolved
			changed++
		}
	}
	return changed
}
