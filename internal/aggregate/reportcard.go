package aggregate

import (
	"github.com/MarcoPoloResearchLab/gradebook/internal/document"
	"github.com/MarcoPoloResearchLab/gradebook/internal/grading"
)

// ReportCardRow is one subject line on a printable report card.
type ReportCardRow struct {
	SubjectName string
	// PerTermPercent aligns with the active terms; nil where the term has no
	// data.
	PerTermPercent []*float64
	PerTermLetter  []*grading.Letter
	YearPercent    float64
	YearLetter     grading.Letter
	YearGPA        float64
}

// ReportCard carries everything a report-card renderer needs for one student.
// The core only assembles the numbers; layout belongs to the view layer.
type ReportCard struct {
	StudentID      string
	StudentName    string
	SchoolName     string
	YearName       string
	TermNames      []string
	Rows           []ReportCardRow
	TermTotals     []*float64
	OverallPercent *float64
	OverallLetter  *grading.Letter
	GPAAverage     *float64
	CurrentTermGPA *float64
}

// BuildReportCard assembles the report card for one student from the year
// rollup views.
func BuildReportCard(doc *document.Document, studentID string) (ReportCard, error) {
	student := doc.StudentByID(studentID)
	if student == nil {
		return ReportCard{}, document.ErrUnknownStudent
	}

	terms := doc.ActiveTerms()
	rollup := ComputeYearRollup(doc, studentID)

	card := ReportCard{
		StudentID:      studentID,
		StudentName:    student.Name,
		SchoolName:     doc.SchoolName,
		YearName:       document.SchoolYearName(terms),
		TermNames:      make([]string, len(terms)),
		Rows:           make([]ReportCardRow, 0, len(rollup.Subjects)),
		TermTotals:     rollup.TermTotals,
		OverallPercent: rollup.OverallPercent,
		GPAAverage:     rollup.GPAAverage,
		CurrentTermGPA: rollup.CurrentTermGPA,
	}
	for i, term := range terms {
		card.TermNames[i] = term.Name
	}
	if rollup.OverallPercent != nil {
		letter := grading.LetterForPercent(*rollup.OverallPercent)
		card.OverallLetter = &letter
	}

	for _, subject := range rollup.Subjects {
		row := ReportCardRow{
			SubjectName:    subject.SubjectName,
			PerTermPercent: subject.PerTermPercent,
			PerTermLetter:  make([]*grading.Letter, len(subject.PerTermPercent)),
			YearPercent:    subject.Percent,
			YearLetter:     subject.Letter,
			YearGPA:        subject.GPA,
		}
		for i, percent := range subject.PerTermPercent {
			if percent != nil {
				letter := grading.LetterForPercent(*percent)
				row.PerTermLetter[i] = &letter
			}
		}
		card.Rows = append(card.Rows, row)
	}
	return card, nil
}
