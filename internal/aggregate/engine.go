// Package aggregate computes the derived report views over a document. Every
// view is a pure function of the document and its filter parameters and is
// recomputed in full after each mutation; nothing is cached. Dataset sizes are
// hundreds of records, so a full pass is cheaper than invalidation would be.
//
// Two averaging formulas coexist on purpose. Rollups use the weighted form
// (sum of correct over sum of total) because they answer "what is the
// cumulative grade". The trend and weekday views use the unweighted mean of
// per-assignment percentages because they answer "how did scores trend".
package aggregate

import (
	"github.com/MarcoPoloResearchLab/gradebook/internal/document"
	"github.com/MarcoPoloResearchLab/gradebook/internal/grading"
)

// SubjectTermAverage returns the weighted percent over the assignments
// matching the student, subject, and stored term reference. Nil means no
// matching assignments; callers render that as a dash, never as zero.
func SubjectTermAverage(doc *document.Document, studentID, subjectID, termID string) *float64 {
	sumCorrect, sumTotal := 0, 0
	for _, assignment := range doc.Assignments {
		if assignment.StudentID != studentID || assignment.SubjectID != subjectID || assignment.TermID != termID {
			continue
		}
		sumCorrect += assignment.Correct
		sumTotal += assignment.Total
	}
	if sumTotal == 0 {
		return nil
	}
	percent := grading.WeightedPercent(sumCorrect, sumTotal)
	return &percent
}

// TermAverages returns one weighted percent per active term covering all of a
// student's subjects. Term attribution is recomputed from assignment dates
// here, not read from the stored reference, so the view stays correct after
// term boundaries are edited.
func TermAverages(doc *document.Document, studentID string) []*float64 {
	terms := doc.ActiveTerms()
	averages := make([]*float64, len(terms))
	for i, term := range terms {
		sumCorrect, sumTotal := 0, 0
		for _, assignment := range doc.Assignments {
			if assignment.StudentID != studentID {
				continue
			}
			if !term.Contains(assignment.Date) {
				continue
			}
			sumCorrect += assignment.Correct
			sumTotal += assignment.Total
		}
		if sumTotal > 0 {
			percent := grading.WeightedPercent(sumCorrect, sumTotal)
			averages[i] = &percent
		}
	}
	return averages
}

// SubjectYearSummary is one subject's full-year rollup for a student.
type SubjectYearSummary struct {
	SubjectID   string
	SubjectName string
	Percent     float64
	Letter      grading.Letter
	GPA         float64
	// PerTermPercent aligns with the active terms, nil where a term has no
	// data. Attribution is recomputed from dates.
	PerTermPercent []*float64
}

// YearRollup is the complete year summary for one student.
type YearRollup struct {
	StudentID string
	// Subjects holds only subjects with at least one assignment.
	Subjects []SubjectYearSummary
	// GPAAverage is the unweighted mean of per-subject GPA values across
	// subjects with data, rounded to two decimals. Nil without data.
	GPAAverage *float64
	// OverallPercent is the weighted percent over every assignment of the
	// student regardless of subject or term.
	OverallPercent *float64
	// CurrentTermGPA is the GPA of the most recent term holding any data.
	CurrentTermGPA *float64
	// TermTotals is the all-subject weighted percent per active term, the
	// same values TermAverages produces.
	TermTotals []*float64
}

// ComputeYearRollup builds the year summary for a student: per-subject
// weighted percent over every assignment regardless of term, converted to
// letter and GPA, with the GPA average taken as the unweighted mean across
// subjects that have data.
func ComputeYearRollup(doc *document.Document, studentID string) YearRollup {
	terms := doc.ActiveTerms()
	rollup := YearRollup{StudentID: studentID}

	gpaSum := 0.0
	overallCorrect, overallTotal := 0, 0
	for _, subject := range doc.Subjects {
		sumCorrect, sumTotal := 0, 0
		perTermCorrect := make([]int, len(terms))
		perTermTotal := make([]int, len(terms))
		for _, assignment := range doc.Assignments {
			if assignment.StudentID != studentID || assignment.SubjectID != subject.ID {
				continue
			}
			sumCorrect += assignment.Correct
			sumTotal += assignment.Total
			for i, term := range terms {
				if term.Contains(assignment.Date) {
					perTermCorrect[i] += assignment.Correct
					perTermTotal[i] += assignment.Total
					break
				}
			}
		}
		if sumTotal == 0 {
			continue
		}

		percent := grading.WeightedPercent(sumCorrect, sumTotal)
		letter := grading.LetterForPercent(percent)
		summary := SubjectYearSummary{
			SubjectID:      subject.ID,
			SubjectName:    subject.Name,
			Percent:        percent,
			Letter:         letter,
			GPA:            grading.GPAForLetter(letter),
			PerTermPercent: make([]*float64, len(terms)),
		}
		for i := range terms {
			if perTermTotal[i] > 0 {
				termPercent := grading.WeightedPercent(perTermCorrect[i], perTermTotal[i])
				summary.PerTermPercent[i] = &termPercent
			}
		}
		rollup.Subjects = append(rollup.Subjects, summary)
		gpaSum += summary.GPA
		overallCorrect += sumCorrect
		overallTotal += sumTotal
	}

	if len(rollup.Subjects) > 0 {
		gpaAverage := grading.RoundGPA(gpaSum / float64(len(rollup.Subjects)))
		rollup.GPAAverage = &gpaAverage
	}
	if overallTotal > 0 {
		overall := grading.WeightedPercent(overallCorrect, overallTotal)
		rollup.OverallPercent = &overall
	}
	rollup.TermTotals = TermAverages(doc, studentID)
	rollup.CurrentTermGPA = currentTermGPA(rollup.Subjects, len(terms))
	return rollup
}

// currentTermGPA finds the most recent term with any per-subject data and
// averages the letter-grade GPA of every subject graded in it.
func currentTermGPA(subjects []SubjectYearSummary, termCount int) *float64 {
	for i := termCount - 1; i >= 0; i-- {
		sum := 0.0
		count := 0
		for _, subject := range subjects {
			if i >= len(subject.PerTermPercent) || subject.PerTermPercent[i] == nil {
				continue
			}
			letter := grading.LetterForPercent(*subject.PerTermPercent[i])
			sum += grading.GPAForLetter(letter)
			count++
		}
		if count > 0 {
			gpa := grading.RoundGPA(sum / float64(count))
			return &gpa
		}
	}
	return nil
}
