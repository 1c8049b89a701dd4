// Package export renders the document for sharing: a JSON snapshot that
// ImportDocument accepts back unchanged, and a CSV grade log for spreadsheet
// tools.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/MarcoPoloResearchLab/gradebook/internal/document"
	"github.com/MarcoPoloResearchLab/gradebook/internal/grading"
)

const (
	// DefaultJSONFileName is the suggested name for JSON exports.
	DefaultJSONFileName = "gradebook-export.json"
	// DefaultCSVFileName is the suggested name for CSV exports.
	DefaultCSVFileName = "gradebook-grades.csv"
)

var csvHeader = []string{"Date", "Student", "Subject", "Result", "Percent", "Grade", "Term"}

// JSON renders the document as an indented export payload.
func JSON(doc *document.Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// CSV renders the grade log for the active school year, one row per
// assignment in date order. Only assignments dated inside the year's span,
// first term start through last term end inclusive, are exported.
func CSV(doc *document.Document) ([]byte, error) {
	terms := doc.ActiveTerms()
	termNames := make(map[string]string, len(terms))
	for _, term := range terms {
		termNames[term.ID] = term.Name
	}

	var rows []document.Assignment
	for _, assignment := range doc.Assignments {
		if len(terms) > 0 && !assignment.Date.Within(terms[0].Start, terms[len(terms)-1].End) {
			continue
		}
		rows = append(rows, assignment)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.Before(rows[j].Date)
	})

	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)
	if err := writer.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, assignment := range rows {
		studentName := ""
		if student := doc.StudentByID(assignment.StudentID); student != nil {
			studentName = student.Name
		}
		subjectName := ""
		if subject := doc.SubjectByID(assignment.SubjectID); subject != nil {
			subjectName = subject.Name
		}
		percent := grading.Percent(assignment.Correct, assignment.Total)
		termName := termNames[document.TermForDate(terms, assignment.Date)]

		record := []string{
			assignment.Date.String(),
			studentName,
			subjectName,
			fmt.Sprintf("%d/%d", assignment.Correct, assignment.Total),
			fmt.Sprintf("%.1f", percent),
			string(grading.LetterForPercent(percent)),
			termName,
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
