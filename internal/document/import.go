package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidImport indicates a payload that is not a usable document export.
var ErrInvalidImport = errors.New("document: invalid import payload")

// ParseImport validates a document-shaped JSON payload and returns the parsed
// document. The students, subjects, and assignments collections must each be
// present as arrays; a missing or malformed term configuration is regenerated
// from defaults rather than rejected. On any error the caller's current
// document is left untouched because nothing is mutated here.
func ParseImport(payload []byte, baseYear int, ids IDProvider) (*Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("%w: not a JSON object: %v", ErrInvalidImport, err)
	}

	for _, required := range []string{"students", "subjects", "assignments"} {
		raw, ok := fields[required]
		if !ok {
			return nil, fmt.Errorf("%w: missing %q collection", ErrInvalidImport, required)
		}
		if !looksLikeArray(raw) {
			return nil, fmt.Errorf("%w: %q is not an array", ErrInvalidImport, required)
		}
	}

	doc := &Document{}
	if err := json.Unmarshal(fields["students"], &doc.Students); err != nil {
		return nil, fmt.Errorf("%w: students: %v", ErrInvalidImport, err)
	}
	if err := json.Unmarshal(fields["subjects"], &doc.Subjects); err != nil {
		return nil, fmt.Errorf("%w: subjects: %v", ErrInvalidImport, err)
	}
	if err := json.Unmarshal(fields["assignments"], &doc.Assignments); err != nil {
		return nil, fmt.Errorf("%w: assignments: %v", ErrInvalidImport, err)
	}

	// Term configuration is repaired, not rejected: decode leniently and let
	// Normalize regenerate anything unusable.
	if raw, ok := fields["terms"]; ok {
		var terms []Term
		if err := json.Unmarshal(raw, &terms); err == nil {
			doc.Terms = terms
		}
	}
	if raw, ok := fields["years"]; ok {
		var years []SchoolYear
		if err := json.Unmarshal(raw, &years); err == nil {
			doc.Years = years
		}
	}
	if raw, ok := fields["currentYearId"]; ok {
		var current string
		if err := json.Unmarshal(raw, &current); err == nil {
			doc.CurrentYearID = current
		}
	}
	if raw, ok := fields["schoolName"]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err == nil {
			doc.SchoolName = name
		}
	}
	if raw, ok := fields["assignmentsPageSize"]; ok {
		var size int
		if err := json.Unmarshal(raw, &size); err == nil {
			doc.AssignmentsPageSize = size
		}
	}
	if raw, ok := fields["_updatedAt"]; ok {
		var updatedAt int64
		if err := json.Unmarshal(raw, &updatedAt); err == nil {
			doc.UpdatedAt = updatedAt
		}
	}

	if _, err := doc.Normalize(baseYear, ids); err != nil {
		return nil, err
	}
	return doc, nil
}

func looksLikeArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
