package store

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Wire documents decode through pointer fields so that a missing key is
// distinguishable from a zero value; roll=0 and present=false are legal.

type studentDoc struct {
	Roll *int64  `json:"roll" validate:"required"`
	Name *string `json:"name" validate:"required,min=1"`
}

type classDoc struct {
	ID       *string       `json:"id" validate:"required,min=1"`
	Name     *string       `json:"name" validate:"required,min=1"`
	Students *[]studentDoc `json:"students" validate:"required,dive"`
}

type resultDoc struct {
	Records   *[]recordDoc `json:"records" validate:"required,dive"`
	Timestamp int64        `json:"timestamp"`
}

type recordDoc struct {
	Roll    *int64  `json:"roll" validate:"required"`
	Name    *string `json:"name" validate:"required,min=1"`
	Present *bool   `json:"present" validate:"required"`
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// parseRoster validates a raw roster document and converts it. It enforces
// the class and per-class student ceilings and id uniqueness before anything
// is persisted.
func (s *Store) parseRoster(doc []byte) (Roster, error) {
	var docs []classDoc
	if err := json.Unmarshal(doc, &docs); err != nil {
		return nil, fmt.Errorf("%w: roster document: %v", ErrValidation, err)
	}
	if s.maxClasses > 0 && len(docs) > s.maxClasses {
		return nil, fmt.Errorf("%w: %d classes exceeds limit of %d", ErrValidation, len(docs), s.maxClasses)
	}
	roster := make(Roster, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for i, d := range docs {
		if err := s.check.Struct(d); err != nil {
			return nil, fmt.Errorf("%w: class %d: %v", ErrValidation, i, err)
		}
		if seen[*d.ID] {
			return nil, fmt.Errorf("%w: duplicate class id %q", ErrValidation, *d.ID)
		}
		seen[*d.ID] = true
		students := *d.Students
		if s.maxStudents > 0 && len(students) > s.maxStudents {
			return nil, fmt.Errorf("%w: class %q: %d students exceeds limit of %d",
				ErrValidation, *d.ID, len(students), s.maxStudents)
		}
		rec := ClassRecord{ID: *d.ID, Name: *d.Name, Students: make([]Student, 0, len(students))}
		for _, sd := range students {
			rec.Students = append(rec.Students, Student{Roll: *sd.Roll, Name: *sd.Name})
		}
		roster = append(roster, rec)
	}
	return roster, nil
}

// parseAttendanceTable validates a raw attendance document and converts it,
// recomputing the derived counts for every entry.
func (s *Store) parseAttendanceTable(doc []byte) (AttendanceTable, error) {
	var docs map[string]resultDoc
	if err := json.Unmarshal(doc, &docs); err != nil {
		return nil, fmt.Errorf("%w: attendance document: %v", ErrValidation, err)
	}
	table := make(AttendanceTable, len(docs))
	for classID, d := range docs {
		if err := s.check.Struct(d); err != nil {
			return nil, fmt.Errorf("%w: attendance for %q: %v", ErrValidation, classID, err)
		}
		records := *d.Records
		result := AttendanceResult{
			ClassID:   classID,
			Records:   make([]AttendanceRecord, 0, len(records)),
			Timestamp: d.Timestamp,
		}
		for _, rd := range records {
			result.Records = append(result.Records, AttendanceRecord{
				Roll: *rd.Roll, Name: *rd.Name, Present: *rd.Present,
			})
		}
		recomputeCounts(&result)
		table[classID] = result
	}
	return table, nil
}

func validateRecords(records []AttendanceRecord) error {
	for i, rec := range records {
		if rec.Name == "" {
			return fmt.Errorf("%w: record %d: empty name", ErrValidation, i)
		}
	}
	return nil
}
