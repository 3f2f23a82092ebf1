// Package store durably holds the device's roster and attendance documents.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang/glog"
)

// Document file names inside the data directory.
const (
	ClassesFile    = "classes.json"
	AttendanceFile = "attendance.json"
)

// Default roster ceilings, mirroring the device's memory budget.
const (
	DefaultMaxClasses          = 20
	DefaultMaxStudentsPerClass = 100
)

// Config configures a Store.
type Config struct {
	// Dir is the directory holding both documents.
	Dir string
	// MaxClasses caps the roster size. Zero means DefaultMaxClasses;
	// negative disables the ceiling.
	MaxClasses int
	// MaxStudentsPerClass caps each class. Zero means
	// DefaultMaxStudentsPerClass; negative disables the ceiling.
	MaxStudentsPerClass int
}

// Store owns the roster and attendance table. Operations are synchronous
// and not safe for concurrent use; the device loop is the single owner.
//
// Every mutating call validates first, persists the whole document via a
// temp-file-and-rename replace, and only then updates the in-memory copy, so
// neither copy is ever observed half-written.
type Store struct {
	dir         string
	maxClasses  int
	maxStudents int

	check *validator.Validate
	now   func() int64

	roster     Roster
	attendance AttendanceTable
}

// New creates a Store. Call Load to read existing documents.
func New(cfg Config) *Store {
	s := &Store{
		dir:         cfg.Dir,
		maxClasses:  cfg.MaxClasses,
		maxStudents: cfg.MaxStudentsPerClass,
		check:       newValidator(),
		now:         func() int64 { return time.Now().UnixMilli() },
		attendance:  make(AttendanceTable),
	}
	if s.maxClasses == 0 {
		s.maxClasses = DefaultMaxClasses
	}
	if s.maxStudents == 0 {
		s.maxStudents = DefaultMaxStudentsPerClass
	}
	return s
}

func (s *Store) classesPath() string    { return filepath.Join(s.dir, ClassesFile) }
func (s *Store) attendancePath() string { return filepath.Join(s.dir, AttendanceFile) }

// Load reads both documents from disk. Missing files are not errors; the
// store starts empty. A corrupt document is reported, and its in-memory copy
// stays empty so the device remains usable.
func (s *Store) Load() error {
	var firstErr error
	if data, err := readDocument(s.classesPath()); err != nil {
		firstErr = err
	} else if data != nil {
		var roster Roster
		if err := json.Unmarshal(data, &roster); err != nil {
			firstErr = fmt.Errorf("%w: %s: %v", ErrStorage, ClassesFile, err)
		} else {
			s.roster = roster
		}
	}
	if data, err := readDocument(s.attendancePath()); err != nil {
		if firstErr == nil {
			firstErr = err
		}
	} else if data != nil {
		var table AttendanceTable
		if err := json.Unmarshal(data, &table); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %s: %v", ErrStorage, AttendanceFile, err)
			}
		} else if table != nil {
			s.attendance = table
		}
	}
	glog.Infof("store loaded: %d classes, attendance for %d", len(s.roster), len(s.attendance))
	return firstErr
}

// ReplaceRoster validates a raw roster document and, on success, atomically
// replaces both the persisted and the in-memory roster. On any failure
// neither is changed.
func (s *Store) ReplaceRoster(doc []byte) error {
	roster, err := s.parseRoster(doc)
	if err != nil {
		return err
	}
	if err := writeDocument(s.classesPath(), roster); err != nil {
		return err
	}
	s.roster = roster
	glog.Infof("roster replaced: %d classes", len(roster))
	return nil
}

// SaveAttendance validates the records, recomputes the derived counts and
// replaces the table entry for classID, persisting the whole table.
func (s *Store) SaveAttendance(classID string, records []AttendanceRecord) error {
	if err := validateRecords(records); err != nil {
		return err
	}
	result := AttendanceResult{
		ClassID:   classID,
		Records:   append([]AttendanceRecord(nil), records...),
		Timestamp: s.now(),
	}
	recomputeCounts(&result)

	next := s.cloneAttendance()
	next[classID] = result
	if err := writeDocument(s.attendancePath(), next); err != nil {
		return err
	}
	s.attendance = next
	glog.Infof("attendance saved for class %s: %d records", classID, len(records))
	return nil
}

// ClearAttendance removes one class's entry and persists the table.
func (s *Store) ClearAttendance(classID string) error {
	if _, ok := s.attendance[classID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, classID)
	}
	next := s.cloneAttendance()
	delete(next, classID)
	if err := writeDocument(s.attendancePath(), next); err != nil {
		return err
	}
	s.attendance = next
	glog.Infof("attendance cleared for class %s", classID)
	return nil
}

// ClearAllAttendance empties the table and persists it.
func (s *Store) ClearAllAttendance() error {
	next := make(AttendanceTable)
	if err := writeDocument(s.attendancePath(), next); err != nil {
		return err
	}
	s.attendance = next
	glog.Info("all attendance cleared")
	return nil
}

// Export packages both documents for backup or transfer.
func (s *Store) Export() ExportDocument {
	return ExportDocument{
		Classes:         append(make(Roster, 0, len(s.roster)), s.roster...),
		Attendance:      s.cloneAttendance(),
		ExportTimestamp: s.now(),
		Version:         ExportVersion,
	}
}

type importDoc struct {
	Classes    json.RawMessage `json:"classes" validate:"required"`
	Attendance json.RawMessage `json:"attendance" validate:"required"`
}

// Import replaces both documents from a backup envelope as one transaction:
// both parts are validated before anything is written, and a failure while
// persisting restores the previous state of memory and disk.
func (s *Store) Import(doc []byte) error {
	var d importDoc
	if err := json.Unmarshal(doc, &d); err != nil {
		return fmt.Errorf("%w: import document: %v", ErrValidation, err)
	}
	if err := s.check.Struct(d); err != nil {
		return fmt.Errorf("%w: import document: %v", ErrValidation, err)
	}
	roster, err := s.parseRoster(d.Classes)
	if err != nil {
		return err
	}
	table, err := s.parseAttendanceTable(d.Attendance)
	if err != nil {
		return err
	}

	prevRoster, prevTable := s.roster, s.attendance
	if err := writeDocument(s.classesPath(), roster); err != nil {
		return err
	}
	if err := writeDocument(s.attendancePath(), table); err != nil {
		// Roll the roster document back so disk stays consistent.
		if rerr := writeDocument(s.classesPath(), prevRoster); rerr != nil {
			glog.Errorf("import rollback failed, persisted roster diverges: %v", rerr)
		}
		s.roster, s.attendance = prevRoster, prevTable
		return err
	}
	s.roster, s.attendance = roster, table
	glog.Infof("import applied: %d classes, attendance for %d", len(roster), len(table))
	return nil
}

// Classes returns the roster. Callers must not mutate it.
func (s *Store) Classes() Roster {
	return s.roster
}

// ClassByID finds a class by its external key.
func (s *Store) ClassByID(id string) (ClassRecord, bool) {
	for _, c := range s.roster {
		if c.ID == id {
			return c, true
		}
	}
	return ClassRecord{}, false
}

// IsAttendanceTaken reports whether the class has a saved result.
func (s *Store) IsAttendanceTaken(classID string) bool {
	_, ok := s.attendance[classID]
	return ok
}

// Attendance returns the saved result for one class.
func (s *Store) Attendance(classID string) (AttendanceResult, bool) {
	r, ok := s.attendance[classID]
	return r, ok
}

// AllAttendance returns a copy of the full table.
func (s *Store) AllAttendance() AttendanceTable {
	return s.cloneAttendance()
}

// Statistics summarizes stored data.
func (s *Store) Statistics() Statistics {
	st := Statistics{
		TotalClasses:          len(s.roster),
		ClassesWithAttendance: len(s.attendance),
	}
	for _, c := range s.roster {
		st.TotalStudents += len(c.Students)
	}
	for _, r := range s.attendance {
		st.TotalAttendanceRecords += len(r.Records)
	}
	return st
}

// FileUsage reports the on-disk size of both documents in bytes.
func (s *Store) FileUsage() int64 {
	var total int64
	for _, path := range []string{s.classesPath(), s.attendancePath()} {
		if fi, err := os.Stat(path); err == nil {
			total += fi.Size()
		}
	}
	return total
}

func (s *Store) cloneAttendance() AttendanceTable {
	next := make(AttendanceTable, len(s.attendance))
	for k, v := range s.attendance {
		next[k] = v
	}
	return next
}

func readDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorage, filepath.Base(path), err)
	}
	return data, nil
}

// writeDocument replaces the whole document durably: marshal, write to a
// temp file, rename over the target. A crash mid-write leaves the previous
// document intact.
func writeDocument(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStorage, filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStorage, filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: replace %s: %v", ErrStorage, filepath.Base(path), err)
	}
	return nil
}
