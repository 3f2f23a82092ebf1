package store

// Student is one roster entry. Immutable once part of a saved class.
type Student struct {
	Roll int64  `json:"roll"`
	Name string `json:"name"`
}

// ClassRecord is one class with its ordered student list. ID is the
// external, caller-supplied unique key; the device never generates it.
type ClassRecord struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Students []Student `json:"students"`
}

// Roster is the full class list, replaced wholesale on every sync.
type Roster []ClassRecord

// AttendanceRecord captures one student's mark during a session.
type AttendanceRecord struct {
	Roll    int64  `json:"roll"`
	Name    string `json:"name"`
	Present bool   `json:"present"`
}

// AttendanceResult is the saved outcome for one class. The three counts are
// derived from Records on every save and never trusted from input.
type AttendanceResult struct {
	ClassID       string             `json:"class_id"`
	Records       []AttendanceRecord `json:"records"`
	Timestamp     int64              `json:"timestamp"`
	TotalStudents int                `json:"total_students"`
	PresentCount  int                `json:"present_count"`
	AbsentCount   int                `json:"absent_count"`
}

// AttendanceTable maps class id to its saved result. Presence of a key is
// the sole "attendance taken" flag.
type AttendanceTable map[string]AttendanceResult

// ExportDocument is the backup/transfer envelope.
type ExportDocument struct {
	Classes         Roster          `json:"classes"`
	Attendance      AttendanceTable `json:"attendance"`
	ExportTimestamp int64           `json:"export_timestamp"`
	Version         string          `json:"version"`
}

// ExportVersion identifies the export document layout.
const ExportVersion = "1.0"

// Statistics summarizes stored data for status reporting.
type Statistics struct {
	TotalClasses           int `json:"total_classes"`
	TotalStudents          int `json:"total_students"`
	ClassesWithAttendance  int `json:"classes_with_attendance"`
	TotalAttendanceRecords int `json:"total_attendance_records"`
}

func recomputeCounts(r *AttendanceResult) {
	r.TotalStudents = len(r.Records)
	r.PresentCount = 0
	for _, rec := range r.Records {
		if rec.Present {
			r.PresentCount++
		}
	}
	r.AbsentCount = r.TotalStudents - r.PresentCount
}
