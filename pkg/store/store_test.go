package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validRoster = `[
	{"id":"c1","name":"Math","students":[{"roll":1,"name":"A"},{"roll":2,"name":"B"}]},
	{"id":"c2","name":"Physics","students":[]}
]`

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(Config{Dir: t.TempDir()})
	require.NoError(t, s.Load())
	return s
}

func readRaw(t *testing.T, s *Store, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	require.NoError(t, err)
	return data
}

func TestReplaceRoster(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ReplaceRoster([]byte(validRoster)))

	classes := s.Classes()
	require.Len(t, classes, 2)
	require.Equal(t, "c1", classes[0].ID)
	require.Equal(t, []Student{{Roll: 1, Name: "A"}, {Roll: 2, Name: "B"}}, classes[0].Students)
	require.Empty(t, classes[1].Students)

	var persisted Roster
	require.NoError(t, json.Unmarshal(readRaw(t, s, ClassesFile), &persisted))
	require.Equal(t, classes, persisted)
}

func TestReplaceRosterRejectsWholesale(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ReplaceRoster([]byte(validRoster)))

	cases := []struct {
		name string
		doc  string
	}{
		{"not a list", `{"id":"c1"}`},
		{"missing students key", `[{"id":"c9","name":"X"}]`},
		{"roll not integer", `[{"id":"c9","name":"X","students":[{"roll":1.5,"name":"A"}]}]`},
		{"roll is string", `[{"id":"c9","name":"X","students":[{"roll":"1","name":"A"}]}]`},
		{"empty student name", `[{"id":"c9","name":"X","students":[{"roll":1,"name":""}]}]`},
		{"missing id", `[{"name":"X","students":[]}]`},
		{"duplicate ids", `[{"id":"c9","name":"X","students":[]},{"id":"c9","name":"Y","students":[]}]`},
		{"one valid one invalid", `[{"id":"ok","name":"X","students":[]},{"id":"bad","name":"Y","students":[{"roll":1}]}]`},
		{"malformed json", `[{"id":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.ReplaceRoster([]byte(tc.doc))
			require.ErrorIs(t, err, ErrValidation)

			// Neither the in-memory nor the persisted roster changed.
			require.Len(t, s.Classes(), 2)
			var persisted Roster
			require.NoError(t, json.Unmarshal(readRaw(t, s, ClassesFile), &persisted))
			require.Len(t, persisted, 2)
		})
	}
}

func TestReplaceRosterEnforcesCeilings(t *testing.T) {
	s := New(Config{Dir: t.TempDir(), MaxClasses: 1, MaxStudentsPerClass: 1})

	err := s.ReplaceRoster([]byte(`[{"id":"a","name":"A","students":[]},{"id":"b","name":"B","students":[]}]`))
	require.ErrorIs(t, err, ErrValidation)

	err = s.ReplaceRoster([]byte(`[{"id":"a","name":"A","students":[{"roll":1,"name":"x"},{"roll":2,"name":"y"}]}]`))
	require.ErrorIs(t, err, ErrValidation)

	require.NoError(t, s.ReplaceRoster([]byte(`[{"id":"a","name":"A","students":[{"roll":1,"name":"x"}]}]`)))
}

func TestSaveAttendanceRecomputesCounts(t *testing.T) {
	s := newTestStore(t)
	s.now = func() int64 { return 42 }

	records := []AttendanceRecord{
		{Roll: 1, Name: "A", Present: true},
		{Roll: 2, Name: "B", Present: false},
		{Roll: 3, Name: "C", Present: true},
	}
	require.NoError(t, s.SaveAttendance("c1", records))

	result, ok := s.Attendance("c1")
	require.True(t, ok)
	require.Equal(t, "c1", result.ClassID)
	require.Equal(t, int64(42), result.Timestamp)
	require.Equal(t, 3, result.TotalStudents)
	require.Equal(t, 2, result.PresentCount)
	require.Equal(t, 1, result.AbsentCount)
	require.True(t, s.IsAttendanceTaken("c1"))

	// Replacing an entry recomputes from scratch.
	require.NoError(t, s.SaveAttendance("c1", records[:1]))
	result, _ = s.Attendance("c1")
	require.Equal(t, 1, result.TotalStudents)
	require.Equal(t, 1, result.PresentCount)
	require.Equal(t, 0, result.AbsentCount)
}

func TestSaveAttendanceRejectsBadRecord(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveAttendance("c1", []AttendanceRecord{{Roll: 1, Name: ""}})
	require.ErrorIs(t, err, ErrValidation)
	require.False(t, s.IsAttendanceTaken("c1"))
}

func TestClearAttendance(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveAttendance("c1", []AttendanceRecord{{Roll: 1, Name: "A", Present: true}}))
	require.NoError(t, s.SaveAttendance("c2", []AttendanceRecord{{Roll: 2, Name: "B", Present: false}}))

	require.NoError(t, s.ClearAttendance("c1"))
	require.False(t, s.IsAttendanceTaken("c1"))
	require.True(t, s.IsAttendanceTaken("c2"))

	require.ErrorIs(t, s.ClearAttendance("c1"), ErrNotFound)

	require.NoError(t, s.ClearAllAttendance())
	require.Empty(t, s.AllAttendance())
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(Config{Dir: dir})
	require.NoError(t, s.Load())
	require.NoError(t, s.ReplaceRoster([]byte(validRoster)))
	require.NoError(t, s.SaveAttendance("c1", []AttendanceRecord{{Roll: 1, Name: "A", Present: true}}))

	// Fresh store over the same directory sees the same data.
	s2 := New(Config{Dir: dir})
	require.NoError(t, s2.Load())
	require.Equal(t, s.Classes(), s2.Classes())
	require.Equal(t, s.AllAttendance(), s2.AllAttendance())
}

func TestLoadCorruptDocumentStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ClassesFile), []byte("{{"), 0o644))

	s := New(Config{Dir: dir})
	require.Error(t, s.Load())
	require.Empty(t, s.Classes())
}

func TestExportImportRoundTrip(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ReplaceRoster([]byte(validRoster)))
	require.NoError(t, s.SaveAttendance("c1", []AttendanceRecord{{Roll: 1, Name: "A", Present: true}}))

	doc, err := json.Marshal(s.Export())
	require.NoError(t, err)

	s2 := newTestStore(t)
	require.NoError(t, s2.Import(doc))
	require.Equal(t, s.Classes(), s2.Classes())
	require.Equal(t, s.AllAttendance(), s2.AllAttendance())
}

func TestImportRollsBackOnInvalidClasses(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ReplaceRoster([]byte(validRoster)))
	require.NoError(t, s.SaveAttendance("c1", []AttendanceRecord{{Roll: 1, Name: "A", Present: true}}))

	err := s.Import([]byte(`{"classes":[{"id":"x"}],"attendance":{}}`))
	require.ErrorIs(t, err, ErrValidation)

	// Pre-import state still observable, in memory and on disk.
	require.Len(t, s.Classes(), 2)
	require.True(t, s.IsAttendanceTaken("c1"))
	var persisted Roster
	require.NoError(t, json.Unmarshal(readRaw(t, s, ClassesFile), &persisted))
	require.Len(t, persisted, 2)
}

func TestImportRejectsMissingSections(t *testing.T) {
	s := newTestStore(t)
	require.ErrorIs(t, s.Import([]byte(`{"classes":[]}`)), ErrValidation)
	require.ErrorIs(t, s.Import([]byte(`{"attendance":{}}`)), ErrValidation)
	require.ErrorIs(t, s.Import([]byte(`not json`)), ErrValidation)
}

func TestImportRecomputesCounts(t *testing.T) {
	s := newTestStore(t)
	doc := `{
		"classes":[{"id":"c1","name":"Math","students":[]}],
		"attendance":{"c1":{"records":[{"roll":1,"name":"A","present":true}],
			"timestamp":7,"total_students":99,"present_count":99,"absent_count":99}}
	}`
	require.NoError(t, s.Import([]byte(doc)))
	result, ok := s.Attendance("c1")
	require.True(t, ok)
	require.Equal(t, 1, result.TotalStudents)
	require.Equal(t, 1, result.PresentCount)
	require.Equal(t, 0, result.AbsentCount)
	require.Equal(t, int64(7), result.Timestamp)
}

func TestStatistics(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ReplaceRoster([]byte(validRoster)))
	require.NoError(t, s.SaveAttendance("c1", []AttendanceRecord{
		{Roll: 1, Name: "A", Present: true},
		{Roll: 2, Name: "B", Present: false},
	}))

	st := s.Statistics()
	require.Equal(t, 2, st.TotalClasses)
	require.Equal(t, 2, st.TotalStudents)
	require.Equal(t, 1, st.ClassesWithAttendance)
	require.Equal(t, 2, st.TotalAttendanceRecords)
	require.Greater(t, s.FileUsage(), int64(0))
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ReplaceRoster([]byte(validRoster)))
	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".tmp")
	}
}
