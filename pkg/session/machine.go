// Package session drives the attendance-taking state machine: which UI
// phase the device is in and what each button press means there.
package session

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/rollpad/rollpad.go/pkg/input"
	"github.com/rollpad/rollpad.go/pkg/store"
)

// State is the device's UI phase.
type State int

// The machine's three states. There is no terminal state; the machine runs
// for the device's operating lifetime.
const (
	MainMenu State = iota
	ClassSelection
	AttendanceTaking
)

var stateNames = [...]string{"MAIN_MENU", "CLASS_SELECTION", "ATTENDANCE_TAKING"}

func (s State) String() string { return stateNames[s] }

// Operator notices, line-broken for the device's display.
const (
	NoticeNoClasses       = "No classes found!\nSync data first."
	NoticeAttendanceTaken = "Attendance already\ntaken for this class!"
	NoticeSaveError       = "Error saving\nattendance data!"
	NoticeSaved           = "Attendance completed\nand saved!"
	NoticeCancelled       = "Attendance cancelled!\nData not saved."
)

// Session is the in-progress, unsaved capture for one class. It snapshots
// the student list at start, so a roster sync mid-session cannot shift the
// operator's position.
type Session struct {
	ClassID      string
	ClassName    string
	Students     []store.Student
	Records      []store.AttendanceRecord
	CurrentIndex int
}

// Progress formats the operator's position, e.g. "3/10".
func (s *Session) Progress() string {
	return fmt.Sprintf("%d/%d", s.CurrentIndex+1, len(s.Students))
}

// Current returns the student awaiting a mark.
func (s *Session) Current() store.Student {
	return s.Students[s.CurrentIndex]
}

// Machine turns button events into state transitions and store mutations.
// At most one session exists at a time. Not safe for concurrent use; the
// device loop is the single owner.
type Machine struct {
	store *store.Store

	state      State
	classIndex int
	session    *Session
}

// New creates a Machine in MAIN_MENU.
func New(st *store.Store) *Machine {
	return &Machine{store: st}
}

// State returns the current UI phase.
func (m *Machine) State() State { return m.state }

// SelectedIndex returns the class-picker position.
func (m *Machine) SelectedIndex() int { return m.classIndex }

// Session returns the active session, or nil.
func (m *Machine) Session() *Session { return m.session }

// HandleEvent applies one button press. The returned notice, if non-empty,
// should be shown to the operator. Events not legal in the current state
// are ignored.
func (m *Machine) HandleEvent(ev input.Event) string {
	glog.V(2).Infof("button %s in %s", ev, m.state)
	switch m.state {
	case MainMenu:
		return m.handleMainMenu(ev)
	case ClassSelection:
		return m.handleClassSelection(ev)
	case AttendanceTaking:
		return m.handleAttendance(ev)
	}
	return ""
}

func (m *Machine) handleMainMenu(ev input.Event) string {
	if ev != input.Select {
		return ""
	}
	if len(m.store.Classes()) == 0 {
		return NoticeNoClasses
	}
	m.state = ClassSelection
	m.classIndex = 0
	return ""
}

func (m *Machine) handleClassSelection(ev input.Event) string {
	classes := m.store.Classes()
	// The roster can be replaced underneath the picker by a sync.
	if len(classes) == 0 {
		m.state = MainMenu
		return NoticeNoClasses
	}
	if m.classIndex >= len(classes) {
		m.classIndex = 0
	}
	switch ev {
	case input.Up:
		m.classIndex = (m.classIndex - 1 + len(classes)) % len(classes)
	case input.Down:
		m.classIndex = (m.classIndex + 1) % len(classes)
	case input.Select:
		class := classes[m.classIndex]
		if m.store.IsAttendanceTaken(class.ID) {
			return NoticeAttendanceTaken
		}
		return m.startSession(class)
	case input.Back:
		m.state = MainMenu
	}
	return ""
}

func (m *Machine) handleAttendance(ev input.Event) string {
	switch ev {
	case input.Present, input.Absent:
		return m.mark(ev == input.Present)
	case input.Back:
		glog.Infof("attendance cancelled for class %s", m.session.ClassID)
		m.session = nil
		m.state = ClassSelection
		return NoticeCancelled
	}
	return ""
}

func (m *Machine) startSession(class store.ClassRecord) string {
	m.session = &Session{
		ClassID:   class.ID,
		ClassName: class.Name,
		Students:  class.Students,
		Records:   make([]store.AttendanceRecord, 0, len(class.Students)),
	}
	m.state = AttendanceTaking
	glog.Infof("attendance started for class %s (%d students)", class.ID, len(class.Students))
	if len(class.Students) == 0 {
		// Nothing to mark; an empty class completes on the spot.
		return m.finalize()
	}
	return ""
}

func (m *Machine) mark(present bool) string {
	s := m.session
	student := s.Current()
	s.Records = append(s.Records, store.AttendanceRecord{
		Roll:    student.Roll,
		Name:    student.Name,
		Present: present,
	})
	s.CurrentIndex++
	if s.CurrentIndex >= len(s.Students) {
		return m.finalize()
	}
	return ""
}

// finalize saves the session and returns to the class picker. On a save
// failure the session is still discarded, so no half-built session survives;
// the data is gone and the operator is told.
func (m *Machine) finalize() string {
	s := m.session
	m.session = nil
	m.state = ClassSelection
	if err := m.store.SaveAttendance(s.ClassID, s.Records); err != nil {
		glog.Errorf("save attendance for class %s: %v", s.ClassID, err)
		return NoticeSaveError
	}
	return NoticeSaved
}
