package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/golang/glog"
)

// ConsoleScreen renders screens as plain text frames on a writer. Used by
// the simulator in place of the OLED.
type ConsoleScreen struct {
	W io.Writer

	last string
}

func (s *ConsoleScreen) render(lines ...string) {
	frame := strings.Join(lines, "\n")
	if frame == s.last {
		return
	}
	s.last = frame
	fmt.Fprintf(s.W, "+----------------------+\n")
	for _, line := range lines {
		for _, part := range strings.Split(line, "\n") {
			fmt.Fprintf(s.W, "| %-20s |\n", part)
		}
	}
	fmt.Fprintf(s.W, "+----------------------+\n")
}

// ShowStartup implements Screen.
func (s *ConsoleScreen) ShowStartup() {
	s.render("RollPad", "starting...")
}

// ShowMainMenu implements Screen.
func (s *ConsoleScreen) ShowMainMenu(deviceName string, connected bool) {
	status := "BLE: advertising"
	if connected {
		status = "BLE: connected"
	}
	s.render(deviceName, status, "", "SELECT: classes")
}

// ShowClassSelection implements Screen.
func (s *ConsoleScreen) ShowClassSelection(classes []string, selected int) {
	lines := []string{"Select class:"}
	for i, name := range classes {
		marker := "  "
		if i == selected {
			marker = "> "
		}
		lines = append(lines, marker+name)
	}
	s.render(lines...)
}

// ShowAttendance implements Screen.
func (s *ConsoleScreen) ShowAttendance(className, studentName string, roll int64, progress string) {
	s.render(className, fmt.Sprintf("[%s] %d %s", progress, roll, studentName), "", "GREEN=here RED=absent")
}

// ShowMessage implements Screen.
func (s *ConsoleScreen) ShowMessage(text string) {
	s.render(text)
}

// ShowError implements Screen.
func (s *ConsoleScreen) ShowError(text string) {
	s.render("ERROR", text)
}

// LogScreen routes screens to the process log. Used headless, when the
// daemon runs without a display attached.
type LogScreen struct{}

// ShowStartup implements Screen.
func (LogScreen) ShowStartup() { glog.Info("screen: starting") }

// ShowMainMenu implements Screen.
func (LogScreen) ShowMainMenu(deviceName string, connected bool) {
	glog.V(2).Infof("screen: main menu (%s, connected=%v)", deviceName, connected)
}

// ShowClassSelection implements Screen.
func (LogScreen) ShowClassSelection(classes []string, selected int) {
	if len(classes) > 0 {
		glog.V(2).Infof("screen: class selection %d/%d %q", selected+1, len(classes), classes[selected])
	}
}

// ShowAttendance implements Screen.
func (LogScreen) ShowAttendance(className, studentName string, roll int64, progress string) {
	glog.V(2).Infof("screen: attendance %s [%s] %d %s", className, progress, roll, studentName)
}

// ShowMessage implements Screen.
func (LogScreen) ShowMessage(text string) { glog.Infof("screen: %s", text) }

// ShowError implements Screen.
func (LogScreen) ShowError(text string) { glog.Errorf("screen: %s", text) }
