// Package input defines the device's discrete button events. Debounced GPIO
// polling lives behind an external collaborator; sources simply post these
// events into the device loop.
package input

import "strings"

// Event is one debounced button press.
type Event int

// The device's six buttons.
const (
	Up Event = iota
	Down
	Select
	Present
	Absent
	Back
)

var names = [...]string{"UP", "DOWN", "SELECT", "PRESENT", "ABSENT", "BACK"}

// String returns the button name.
func (e Event) String() string {
	if e < 0 || int(e) >= len(names) {
		return "UNKNOWN"
	}
	return names[e]
}

// Parse resolves a button name, case-insensitively.
func Parse(name string) (Event, bool) {
	upper := strings.ToUpper(name)
	for i, n := range names {
		if n == upper {
			return Event(i), true
		}
	}
	return 0, false
}
