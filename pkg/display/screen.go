// Package display abstracts the device's line-based display surface.
// Pixel-level rendering is an external collaborator; the core only hands
// over pre-formatted screens.
package display

// Screen renders the device's UI phases.
type Screen interface {
	ShowStartup()
	ShowMainMenu(deviceName string, connected bool)
	ShowClassSelection(classes []string, selected int)
	ShowAttendance(className, studentName string, roll int64, progress string)
	ShowMessage(text string)
	ShowError(text string)
}
