// Package buttons exposes the device buttons as shell commands.
package buttons

import (
	"github.com/abiosoft/ishell"

	"github.com/rollpad/rollpad.go/pkg/cli/sh"
	"github.com/rollpad/rollpad.go/pkg/input"
)

func buttonCmd(name string, aliases []string, ev input.Event) *ishell.Cmd {
	return &ishell.Cmd{
		Name:    name,
		Aliases: aliases,
		Func: func(c *ishell.Context) {
			sh.ShellFrom(c).Press(ev)
		},
	}
}

func init() {
	sh.AddCmds(
		buttonCmd("up", []string{"u"}, input.Up),
		buttonCmd("down", []string{"j"}, input.Down),
		buttonCmd("select", []string{"s"}, input.Select),
		buttonCmd("present", []string{"p"}, input.Present),
		buttonCmd("absent", []string{"a"}, input.Absent),
		buttonCmd("back", []string{"b"}, input.Back),
	)
}
