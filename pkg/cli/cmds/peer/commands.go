// Package peer exposes what a connected central can do as shell commands.
package peer

import (
	"fmt"
	"os"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/rollpad/rollpad.go/pkg/cli/sh"
	"github.com/rollpad/rollpad.go/pkg/link"
)

var (
	// SyncCmd writes a roster file to the roster_sync channel.
	SyncCmd = ishell.Cmd{
		Name: "sync",
		Help: "FILE",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("roster file expected"))
				return
			}
			data, err := os.ReadFile(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			sh.ShellFrom(c).WritePeer(link.ChanRosterSync, data)
		}),
	}

	// SendCmd writes a raw message to the command channel.
	SendCmd = ishell.Cmd{
		Name: "send",
		Help: "JSON",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("message expected"))
				return
			}
			msg := strings.Join(c.Args, " ")
			sh.ShellFrom(c).WritePeer(link.ChanCommand, []byte(msg))
		}),
	}

	// StatusCmd issues the get_status command.
	StatusCmd = ishell.Cmd{
		Name: "status",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.ShellFrom(c).WritePeer(link.ChanCommand, []byte(`{"command":"get_status"}`))
		}),
	}

	// ExportCmd issues the export_data command.
	ExportCmd = ishell.Cmd{
		Name: "export",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.ShellFrom(c).WritePeer(link.ChanCommand, []byte(`{"command":"export_data"}`))
		}),
	}

	// AttendanceCmd reads the attendance table value.
	AttendanceCmd = ishell.Cmd{
		Name: "attendance",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			value := sh.ShellFrom(c).Link.PeerRead(link.ChanAttendanceData)
			if value == nil {
				c.Println("(no value)")
				return
			}
			c.Println(string(value))
		}),
	}

	// ReadCmd reads the current value of a readable channel.
	ReadCmd = ishell.Cmd{
		Name: "read",
		Help: "storage_info|attendance_data|roster_sync",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("channel expected"))
				return
			}
			value := sh.ShellFrom(c).Link.PeerRead(link.Channel(c.Args[0]))
			if value == nil {
				c.Println("(no value)")
				return
			}
			c.Println(string(value))
		}),
	}
)

func init() {
	sh.AddCmds(
		&SyncCmd,
		&SendCmd,
		&StatusCmd,
		&AttendanceCmd,
		&ExportCmd,
		&ReadCmd,
	)
}
