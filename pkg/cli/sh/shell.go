package sh

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/abiosoft/ishell"

	"github.com/rollpad/rollpad.go/pkg/device"
	"github.com/rollpad/rollpad.go/pkg/display"
	fx "github.com/rollpad/rollpad.go/pkg/framework"
	"github.com/rollpad/rollpad.go/pkg/link"
	"github.com/rollpad/rollpad.go/pkg/link/loopback"
	"github.com/rollpad/rollpad.go/pkg/store"
	"github.com/rollpad/rollpad.go/pkg/wire"
)

// Shell provides an ishell backed interactive shell around a device running
// in-process over a loopback link. Shell commands act either as the buttons
// or as the connected peer.
type Shell struct {
	Interactive bool
	PeerName    string

	Shell  *ishell.Shell
	Config *device.Config
	Loop   *fx.Loop
	Link   *loopback.Link
	Core   *device.Core

	cancel func()
}

const (
	shellKey           = "$shell"
	disconnectedPrompt = "[offline] > "
)

var (
	// flags

	evalOnly bool

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell hosting a freshly loaded device.
func New(conf *device.Config) *Shell {
	st := store.New(conf.StoreConfig())
	if err := st.Load(); err != nil {
		log.Printf("load stored data: %v, starting empty", err)
	}

	s := &Shell{
		Interactive: !evalOnly,
		PeerName:    "sim-central",

		Shell:  ishell.New(),
		Config: conf,
		Loop:   fx.NewLoop(),
	}
	s.Link = loopback.New(s.Loop)
	s.Core = device.NewCore(conf, st, &display.ConsoleScreen{W: os.Stdout}, s.Link)
	s.Loop.Add(s.Core)

	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(disconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a peer connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if !ShellFrom(c).Link.Connected() {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// Press posts a button event to the device.
func (s *Shell) Press(ev fx.Event) {
	s.Loop.Post(ev)
}

// WritePeer delivers a payload to the device the way a central would,
// fragmented into transport sized chunks.
func (s *Shell) WritePeer(ch link.Channel, payload []byte) {
	for _, chunk := range wire.Fragment(payload, s.Config.ChunkSize) {
		s.Link.PeerWrite(ch, chunk)
	}
}

// Connect simulates a central connecting.
func (s *Shell) Connect() {
	s.Link.PeerConnect(s.PeerName)
	s.Shell.SetPrompt(fmt.Sprintf("[%s] > ", s.PeerName))
}

// Disconnect simulates the central going away.
func (s *Shell) Disconnect() {
	s.Link.PeerDisconnect()
	s.Shell.SetPrompt(disconnectedPrompt)
}

// Run starts the device loop and the notification pump, then runs the shell.
func (s *Shell) Run(args ...string) {
	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	defer s.cancel()
	go s.Loop.Run(ctx)
	go s.pump(ctx)

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// pump prints everything the device notifies, reassembled per channel.
func (s *Shell) pump(ctx context.Context) {
	asm := wire.NewAssembler()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.Link.Outbound():
			msgs, err := asm.Feed(n.Channel, n.Data)
			if err != nil {
				continue
			}
			for _, msg := range msgs {
				s.Shell.Printf("<< %s: %s\n", n.Channel, msg)
			}
		}
	}
}

var (
	// ConnectCmd simulates a central connecting to the device.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[NAME]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				s.PeerName = c.Args[0]
			}
			s.Connect()
		},
	}

	// DisconnectCmd simulates the central going away.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(device.NewConfig()).Run(flag.Args()...)
}
