// Package device wires the frame codec, dispatcher, store and session
// machine into one loop-owned core.
package device

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/rollpad/rollpad.go/pkg/display"
	"github.com/rollpad/rollpad.go/pkg/framework"
	"github.com/rollpad/rollpad.go/pkg/input"
	"github.com/rollpad/rollpad.go/pkg/link"
	"github.com/rollpad/rollpad.go/pkg/session"
	"github.com/rollpad/rollpad.go/pkg/store"
	"github.com/rollpad/rollpad.go/pkg/wire"
)

// Core owns all mutable device state. It only ever runs on the loop
// goroutine: transports and button sources post events, the core consumes
// them, so the reassembly buffers, store and session need no locks.
type Core struct {
	cfg     *Config
	store   *store.Store
	machine *session.Machine
	disp    *Dispatcher
	asm     *wire.Assembler
	screen  display.Screen
	link    link.Link

	connected   bool
	notice      string
	noticeUntil time.Time

	// sleep is swappable for tests.
	sleep func(time.Duration)
}

// NewCore creates the core around a loaded store.
func NewCore(cfg *Config, st *store.Store, screen display.Screen, lnk link.Link) *Core {
	asm := wire.NewAssembler()
	asm.MaxMessageSize = cfg.MaxMessageSize
	screen.ShowStartup()
	return &Core{
		cfg:     cfg,
		store:   st,
		machine: session.New(st),
		disp:    NewDispatcher(cfg, st),
		asm:     asm,
		screen:  screen,
		link:    lnk,
		sleep:   time.Sleep,
	}
}

// Machine exposes the session state machine, for inspection tooling.
func (c *Core) Machine() *session.Machine { return c.machine }

// AddToLoop implements framework.LoopAdder.
func (c *Core) AddToLoop(l *framework.Loop) {
	l.AddHandler(c)
	l.AddTicker(c, &MemoryGuard{})
	if c.link != nil {
		l.AddRunnable(framework.NamedRun("link", c.link))
	}
}

// HandleEvent implements framework.Handler.
func (c *Core) HandleEvent(ctx context.Context, ev framework.Event) {
	switch ev := ev.(type) {
	case input.Event:
		c.handleButton(ev)
	case link.Connected:
		glog.Infof("peer connected: %s", ev.Peer)
		c.connected = true
		// Message boundaries do not survive a connection cycle.
		c.asm.Reset()
		c.publish(false)
	case link.Disconnected:
		glog.Infof("peer disconnected: %s", ev.Peer)
		c.connected = false
		c.asm.Reset()
	case link.Chunk:
		c.handleChunk(ev)
	}
}

func (c *Core) handleButton(ev input.Event) {
	before := c.store.Statistics().ClassesWithAttendance
	if notice := c.machine.HandleEvent(ev); notice != "" {
		c.showNotice(notice)
	}
	if c.store.Statistics().ClassesWithAttendance != before {
		// A session completed; refresh what the peer can read.
		c.publish(true)
	}
}

func (c *Core) handleChunk(ev link.Chunk) {
	msgs, err := c.asm.Feed(ev.Channel, ev.Data)
	if err != nil {
		// Already logged by the codec; the channel restarts clean.
		return
	}
	handled := false
	for _, msg := range msgs {
		if msg == "" {
			continue
		}
		glog.V(2).Infof("channel %s: message %d bytes", ev.Channel, len(msg))
		resp := c.disp.Dispatch(ev.Channel, msg)
		if resp != nil {
			c.send(ev.Channel, resp)
		}
		handled = true
	}
	if handled {
		c.publish(false)
	}
}

// send fragments a response and notifies it chunk by chunk, paced so the
// peer's ingestion keeps up. Delivery is best effort; there is no
// acknowledgement and no retransmit.
func (c *Core) send(ch link.Channel, payload []byte) {
	for i, chunk := range wire.Fragment(payload, c.cfg.ChunkSize) {
		if i > 0 && c.cfg.ChunkDelay > 0 {
			c.sleep(c.cfg.ChunkDelay)
		}
		if err := c.link.Notify(ch, chunk); err != nil {
			glog.Warningf("notify %s: %v", ch, err)
			return
		}
	}
}

// publish refreshes the read-side channel values. With notify set, the
// attendance table is also pushed to a connected peer.
func (c *Core) publish(notify bool) {
	if c.link == nil {
		return
	}
	storage := marshal(ReadStorageInfo(c.cfg.DataDir))
	if err := c.link.SetValue(link.ChanStorageInfo, storage); err != nil {
		glog.Warningf("set %s value: %v", link.ChanStorageInfo, err)
	}
	table := marshal(c.store.AllAttendance())
	if err := c.link.SetValue(link.ChanAttendanceData, table); err != nil {
		glog.Warningf("set %s value: %v", link.ChanAttendanceData, err)
	}
	if notify && c.connected {
		c.send(link.ChanAttendanceData, table)
	}
}

func (c *Core) showNotice(text string) {
	c.notice = text
	c.noticeUntil = time.Now().Add(c.cfg.NoticeDuration)
	c.screen.ShowMessage(text)
}

// Tick implements framework.Ticker: it redraws the screen for the current
// phase once any notice has run its course.
func (c *Core) Tick(ctx context.Context, now time.Time) {
	if c.notice != "" {
		if now.Before(c.noticeUntil) {
			return
		}
		c.notice = ""
	}
	switch c.machine.State() {
	case session.MainMenu:
		c.screen.ShowMainMenu(c.cfg.Name, c.connected)
	case session.ClassSelection:
		classes := c.store.Classes()
		names := make([]string, len(classes))
		for i, class := range classes {
			names[i] = class.Name
			if c.store.IsAttendanceTaken(class.ID) {
				names[i] += " *"
			}
		}
		c.screen.ShowClassSelection(names, c.machine.SelectedIndex())
	case session.AttendanceTaking:
		s := c.machine.Session()
		if s != nil && s.CurrentIndex < len(s.Students) {
			student := s.Current()
			c.screen.ShowAttendance(s.ClassName, student.Name, student.Roll, s.Progress())
		}
	}
}
