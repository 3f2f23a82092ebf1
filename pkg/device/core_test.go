package device

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rollpad/rollpad.go/pkg/display"
	"github.com/rollpad/rollpad.go/pkg/framework"
	"github.com/rollpad/rollpad.go/pkg/input"
	"github.com/rollpad/rollpad.go/pkg/link"
	"github.com/rollpad/rollpad.go/pkg/link/loopback"
	"github.com/rollpad/rollpad.go/pkg/session"
	"github.com/rollpad/rollpad.go/pkg/store"
	"github.com/rollpad/rollpad.go/pkg/wire"
)

type testDevice struct {
	loop *framework.Loop
	link *loopback.Link
	core *Core
	st   *store.Store

	// pending holds notifications drained from the link but addressed to a
	// channel other than the one being read; they are replayed, in order, on
	// the next responses call instead of being dropped.
	pending []loopback.Notification
}

func newTestDevice(t *testing.T) *testDevice {
	t.Helper()
	cfg := testConfig(t)
	st := store.New(cfg.StoreConfig())
	require.NoError(t, st.Load())

	loop := framework.NewLoop()
	lnk := loopback.New(loop)
	core := NewCore(cfg, st, display.LogScreen{}, lnk)
	core.sleep = func(time.Duration) {}
	loop.AddHandler(core)
	return &testDevice{loop: loop, link: lnk, core: core, st: st}
}

// run drains everything the peer and buttons have posted.
func (d *testDevice) run() {
	d.loop.RunPending(context.Background())
}

// write delivers a message to the device the way a peer would: fragmented
// into paced chunks on one channel.
func (d *testDevice) write(ch link.Channel, payload string) {
	for _, chunk := range wire.Fragment([]byte(payload), 20) {
		d.link.PeerWrite(ch, chunk)
	}
	d.run()
}

// responses reassembles everything notified so far on a channel.
func (d *testDevice) responses(t *testing.T, ch link.Channel) []string {
	t.Helper()
	asm := wire.NewAssembler()
	var msgs []string
	feed := func(n loopback.Notification) {
		if n.Channel != ch {
			d.pending = append(d.pending, n)
			return
		}
		got, err := asm.Feed(ch, n.Data)
		require.NoError(t, err)
		msgs = append(msgs, got...)
	}
	queued := d.pending
	d.pending = nil
	for _, n := range queued {
		feed(n)
	}
	for {
		select {
		case n := <-d.link.Outbound():
			feed(n)
		default:
			require.Zero(t, asm.Buffered(ch), "dangling partial response")
			return msgs
		}
	}
}

func (d *testDevice) press(events ...input.Event) {
	for _, ev := range events {
		d.loop.Post(ev)
	}
	d.run()
}

const testRoster = `[{"id":"c1","name":"Math","students":[{"roll":1,"name":"A"},{"roll":2,"name":"B"}]}]`

func TestSyncOverLink(t *testing.T) {
	d := newTestDevice(t)
	d.link.PeerConnect("peer-1")
	d.run()

	d.write(link.ChanRosterSync, testRoster)

	msgs := d.responses(t, link.ChanRosterSync)
	require.Len(t, msgs, 1)
	resp := decode(t, []byte(msgs[0]))
	require.Equal(t, "success", resp["status"])
	require.Len(t, d.st.Classes(), 1)

	// The read-side values were refreshed.
	var storage StorageInfo
	require.NoError(t, json.Unmarshal(d.link.PeerRead(link.ChanStorageInfo), &storage))
	require.NotZero(t, storage.Total)
	var table store.AttendanceTable
	require.NoError(t, json.Unmarshal(d.link.PeerRead(link.ChanAttendanceData), &table))
	require.Empty(t, table)
}

func TestDisconnectDropsPartialBuffer(t *testing.T) {
	d := newTestDevice(t)
	d.link.PeerConnect("peer-1")
	d.run()

	// Half a message, then the connection dies.
	d.link.PeerWrite(link.ChanRosterSync, []byte(testRoster[:30]))
	d.run()
	d.link.PeerDisconnect()
	d.run()

	// Resending the whole message from the start succeeds.
	d.link.PeerConnect("peer-1")
	d.run()
	d.write(link.ChanRosterSync, testRoster)

	msgs := d.responses(t, link.ChanRosterSync)
	require.Len(t, msgs, 1)
	require.Equal(t, "success", decode(t, []byte(msgs[0]))["status"])
}

func TestCorruptChunkDoesNotAnswer(t *testing.T) {
	d := newTestDevice(t)
	d.link.PeerConnect("peer-1")
	d.run()

	d.link.PeerWrite(link.ChanCommand, []byte{0xfe, 0xff, '\n'})
	d.run()
	require.Empty(t, d.responses(t, link.ChanCommand))

	// The channel recovers for the next well-formed message.
	d.write(link.ChanCommand, `{"command":"get_status"}`)
	msgs := d.responses(t, link.ChanCommand)
	require.Len(t, msgs, 1)
	require.Equal(t, "RollPad-test", decode(t, []byte(msgs[0]))["device_name"])
}

func TestCommandRoundTripChunked(t *testing.T) {
	d := newTestDevice(t)
	d.link.PeerConnect("peer-1")
	d.run()
	d.write(link.ChanRosterSync, testRoster)
	d.responses(t, link.ChanRosterSync)

	// Complete a session from buttons; the saved table gets pushed.
	d.press(input.Select, input.Select, input.Present, input.Absent)

	var table store.AttendanceTable
	pushed := d.responses(t, link.ChanAttendanceData)
	require.Len(t, pushed, 1)
	require.NoError(t, json.Unmarshal([]byte(pushed[0]), &table))
	result := table["c1"]
	require.Equal(t, 1, result.PresentCount)
	require.Equal(t, 1, result.AbsentCount)
	require.Equal(t, 2, result.TotalStudents)
	require.Equal(t, session.ClassSelection, d.core.Machine().State())

	// And the command channel can clear it again.
	d.write(link.ChanCommand, `{"command":"clear_attendance","class_id":"c1"}`)
	msgs := d.responses(t, link.ChanCommand)
	require.Len(t, msgs, 1)
	require.Equal(t, "success", decode(t, []byte(msgs[0]))["status"])
	require.False(t, d.st.IsAttendanceTaken("c1"))
}

func TestInterleavedChannelsKeepOrder(t *testing.T) {
	d := newTestDevice(t)
	d.link.PeerConnect("peer-1")
	d.run()

	// Interleave chunks of a roster sync and a command; each channel
	// reassembles independently.
	rosterChunks := wire.Fragment([]byte(testRoster), 25)
	cmdChunks := wire.Fragment([]byte(`{"command":"get_status"}`), 10)
	for i := 0; i < len(rosterChunks) || i < len(cmdChunks); i++ {
		if i < len(rosterChunks) {
			d.link.PeerWrite(link.ChanRosterSync, rosterChunks[i])
		}
		if i < len(cmdChunks) {
			d.link.PeerWrite(link.ChanCommand, cmdChunks[i])
		}
	}
	d.run()

	require.Len(t, d.responses(t, link.ChanRosterSync), 1)
	require.Len(t, d.responses(t, link.ChanCommand), 1)
}

func TestSupersedingPeerResetsBuffers(t *testing.T) {
	d := newTestDevice(t)
	d.link.PeerConnect("peer-1")
	d.run()
	d.link.PeerWrite(link.ChanCommand, []byte(`{"command":"get_`))
	d.run()

	// A new central takes over; the old partial must not pollute it.
	d.link.PeerConnect("peer-2")
	d.run()
	d.write(link.ChanCommand, `{"command":"get_status"}`)
	msgs := d.responses(t, link.ChanCommand)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], "device_name")
}

func TestSessionSurvivesDisconnect(t *testing.T) {
	d := newTestDevice(t)
	d.link.PeerConnect("peer-1")
	d.run()
	d.write(link.ChanRosterSync, testRoster)
	d.responses(t, link.ChanRosterSync)

	d.press(input.Select, input.Select, input.Present)
	require.Equal(t, session.AttendanceTaking, d.core.Machine().State())

	// A disconnect mid-session clears buffers but not the session.
	d.link.PeerDisconnect()
	d.run()
	require.Equal(t, session.AttendanceTaking, d.core.Machine().State())
	require.NotNil(t, d.core.Machine().Session())

	d.press(input.Absent)
	require.True(t, d.st.IsAttendanceTaken("c1"))
}
