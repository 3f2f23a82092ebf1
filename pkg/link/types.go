package link

import (
	"github.com/rollpad/rollpad.go/pkg/framework"
)

// Channel identifies a logical, independently-buffered endpoint over the
// wireless link. On BLE hardware each channel maps to one GATT
// characteristic; other transports map them to topics or streams.
type Channel string

// Channels exposed by the device.
const (
	// ChanRosterSync carries roster documents from the companion app and
	// sync results back (write + notify).
	ChanRosterSync Channel = "roster_sync"
	// ChanStorageInfo is a read-only snapshot of filesystem usage.
	ChanStorageInfo Channel = "storage_info"
	// ChanAttendanceData exposes the full attendance table (read + notify).
	ChanAttendanceData Channel = "attendance_data"
	// ChanCommand carries the request/response command protocol.
	ChanCommand Channel = "command"
)

// Connected is posted when a central peer attaches to the link.
type Connected struct {
	Peer string
}

// Disconnected is posted when the peer detaches. Reassembly buffers must be
// dropped in response; stored data and any attendance session survive.
type Disconnected struct {
	Peer string
}

// Chunk is one raw inbound write on a channel. Chunks on one channel arrive
// in write order; nothing is guaranteed across channels.
type Chunk struct {
	Channel Channel
	Data    []byte
}

// EventSink receives link events from the transport callback context. The
// transport goroutine only posts; all processing happens on the loop that
// owns the sink.
type EventSink interface {
	Post(ev framework.Event)
}

// Link is a transport serving the device's channel set to exactly one peer.
type Link interface {
	framework.Runnable

	// Notify pushes one chunk to the peer on a notifying channel.
	// Chunk pacing is the caller's concern.
	Notify(ch Channel, chunk []byte) error

	// SetValue refreshes the value served for reads of a readable channel.
	SetValue(ch Channel, value []byte) error

	// Connected reports whether a peer is currently attached.
	Connected() bool
}
