// Package ble serves the device's channels as a BLE GATT peripheral.
package ble

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"
	"tinygo.org/x/bluetooth"

	"github.com/rollpad/rollpad.go/pkg/link"
)

// GATT identity of the attendance service.
const (
	ServiceUUID        = "12345678-1234-1234-1234-123456789abc"
	RosterSyncUUID     = "12345678-1234-1234-1234-123456789abd"
	StorageInfoUUID    = "12345678-1234-1234-1234-123456789abe"
	AttendanceDataUUID = "12345678-1234-1234-1234-123456789abf"
	CommandUUID        = "12345678-1234-1234-1234-123456789ac0"
)

func mustUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic("ble: bad uuid " + s)
	}
	return u
}

// Link is the BLE transport. GATT write callbacks run on the stack's
// goroutine and only post events; everything else happens on the loop.
type Link struct {
	name string
	sink link.EventSink

	adapter *bluetooth.Adapter
	chars   map[link.Channel]*bluetooth.Characteristic

	mu        sync.Mutex
	connected bool
	peer      string
}

// New creates a BLE link advertising under the given device name.
func New(name string, sink link.EventSink) *Link {
	return &Link{
		name:    name,
		sink:    sink,
		adapter: bluetooth.DefaultAdapter,
		chars:   make(map[link.Channel]*bluetooth.Characteristic),
	}
}

// Run implements framework.Runnable. A bring-up failure is returned as-is:
// a device without its radio is not serviceable and the caller restarts.
func (l *Link) Run(ctx context.Context) error {
	if err := l.start(); err != nil {
		return fmt.Errorf("ble bring-up: %w", err)
	}
	glog.Infof("advertising as %q", l.name)
	<-ctx.Done()
	return ctx.Err()
}

func (l *Link) start() error {
	if err := l.adapter.Enable(); err != nil {
		return err
	}

	writable := bluetooth.CharacteristicWritePermission |
		bluetooth.CharacteristicWriteWithoutResponsePermission
	var roster, storage, attendance, command bluetooth.Characteristic
	// Populate the channel map before anything can call back into the link.
	l.chars[link.ChanRosterSync] = &roster
	l.chars[link.ChanStorageInfo] = &storage
	l.chars[link.ChanAttendanceData] = &attendance
	l.chars[link.ChanCommand] = &command
	err := l.adapter.AddService(&bluetooth.Service{
		UUID: mustUUID(ServiceUUID),
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle:     &roster,
				UUID:       mustUUID(RosterSyncUUID),
				Flags:      bluetooth.CharacteristicReadPermission | writable | bluetooth.CharacteristicNotifyPermission,
				WriteEvent: l.writeEvent(link.ChanRosterSync),
			},
			{
				Handle: &storage,
				UUID:   mustUUID(StorageInfoUUID),
				Flags:  bluetooth.CharacteristicReadPermission,
			},
			{
				Handle: &attendance,
				UUID:   mustUUID(AttendanceDataUUID),
				Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
			},
			{
				Handle:     &command,
				UUID:       mustUUID(CommandUUID),
				Flags:      writable | bluetooth.CharacteristicNotifyPermission,
				WriteEvent: l.writeEvent(link.ChanCommand),
			},
		},
	})
	if err != nil {
		return err
	}
	l.adapter.SetConnectHandler(l.onConnect)

	adv := l.adapter.DefaultAdvertisement()
	if err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    l.name,
		ServiceUUIDs: []bluetooth.UUID{mustUUID(ServiceUUID)},
	}); err != nil {
		return err
	}
	return adv.Start()
}

func (l *Link) writeEvent(ch link.Channel) func(bluetooth.Connection, int, []byte) {
	return func(client bluetooth.Connection, offset int, value []byte) {
		l.sink.Post(link.Chunk{Channel: ch, Data: append([]byte(nil), value...)})
	}
}

// onConnect runs in the stack's callback context. Exactly one peer is
// served; a second central superseding an active one tears the old
// connection state down first.
func (l *Link) onConnect(device bluetooth.Device, connected bool) {
	addr := device.Address.String()
	l.mu.Lock()
	prev, wasConnected := l.peer, l.connected
	if connected {
		l.connected, l.peer = true, addr
	} else if addr == l.peer || l.peer == "" {
		l.connected, l.peer = false, ""
	}
	l.mu.Unlock()

	if connected {
		if wasConnected && prev != addr {
			glog.Warningf("central %s superseded by %s", prev, addr)
			l.sink.Post(link.Disconnected{Peer: prev})
		}
		l.sink.Post(link.Connected{Peer: addr})
	} else {
		l.sink.Post(link.Disconnected{Peer: addr})
	}
}

// Notify implements link.Link. Writing a characteristic value notifies
// subscribed centrals.
func (l *Link) Notify(ch link.Channel, chunk []byte) error {
	if !l.Connected() {
		return link.ErrNotConnected
	}
	char, ok := l.chars[ch]
	if !ok {
		return fmt.Errorf("%w: %s", link.ErrUnknownChannel, ch)
	}
	_, err := char.Write(chunk)
	return err
}

// SetValue implements link.Link; it refreshes what a central reads.
func (l *Link) SetValue(ch link.Channel, value []byte) error {
	char, ok := l.chars[ch]
	if !ok {
		return fmt.Errorf("%w: %s", link.ErrUnknownChannel, ch)
	}
	_, err := char.Write(value)
	return err
}

// Connected implements link.Link.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}
