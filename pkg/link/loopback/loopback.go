// Package loopback provides an in-process link for the simulator and tests.
// The peer side is driven directly through the Peer* methods.
package loopback

import (
	"context"
	"sync"

	"github.com/golang/glog"

	"github.com/rollpad/rollpad.go/pkg/link"
)

// Notification is one chunk pushed to the peer.
type Notification struct {
	Channel link.Channel
	Data    []byte
}

// Link implements link.Link entirely in memory.
type Link struct {
	sink link.EventSink

	mu        sync.Mutex
	connected bool
	peer      string
	values    map[link.Channel][]byte
	outbound  chan Notification
}

// New creates a loopback link posting events to sink.
func New(sink link.EventSink) *Link {
	return &Link{
		sink:     sink,
		values:   make(map[link.Channel][]byte),
		outbound: make(chan Notification, 256),
	}
}

// Run implements framework.Runnable; the loopback has no I/O to pump.
func (l *Link) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Notify implements link.Link.
func (l *Link) Notify(ch link.Channel, chunk []byte) error {
	l.mu.Lock()
	connected := l.connected
	l.mu.Unlock()
	if !connected {
		return link.ErrNotConnected
	}
	data := append([]byte(nil), chunk...)
	select {
	case l.outbound <- Notification{Channel: ch, Data: data}:
	default:
		glog.Warningf("loopback: peer not draining, %s chunk dropped", ch)
	}
	return nil
}

// SetValue implements link.Link.
func (l *Link) SetValue(ch link.Channel, value []byte) error {
	l.mu.Lock()
	l.values[ch] = append([]byte(nil), value...)
	l.mu.Unlock()
	return nil
}

// Connected implements link.Link.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// Outbound exposes chunks notified to the peer.
func (l *Link) Outbound() <-chan Notification {
	return l.outbound
}

// PeerRead returns the current value of a readable channel.
func (l *Link) PeerRead(ch link.Channel) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.values[ch]...)
}

// PeerConnect attaches the peer. A connect while another peer is attached
// supersedes it: the old connection is torn down first.
func (l *Link) PeerConnect(name string) {
	l.mu.Lock()
	prev, wasConnected := l.peer, l.connected
	l.connected, l.peer = true, name
	l.mu.Unlock()
	if wasConnected {
		l.sink.Post(link.Disconnected{Peer: prev})
	}
	l.sink.Post(link.Connected{Peer: name})
}

// PeerDisconnect detaches the peer.
func (l *Link) PeerDisconnect() {
	l.mu.Lock()
	peer := l.peer
	l.connected, l.peer = false, ""
	l.mu.Unlock()
	l.sink.Post(link.Disconnected{Peer: peer})
}

// PeerWrite delivers one inbound chunk on a channel.
func (l *Link) PeerWrite(ch link.Channel, data []byte) {
	l.sink.Post(link.Chunk{Channel: ch, Data: append([]byte(nil), data...)})
}
