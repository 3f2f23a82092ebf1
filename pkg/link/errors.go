package link

import "errors"

var (
	// ErrNotConnected indicates a notify was attempted with no peer.
	ErrNotConnected = errors.New("no peer connected")
	// ErrUnknownChannel indicates the transport does not serve the channel.
	ErrUnknownChannel = errors.New("unknown channel")
)
