package wire

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/golang/glog"

	"github.com/rollpad/rollpad.go/pkg/link"
)

// Delimiter terminates one frame. A frame body must not contain an
// unescaped delimiter; JSON string escaping guarantees that for the
// protocol's payloads.
const Delimiter = '\n'

// DefaultMaxMessageSize caps a single reassembled message. The companion
// protocol stays within a few KiB; anything past this without a delimiter
// is treated as corruption.
const DefaultMaxMessageSize = 8192

// Assembler reassembles inbound chunks into complete messages, one buffer
// per channel. It is not safe for concurrent use; the owning loop serializes
// access.
type Assembler struct {
	// MaxMessageSize caps buffered bytes per channel. Zero means
	// DefaultMaxMessageSize.
	MaxMessageSize int

	buffers map[link.Channel][]byte
}

// NewAssembler creates an Assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		MaxMessageSize: DefaultMaxMessageSize,
		buffers:        make(map[link.Channel][]byte),
	}
}

// Feed appends one inbound chunk to the channel's buffer and returns the
// complete messages now available, in arrival order. A chunk ending in a
// split multi-byte codepoint returns no messages and no error; the bytes are
// held for the next chunk. A structural failure drops the channel's buffer
// and is reported as an error.
func (a *Assembler) Feed(ch link.Channel, chunk []byte) ([]string, error) {
	buf := append(a.buffers[ch], chunk...)

	max := a.MaxMessageSize
	if max == 0 {
		max = DefaultMaxMessageSize
	}
	if len(buf) > max {
		delete(a.buffers, ch)
		glog.Warningf("channel %s: dropped %d buffered bytes: %v", ch, len(buf), ErrMessageTooLarge)
		return nil, fmt.Errorf("channel %s: %w", ch, ErrMessageTooLarge)
	}

	switch classifyUTF8(buf) {
	case utf8Invalid:
		delete(a.buffers, ch)
		glog.Warningf("channel %s: dropped %d buffered bytes: %v", ch, len(buf), ErrCorruptBuffer)
		return nil, fmt.Errorf("channel %s: %w", ch, ErrCorruptBuffer)
	case utf8Partial:
		a.buffers[ch] = buf
		glog.V(4).Infof("channel %s: holding %d bytes for split codepoint", ch, len(buf))
		return nil, nil
	}

	segments := strings.Split(string(buf), string(Delimiter))
	rest := segments[len(segments)-1]
	msgs := segments[:len(segments)-1]
	if rest == "" {
		delete(a.buffers, ch)
	} else {
		a.buffers[ch] = []byte(rest)
	}
	return msgs, nil
}

// Buffered reports the bytes currently held for a channel.
func (a *Assembler) Buffered(ch link.Channel) int {
	return len(a.buffers[ch])
}

// Drop discards one channel's buffer.
func (a *Assembler) Drop(ch link.Channel) {
	delete(a.buffers, ch)
}

// Reset discards every channel buffer. Called on peer connect and
// disconnect: message boundaries do not survive a connection cycle.
func (a *Assembler) Reset() {
	for ch := range a.buffers {
		delete(a.buffers, ch)
	}
}

type utf8State int

const (
	utf8Complete utf8State = iota
	utf8Partial
	utf8Invalid
)

// classifyUTF8 distinguishes a buffer that is valid text, one whose only
// defect is an incomplete trailing codepoint, and one that is corrupt.
func classifyUTF8(b []byte) utf8State {
	if utf8.Valid(b) {
		return utf8Complete
	}
	// Walk back over trailing continuation bytes to the candidate start of
	// the final codepoint.
	i := len(b) - 1
	for n := 0; i >= 0 && n < utf8.UTFMax-1; n++ {
		if b[i]&0xC0 != 0x80 {
			break
		}
		i--
	}
	if i < 0 || b[i]&0xC0 == 0x80 {
		return utf8Invalid
	}
	head, tail := b[:i], b[i:]
	if !utf8.Valid(head) {
		return utf8Invalid
	}
	want := encodedLen(tail[0])
	if want < 2 || len(tail) >= want {
		return utf8Invalid
	}
	for _, c := range tail[1:] {
		if c&0xC0 != 0x80 {
			return utf8Invalid
		}
	}
	return utf8Partial
}

func encodedLen(b0 byte) int {
	switch {
	case b0&0xE0 == 0xC0:
		return 2
	case b0&0xF0 == 0xE0:
		return 3
	case b0&0xF8 == 0xF0:
		return 4
	}
	return 0
}
