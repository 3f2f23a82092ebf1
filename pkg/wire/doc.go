// Package wire implements the channel message framing used over the
// device's wireless link.
//
// The link transport delivers small, size-limited writes per channel. This
// package reassembles those writes into complete UTF-8 JSON messages
// delimited by a single '\n', and fragments outbound messages back into
// transport-sized chunks.
//
// The codec favors availability: a channel buffer that turns out to be
// structurally corrupt (invalid UTF-8 in the middle, or growth past the
// configured cap) is dropped whole rather than stalling the channel. A
// multi-byte codepoint split across chunk boundaries is not corruption; the
// codec holds the bytes and retries on the next chunk.
package wire
