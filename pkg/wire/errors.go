package wire

import "errors"

var (
	// ErrCorruptBuffer indicates a channel buffer contained bytes that can
	// never decode to UTF-8 text. The buffer is dropped.
	ErrCorruptBuffer = errors.New("corrupt channel buffer")
	// ErrMessageTooLarge indicates a channel buffer grew past the configured
	// cap without a delimiter. The buffer is dropped.
	ErrMessageTooLarge = errors.New("message exceeds size limit")
)
