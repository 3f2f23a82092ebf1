package wire

// DefaultChunkSize keeps chunks under typical negotiated ATT payload limits.
const DefaultChunkSize = 100

// Fragment splits an outbound message into transport-sized chunks. The
// delimiter is appended after the payload, so the final chunk is always
// newline-terminated and a payload that fits in one chunk is sent whole.
// Inter-chunk pacing is the sender's concern.
func Fragment(payload []byte, maxChunk int) [][]byte {
	if maxChunk <= 0 {
		maxChunk = DefaultChunkSize
	}
	framed := make([]byte, 0, len(payload)+1)
	framed = append(framed, payload...)
	framed = append(framed, Delimiter)

	chunks := make([][]byte, 0, len(framed)/maxChunk+1)
	for len(framed) > maxChunk {
		chunks = append(chunks, framed[:maxChunk])
		framed = framed[maxChunk:]
	}
	return append(chunks, framed)
}
