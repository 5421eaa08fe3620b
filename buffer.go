package loopcast

import (
	"fmt"
	"io"
)

// AcceptResult classifies the outcome of Buffer.Accept.
type AcceptResult int

const (
	AcceptFresh AcceptResult = iota
	AcceptDuplicate
	AcceptCorrupt
	AcceptOutOfRange
)

func (r AcceptResult) String() string {
	switch r {
	case AcceptFresh:
		return "fresh"
	case AcceptDuplicate:
		return "duplicate"
	case AcceptCorrupt:
		return "corrupt"
	case AcceptOutOfRange:
		return "out_of_range"
	default:
		return "unknown"
	}
}

// Buffer is the in-memory reassembly/source table for one payload: a flat
// array of up to maxChunks chunks, indexed by (chunk.N - 1). A slot is
// "filled" iff its chunk's N equals the slot index + 1.
type Buffer struct {
	length     uint32
	maxChunks  uint32
	nChunks    uint32
	lastChunkN uint16
	chunks     []Chunk

	// NewLoopDetected is set by Accept when it sees a chunk number lower
	// than the last one seen, signalling that the sender has wrapped
	// back to the start of a new loop. It is observational only and is
	// never used to gate correctness (the protocol tolerates arbitrary
	// packet reordering regardless).
	NewLoopDetected bool
}

// NewBuffer allocates a zeroed chunk table of the given capacity.
func NewBuffer(maxChunks uint32) *Buffer {
	return &Buffer{
		maxChunks: maxChunks,
		chunks:    make([]Chunk, maxChunks),
	}
}

// InitFromReader is the sender-side initializer: it reads r to end of
// input, breaking it into ChunkSize-byte chunks numbered from 1, stamping
// returnValue into each. It fails if the stream holds more than maxChunks
// chunks.
func (b *Buffer) InitFromReader(r io.Reader, returnValue uint8) error {
	var length uint32
	var i uint32
	tmp := make([]byte, ChunkSize)
	for {
		n, err := io.ReadFull(r, tmp)
		if n > 0 {
			if i >= b.maxChunks {
				return fmt.Errorf("loopcast: input exceeds %d chunks", b.maxChunks)
			}
			b.chunks[i].N = uint16(i + 1)
			b.chunks[i].ReturnValue = returnValue
			copy(b.chunks[i].Data[:], tmp[:n])
			i++
			length += uint32(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return err
		}
	}
	b.nChunks = i
	b.length = length
	return nil
}

// Length returns the total payload byte length.
func (b *Buffer) Length() uint32 { return b.length }

// NChunks returns the number of chunks in the payload.
func (b *Buffer) NChunks() uint32 { return b.nChunks }

func (b *Buffer) chunkAt(i uint32) (Chunk, error) {
	if i >= b.nChunks {
		return Chunk{}, fmt.Errorf("loopcast: chunk index %d out of range (nchunks=%d)", i, b.nChunks)
	}
	return b.chunks[i], nil
}

// Accept classifies and, on fresh acceptance, applies an incoming message
// to the buffer. Duplicate, out-of-range and corrupt messages never mutate
// the buffer.
func (b *Buffer) Accept(m Message) AcceptResult {
	b.NewLoopDetected = false
	n := m.Chunk.N
	if n == 0 || uint32(n) > b.maxChunks {
		return AcceptOutOfRange
	}
	if b.chunks[n-1].N != 0 {
		return AcceptDuplicate
	}
	if _, err := Verify(m); err != nil {
		return AcceptCorrupt
	}
	if n < b.lastChunkN {
		b.NewLoopDetected = true
	}
	b.lastChunkN = n
	b.length = m.Length
	b.nChunks = m.NChunks
	b.chunks[n-1] = m.Chunk
	return AcceptFresh
}

// Chunk0ReturnValue returns the returnvalue stamped into chunk 0, the
// value a completed receive reports as its process exit code.
func (b *Buffer) Chunk0ReturnValue() uint8 {
	if len(b.chunks) == 0 {
		return 0
	}
	return b.chunks[0].ReturnValue
}

// IsComplete reports whether every slot [0, nChunks) is filled.
func (b *Buffer) IsComplete() bool {
	if b.nChunks == 0 {
		return false
	}
	for i := uint32(0); i < b.nChunks; i++ {
		if b.chunks[i].N == 0 {
			return false
		}
	}
	return true
}

// Flush writes the reassembled payload to w: full chunks for every slot
// whose end falls within length, and a trimmed final chunk otherwise.
func (b *Buffer) Flush(w io.Writer) error {
	var written uint32
	for i := uint32(0); i < b.nChunks; i++ {
		remain := b.length - written
		n := uint32(ChunkSize)
		if remain < ChunkSize {
			n = remain
		}
		if _, err := w.Write(b.chunks[i].Data[:n]); err != nil {
			return err
		}
		written += n
	}
	return nil
}

// Release drops the chunk table, letting it be garbage collected.
func (b *Buffer) Release() {
	b.chunks = nil
}
