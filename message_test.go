package loopcast

import (
	"io"
	"testing"
)

func TestFrameAndVerify(t *testing.T) {
	tests := []struct {
		name        string
		payload     []byte
		returnValue uint8
	}{
		{name: "single short chunk", payload: []byte("hello"), returnValue: 0},
		{name: "exact chunk boundary", payload: make([]byte, ChunkSize), returnValue: 7},
		{name: "multi chunk", payload: make([]byte, ChunkSize+123), returnValue: 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewBuffer(DefaultMaxChunks)
			if err := buf.InitFromReader(newByteReader(tt.payload), tt.returnValue); err != nil {
				t.Fatalf("InitFromReader: %v", err)
			}
			for i := uint32(0); i < buf.NChunks(); i++ {
				msg, err := Frame(buf, i)
				if err != nil {
					t.Fatalf("Frame(%d): %v", i, err)
				}
				chunk, err := Verify(msg)
				if err != nil {
					t.Fatalf("Verify(%d): %v", i, err)
				}
				if chunk.N != uint16(i+1) {
					t.Errorf("chunk %d: N = %d, want %d", i, chunk.N, i+1)
				}
				if chunk.ReturnValue != tt.returnValue {
					t.Errorf("chunk %d: ReturnValue = %d, want %d", i, chunk.ReturnValue, tt.returnValue)
				}
			}
		})
	}
}

func TestVerifyRejectsCorruption(t *testing.T) {
	buf := NewBuffer(DefaultMaxChunks)
	if err := buf.InitFromReader(newByteReader([]byte("some payload")), 3); err != nil {
		t.Fatalf("InitFromReader: %v", err)
	}
	msg, err := Frame(buf, 0)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	msg.Chunk.Data[0] ^= 0xff
	if _, err := Verify(msg); err != ErrCRCMismatch {
		t.Errorf("Verify on corrupted message = %v, want ErrCRCMismatch", err)
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	buf := NewBuffer(DefaultMaxChunks)
	if err := buf.InitFromReader(newByteReader([]byte("round trip me")), 9); err != nil {
		t.Fatalf("InitFromReader: %v", err)
	}
	msg, err := Frame(buf, 0)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	wire := msg.Marshal()
	if len(wire) != WireSize {
		t.Fatalf("Marshal: len = %d, want %d", len(wire), WireSize)
	}
	got, err := UnmarshalMessage(wire)
	if err != nil {
		t.Fatalf("UnmarshalMessage: %v", err)
	}
	if got != msg {
		t.Errorf("UnmarshalMessage(Marshal(msg)) = %+v, want %+v", got, msg)
	}
}

func TestCrc32BluebookShortInputPadding(t *testing.T) {
	tests := []struct {
		name string
		a, b []byte
	}{
		{name: "one byte vs zero-padded four bytes", a: []byte{0x42}, b: []byte{0x42, 0, 0, 0}},
		{name: "empty vs four zero bytes", a: []byte{}, b: []byte{0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, want := crc32Bluebook(tt.a), crc32Bluebook(tt.b); got != want {
				t.Errorf("crc32Bluebook(%v) = %#x, want %#x (= crc32Bluebook(%v))", tt.a, got, want, tt.b)
			}
		})
	}
}

type byteReader struct {
	data []byte
	pos  int
}

func newByteReader(data []byte) *byteReader { return &byteReader{data: data} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
