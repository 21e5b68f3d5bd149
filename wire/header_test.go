package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{FrameID: 123456, ChunkID: 42, TotalChunks: 100}
	buf := make([]byte, HeaderSize)
	if err := h.Put(buf); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if diff := cmp.Diff(h, got); diff != "" {
		t.Errorf("header round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPutShortBuffer(t *testing.T) {
	h := Header{}
	if err := h.Put(make([]byte, 4)); err != ErrShortBuffer {
		t.Errorf("expected ErrShortBuffer, got %v", err)
	}
}

func TestParseHeaderShortBuffer(t *testing.T) {
	if _, err := ParseHeader(make([]byte, 4)); err != ErrShortBuffer {
		t.Errorf("expected ErrShortBuffer, got %v", err)
	}
}

func TestSplitSizes(t *testing.T) {
	cases := []struct {
		name string
		n    int
		want int
	}{
		{"empty", 0, 1},
		{"one byte", 1, 1},
		{"exact multiple", DataSize * 3, 3},
		{"one over", DataSize*3 + 1, 4},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			frame := make([]byte, c.n)
			chunks := Split(frame)
			if len(chunks) != c.want {
				t.Errorf("Split(%d bytes) = %d chunks, want %d", c.n, len(chunks), c.want)
			}
			var total int
			for _, c := range chunks {
				total += len(c)
			}
			if total != len(frame) {
				t.Errorf("chunks sum to %d bytes, want %d", total, len(frame))
			}
		})
	}
}

func TestEncodeContainsPayload(t *testing.T) {
	h := Header{FrameID: 1, ChunkID: 0, TotalChunks: 1}
	payload := []byte("hello")
	buf := h.Encode(payload)
	if len(buf) != HeaderSize+len(payload) {
		t.Fatalf("unexpected encoded length: %d", len(buf))
	}
	got, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if got != h {
		t.Errorf("header mismatch: got %+v want %+v", got, h)
	}
	if string(buf[HeaderSize:]) != string(payload) {
		t.Errorf("payload mismatch: got %q want %q", buf[HeaderSize:], payload)
	}
}
