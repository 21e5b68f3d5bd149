/*
DESCRIPTION
  none.go implements the no-FEC packetizer and reassembler: a frame is
  split into data chunks only, no parity, and reassembled by waiting for
  every chunk to arrive.

LICENSE
  See the udp-video module root for license information.
*/

package fec

import "github.com/kura-suke/udp-video/wire"

// noneFragmenter implements Fragmenter for the none scheme.
type noneFragmenter struct{}

// Fragment splits frame into DataSize chunks with no parity, chunk_id
// 0-based, total_chunks the data chunk count. Grounded on
// client/fec/packet_no_fec.py's make_packets_no_fec.
func (noneFragmenter) Fragment(frameID uint32, frame []byte) [][]byte {
	chunks := wire.Split(frame)
	total := uint16(len(chunks))
	packets := make([][]byte, total)
	for i, c := range chunks {
		h := wire.Header{FrameID: frameID, ChunkID: uint16(i), TotalChunks: total}
		packets[i] = h.Encode(c)
	}
	return packets
}

// simpleAssembly is the per-frame state for a frame being reassembled
// under the none scheme, mirroring SimpleFrameReassembler's per-frame_id
// dict in server/fec/simple_reassembler.py.
type simpleAssembly struct {
	total    int
	chunks   [][]byte
	received int
}

// simpleReassembler implements Reassembler for the none scheme.
type simpleReassembler struct {
	frames map[uint32]*simpleAssembly
}

func newSimpleReassembler() *simpleReassembler {
	return &simpleReassembler{frames: make(map[uint32]*simpleAssembly)}
}

func (r *simpleReassembler) Add(packet []byte) (Result, bool) {
	h, err := wire.ParseHeader(packet)
	if err != nil {
		return Result{}, false
	}
	payload := packet[wire.HeaderSize:]

	st := r.frames[h.FrameID]
	if st == nil {
		st = &simpleAssembly{
			total:  int(h.TotalChunks),
			chunks: make([][]byte, h.TotalChunks),
		}
		r.frames[h.FrameID] = st
	}

	// Accommodate a mid-stream total_chunks increase
	if int(h.TotalChunks) > st.total {
		extra := int(h.TotalChunks) - st.total
		st.chunks = append(st.chunks, make([][]byte, extra)...)
		st.total = int(h.TotalChunks)
	}

	if int(h.ChunkID) >= 0 && int(h.ChunkID) < st.total {
		if st.chunks[h.ChunkID] == nil {
			st.chunks[h.ChunkID] = payload
			st.received++
		}
	}

	if st.received != st.total || st.total == 0 {
		return Result{}, false
	}

	var frame []byte
	for _, c := range st.chunks {
		frame = append(frame, c...)
	}
	delete(r.frames, h.FrameID)
	return Result{FrameID: h.FrameID, Frame: frame, Recovered: 0}, true
}
