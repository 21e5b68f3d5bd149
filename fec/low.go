/*
DESCRIPTION
  low.go implements the "low" FEC scheme: one whole-group XOR parity
  fragment per group of K data chunks, recovering any single missing
  data chunk per group. Parity is identified by the high bit of chunk_id.

LICENSE
  See the udp-video module root for license information.
*/

package fec

import "github.com/kura-suke/udp-video/wire"

// parityBit marks a chunk_id as carrying parity rather than data: the
// high bit of chunk_id (0x8000) is set on the parity fragment only.
const parityBit = uint16(0x8000)

type lowFragmenter struct{ k int }

// Fragment splits frame into data chunks, grouping every k of them under
// one whole-group XOR parity chunk. total_chunks in every header is the
// *data* chunk count only -- the low scheme's one documented asymmetry
// from the other schemes
func (f lowFragmenter) Fragment(frameID uint32, frame []byte) [][]byte {
	data := wire.Split(frame)
	total := uint16(len(data))
	packets := make([][]byte, 0, len(data)+(len(data)+f.k-1)/f.k)

	for i, c := range data {
		h := wire.Header{FrameID: frameID, ChunkID: uint16(i), TotalChunks: total}
		packets = append(packets, h.Encode(c))
	}

	nGroups := (len(data) + f.k - 1) / f.k
	for g := 0; g < nGroups; g++ {
		start := g * f.k
		end := start + f.k
		if end > len(data) {
			end = len(data)
		}
		parity := xorAll(data[start:end]...)
		h := wire.Header{FrameID: frameID, ChunkID: parityBit | uint16(g), TotalChunks: total}
		packets = append(packets, h.Encode(parity))
	}
	return packets
}

// lowGroup is the per-group assembly state: the data slots for this
// group and its single parity slot.
type lowGroup struct {
	data     [][]byte
	present  int
	parity   []byte
	hasParit bool
}

// lowAssembly is the per-frame state for the low scheme.
type lowAssembly struct {
	dataTotal int
	received  int
	groups    []*lowGroup
	recovered int
	k         int
}

type lowReassembler struct {
	k      int
	frames map[uint32]*lowAssembly
}

func newLowReassembler(k int) *lowReassembler {
	return &lowReassembler{k: k, frames: make(map[uint32]*lowAssembly)}
}

func groupSize(k, dataTotal, g int) int {
	start := g * k
	end := start + k
	if end > dataTotal {
		end = dataTotal
	}
	if end < start {
		return 0
	}
	return end - start
}

func (r *lowReassembler) Add(packet []byte) (Result, bool) {
	h, err := wire.ParseHeader(packet)
	if err != nil {
		return Result{}, false
	}
	payload := packet[wire.HeaderSize:]

	st := r.frames[h.FrameID]
	if st == nil {
		dataTotal := int(h.TotalChunks)
		nGroups := (dataTotal + r.k - 1) / r.k
		if nGroups == 0 {
			nGroups = 1
		}
		st = &lowAssembly{dataTotal: dataTotal, k: r.k, groups: make([]*lowGroup, nGroups)}
		for g := range st.groups {
			st.groups[g] = &lowGroup{data: make([][]byte, groupSize(r.k, dataTotal, g))}
		}
		r.frames[h.FrameID] = st
	}

	isParity := h.ChunkID&parityBit != 0
	if isParity {
		g := int(h.ChunkID &^ parityBit)
		if g >= 0 && g < len(st.groups) && !st.groups[g].hasParit {
			st.groups[g].parity = payload
			st.groups[g].hasParit = true
		}
	} else {
		i := int(h.ChunkID)
		if i >= 0 && i < st.dataTotal {
			g := i / r.k
			idx := i % r.k
			if g < len(st.groups) && idx < len(st.groups[g].data) && st.groups[g].data[idx] == nil {
				st.groups[g].data[idx] = payload
				st.groups[g].present++
				st.received++
			}
		}
	}

	// Attempt single-loss recovery in the affected group(s). A parity
	// arrival may unlock recovery for its own group; a data arrival may
	// complete a group that was only missing it.
	for _, grp := range st.groups {
		recoverGroupLow(grp, &st.recovered, &st.received)
	}

	if st.received != st.dataTotal {
		return Result{}, false
	}

	var frame []byte
	for _, grp := range st.groups {
		for _, c := range grp.data {
			frame = append(frame, c...)
		}
	}
	res := Result{FrameID: h.FrameID, Frame: frame, Recovered: st.recovered}
	delete(r.frames, h.FrameID)
	return res, true
}

// recoverGroupLow fills in a group's single missing data slot from
// parity, if exactly one is missing and parity has arrived.
func recoverGroupLow(grp *lowGroup, recovered, received *int) {
	if !grp.hasParit {
		return
	}
	missing := -1
	missingCount := 0
	for i, c := range grp.data {
		if c == nil {
			missingCount++
			missing = i
		}
	}
	if missingCount != 1 {
		return
	}
	known := make([][]byte, 0, len(grp.data))
	for i, c := range grp.data {
		if i != missing {
			known = append(known, c)
		}
	}
	rec := xorAll(append(known, grp.parity)...)
	grp.data[missing] = rec
	grp.present++
	*recovered++
	*received++
}
