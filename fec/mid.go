/*
DESCRIPTION
  mid.go implements the "mid" FEC scheme: two parity chunks per group
  (p0 = XOR of all data in the group, p1 = XOR of even-index data),
  recovering any single loss, and any two-loss pattern of opposite
  parity.

LICENSE
  See the udp-video module root for license information.
*/

package fec

import "github.com/kura-suke/udp-video/wire"

type midFragmenter struct{ k int }

// Fragment lays out data chunks then, for each group, two parity chunks
// p0 (all-XOR) and p1 (even-index XOR). total_chunks counts data+parity,
// unlike low.
func (f midFragmenter) Fragment(frameID uint32, frame []byte) [][]byte {
	data := wire.Split(frame)
	nGroups := (len(data) + f.k - 1) / f.k
	total := uint16(len(data) + 2*nGroups)

	packets := make([][]byte, 0, int(total))
	chunkID := uint16(0)
	for g := 0; g < nGroups; g++ {
		start := g * f.k
		end := start + f.k
		if end > len(data) {
			end = len(data)
		}
		group := data[start:end]

		for _, c := range group {
			h := wire.Header{FrameID: frameID, ChunkID: chunkID, TotalChunks: total}
			packets = append(packets, h.Encode(c))
			chunkID++
		}

		var even [][]byte
		for i, c := range group {
			if i%2 == 0 {
				even = append(even, c)
			}
		}
		p0 := xorAll(group...)
		p1 := xorAll(even...)

		h0 := wire.Header{FrameID: frameID, ChunkID: chunkID, TotalChunks: total}
		packets = append(packets, h0.Encode(p0))
		chunkID++
		h1 := wire.Header{FrameID: frameID, ChunkID: chunkID, TotalChunks: total}
		packets = append(packets, h1.Encode(p1))
		chunkID++
	}
	return packets
}

// midGroup is per-group assembly state under the mid scheme.
type midGroup struct {
	data   [][]byte
	p0, p1 []byte
	hasP0  bool
	hasP1  bool
}

// midAssembly is per-frame state. Group structure is inferred from
// total_chunks via T = D + R*G, R = 2
type midAssembly struct {
	dataTotal int
	received  int
	recovered int
	k         int
	groups    []*midGroup
}

type midReassembler struct {
	k        int
	frames   map[uint32]*midAssembly
	metaHint map[uint32]int // register_meta: frame_id -> D
}

func newMidReassembler(k int) *midReassembler {
	return &midReassembler{k: k, frames: make(map[uint32]*midAssembly), metaHint: make(map[uint32]int)}
}

// RegisterMeta supplies an out-of-band hint for the true data chunk
// count D of a frame. A registered hint always takes precedence over the
// (D, G) inferred from the T = D + R*G scan, whether or not that scan is
// ambiguous.
func (r *midReassembler) RegisterMeta(frameID uint32, d int) {
	r.metaHint[frameID] = d
}

// inferGroups solves T = D + R*G for (D, G) given a fixed group size k
// and parity count r, scanning candidate G values up to a small bound
// past the expected group count.
func inferGroups(total, k, r int) (d, g int) {
	maxG := total/(k+r) + 4
	for cand := 0; cand <= maxG; cand++ {
		d := total - r*cand
		if d < 0 {
			break
		}
		wantG := (d + k - 1) / k
		if d == 0 {
			wantG = 0
		}
		if wantG == cand {
			return d, cand
		}
	}
	// No exact fit found; fall back to treating the frame as data-only.
	return total, 0
}

func (r *midReassembler) Add(packet []byte) (Result, bool) {
	h, err := wire.ParseHeader(packet)
	if err != nil {
		return Result{}, false
	}
	payload := packet[wire.HeaderSize:]

	st := r.frames[h.FrameID]
	if st == nil {
		d, g := inferGroups(int(h.TotalChunks), r.k, 2)
		if hint, ok := r.metaHint[h.FrameID]; ok {
			d = hint
			g = (d + r.k - 1) / r.k
		}
		st = &midAssembly{dataTotal: d, k: r.k, groups: make([]*midGroup, g)}
		for gi := range st.groups {
			st.groups[gi] = &midGroup{data: make([][]byte, groupSize(r.k, d, gi))}
		}
		r.frames[h.FrameID] = st
	}

	assignMidChunk(st, int(h.ChunkID), payload)

	for _, grp := range st.groups {
		recoverGroupMid(grp, &st.recovered, &st.received)
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

// assignMidChunk routes chunk_id to either a group's data slot or one of
// its two parity slots, using the same contiguous per-group layout the
// fragmenter wrote: D data, then p0, then p1.
func assignMidChunk(st *midAssembly, chunkID int, payload []byte) {
	pos := 0
	for gi, grp := range st.groups {
		n := len(grp.data)
		if chunkID < pos+n {
			idx := chunkID - pos
			if grp.data[idx] == nil {
				grp.data[idx] = payload
				st.received++
			}
			return
		}
		pos += n
		if chunkID == pos {
			if !grp.hasP0 {
				grp.p0 = payload
				grp.hasP0 = true
			}
			return
		}
		pos++
		if chunkID == pos {
			if !grp.hasP1 {
				grp.p1 = payload
				grp.hasP1 = true
			}
			return
		}
		pos++
		_ = gi
	}
}

// recoverGroupMid recovers one missing slot using p0 (as for low), or
// two missing slots of opposite parity using both p0 and p1.
func recoverGroupMid(grp *midGroup, recovered, received *int) {
	missing := missingIndices(grp.data)
	switch len(missing) {
	case 0:
		return
	case 1:
		if !grp.hasP0 {
			return
		}
		known := dataExcept(grp.data, missing[0])
		rec := xorAll(append(known, grp.p0)...)
		grp.data[missing[0]] = rec
		*recovered++
		*received++
	case 2:
		if !grp.hasP0 || !grp.hasP1 {
			return
		}
		a, b := missing[0], missing[1]
		if a%2 == b%2 {
			// Same parity: unrecoverable with p0/p1 alone
			return
		}
		evenMissing, oddMissing := a, b
		if a%2 != 0 {
			evenMissing, oddMissing = b, a
		}

		var knownEven [][]byte
		for i, c := range grp.data {
			if i%2 == 0 && i != evenMissing {
				knownEven = append(knownEven, c)
			}
		}
		dEven := xorAll(append(knownEven, grp.p1)...)

		var knownAll [][]byte
		for i, c := range grp.data {
			if i != evenMissing && i != oddMissing {
				knownAll = append(knownAll, c)
			}
		}
		dOdd := xorAll(append(append(knownAll, dEven), grp.p0)...)

		grp.data[evenMissing] = dEven
		grp.data[oddMissing] = dOdd
		*recovered += 2
		*received += 2
	default:
		return
	}
}

func missingIndices(data [][]byte) []int {
	var out []int
	for i, c := range data {
		if c == nil {
			out = append(out, i)
		}
	}
	return out
}

func dataExcept(data [][]byte, skip int) [][]byte {
	out := make([][]byte, 0, len(data)-1)
	for i, c := range data {
		if i != skip {
			out = append(out, c)
		}
	}
	return out
}
