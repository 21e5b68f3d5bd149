/*
DESCRIPTION
  high.go implements the "high" FEC scheme: four parity chunks per
  group, one per mask bit, recovering up to four simultaneous losses per
  group via Gaussian elimination over GF(2).

LICENSE
  See the udp-video module root for license information.
*/

package fec

import "github.com/kura-suke/udp-video/wire"

// masks is the fixed mask table assigning each data index its four-bit
// parity participation pattern. It has one entry per data index in a
// group, so MaxGroupSize bounds how large a "high" scheme group can be
// before two indices would collide on the same mask.
var masks = [8]byte{1, 2, 3, 4, 5, 6, 7, 8}

// MaxGroupSize is the largest group size the "high" scheme supports
// without two data indices colliding on the same parity mask.
const MaxGroupSize = len(masks)

const numParity = 4

type highFragmenter struct{ k int }

// Fragment lays out data chunks then, for each group, four parity
// chunks p0..p3, where p_b is the XOR of every data chunk whose mask
// bit b is set.
func (f highFragmenter) Fragment(frameID uint32, frame []byte) [][]byte {
	data := wire.Split(frame)
	nGroups := (len(data) + f.k - 1) / f.k
	total := uint16(len(data) + numParity*nGroups)

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

		for b := 0; b < numParity; b++ {
			var contributors [][]byte
			for i, c := range group {
				if masks[i]&(1<<uint(b)) != 0 {
					contributors = append(contributors, c)
				}
			}
			p := xorAll(contributors...)
			h := wire.Header{FrameID: frameID, ChunkID: chunkID, TotalChunks: total}
			packets = append(packets, h.Encode(p))
			chunkID++
		}
	}
	return packets
}

// highGroup is per-group assembly state under the high scheme.
type highGroup struct {
	data     [][]byte
	parity   [numParity][]byte
	hasParit [numParity]bool
}

// highAssembly is per-frame state. Group structure is inferred from
// total_chunks via T = D + R*G, R = 4, falling back to D = T, G = 0 if
// no exact fit is found and T > 0
type highAssembly struct {
	dataTotal int
	received  int
	recovered int
	k         int
	groups    []*highGroup
}

type highReassembler struct {
	k      int
	frames map[uint32]*highAssembly
}

func newHighReassembler(k int) *highReassembler {
	return &highReassembler{k: k, frames: make(map[uint32]*highAssembly)}
}

func inferGroupsHigh(total, k int) (d, g int) {
	d, g = inferGroups(total, k, numParity)
	if g == 0 && d == total && total > 0 {
		// No exact (D, G) fit: treat every chunk as data, no parity.
		return total, 0
	}
	return d, g
}

func (r *highReassembler) Add(packet []byte) (Result, bool) {
	h, err := wire.ParseHeader(packet)
	if err != nil {
		return Result{}, false
	}
	payload := packet[wire.HeaderSize:]

	st := r.frames[h.FrameID]
	if st == nil {
		d, g := inferGroupsHigh(int(h.TotalChunks), r.k)
		st = &highAssembly{dataTotal: d, k: r.k, groups: make([]*highGroup, g)}
		for gi := range st.groups {
			st.groups[gi] = &highGroup{data: make([][]byte, groupSize(r.k, d, gi))}
		}
		r.frames[h.FrameID] = st
	}

	assignHighChunk(st, int(h.ChunkID), payload)

	for _, grp := range st.groups {
		recoverGroupHigh(grp, &st.recovered, &st.received)
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

func assignHighChunk(st *highAssembly, chunkID int, payload []byte) {
	pos := 0
	for _, grp := range st.groups {
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
		if chunkID < pos+numParity {
			b := chunkID - pos
			if !grp.hasParit[b] {
				grp.parity[b] = payload
				grp.hasParit[b] = true
			}
			return
		}
		pos += numParity
	}
}

// recoverGroupHigh attempts Gaussian elimination over GF(2) to recover
// any missing data slots in grp from the parity slots that have
// arrived.
func recoverGroupHigh(grp *highGroup, recovered, received *int) {
	missing := missingIndices(grp.data)
	if len(missing) == 0 {
		return
	}

	var presentRows []int
	for b := 0; b < numParity; b++ {
		if grp.hasParit[b] {
			presentRows = append(presentRows, b)
		}
	}
	if len(presentRows) < len(missing) {
		return // Can't possibly be full rank yet.
	}

	// Build b[row] = parity[row] XOR (contributions from known data).
	rhs := make([][]byte, len(presentRows))
	for ri, b := range presentRows {
		var known [][]byte
		for i, c := range grp.data {
			if c == nil {
				continue
			}
			if masks[i]&(1<<uint(b)) != 0 {
				known = append(known, c)
			}
		}
		rhs[ri] = xorAll(append(known, grp.parity[b])...)
	}

	// Build the coefficient matrix A[row][col], col per missing index.
	a := make([][]byte, len(presentRows))
	for ri, b := range presentRows {
		row := make([]byte, len(missing))
		for ci, mi := range missing {
			if masks[mi]&(1<<uint(b)) != 0 {
				row[ci] = 1
			}
		}
		a[ri] = row
	}

	sol, ok := solveGF2(a, rhs, len(missing))
	if !ok {
		return // Deficient rank; leave pending for more fragments.
	}

	for ci, mi := range missing {
		grp.data[mi] = sol[ci]
		*recovered++
		*received++
	}
}

// solveGF2 solves A x = b over GF(2) by Gauss-Jordan elimination, where
// A is an len(b) x nCols binary matrix (entries 0/1) and b[row] is a
// byte-slice "vector" (the XOR payload for that row, one bit of the
// scalar system standing in for the whole byte string via XOR). Returns
// the solved x (one byte-slice per column) and true iff the system has
// full column rank (i.e. at least nCols independent rows resolve
// uniquely to each unknown).
func solveGF2(a [][]byte, b [][]byte, nCols int) ([][]byte, bool) {
	nRows := len(a)
	// Augment: track which original rhs vector corresponds to each row
	// as we pivot, XORing rhs vectors exactly as we XOR coefficient rows.
	rows := make([][]byte, nRows)
	rhs := make([][]byte, nRows)
	for i := range a {
		rows[i] = append([]byte(nil), a[i]...)
		rhs[i] = b[i]
	}

	pivotRowFor := make([]int, nCols)
	for i := range pivotRowFor {
		pivotRowFor[i] = -1
	}

	r := 0
	for col := 0; col < nCols && r < nRows; col++ {
		pivot := -1
		for i := r; i < nRows; i++ {
			if rows[i][col] == 1 {
				pivot = i
				break
			}
		}
		if pivot == -1 {
			continue // No row resolves this column yet.
		}
		rows[r], rows[pivot] = rows[pivot], rows[r]
		rhs[r], rhs[pivot] = rhs[pivot], rhs[r]

		for i := 0; i < nRows; i++ {
			if i != r && rows[i][col] == 1 {
				for c := 0; c < nCols; c++ {
					rows[i][c] ^= rows[r][c]
				}
				rhs[i] = xorAll(rhs[i], rhs[r])
			}
		}
		pivotRowFor[col] = r
		r++
	}

	sol := make([][]byte, nCols)
	for col := 0; col < nCols; col++ {
		pr := pivotRowFor[col]
		if pr == -1 {
			return nil, false // Column never resolved: deficient rank.
		}
		sol[col] = rhs[pr]
	}
	return sol, true
}
