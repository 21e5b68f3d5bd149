/*
DESCRIPTION
  fec.go declares the Scheme enum and the common Reassembler contract
  shared by the four erasure schemes (none, low, mid, high).

LICENSE
  See the udp-video module root for license information.
*/

// Package fec implements four interchangeable forward-error-correction
// schemes over fixed-size fragment groups: none (no parity), low (single
// whole-group XOR), mid (two-parity XOR), and high (four-parity GF(2)
// code with Gaussian-elimination recovery).
package fec

// Scheme identifies which erasure code a sender/receiver pair is using.
type Scheme int

const (
	None Scheme = iota
	Low
	Mid
	High
)

func (s Scheme) String() string {
	switch s {
	case None:
		return "none"
	case Low:
		return "low"
	case Mid:
		return "mid"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// ParseScheme converts a configuration string ("none"/"low"/"mid"/"high")
// into a Scheme, defaulting to None for anything unrecognised.
func ParseScheme(s string) Scheme {
	switch s {
	case "low":
		return Low
	case "mid":
		return Mid
	case "high":
		return High
	default:
		return None
	}
}

// DefaultK is the default group size (fec_k) used when none is supplied.
const DefaultK = 8

// Result is what a Reassembler returns once a frame is complete.
type Result struct {
	FrameID   uint32
	Frame     []byte
	Recovered int
}

// Reassembler accepts raw UDP fragment payloads (header + data) one at a
// time and reports a completed frame once all of its fragments (or a
// recoverable subset of them) have arrived. Per-frame state is freed the
// moment a frame completes; state for a frame that never completes is
// kept, as no reassembler evicts partial frames.
type Reassembler interface {
	// Add ingests one fragment. ok is false until the frame it belongs to
	// is complete. A fragment of an already completed frame (such as a
	// late parity chunk) starts a new assembly for that frame id.
	Add(packet []byte) (res Result, ok bool)
}

// Fragmenter turns one encoded frame into an ordered list of wire-ready
// UDP payloads (header + data, for data fragments; header + parity, for
// parity fragments).
type Fragmenter interface {
	Fragment(frameID uint32, frame []byte) [][]byte
}

// NewFragmenter returns the Fragmenter for scheme s, with group size k
// (only meaningful for low/mid/high; ignored by none).
func NewFragmenter(s Scheme, k int) Fragmenter {
	if k <= 0 {
		k = DefaultK
	}
	switch s {
	case Low:
		return lowFragmenter{k: k}
	case Mid:
		return midFragmenter{k: k}
	case High:
		return highFragmenter{k: k}
	default:
		return noneFragmenter{}
	}
}

// NewReassembler returns a fresh Reassembler for scheme s with group
// size k.
func NewReassembler(s Scheme, k int) Reassembler {
	if k <= 0 {
		k = DefaultK
	}
	switch s {
	case Low:
		return newLowReassembler(k)
	case Mid:
		return newMidReassembler(k)
	case High:
		return newHighReassembler(k)
	default:
		return newSimpleReassembler()
	}
}
