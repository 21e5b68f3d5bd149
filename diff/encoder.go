/*
DESCRIPTION
  encoder.go implements the DXF0 encoder: it always produces a JPEG
  encoding of the current frame, and decides whether to ship that JPEG
  as an I-frame or a sparse set of luma residual blocks as a P-frame,
  via four independent promotion gates.

LICENSE
  See the udp-video module root for license information.
*/

package diff

import (
	"time"

	"gocv.io/x/gocv"
)

// EncoderConfig mirrors the differential-codec fields of config.Config;
// kept separate so diff has no import-time dependency on the config
// package.
type EncoderConfig struct {
	Block            int
	T                int
	SADSkipPerPx     float64
	SceneChangeRatio float64
	JPEGGateRatio    float64
	ZlibLevel        int
	ResetInterval    time.Duration
	JPEGQuality      int
}

// Encoder holds the reference luma plane and emits DXF0 I/P frames
// against it.
type Encoder struct {
	cfg EncoderConfig

	refY       []byte
	refH, refW int
	haveRef    bool
	lastI      time.Time
}

// NewEncoder returns an Encoder configured by cfg. The first call to
// Encode always yields an I-frame, regardless of forceI.
func NewEncoder(cfg EncoderConfig) *Encoder {
	return &Encoder{cfg: cfg}
}

// Encode converts bgr into a DXF0 byte string. forceI should be set on
// the caller's first frame and whenever an external reset is desired;
// the encoder additionally forces an I-frame on its own once
// cfg.ResetInterval has elapsed since the last one, on a scene-change
// gate, and on a size gate -- four independent promotion paths in
// total.
func (e *Encoder) Encode(bgr gocv.Mat) ([]byte, error) {
	return e.encode(bgr, false)
}

// EncodeForce behaves like Encode but additionally treats forceI as
// set, guaranteeing an I-frame is emitted.
func (e *Encoder) EncodeForce(bgr gocv.Mat) ([]byte, error) {
	return e.encode(bgr, true)
}

func (e *Encoder) encode(bgr gocv.Mat, forceI bool) ([]byte, error) {
	jpegBytes, err := encodeJPEG(bgr, e.cfg.JPEGQuality)
	if err != nil {
		return nil, err
	}

	p, err := bgrToPlanes(bgr)
	if err != nil {
		return nil, err
	}

	resetDue := e.haveRef && e.cfg.ResetInterval > 0 && time.Since(e.lastI) >= e.cfg.ResetInterval

	if forceI || !e.haveRef || resetDue {
		return e.emitI(p, jpegBytes)
	}

	h, w, block := p.h, p.w, e.cfg.Block
	if h != e.refH || w != e.refW {
		// Reference shape mismatch: treat as if no reference at all.
		return e.emitI(p, jpegBytes)
	}

	rowsOfBlocks := h / block
	colsOfBlocks := w / block
	total := rowsOfBlocks * colsOfBlocks

	var segments [][]byte
	pSize := HeaderSize
	for by := 0; by < rowsOfBlocks*block; by += block {
		for bx := 0; bx < colsOfBlocks*block; bx += block {
			residual := e.blockResidual(p.y, by, bx, block, w)
			meanAbs := float64(sumAbs(residual)) / float64(block*block)
			if meanAbs < e.cfg.SADSkipPerPx {
				continue
			}
			raw := serializeResidual(residual)
			comp, err := compressBlock(raw, e.cfg.ZlibLevel)
			if err != nil {
				return nil, err
			}
			bh := blockHeader{bx: uint16(bx), by: uint16(by), datalen: uint16(len(comp))}
			seg := append(bh.encode(), comp...)
			segments = append(segments, seg)
			pSize += len(seg)
		}
	}
	nonSkipped := len(segments)

	promoteScene := total > 0 && float64(nonSkipped)/float64(total) > e.cfg.SceneChangeRatio
	promoteSize := pSize > int(e.cfg.JPEGGateRatio*float64(len(jpegBytes)))

	if promoteScene || promoteSize {
		return e.emitI(p, jpegBytes)
	}

	hdr := header{frameType: FrameP, width: uint16(w), height: uint16(h), block: uint8(block), t: uint8(e.cfg.T), nblocks: uint16(nonSkipped)}
	out := hdr.encode()
	for _, seg := range segments {
		out = append(out, seg...)
	}
	e.updateRef(p)
	return out, nil
}

// blockResidual computes the zero-thresholded signed residual for one
// block*block region of the luma plane against the reference.
func (e *Encoder) blockResidual(y []byte, by, bx, block, w int) []int16 {
	out := make([]int16, block*block)
	t := int16(e.cfg.T)
	i := 0
	for dy := 0; dy < block; dy++ {
		rowOff := (by+dy)*w + bx
		for dx := 0; dx < block; dx++ {
			cur := int16(y[rowOff+dx])
			ref := int16(e.refY[rowOff+dx])
			d := cur - ref
			if d < 0 {
				if -d < t {
					d = 0
				}
			} else if d < t {
				d = 0
			}
			out[i] = d
			i++
		}
	}
	return out
}

func (e *Encoder) emitI(p planes, jpegBytes []byte) ([]byte, error) {
	hdr := header{frameType: FrameI, width: uint16(p.w), height: uint16(p.h), block: uint8(e.cfg.Block), t: uint8(e.cfg.T), nblocks: 0}
	out := append(hdr.encode(), jpegBytes...)
	e.updateRef(p)
	e.lastI = time.Now()
	return out, nil
}

func (e *Encoder) updateRef(p planes) {
	e.refY = p.y
	e.refH, e.refW = p.h, p.w
	e.haveRef = true
}

// encodeJPEG encodes bgr as a JPEG byte string at the given quality
// (0-100).
func encodeJPEG(bgr gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(".jpg", bgr, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}
