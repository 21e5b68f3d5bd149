/*
DESCRIPTION
  decoder.go implements the DXF0 decoder: JPEG-decodes I-frames and
  applies sparse luma residual blocks from P-frames onto a stored
  reference, tolerating individually corrupt blocks and headers without
  failing the whole frame.

LICENSE
  See the udp-video module root for license information.
*/

package diff

import (
	"gocv.io/x/gocv"
)

// Decoder reconstructs BGR images from a stream of DXF0 byte strings,
// maintaining reference planes across calls. A Decoder is not safe for
// concurrent use; callers own it exclusively (the decode worker, per
// the pipeline's ownership rules).
type Decoder struct {
	haveRef    bool
	refY       []byte
	refU, refV []byte
	h, w       int
}

// NewDecoder returns an empty Decoder with no reference state.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Reset discards all reference state, as though no frame had ever been
// decoded.
func (d *Decoder) Reset() {
	*d = Decoder{}
}

// Decode parses one DXF0 byte string and returns the reconstructed BGR
// image. ok is false when the frame must be dropped: a bad magic or
// version, a failed JPEG decode, or a P-frame with no usable reference.
// No error is ever returned to the caller; every failure degrades to a
// drop, per the decoder's failure semantics.
func (d *Decoder) Decode(frame []byte) (gocv.Mat, bool) {
	hdr, ok := decodeHeader(frame)
	if !ok {
		return gocv.Mat{}, false
	}
	payload := frame[HeaderSize:]

	if hdr.frameType == FrameI {
		return d.decodeI(hdr, payload)
	}
	return d.decodeP(hdr, payload)
}

func (d *Decoder) decodeI(hdr header, payload []byte) (gocv.Mat, bool) {
	bgr, err := gocv.IMDecode(payload, gocv.IMReadColor)
	if err != nil || bgr.Empty() {
		return gocv.Mat{}, false
	}

	p, err := bgrToPlanes(bgr)
	if err != nil {
		bgr.Close()
		return gocv.Mat{}, false
	}
	d.refY, d.refU, d.refV = p.y, p.u, p.v
	d.h, d.w = p.h, p.w
	d.haveRef = true
	return bgr, true
}

func (d *Decoder) decodeP(hdr header, payload []byte) (gocv.Mat, bool) {
	if !d.haveRef {
		return gocv.Mat{}, false
	}
	if int(hdr.width) != d.w || int(hdr.height) != d.h {
		d.Reset()
		return gocv.Mat{}, false
	}

	newY := append([]byte(nil), d.refY...)
	block := int(hdr.block)
	off := 0

	for i := 0; i < int(hdr.nblocks); i++ {
		if off+blockHeaderSize > len(payload) {
			break // Trailing data untrusted; stop processing this frame.
		}
		bh := decodeBlockHeader(payload[off : off+blockHeaderSize])
		off += blockHeaderSize

		if off+int(bh.datalen) > len(payload) {
			break // datalen inconsistent with remaining bytes: stop.
		}
		comp := payload[off : off+int(bh.datalen)]
		off += int(bh.datalen)

		raw, err := decompressBlock(comp)
		if err != nil {
			continue // Corrupt block: skip only this one.
		}
		if len(raw) != block*block*2 {
			continue // Unexpected size: skip only this one.
		}
		if int(bh.by)+block > d.h || int(bh.bx)+block > d.w {
			continue // Out of range: skip only this one.
		}

		residual := deserializeResidual(raw)
		applyResidual(newY, residual, int(bh.by), int(bh.bx), block, d.w)
	}

	bgr, err := planesToBGR(planes{h: d.h, w: d.w, y: newY, u: d.refU, v: d.refV})
	if err != nil {
		return gocv.Mat{}, false
	}

	d.refY = newY
	return bgr, true
}

// applyResidual adds residual to the block*block region of y at
// (by, bx), clipping to [0, 255].
func applyResidual(y []byte, residual []int16, by, bx, block, w int) {
	i := 0
	for dy := 0; dy < block; dy++ {
		rowOff := (by+dy)*w + bx
		for dx := 0; dx < block; dx++ {
			v := int16(y[rowOff+dx]) + residual[i]
			i++
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			y[rowOff+dx] = byte(v)
		}
	}
}
