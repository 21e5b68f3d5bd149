/*
DESCRIPTION
  dxf0.go defines the DXF0 frame envelope: a 16-byte header identifying an
  I-frame (whole JPEG) or a P-frame (sparse residual blocks against a
  reference luma plane), shared by encoder.go and decoder.go.

LICENSE
  See the udp-video module root for license information.
*/

// Package diff implements the DXF0 differential video codec: a
// block-wise luma residual scheme layered over JPEG I-frames, trading
// bitrate for CPU by skipping blocks that haven't meaningfully changed
// since the last reference frame.
package diff

import "encoding/binary"

// Frame types carried in the DXF0 header's frame_type field.
const (
	FrameI byte = 0
	FrameP byte = 1
)

// magic identifies a DXF0 envelope; version is the only wire version
// this codec understands.
var magic = [4]byte{'D', 'X', 'F', '0'}

const version = 1

// HeaderSize is the fixed size in bytes of the DXF0 frame header.
const HeaderSize = 16

// header is the in-memory form of the 16 header bytes: magic, version,
// frame_type, reserved, width, height, block, T, nblocks.
//
// Wire layout (network byte order):
//
//	0:4   magic "DXF0"
//	4:5   version (1)
//	5:6   frame_type (0=I, 1=P)
//	6:8   reserved (0)
//	8:10  width
//	10:12 height
//	12:13 block
//	13:14 T
//	14:16 nblocks
type header struct {
	frameType byte
	width     uint16
	height    uint16
	block     uint8
	t         uint8
	nblocks   uint16
}

func (h header) encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], magic[:])
	buf[4] = version
	buf[5] = h.frameType
	binary.BigEndian.PutUint16(buf[6:8], 0)
	binary.BigEndian.PutUint16(buf[8:10], h.width)
	binary.BigEndian.PutUint16(buf[10:12], h.height)
	buf[12] = h.block
	buf[13] = uint8(h.t)
	binary.BigEndian.PutUint16(buf[14:16], h.nblocks)
	return buf
}

// decodeHeader parses a header from buf, reporting false on a short
// buffer or a magic/version mismatch.
func decodeHeader(buf []byte) (header, bool) {
	if len(buf) < HeaderSize {
		return header{}, false
	}
	if string(buf[0:4]) != string(magic[:]) || buf[4] != version {
		return header{}, false
	}
	return header{
		frameType: buf[5],
		width:     binary.BigEndian.Uint16(buf[8:10]),
		height:    binary.BigEndian.Uint16(buf[10:12]),
		block:     buf[12],
		t:         buf[13],
		nblocks:   binary.BigEndian.Uint16(buf[14:16]),
	}, true
}
