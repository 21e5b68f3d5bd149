/*
DESCRIPTION
  yuv.go converts between BGR images and the BT.601 4:2:0 planar layout
  (I420: a full-resolution Y plane followed by quarter-resolution U and V
  planes) that the DXF0 codec diffs against, via gocv's OpenCV colour
  conversion.

LICENSE
  See the udp-video module root for license information.
*/

package diff

import (
	"fmt"

	"gocv.io/x/gocv"
)

// planes holds the three BT.601 4:2:0 planes extracted from one BGR
// frame, each a plain byte slice so the residual codec never has to
// touch gocv/OpenCV types.
type planes struct {
	h, w int
	y    []byte // h*w bytes
	u, v []byte // (h/2)*(w/2) bytes each
}

// bgrToPlanes converts a BGR Mat to Y/U/V planes via OpenCV's I420
// conversion, which packs Y followed by U then V into one (h*3/2, w)
// single-channel Mat.
func bgrToPlanes(bgr gocv.Mat) (planes, error) {
	h, w := bgr.Rows(), bgr.Cols()
	if h == 0 || w == 0 {
		return planes{}, fmt.Errorf("diff: empty frame")
	}

	yuv := gocv.NewMat()
	defer yuv.Close()
	gocv.CvtColor(bgr, &yuv, gocv.ColorBGRToYUVI420)

	data, err := yuv.DataPtrUint8()
	if err != nil {
		return planes{}, fmt.Errorf("diff: reading YUV plane data: %w", err)
	}

	ySize := h * w
	uvSize := (h / 2) * (w / 2)
	if len(data) < ySize+2*uvSize {
		return planes{}, fmt.Errorf("diff: unexpected YUV buffer size %d", len(data))
	}

	p := planes{
		h: h, w: w,
		y: append([]byte(nil), data[:ySize]...),
		u: append([]byte(nil), data[ySize:ySize+uvSize]...),
		v: append([]byte(nil), data[ySize+uvSize:ySize+2*uvSize]...),
	}
	return p, nil
}

// planesToBGR rebuilds a BGR Mat from Y/U/V planes via OpenCV's I420
// conversion.
func planesToBGR(p planes) (gocv.Mat, error) {
	buf := make([]byte, p.h*p.w+2*len(p.u))
	copy(buf, p.y)
	copy(buf[p.h*p.w:], p.u)
	copy(buf[p.h*p.w+len(p.u):], p.v)

	yuv, err := gocv.NewMatFromBytes(p.h*3/2, p.w, gocv.MatTypeCV8U, buf)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("diff: building YUV mat: %w", err)
	}
	defer yuv.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(yuv, &bgr, gocv.ColorYUVToBGRI420)
	return bgr, nil
}
