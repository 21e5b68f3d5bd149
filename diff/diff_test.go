package diff

import (
	"math"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func makeBGR(t *testing.T, h, w int, fill func(y, x int) (b, g, r byte)) gocv.Mat {
	t.Helper()
	data := make([]byte, h*w*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b, g, r := fill(y, x)
			off := (y*w + x) * 3
			data[off] = b
			data[off+1] = g
			data[off+2] = r
		}
	}
	m, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, data)
	if err != nil {
		t.Fatalf("NewMatFromBytes: %v", err)
	}
	return m
}

func solidColor(b, g, r byte) func(y, x int) (byte, byte, byte) {
	return func(int, int) (byte, byte, byte) { return b, g, r }
}

func checkerboard(block int) func(y, x int) (byte, byte, byte) {
	return func(y, x int) (byte, byte, byte) {
		if ((y/block)+(x/block))%2 == 0 {
			return 20, 20, 20
		}
		return 220, 220, 220
	}
}

func testEncoderConfig() EncoderConfig {
	return EncoderConfig{
		Block:            16,
		T:                4,
		SADSkipPerPx:     2,
		SceneChangeRatio: 0.5,
		JPEGGateRatio:    0.6,
		ZlibLevel:        6,
		ResetInterval:    time.Hour,
		JPEGQuality:      80,
	}
}

func psnr(a, b gocv.Mat) float64 {
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a, b, &diff)
	mean := diff.Mean().Val1
	if mean == 0 {
		return math.Inf(1)
	}
	return 20*math.Log10(255) - 10*math.Log10(mean*mean)
}

func TestIFrameRoundTrip(t *testing.T) {
	img := makeBGR(t, 64, 64, checkerboard(16))
	defer img.Close()

	enc := NewEncoder(testEncoderConfig())
	frame, err := enc.EncodeForce(img)
	if err != nil {
		t.Fatalf("EncodeForce: %v", err)
	}

	dec := NewDecoder()
	out, ok := dec.Decode(frame)
	if !ok {
		t.Fatal("decode of forced I-frame failed")
	}
	defer out.Close()

	if out.Rows() != img.Rows() || out.Cols() != img.Cols() {
		t.Fatalf("decoded size %dx%d != original %dx%d", out.Rows(), out.Cols(), img.Rows(), img.Cols())
	}
	if psnr(img, out) < 20 {
		t.Error("decoded I-frame PSNR unexpectedly low")
	}
}

func TestPFrameStabilityOnIdenticalFrames(t *testing.T) {
	img := makeBGR(t, 64, 64, checkerboard(16))
	defer img.Close()

	enc := NewEncoder(testEncoderConfig())
	_, err := enc.EncodeForce(img)
	if err != nil {
		t.Fatalf("EncodeForce: %v", err)
	}

	dec := NewDecoder()
	first := mustIFrameFromEncoder(t, enc, img)
	out1, ok := dec.Decode(first)
	if !ok {
		t.Fatal("decode of first I-frame failed")
	}
	defer out1.Close()

	second, err := enc.Encode(img)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	hdr, ok := decodeHeader(second)
	if !ok {
		t.Fatal("second frame header invalid")
	}
	if hdr.frameType != FrameP {
		t.Fatalf("expected P-frame for identical consecutive frames, got type %d", hdr.frameType)
	}
	if hdr.nblocks != 0 {
		t.Errorf("nblocks = %d, want 0 for identical frames", hdr.nblocks)
	}

	out2, ok := dec.Decode(second)
	if !ok {
		t.Fatal("decode of stable P-frame failed")
	}
	defer out2.Close()

	if psnr(out1, out2) < 40 {
		t.Error("decoded image drifted across an unchanged P-frame")
	}
}

// mustIFrameFromEncoder re-derives the same I-frame bytes a fresh
// encoder would produce against img, for seeding a decoder
// independently of the encoder under test.
func mustIFrameFromEncoder(t *testing.T, enc *Encoder, img gocv.Mat) []byte {
	t.Helper()
	fresh := NewEncoder(enc.cfg)
	b, err := fresh.EncodeForce(img)
	if err != nil {
		t.Fatalf("EncodeForce: %v", err)
	}
	return b
}

func TestSceneChangePromotesToI(t *testing.T) {
	cfg := testEncoderConfig()
	cfg.SceneChangeRatio = 0.1
	enc := NewEncoder(cfg)

	img1 := makeBGR(t, 64, 64, solidColor(10, 10, 10))
	defer img1.Close()
	if _, err := enc.EncodeForce(img1); err != nil {
		t.Fatalf("EncodeForce: %v", err)
	}

	img2 := makeBGR(t, 64, 64, solidColor(240, 240, 240))
	defer img2.Close()
	frame, err := enc.Encode(img2)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	hdr, ok := decodeHeader(frame)
	if !ok {
		t.Fatal("frame header invalid")
	}
	if hdr.frameType != FrameI {
		t.Error("expected scene change to promote to I-frame")
	}
}

func TestSizeGatePromotesToI(t *testing.T) {
	cfg := testEncoderConfig()
	cfg.JPEGGateRatio = 0.01 // Any non-trivial P-frame exceeds this.
	cfg.SceneChangeRatio = 1.1
	enc := NewEncoder(cfg)

	img1 := makeBGR(t, 64, 64, checkerboard(16))
	defer img1.Close()
	if _, err := enc.EncodeForce(img1); err != nil {
		t.Fatalf("EncodeForce: %v", err)
	}

	img2 := makeBGR(t, 64, 64, checkerboard(8))
	defer img2.Close()
	frame, err := enc.Encode(img2)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	hdr, ok := decodeHeader(frame)
	if !ok {
		t.Fatal("frame header invalid")
	}
	if hdr.frameType != FrameI {
		t.Error("expected size gate to promote to I-frame")
	}
}

func TestDropsOnBadMagic(t *testing.T) {
	dec := NewDecoder()
	bogus := make([]byte, HeaderSize+4)
	copy(bogus, []byte("XXXX"))
	if _, ok := dec.Decode(bogus); ok {
		t.Error("expected decode to drop a frame with bad magic")
	}
}

func TestDropsPFrameWithNoReference(t *testing.T) {
	dec := NewDecoder()
	hdr := header{frameType: FrameP, width: 64, height: 64, block: 16, t: 4, nblocks: 0}
	if _, ok := dec.Decode(hdr.encode()); ok {
		t.Error("expected decode to drop a P-frame with no reference")
	}
}

func TestCorruptBlockIsSkippedNotFatal(t *testing.T) {
	img := makeBGR(t, 32, 32, checkerboard(16))
	defer img.Close()

	dec := NewDecoder()
	enc := NewEncoder(testEncoderConfig())
	iframe, err := enc.EncodeForce(img)
	if err != nil {
		t.Fatalf("EncodeForce: %v", err)
	}
	if _, ok := dec.Decode(iframe); !ok {
		t.Fatal("seeding I-frame failed")
	}

	hdr := header{frameType: FrameP, width: 32, height: 32, block: 16, t: 4, nblocks: 1}
	bh := blockHeader{bx: 0, by: 0, datalen: 6}
	garbage := []byte{1, 2, 3, 4, 5, 6} // Not a valid zlib stream.
	frame := append(hdr.encode(), append(bh.encode(), garbage...)...)

	out, ok := dec.Decode(frame)
	if !ok {
		t.Fatal("decode should not fail the whole frame over one corrupt block")
	}
	defer out.Close()
}
