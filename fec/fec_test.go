package fec

import (
	"bytes"
	"testing"
)

func TestParseScheme(t *testing.T) {
	cases := map[string]Scheme{
		"none": None, "low": Low, "mid": Mid, "high": High, "bogus": None, "": None,
	}
	for in, want := range cases {
		if got := ParseScheme(in); got != want {
			t.Errorf("ParseScheme(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSchemeString(t *testing.T) {
	cases := []struct {
		s    Scheme
		want string
	}{
		{None, "none"}, {Low, "low"}, {Mid, "mid"}, {High, "high"}, {Scheme(99), "unknown"},
	}
	for _, c := range cases {
		if got := c.s.String(); got != c.want {
			t.Errorf("Scheme(%d).String() = %q, want %q", c.s, got, c.want)
		}
	}
}

func makeFrame(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

func roundTrip(t *testing.T, scheme Scheme, k int, frame []byte, drop func(i int) bool) (Result, bool) {
	t.Helper()
	frag := NewFragmenter(scheme, k)
	reasm := NewReassembler(scheme, k)

	packets := frag.Fragment(42, frame)
	var res Result
	var ok bool
	for i, p := range packets {
		if drop != nil && drop(i) {
			continue
		}
		// Parity sent after the frame completes starts a fresh, incomplete
		// assembly, so keep the completing result rather than the last one.
		if r, done := reasm.Add(p); done {
			res, ok = r, done
		}
	}
	return res, ok
}

func TestNoneRoundTrip(t *testing.T) {
	frame := makeFrame(3000, 7)
	res, ok := roundTrip(t, None, DefaultK, frame, nil)
	if !ok {
		t.Fatal("expected completion with no drops")
	}
	if !bytes.Equal(res.Frame, frame) {
		t.Error("reassembled frame does not match original")
	}
	if res.Recovered != 0 {
		t.Errorf("Recovered = %d, want 0", res.Recovered)
	}
}

func TestNoneRoundTripSmallFrame(t *testing.T) {
	frame := makeFrame(1, 1)
	res, ok := roundTrip(t, None, DefaultK, frame, nil)
	if !ok || !bytes.Equal(res.Frame, frame) {
		t.Fatal("single-byte frame failed to round trip")
	}
}

func TestNoneIncompleteNeverCompletes(t *testing.T) {
	frame := makeFrame(5000, 3)
	_, ok := roundTrip(t, None, DefaultK, frame, func(i int) bool { return i == 2 })
	if ok {
		t.Fatal("reassembly completed despite a missing chunk")
	}
}

func TestLowRecoversOneLossPerGroup(t *testing.T) {
	frame := makeFrame(20000, 11)
	k := 8
	frag := NewFragmenter(Low, k)
	reasm := NewReassembler(Low, k)
	packets := frag.Fragment(1, frame)

	// Drop exactly one data chunk from the first group (index 0).
	var res Result
	var ok bool
	for i, p := range packets {
		if i == 0 {
			continue
		}
		if r, done := reasm.Add(p); done {
			res, ok = r, done
		}
	}
	if !ok {
		t.Fatal("expected low scheme to recover a single dropped chunk")
	}
	if !bytes.Equal(res.Frame, frame) {
		t.Error("recovered frame mismatch")
	}
	if res.Recovered != 1 {
		t.Errorf("Recovered = %d, want 1", res.Recovered)
	}
}

func TestLowCannotRecoverTwoLossesInSameGroup(t *testing.T) {
	frame := makeFrame(20000, 11)
	k := 8
	_, ok := roundTrip(t, Low, k, frame, func(i int) bool { return i == 0 || i == 1 })
	if ok {
		t.Fatal("low scheme should not recover two losses in the same group")
	}
}

func TestMidRecoversOppositeParityTwoLoss(t *testing.T) {
	k := 8
	frame := makeFrame(k*1040, 5) // exactly one full group
	frag := NewFragmenter(Mid, k)
	reasm := NewReassembler(Mid, k)
	packets := frag.Fragment(7, frame)

	// Drop data chunk 0 (even) and data chunk 1 (odd): opposite parity.
	var res Result
	var ok bool
	for i, p := range packets {
		if i == 0 || i == 1 {
			continue
		}
		res, ok = reasm.Add(p)
	}
	if !ok {
		t.Fatal("mid scheme should recover two losses of opposite parity")
	}
	if !bytes.Equal(res.Frame, frame) {
		t.Error("recovered frame mismatch")
	}
	if res.Recovered != 2 {
		t.Errorf("Recovered = %d, want 2", res.Recovered)
	}
}

func TestMidCannotRecoverSameParityTwoLoss(t *testing.T) {
	k := 8
	frame := makeFrame(k*1040, 5)
	_, ok := roundTrip(t, Mid, k, frame, func(i int) bool { return i == 0 || i == 2 })
	if ok {
		t.Fatal("mid scheme should not recover two same-parity losses")
	}
}

func TestMidSingleLoss(t *testing.T) {
	k := 8
	frame := makeFrame(k*1040, 2)
	res, ok := roundTrip(t, Mid, k, frame, func(i int) bool { return i == 3 })
	if !ok || !bytes.Equal(res.Frame, frame) {
		t.Fatal("mid scheme failed to recover a single loss")
	}
}

func TestHighRecoversUpToFourLossesPerGroup(t *testing.T) {
	k := 8
	frame := makeFrame(k*1040, 9) // one full group of 8 data chunks
	frag := NewFragmenter(High, k)
	reasm := NewReassembler(High, k)
	packets := frag.Fragment(99, frame)

	drop := map[int]bool{0: true, 2: true, 5: true, 7: true}
	var res Result
	var ok bool
	for i, p := range packets {
		if drop[i] {
			continue
		}
		res, ok = reasm.Add(p)
	}
	if !ok {
		t.Fatal("high scheme should recover four losses given four parity chunks")
	}
	if !bytes.Equal(res.Frame, frame) {
		t.Error("recovered frame mismatch")
	}
	if res.Recovered != 4 {
		t.Errorf("Recovered = %d, want 4", res.Recovered)
	}
}

func TestHighFailsWithInsufficientParity(t *testing.T) {
	k := 8
	frame := makeFrame(k*1040, 9)
	// Drop 4 data chunks and also one parity chunk: rank deficient.
	_, ok := roundTrip(t, High, k, frame, func(i int) bool {
		return i == 0 || i == 2 || i == 5 || i == 7 || i == 8
	})
	if ok {
		t.Fatal("high scheme should not recover when a parity chunk is also lost and rank is deficient")
	}
}

func TestHighMultiGroup(t *testing.T) {
	k := 8
	frame := makeFrame(20*1040, 4) // spans multiple groups
	frag := NewFragmenter(High, k)
	reasm := NewReassembler(High, k)
	packets := frag.Fragment(5, frame)

	var res Result
	var ok bool
	for i, p := range packets {
		if i == 13 { // a data loss in the second group (indices 12-19)
			continue
		}
		if r, done := reasm.Add(p); done {
			res, ok = r, done
		}
	}
	if !ok || !bytes.Equal(res.Frame, frame) {
		t.Fatal("high scheme failed on multi-group frame with a single loss")
	}
}

func TestXorAllSkipsNil(t *testing.T) {
	got := xorAll([]byte{1, 2, 3}, nil, []byte{1, 1, 1})
	want := []byte{0, 3, 2}
	if !bytes.Equal(got, want) {
		t.Errorf("xorAll = %v, want %v", got, want)
	}
}

func TestXorAllUnequalLength(t *testing.T) {
	got := xorAll([]byte{0xff}, []byte{0x0f, 0xf0})
	want := []byte{0xf0, 0xf0}
	if !bytes.Equal(got, want) {
		t.Errorf("xorAll = %v, want %v", got, want)
	}
}
