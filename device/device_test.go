package device

import (
	"sync"
	"testing"

	"gocv.io/x/gocv"
)

func frame(t *testing.T, fill byte) gocv.Mat {
	t.Helper()
	data := make([]byte, 4*4*3)
	for i := range data {
		data[i] = fill
	}
	m, err := gocv.NewMatFromBytes(4, 4, gocv.MatTypeCV8UC3, data)
	if err != nil {
		t.Fatalf("NewMatFromBytes: %v", err)
	}
	return m
}

func TestManualSourceReadBlocksUntilPush(t *testing.T) {
	m := NewManualSource()
	if m.IsRunning() {
		t.Fatal("expected not running before Start")
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !m.IsRunning() {
		t.Fatal("expected running after Start")
	}

	f := frame(t, 42)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Push(f); err != nil {
			t.Errorf("Push: %v", err)
		}
	}()

	got, err := m.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	defer got.Close()
	wg.Wait()

	if got.Rows() != 4 || got.Cols() != 4 {
		t.Errorf("Read() returned %dx%d, want 4x4", got.Rows(), got.Cols())
	}
}

func TestManualSourceReadAfterStopReturnsErrNotRunning(t *testing.T) {
	m := NewManualSource()
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := m.Read(); err != ErrNotRunning {
		t.Errorf("Read() after Stop = %v, want ErrNotRunning", err)
	}
}

func TestManualSourcePushBeforeStartErrors(t *testing.T) {
	m := NewManualSource()
	f := frame(t, 1)
	defer f.Close()
	if err := m.Push(f); err != ErrNotRunning {
		t.Errorf("Push() before Start = %v, want ErrNotRunning", err)
	}
}

func TestMultiErrorFormatsAllErrors(t *testing.T) {
	me := MultiError{errBad("a"), errBad("b")}
	got := me.Error()
	if got == "" {
		t.Fatal("expected non-empty error string")
	}
}

type errBad string

func (e errBad) Error() string { return string(e) }
