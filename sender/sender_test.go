package sender

import (
	"bytes"
	"net"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/kura-suke/udp-video/config"
	"github.com/kura-suke/udp-video/device"
	"github.com/kura-suke/udp-video/internal/logging"
	"github.com/kura-suke/udp-video/wire"
)

func testLogger() logging.Logger {
	return logging.New(logging.Error, new(bytes.Buffer), false)
}

func testFrame(t *testing.T, fill byte) gocv.Mat {
	t.Helper()
	data := make([]byte, 32*32*3)
	for i := range data {
		data[i] = fill
	}
	m, err := gocv.NewMatFromBytes(32, 32, gocv.MatTypeCV8UC3, data)
	if err != nil {
		t.Fatalf("NewMatFromBytes: %v", err)
	}
	return m
}

func TestSenderSendsFragmentsToServer(t *testing.T) {
	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer serverConn.Close()
	serverPort := serverConn.LocalAddr().(*net.UDPAddr).Port

	cfg := config.NewConfig(testLogger())
	cfg.ServerIP = "127.0.0.1"
	cfg.ServerPort = uint16(serverPort)
	cfg.Width, cfg.Height = 32, 32
	cfg.FrameRate = 100
	cfg.Diff = false
	cfg.FEC = config.FECNone

	src := device.NewManualSource()
	s := New(cfg, src)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	go func() {
		f := testFrame(t, 77)
		src.Push(f)
	}()

	buf := make([]byte, 2048)
	serverConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := serverConn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP: %v", err)
	}
	if n < wire.HeaderSize {
		t.Fatalf("received packet too short: %d bytes", n)
	}

	hdr, err := wire.ParseHeader(buf[:n])
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if hdr.FrameID != 0 {
		t.Errorf("FrameID = %d, want 0 for the first sent frame", hdr.FrameID)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer serverConn.Close()
	serverPort := serverConn.LocalAddr().(*net.UDPAddr).Port

	cfg := config.NewConfig(testLogger())
	cfg.ServerIP = "127.0.0.1"
	cfg.ServerPort = uint16(serverPort)
	cfg.FrameRate = 100

	src := device.NewManualSource()
	s := New(cfg, src)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	s.Stop()
	s.Stop() // Must not panic or block.
}
