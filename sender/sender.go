/*
DESCRIPTION
  sender.go provides VideoSender, a pipeline that captures frames from a
  FrameSource, encodes them (optionally through the DXF0 differential
  codec), fragments them per the configured FEC scheme, and sends them as
  UDP datagrams to a receiver.

LICENSE
  See the udp-video module root for license information.
*/

// Package sender implements the capture -> encode -> send side of the
// udp-video pipeline.
package sender

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/kura-suke/udp-video/config"
	"github.com/kura-suke/udp-video/device"
	"github.com/kura-suke/udp-video/diff"
	"github.com/kura-suke/udp-video/fec"
)

// ringSize is the number of most-recent captured frames kept by the
// capture worker; older frames are dropped as new ones arrive.
const ringSize = 3

// captureRetryDelay paces retries after a failed FrameSource.Read so a
// persistently erroring device doesn't spin the capture worker at full
// CPU.
const captureRetryDelay = 100 * time.Millisecond

// encodedFrame is one encoded frame byte string and its assigned id, as
// handed from the encode worker to the send worker.
type encodedFrame struct {
	id    uint32
	bytes []byte
}

// VideoSender drives the capture, encode and send workers of a sending
// session. It is not safe for concurrent Start/Stop calls.
type VideoSender struct {
	cfg    config.Config
	src    device.FrameSource
	frag   fec.Fragmenter
	conn   net.Conn
	serverAddr string

	encoder *diff.Encoder

	wg   sync.WaitGroup
	stop chan struct{}
	err  chan error

	ringMu sync.Mutex
	ring   []gocv.Mat

	encQueue chan encodedFrame

	running bool
}

// New returns a VideoSender reading frames from src and sending to the
// address configured by cfg.ServerIP/cfg.ServerPort.
func New(cfg config.Config, src device.FrameSource) *VideoSender {
	return &VideoSender{
		cfg: cfg,
		src: src,
		err: make(chan error),
	}
}

// handleErrors drains async worker errors to the logger until the
// sender is stopped.
func (s *VideoSender) handleErrors() {
	for {
		err, ok := <-s.err
		if !ok {
			return
		}
		if err != nil {
			s.cfg.Logger.Error("async error", "error", err.Error())
		}
	}
}

// Start configures the FrameSource, opens the UDP socket, and launches
// the capture, encode and send workers.
func (s *VideoSender) Start() error {
	if s.running {
		s.cfg.Logger.Warning("start called, but sender already running")
		return nil
	}

	s.cfg.Validate()

	if err := s.src.Set(s.cfg); err != nil {
		s.cfg.Logger.Warning("frame source configuration had invalid fields", "error", err.Error())
	}
	if err := s.src.Start(); err != nil {
		return errors.Wrap(err, "could not start frame source")
	}

	s.serverAddr = fmt.Sprintf("%s:%d", s.cfg.ServerIP, s.cfg.ServerPort)
	conn, err := net.Dial("udp", s.serverAddr)
	if err != nil {
		s.src.Stop()
		return errors.Wrap(err, "could not dial udp server")
	}
	s.conn = conn

	scheme := fec.ParseScheme(s.cfg.FEC)
	s.frag = fec.NewFragmenter(scheme, s.cfg.FECK)

	if s.cfg.Diff {
		s.encoder = diff.NewEncoder(diff.EncoderConfig{
			Block:            s.cfg.Block,
			T:                s.cfg.T,
			SADSkipPerPx:     s.cfg.SADSkipPerPx,
			SceneChangeRatio: s.cfg.SceneChangeRatio,
			JPEGGateRatio:    s.cfg.JPEGGateRatio,
			ZlibLevel:        s.cfg.ZlibLevel,
			ResetInterval:    s.cfg.ResetInterval,
			JPEGQuality:      s.cfg.JPEGQuality,
		})
	}

	s.stop = make(chan struct{})
	s.encQueue = make(chan encodedFrame, 1)
	s.ring = nil

	go s.handleErrors()

	s.wg.Add(3)
	go s.captureLoop()
	go s.encodeLoop()
	go s.sendLoop()

	s.running = true
	s.cfg.Logger.Info("sender started", "server", s.serverAddr)
	return nil
}

// Stop signals every worker to exit, waits for them to finish, and
// releases the FrameSource and socket.
func (s *VideoSender) Stop() {
	if !s.running {
		s.cfg.Logger.Warning("stop called but sender isn't running")
		return
	}
	close(s.stop)

	// captureLoop may be parked inside a FrameSource.Read that only
	// returns once a frame arrives or the source is stopped (ManualSource
	// does this). If the workers have not exited within stopJoinTimeout,
	// stop the source to release that Read, then finish the join.
	const stopJoinTimeout = time.Second
	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		s.src.Stop()
		<-done
	}
	close(s.err)

	if err := s.src.Stop(); err != nil {
		s.cfg.Logger.Error("could not stop frame source", "error", err.Error())
	}
	if s.conn != nil {
		s.conn.Close()
	}
	s.running = false
	s.cfg.Logger.Info("sender stopped")
}

// captureLoop reads frames from the FrameSource at the source's own
// pace and keeps only the most recent ringSize of them.
func (s *VideoSender) captureLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		frame, err := s.src.Read()
		if err != nil {
			select {
			case <-s.stop:
				return
			case <-time.After(captureRetryDelay):
			}
			continue
		}

		s.ringMu.Lock()
		s.ring = append(s.ring, frame)
		for len(s.ring) > ringSize {
			s.ring[0].Close()
			s.ring = s.ring[1:]
		}
		s.ringMu.Unlock()
	}
}

// latestFrame returns a clone of the newest captured frame, if any. A
// clone is required because captureLoop may Close the ring's own Mat
// out from under the caller once newer frames push it out of the ring;
// the caller owns the returned Mat and must Close it.
func (s *VideoSender) latestFrame() (gocv.Mat, bool) {
	s.ringMu.Lock()
	defer s.ringMu.Unlock()
	if len(s.ring) == 0 {
		return gocv.Mat{}, false
	}
	return s.ring[len(s.ring)-1].Clone(), true
}

// encodeLoop paces itself to 1/fps, always encoding the newest captured
// frame, and publishes into encQueue such that the downstream send
// worker is never more than one frame behind (newest-wins: a pending
// unsent frame is replaced rather than queued behind).
func (s *VideoSender) encodeLoop() {
	defer s.wg.Done()

	var frameID uint32
	interval := time.Duration(0)
	if s.cfg.FrameRate > 0 {
		interval = time.Duration(float64(time.Second) / s.cfg.FrameRate)
	}
	last := time.Now()

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if interval > 0 {
			if d := time.Since(last); d < interval {
				time.Sleep(interval - d)
			}
			last = time.Now()
		}

		frame, ok := s.latestFrame()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}

		var out []byte
		var err error
		if s.encoder != nil {
			out, err = s.encoder.Encode(frame)
		} else {
			out, err = encodeJPEGOnly(frame, s.cfg.JPEGQuality)
		}
		frame.Close()
		if err != nil {
			select {
			case s.err <- errors.Wrap(err, "encode failed"):
			case <-s.stop:
				return
			}
			continue
		}

		ef := encodedFrame{id: frameID, bytes: out}
		frameID++

		select {
		case s.encQueue <- ef:
		case <-s.stop:
			return
		default:
			// Queue full: drain the stale pending frame so the newest
			// frame always wins over a backlog.
			select {
			case <-s.encQueue:
			default:
			}
			select {
			case s.encQueue <- ef:
			case <-s.stop:
				return
			}
		}
	}
}

// sendLoop drains encQueue with a short timeout and fragments/emits
// each frame's datagrams in order. A send error abandons the remaining
// fragments of that frame only.
func (s *VideoSender) sendLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case ef := <-s.encQueue:
			packets := s.frag.Fragment(ef.id, ef.bytes)
			for _, p := range packets {
				if _, err := s.conn.Write(p); err != nil {
					select {
					case s.err <- errors.Wrapf(err, "send error, abandoning frame %d", ef.id):
					case <-s.stop:
						return
					}
					break
				}
			}
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func encodeJPEGOnly(img gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(".jpg", img, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}
