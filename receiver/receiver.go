/*
DESCRIPTION
  receiver.go provides VideoReceiver, a pipeline that receives UDP
  datagrams, reassembles them per the configured FEC scheme, decodes
  frames (optionally through the DXF0 differential codec), and publishes
  the most recently decoded image for consumption.

LICENSE
  See the udp-video module root for license information.
*/

// Package receiver implements the receive -> reassemble -> decode ->
// sink side of the udp-video pipeline.
package receiver

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/kura-suke/udp-video/config"
	"github.com/kura-suke/udp-video/diff"
	"github.com/kura-suke/udp-video/fec"
)

// socketReadTimeout bounds each datagram read so the receive worker can
// observe the stop signal promptly, per the pipeline's cancellation
// rules.
const socketReadTimeout = 500 * time.Millisecond

// maxDatagramRead is the read buffer size; slightly larger than the
// largest fragment so an oversized datagram is still drained rather
// than corrupting the next read.
const maxDatagramRead = 2000

// queueCapacity bounds the packet and frame queues between workers;
// over-capacity items are discarded per the stated back-pressure
// discipline.
const queueCapacity = 64

type reassembledFrame struct {
	id        uint32
	bytes     []byte
	recovered int
}

// decodedImage is one decoded BGR frame, published to the single-slot
// latest-frame register for SDK consumers.
type decodedImage struct {
	id    uint32
	img   gocv.Mat
	stamp time.Time
}

// VideoReceiver drives the receive, reassemble and decode workers of a
// receiving session; the decode worker publishes straight into the
// single-slot latest-frame register that serves as the sink. It is not safe for concurrent Start/Stop
// calls.
type VideoReceiver struct {
	cfg     config.Config
	conn    *net.UDPConn
	reasm   fec.Reassembler
	decoder *diff.Decoder

	wg   sync.WaitGroup
	stop chan struct{}
	err  chan error

	packetQueue chan []byte
	frameQueue  chan reassembledFrame

	latestMu sync.RWMutex
	latest   *decodedImage

	framesDecoded atomic.Uint64
	framesDropped atomic.Uint64

	running atomic.Bool
}

// New returns a VideoReceiver listening per cfg.BindIP/cfg.Port once
// started.
func New(cfg config.Config) *VideoReceiver {
	return &VideoReceiver{err: make(chan error), cfg: cfg}
}

func (r *VideoReceiver) handleErrors() {
	for {
		err, ok := <-r.err
		if !ok {
			return
		}
		if err != nil {
			r.cfg.Logger.Error("async error", "error", err.Error())
		}
	}
}

// Start binds the UDP socket and launches the receive, reassemble and
// decode workers.
func (r *VideoReceiver) Start() error {
	if r.running.Load() {
		r.cfg.Logger.Warning("start called, but receiver already running")
		return nil
	}

	r.cfg.Validate()

	addr := fmt.Sprintf("%s:%d", r.cfg.BindIP, r.cfg.Port)
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return errors.Wrap(err, "could not resolve bind address")
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return errors.Wrap(err, "could not bind udp socket")
	}
	r.conn = conn

	scheme := fec.ParseScheme(r.cfg.FEC)
	r.reasm = fec.NewReassembler(scheme, r.cfg.FECK)

	if r.cfg.Diff {
		r.decoder = diff.NewDecoder()
	}

	r.stop = make(chan struct{})
	r.packetQueue = make(chan []byte, queueCapacity)
	r.frameQueue = make(chan reassembledFrame, queueCapacity)

	go r.handleErrors()

	r.wg.Add(3)
	go r.recvLoop()
	go r.reassembleLoop()
	go r.decodeLoop()

	r.running.Store(true)
	r.cfg.Logger.Info("receiver started", "bind", addr)
	return nil
}

// Stop signals every worker to exit, waits for them to finish, and
// closes the socket.
func (r *VideoReceiver) Stop() {
	if !r.running.Load() {
		r.cfg.Logger.Warning("stop called but receiver isn't running")
		return
	}
	close(r.stop)
	if r.conn != nil {
		r.conn.Close()
	}
	r.wg.Wait()
	close(r.err)
	r.running.Store(false)
	r.cfg.Logger.Info("receiver stopped")
}

// recvLoop reads datagrams with a short socket timeout; on timeout it
// loops to re-check the stop signal, on socket close it exits.
func (r *VideoReceiver) recvLoop() {
	defer r.wg.Done()
	buf := make([]byte, maxDatagramRead)
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		r.conn.SetReadDeadline(time.Now().Add(socketReadTimeout))
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return // Socket closed or otherwise unusable: exit cleanly.
		}

		pkt := append([]byte(nil), buf[:n]...)
		select {
		case r.packetQueue <- pkt:
		default:
			// Over capacity: discard.
		}
	}
}

// reassembleLoop drains packets and forwards completed frames.
func (r *VideoReceiver) reassembleLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stop:
			return
		case pkt := <-r.packetQueue:
			res, ok := r.reasm.Add(pkt)
			if !ok {
				continue
			}
			rf := reassembledFrame{id: res.FrameID, bytes: res.Frame, recovered: res.Recovered}
			select {
			case r.frameQueue <- rf:
			default:
				// Over capacity: discard.
			}
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// decodeLoop drains frames, invokes the configured codec, and publishes
// the decoded image to the single-slot latest-frame register.
func (r *VideoReceiver) decodeLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stop:
			return
		case rf := <-r.frameQueue:
			var img gocv.Mat
			var ok bool
			if r.decoder != nil {
				img, ok = r.decoder.Decode(rf.bytes)
			} else {
				img, ok = decodeJPEGOnly(rf.bytes)
			}
			if !ok {
				r.framesDropped.Add(1)
				continue
			}
			r.framesDecoded.Add(1)
			r.publish(rf.id, img)
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// publish replaces the single-slot latest-frame register, releasing
// the previous image.
func (r *VideoReceiver) publish(id uint32, img gocv.Mat) {
	r.latestMu.Lock()
	prev := r.latest
	r.latest = &decodedImage{id: id, img: img, stamp: time.Now()}
	r.latestMu.Unlock()
	if prev != nil {
		prev.img.Close()
	}
}

// Latest returns a clone of the most recently decoded image and its
// frame id. ok is false if no frame has been decoded yet. The caller
// owns the returned Mat and must Close it: the register's own Mat may
// be replaced and Closed by a concurrent decode at any time.
func (r *VideoReceiver) Latest() (img gocv.Mat, id uint32, ok bool) {
	r.latestMu.RLock()
	defer r.latestMu.RUnlock()
	if r.latest == nil {
		return gocv.Mat{}, 0, false
	}
	return r.latest.img.Clone(), r.latest.id, true
}

// Status reports basic liveness counters for a control surface.
type Status struct {
	Running       bool
	FramesDecoded uint64
	FramesDropped uint64
}

// Status returns a snapshot of the receiver's counters.
func (r *VideoReceiver) Status() Status {
	return Status{
		Running:       r.running.Load(),
		FramesDecoded: r.framesDecoded.Load(),
		FramesDropped: r.framesDropped.Load(),
	}
}

func decodeJPEGOnly(b []byte) (gocv.Mat, bool) {
	img, err := gocv.IMDecode(b, gocv.IMReadColor)
	if err != nil || img.Empty() {
		return gocv.Mat{}, false
	}
	return img, true
}
