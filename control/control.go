/*
DESCRIPTION
  control.go provides a thin net/http binding over a receiver.VideoReceiver:
  /start, /stop, /status and /mjpeg, so an external operator or dashboard
  can drive a receiving session without linking against the SDK directly.

LICENSE
  See the udp-video module root for license information.
*/

// Package control exposes a receiver.VideoReceiver over HTTP.
package control

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/kura-suke/udp-video/config"
	"github.com/kura-suke/udp-video/internal/logging"
	"github.com/kura-suke/udp-video/receiver"
)

// startRequest is the JSON body accepted by POST /start.
type startRequest struct {
	BindIP string `json:"bind_ip"`
	Port   int    `json:"port"`
	FEC    string `json:"fec"`
	Diff   string `json:"diff"` // "on" or "off"
}

// Server holds at most one running receiver at a time, mirroring the
// single-global-receiver model of the control surface it replaces.
type Server struct {
	log logging.Logger

	mu  sync.Mutex
	rx  *receiver.VideoReceiver
	mux *http.ServeMux
}

// New returns a Server with no receiver running.
func New(log logging.Logger) *Server {
	s := &Server{log: log, mux: http.NewServeMux()}
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/start", s.handleStart)
	s.mux.HandleFunc("/stop", s.handleStop)
	s.mux.HandleFunc("/mjpeg", s.handleMJPEG)
	return s
}

// ServeHTTP lets Server be used directly with http.ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rx := s.rx
	s.mu.Unlock()

	if rx == nil {
		writeJSON(w, map[string]interface{}{"running": false})
		return
	}
	st := rx.Status()
	writeJSON(w, map[string]interface{}{
		"running":        st.Running,
		"frames_decoded": st.FramesDecoded,
		"frames_dropped": st.FramesDropped,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req := startRequest{BindIP: "0.0.0.0", Port: 5000, FEC: "none", Diff: "off"}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // Malformed body: fall back to defaults.
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rx != nil {
		writeJSON(w, map[string]interface{}{"ok": true, "status": s.rx.Status(), "note": "already running"})
		return
	}

	cfg := config.NewConfig(s.log)
	cfg.BindIP = req.BindIP
	cfg.Port = uint16(req.Port)
	cfg.FEC = req.FEC
	cfg.Diff = req.Diff == "on"

	rx := receiver.New(cfg)
	if err := rx.Start(); err != nil {
		http.Error(w, fmt.Sprintf("could not start receiver: %v", err), http.StatusInternalServerError)
		return
	}
	s.rx = rx
	writeJSON(w, map[string]interface{}{"ok": true, "status": rx.Status()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rx == nil {
		writeJSON(w, map[string]interface{}{"ok": true, "status": map[string]bool{"running": false}})
		return
	}
	s.rx.Stop()
	s.rx = nil
	writeJSON(w, map[string]interface{}{"ok": true, "status": map[string]bool{"running": false}})
}

// handleMJPEG streams the receiver's latest decoded frame as a
// multipart/x-mixed-replace JPEG sequence, for viewing in a browser.
func (s *Server) handleMJPEG(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rx := s.rx
	s.mu.Unlock()

	if rx == nil {
		http.Error(w, "receiver not started: call POST /start first", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	flusher, canFlush := w.(http.Flusher)

	var lastID uint32
	haveFrame := false
	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		s.mu.Lock()
		cur := s.rx
		s.mu.Unlock()
		if cur != rx {
			return // Stopped out from under this stream.
		}

		img, id, ok := rx.Latest()
		if !ok {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if haveFrame && id == lastID {
			img.Close()
			time.Sleep(10 * time.Millisecond)
			continue
		}
		haveFrame, lastID = true, id

		buf, err := gocv.IMEncodeWithParams(".jpg", img, []int{gocv.IMWriteJpegQuality, 80})
		img.Close()
		if err != nil {
			continue
		}
		jpg := buf.GetBytes()
		buf.Close()

		fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\n\r\n")
		w.Write(jpg)
		fmt.Fprintf(w, "\r\n")
		if canFlush {
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
