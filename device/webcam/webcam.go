/*
DESCRIPTION
  webcam.go provides an implementation of FrameSource for webcams, using
  gocv's VideoCapture to read BGR frames directly rather than piping an
  external process.

LICENSE
  See the udp-video module root for license information.
*/

// Package webcam provides an implementation of FrameSource for webcams.
package webcam

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/kura-suke/udp-video/config"
	"github.com/kura-suke/udp-video/device"
	"github.com/kura-suke/udp-video/internal/logging"
)

// Used to indicate package in logging.
const pkg = "webcam: "

// Configuration defaults.
const (
	defaultInputPath = "0" // gocv.OpenVideoCapture accepts a device index or path.
	defaultFrameRate = 25.0
	defaultWidth     = 1280
	defaultHeight    = 720
)

// Configuration field errors.
var (
	errBadFrameRate = errors.New("frame rate bad or unset, defaulting")
	errBadWidth     = errors.New("width bad or unset, defaulting")
	errBadHeight    = errors.New("height bad or unset, defaulting")
)

// Webcam is an implementation of the FrameSource interface for a local
// camera device, read through gocv's VideoCapture.
type Webcam struct {
	log       logging.Logger
	cfg       config.Config
	cap       *gocv.VideoCapture
	mu        sync.Mutex
	isRunning bool
}

// New returns a new Webcam.
func New(l logging.Logger) *Webcam {
	return &Webcam{log: l}
}

// Name returns the name of the device.
func (w *Webcam) Name() string {
	return "Webcam"
}

// Set validates the relevant fields of the given Config and assigns it to
// the Webcam's Config. If fields are not valid, an error is added to the
// returned MultiError and a default value is used in its place.
func (w *Webcam) Set(c config.Config) error {
	var errs device.MultiError
	if c.Width == 0 {
		errs = append(errs, errBadWidth)
		c.Width = defaultWidth
	}
	if c.Height == 0 {
		errs = append(errs, errBadHeight)
		c.Height = defaultHeight
	}
	if c.FrameRate == 0 {
		errs = append(errs, errBadFrameRate)
		c.FrameRate = defaultFrameRate
	}
	w.cfg = c
	if len(errs) != 0 {
		return errs
	}
	return nil
}

// Start opens the underlying video device and configures its resolution.
func (w *Webcam) Start() error {
	w.log.Info(pkg + "opening capture device")
	cap, err := gocv.OpenVideoCapture(defaultInputPath)
	if err != nil {
		return fmt.Errorf("%sfailed to open capture device: %w", pkg, err)
	}
	cap.Set(gocv.VideoCaptureFrameWidth, float64(w.cfg.Width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(w.cfg.Height))
	cap.Set(gocv.VideoCaptureFPS, w.cfg.FrameRate)

	w.mu.Lock()
	w.cap = cap
	w.isRunning = true
	w.mu.Unlock()

	w.log.Info(pkg + "webcam started")
	return nil
}

// Stop releases the underlying video device.
func (w *Webcam) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isRunning {
		return nil
	}
	w.isRunning = false
	if w.cap == nil {
		return errors.New(pkg + "capture device was never opened")
	}
	return w.cap.Close()
}

// Read blocks until the next BGR frame has been captured.
func (w *Webcam) Read() (gocv.Mat, error) {
	w.mu.Lock()
	cap, running := w.cap, w.isRunning
	w.mu.Unlock()
	if !running || cap == nil {
		return gocv.Mat{}, errors.New(pkg + "not streaming")
	}

	img := gocv.NewMat()
	if ok := cap.Read(&img); !ok {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("%sfailed to read frame from device", pkg)
	}
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("%sempty frame from device", pkg)
	}
	return img, nil
}

// IsRunning is used to determine if the webcam is running.
func (w *Webcam) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isRunning
}
