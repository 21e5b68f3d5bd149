/*
DESCRIPTION
  device.go provides FrameSource, an interface that describes a
  configurable video capture device that can be started and stopped and
  from which BGR frames may be read.

LICENSE
  See the udp-video module root for license information.
*/

// Package device provides an interface and implementations for video
// capture devices that can be started and stopped, and from which BGR
// frames can be read one at a time.
package device

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/kura-suke/udp-video/config"
)

// FrameSource describes a configurable video capture device from which
// BGR frames can be obtained.
type FrameSource interface {
	// Name returns the name of the FrameSource.
	Name() string

	// Set allows for configuration of the FrameSource using a Config
	// struct. All, some or none of the fields may be used for
	// configuration by an implementation.
	Set(c config.Config) error

	// Start will start the FrameSource capturing frames; after which
	// the Read method may be called to obtain them.
	Start() error

	// Stop will stop the FrameSource from capturing frames. From this
	// point Reads will no longer be successful.
	Stop() error

	// IsRunning is used to determine if the device is running.
	IsRunning() bool

	// Read blocks until the next BGR frame is available.
	Read() (gocv.Mat, error)
}

// MultiError implements the built in error interface. MultiError is
// used here to collect multiple errors during validation of
// configuration parameters for a FrameSource.
type MultiError []error

func (me MultiError) Error() string {
	if len(me) == 0 {
		panic("device: invalid use of MultiError")
	}
	return fmt.Sprintf("%v", []error(me))
}

// ErrNotRunning is returned by Read or Push when called on a
// ManualSource that has not been started.
var ErrNotRunning = errors.New("device: not running")

// ManualSource is an implementation of the FrameSource interface that
// represents a manually-fed input, i.e. frames are delivered to this
// source by calling Push. Like the pipe-based inputs it is modelled on,
// every Push must be accompanied by a Read (or vice versa), otherwise
// the caller will block. This makes it useful for tests and for
// replaying pre-recorded frames through the same pipeline a live camera
// would use.
type ManualSource struct {
	isRunning bool
	frames    chan gocv.Mat
}

// NewManualSource returns a new, stopped ManualSource.
func NewManualSource() *ManualSource {
	return &ManualSource{}
}

// Name returns the name of ManualSource, i.e. "ManualSource".
func (m *ManualSource) Name() string { return "ManualSource" }

// Set is a stub to satisfy the FrameSource interface; no configuration
// fields are required by ManualSource.
func (m *ManualSource) Set(c config.Config) error { return nil }

// Start opens the internal frame channel and sets the running flag.
func (m *ManualSource) Start() error {
	m.frames = make(chan gocv.Mat)
	m.isRunning = true
	return nil
}

// Stop closes the internal frame channel and clears the running flag.
func (m *ManualSource) Stop() error {
	if !m.isRunning {
		return nil
	}
	m.isRunning = false
	close(m.frames)
	return nil
}

// IsRunning returns the value of the isRunning flag to indicate if
// Start has been called (and Stop has not been called after).
func (m *ManualSource) IsRunning() bool { return m.isRunning }

// Read returns the next pushed frame, blocking until one arrives or the
// source is stopped.
func (m *ManualSource) Read() (gocv.Mat, error) {
	if !m.isRunning {
		return gocv.Mat{}, ErrNotRunning
	}
	f, ok := <-m.frames
	if !ok {
		return gocv.Mat{}, ErrNotRunning
	}
	return f, nil
}

// Push delivers a frame to a single pending or future Read call. Push
// blocks until a reader takes the frame.
func (m *ManualSource) Push(f gocv.Mat) error {
	if !m.isRunning {
		return ErrNotRunning
	}
	m.frames <- f
	return nil
}
