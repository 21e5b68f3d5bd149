/*
DESCRIPTION
  config.go contains the configuration settings for a udp-video sender or
  receiver session.

LICENSE
  See the udp-video module root for license information.
*/

// Package config contains the configuration settings for udp-video sender
// and receiver sessions, along with the Variables table used to update and
// validate them from an external key/value source (CLI flags, an HTTP
// control surface, or any other configuration channel).
package config

import (
	"time"

	"github.com/kura-suke/udp-video/internal/logging"
)

// Quality-adjacent enums kept flat and explicit, mirroring how capture
// parameters are modelled across the rest of the configuration surface.
const (
	// FECNone through FECHigh name the four interchangeable erasure
	// schemes accepted by the Diff field's sibling, FEC.
	FECNone = "none"
	FECLow  = "low"
	FECMid  = "mid"
	FECHigh = "high"
)

// Config provides parameters relevant to a sender or receiver session. Not
// every field is meaningful on both sides; fields unused by a given role are
// simply left at their zero value. A new Config should be built with
// NewConfig so defaults and the Logger field are populated.
type Config struct {
	// ServerIP and ServerPort address the receiver from the sender's side.
	ServerIP   string
	ServerPort uint16

	// BindIP and Port are the receiver's own listen address.
	BindIP string
	Port   uint16

	// Width and Height are the capture/stream dimensions in pixels.
	Width, Height uint16

	// FrameRate is the target capture/encode cadence in frames per second.
	FrameRate float64

	// JPEGQuality is the JPEG encode quality, 0-100.
	JPEGQuality int

	// Diff enables the DXF0 differential codec. If false, whole JPEG
	// frames are sent uncompressed by the differential layer.
	Diff bool

	// Block is the DXF0 residual block side in pixels. Width and Height
	// must be multiples of Block; remainder pixels are not covered by a
	// block and are never updated by a P-frame.
	Block int

	// T is the residual zero-out threshold: |r| < T is treated as 0.
	T int

	// SADSkipPerPx is the per-block mean-absolute-residual skip
	// threshold; blocks under this value inherit the reference
	// unchanged.
	SADSkipPerPx float64

	// SceneChangeRatio is the non-skipped/total block ratio above which
	// a frame is promoted from P to I.
	SceneChangeRatio float64

	// JPEGGateRatio is the P-frame-size/JPEG-size ratio above which a
	// frame is promoted from P to I.
	JPEGGateRatio float64

	// ZlibLevel is the deflate compression level (0-9) applied to each
	// surviving residual block.
	ZlibLevel int

	// ResetInterval is the maximum elapsed time between forced I-frames.
	ResetInterval time.Duration

	// FEC names the erasure scheme in use: "none", "low", "mid" or
	// "high".
	FEC string

	// FECK is the erasure-code group size (data chunks per group).
	FECK int

	// Suppress is settable through the Variables table, but no sender or
	// receiver code reads it; the log level is set only by the Logger
	// itself (see logging.New's suppress argument).
	Suppress bool

	// Logger is the destination for all diagnostic output produced by a
	// sender or receiver session and its workers.
	Logger logging.Logger
}

// Default parameter values, applied by Validate when a field is unset or
// out of range.
const (
	DefaultWidth            = 640
	DefaultHeight           = 480
	DefaultFrameRate        = 15.0
	DefaultJPEGQuality      = 80
	DefaultBlock            = 16
	DefaultT                = 4
	DefaultSADSkipPerPx     = 2.0
	DefaultSceneChangeRatio = 0.5
	DefaultJPEGGateRatio    = 0.6
	DefaultZlibLevel        = 6
	DefaultResetInterval    = 10 * time.Second
	DefaultFECK             = 8
	DefaultServerPort       = 9000
)

// NewConfig returns a Config with every field at its documented default and
// the given Logger attached.
func NewConfig(l logging.Logger) Config {
	return Config{
		ServerPort:       DefaultServerPort,
		Port:             DefaultServerPort,
		Width:            DefaultWidth,
		Height:           DefaultHeight,
		FrameRate:        DefaultFrameRate,
		JPEGQuality:      DefaultJPEGQuality,
		Block:            DefaultBlock,
		T:                DefaultT,
		SADSkipPerPx:     DefaultSADSkipPerPx,
		SceneChangeRatio: DefaultSceneChangeRatio,
		JPEGGateRatio:    DefaultJPEGGateRatio,
		ZlibLevel:        DefaultZlibLevel,
		ResetInterval:    DefaultResetInterval,
		FEC:              FECNone,
		FECK:             DefaultFECK,
		Logger:           l,
	}
}

// LogInvalidField logs that a configuration field was unset or invalid and
// has been defaulted, matching the diagnostic a Variables.Validate entry
// emits when it corrects a field.
func (c *Config) LogInvalidField(name string, def interface{}) {
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}

// Validate walks every entry in Variables that declares a Validate func and
// applies it, correcting any field left unset or out of range.
func (c *Config) Validate() {
	for _, v := range Variables {
		if v.Validate != nil {
			v.Validate(c)
		}
	}
}
