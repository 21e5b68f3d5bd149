/*
DESCRIPTION
  variables.go contains a list of structs that provide a variable Name, type
  in a string format, a function for updating the variable in the Config
  struct from a string, and a validation function to check the validity of
  the corresponding field value in the Config.

LICENSE
  See the udp-video module root for license information.
*/

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kura-suke/udp-video/fec"
)

// Config map keys, one per exported Variables entry.
const (
	KeyServerIP         = "ServerIP"
	KeyServerPort       = "ServerPort"
	KeyBindIP           = "BindIP"
	KeyPort             = "Port"
	KeyWidth            = "Width"
	KeyHeight           = "Height"
	KeyFrameRate        = "FrameRate"
	KeyJPEGQuality      = "JPEGQuality"
	KeyDiff             = "Diff"
	KeyBlock            = "Block"
	KeyT                = "T"
	KeySADSkipPerPx     = "SADSkipPerPx"
	KeySceneChangeRatio = "SceneChangeRatio"
	KeyJPEGGateRatio    = "JPEGGateRatio"
	KeyZlibLevel        = "ZlibLevel"
	KeyResetInterval    = "ResetInterval"
	KeyFEC              = "FEC"
	KeyFECK             = "FECK"
	KeySuppress         = "Suppress"
)

// Config map parameter types.
const (
	typeString = "string"
	typeInt    = "int"
	typeUint   = "uint"
	typeBool   = "bool"
	typeFloat  = "float"
)

// Variables describes the variables that can be used to control a Config.
// Each entry names a field, its type, a function updating that field in a
// Config from a string value, and an optional function validating (and
// correcting) the field after all updates have been applied.
var Variables = []struct {
	Name     string
	Type     string
	Update   func(*Config, string)
	Validate func(*Config)
}{
	{
		Name:   KeyServerIP,
		Type:   typeString,
		Update: func(c *Config, v string) { c.ServerIP = v },
	},
	{
		Name:   KeyServerPort,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.ServerPort = uint16(parseUint(KeyServerPort, v, c)) },
		Validate: func(c *Config) {
			if c.ServerPort == 0 {
				c.LogInvalidField(KeyServerPort, DefaultServerPort)
				c.ServerPort = DefaultServerPort
			}
		},
	},
	{
		Name:   KeyBindIP,
		Type:   typeString,
		Update: func(c *Config, v string) { c.BindIP = v },
	},
	{
		Name:   KeyPort,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Port = uint16(parseUint(KeyPort, v, c)) },
		Validate: func(c *Config) {
			if c.Port == 0 {
				c.LogInvalidField(KeyPort, DefaultServerPort)
				c.Port = DefaultServerPort
			}
		},
	},
	{
		Name:   KeyWidth,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Width = uint16(parseUint(KeyWidth, v, c)) },
		Validate: func(c *Config) {
			if c.Width == 0 {
				c.LogInvalidField(KeyWidth, DefaultWidth)
				c.Width = DefaultWidth
			}
		},
	},
	{
		Name:   KeyHeight,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Height = uint16(parseUint(KeyHeight, v, c)) },
		Validate: func(c *Config) {
			if c.Height == 0 {
				c.LogInvalidField(KeyHeight, DefaultHeight)
				c.Height = DefaultHeight
			}
		},
	},
	{
		Name:   KeyFrameRate,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.FrameRate = parseFloat(KeyFrameRate, v, c) },
		Validate: func(c *Config) {
			if c.FrameRate <= 0 {
				c.LogInvalidField(KeyFrameRate, DefaultFrameRate)
				c.FrameRate = DefaultFrameRate
			}
		},
	},
	{
		Name:   KeyJPEGQuality,
		Type:   typeInt,
		Update: func(c *Config, v string) { c.JPEGQuality = parseInt(KeyJPEGQuality, v, c) },
		Validate: func(c *Config) {
			if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
				c.LogInvalidField(KeyJPEGQuality, DefaultJPEGQuality)
				c.JPEGQuality = DefaultJPEGQuality
			}
		},
	},
	{
		Name:   KeyDiff,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.Diff = parseBool(KeyDiff, v, c) },
	},
	{
		Name:   KeyBlock,
		Type:   typeInt,
		Update: func(c *Config, v string) { c.Block = parseInt(KeyBlock, v, c) },
		Validate: func(c *Config) {
			if c.Block <= 0 {
				c.LogInvalidField(KeyBlock, DefaultBlock)
				c.Block = DefaultBlock
			}
		},
	},
	{
		Name:   KeyT,
		Type:   typeInt,
		Update: func(c *Config, v string) { c.T = parseInt(KeyT, v, c) },
		Validate: func(c *Config) {
			if c.T <= 0 {
				c.LogInvalidField(KeyT, DefaultT)
				c.T = DefaultT
			}
		},
	},
	{
		Name:   KeySADSkipPerPx,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.SADSkipPerPx = parseFloat(KeySADSkipPerPx, v, c) },
		Validate: func(c *Config) {
			if c.SADSkipPerPx <= 0 {
				c.LogInvalidField(KeySADSkipPerPx, DefaultSADSkipPerPx)
				c.SADSkipPerPx = DefaultSADSkipPerPx
			}
		},
	},
	{
		Name:   KeySceneChangeRatio,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.SceneChangeRatio = parseFloat(KeySceneChangeRatio, v, c) },
		Validate: func(c *Config) {
			if c.SceneChangeRatio <= 0 || c.SceneChangeRatio > 1 {
				c.LogInvalidField(KeySceneChangeRatio, DefaultSceneChangeRatio)
				c.SceneChangeRatio = DefaultSceneChangeRatio
			}
		},
	},
	{
		Name:   KeyJPEGGateRatio,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.JPEGGateRatio = parseFloat(KeyJPEGGateRatio, v, c) },
		Validate: func(c *Config) {
			if c.JPEGGateRatio <= 0 || c.JPEGGateRatio > 1 {
				c.LogInvalidField(KeyJPEGGateRatio, DefaultJPEGGateRatio)
				c.JPEGGateRatio = DefaultJPEGGateRatio
			}
		},
	},
	{
		Name:   KeyZlibLevel,
		Type:   typeInt,
		Update: func(c *Config, v string) { c.ZlibLevel = parseInt(KeyZlibLevel, v, c) },
		Validate: func(c *Config) {
			if c.ZlibLevel < 0 || c.ZlibLevel > 9 {
				c.LogInvalidField(KeyZlibLevel, DefaultZlibLevel)
				c.ZlibLevel = DefaultZlibLevel
			}
		},
	},
	{
		Name: KeyResetInterval,
		Type: typeUint,
		Update: func(c *Config, v string) {
			secs, err := strconv.Atoi(v)
			if err != nil {
				c.Logger.Warning(fmt.Sprintf("expected integer seconds for param %s", KeyResetInterval), "value", v)
				return
			}
			c.ResetInterval = time.Duration(secs) * time.Second
		},
		Validate: func(c *Config) {
			if c.ResetInterval <= 0 {
				c.LogInvalidField(KeyResetInterval, DefaultResetInterval)
				c.ResetInterval = DefaultResetInterval
			}
		},
	},
	{
		Name: KeyFEC,
		Type: "enum:none,low,mid,high",
		Update: func(c *Config, v string) {
			switch strings.ToLower(v) {
			case FECNone, FECLow, FECMid, FECHigh:
				c.FEC = strings.ToLower(v)
			default:
				c.Logger.Warning("invalid FEC param", "value", v)
			}
		},
		Validate: func(c *Config) {
			switch c.FEC {
			case FECNone, FECLow, FECMid, FECHigh:
			default:
				c.LogInvalidField(KeyFEC, FECNone)
				c.FEC = FECNone
			}
		},
	},
	{
		Name:   KeyFECK,
		Type:   typeInt,
		Update: func(c *Config, v string) { c.FECK = parseInt(KeyFECK, v, c) },
		Validate: func(c *Config) {
			if c.FECK <= 0 {
				c.LogInvalidField(KeyFECK, DefaultFECK)
				c.FECK = DefaultFECK
			}
			// The "high" scheme's parity mask table has one entry per data
			// index in a group; a larger group would collide two indices
			// onto the same mask and silently break recovery.
			if c.FEC == FECHigh && c.FECK > fec.MaxGroupSize {
				c.Logger.Warning("FECK too large for the high scheme, clamping", "value", c.FECK, "max", fec.MaxGroupSize)
				c.FECK = fec.MaxGroupSize
			}
		},
	},
	{
		Name:   KeySuppress,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.Suppress = parseBool(KeySuppress, v, c) },
	},
}

func parseUint(n, v string, c *Config) uint {
	_v, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected unsigned int for param %s", n), "value", v)
	}
	return uint(_v)
}

func parseInt(n, v string, c *Config) int {
	_v, err := strconv.Atoi(v)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected integer for param %s", n), "value", v)
	}
	return _v
}

func parseFloat(n, v string, c *Config) float64 {
	_v, err := strconv.ParseFloat(v, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected float for param %s", n), "value", v)
	}
	return _v
}

func parseBool(n, v string, c *Config) (b bool) {
	switch strings.ToLower(v) {
	case "true":
		b = true
	case "false":
		b = false
	default:
		c.Logger.Warning(fmt.Sprintf("expected bool for param %s", n), "value", v)
	}
	return
}

// Update finds the Variables entry named name and applies its Update
// function to c with value v. It reports whether the variable was found.
func Update(c *Config, name, v string) bool {
	for _, entry := range Variables {
		if entry.Name == name {
			entry.Update(c, v)
			return true
		}
	}
	return false
}
