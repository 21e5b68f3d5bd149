/*
DESCRIPTION
  udpvsend is a command-line front end for sender.VideoSender: it reads
  from a webcam and streams encoded, fragmented frames to a receiver
  over UDP until interrupted.

LICENSE
  See the udp-video module root for license information.
*/

// Command udpvsend captures from a webcam and sends it to a udpvrecv
// instance over UDP.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kura-suke/udp-video/config"
	"github.com/kura-suke/udp-video/device/webcam"
	"github.com/kura-suke/udp-video/internal/logging"
	"github.com/kura-suke/udp-video/sender"
)

const version = "v0.1.0"

// Logging configuration.
const (
	logPath      = "udpvsend.log"
	logMaxSizeMB = 50
	logMaxBackup = 5
	logMaxAgeDay = 14
)

func main() {
	showVersion := flag.Bool("version", false, "show version")
	serverIP := flag.String("server_ip", "127.0.0.1", "receiver address")
	serverPort := flag.Uint("server_port", config.DefaultServerPort, "receiver port")
	width := flag.Uint("width", config.DefaultWidth, "capture width")
	height := flag.Uint("height", config.DefaultHeight, "capture height")
	frameRate := flag.Float64("fps", config.DefaultFrameRate, "capture/send frame rate")
	jpegQuality := flag.Int("jpeg_quality", config.DefaultJPEGQuality, "JPEG encode quality")
	diff := flag.Bool("diff", true, "enable the DXF0 differential codec")
	block := flag.Int("block", config.DefaultBlock, "DXF0 residual block side in pixels")
	t := flag.Int("t", config.DefaultT, "DXF0 residual zero-out threshold")
	sadSkip := flag.Float64("sad_skip_per_px", config.DefaultSADSkipPerPx, "DXF0 per-block skip threshold")
	sceneChangeRatio := flag.Float64("scene_change_ratio", config.DefaultSceneChangeRatio, "DXF0 P->I scene-change promotion ratio")
	jpegGateRatio := flag.Float64("jpeg_gate_ratio", config.DefaultJPEGGateRatio, "DXF0 P->I size-gate promotion ratio")
	zlibLevel := flag.Int("zlib_level", config.DefaultZlibLevel, "DXF0 residual block deflate level")
	resetInterval := flag.Duration("reset_interval", config.DefaultResetInterval, "DXF0 maximum time between forced I-frames")
	fec := flag.String("fec", config.FECNone, "FEC scheme: none/low/mid/high")
	fecK := flag.Int("fec_k", config.DefaultFECK, "FEC group size")
	logLevel := flag.Int("log_level", int(logging.Info), "log level: -1 debug, 0 info, 1 warning, 2 error")
	logToStderr := flag.Bool("log_stderr", false, "log to stderr instead of a rotated file")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	var log logging.Logger
	if *logToStderr {
		log = logging.New(int8(*logLevel), os.Stderr, false)
	} else {
		log = logging.New(int8(*logLevel), &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackup,
			MaxAge:     logMaxAgeDay,
		}, false)
	}
	log.Info("starting udpvsend", "version", version)

	cfg := config.NewConfig(log)
	cfg.ServerIP = *serverIP
	cfg.ServerPort = uint16(*serverPort)
	cfg.Width = uint16(*width)
	cfg.Height = uint16(*height)
	cfg.FrameRate = *frameRate
	cfg.JPEGQuality = *jpegQuality
	cfg.Diff = *diff
	cfg.Block = *block
	cfg.T = *t
	cfg.SADSkipPerPx = *sadSkip
	cfg.SceneChangeRatio = *sceneChangeRatio
	cfg.JPEGGateRatio = *jpegGateRatio
	cfg.ZlibLevel = *zlibLevel
	cfg.ResetInterval = *resetInterval
	cfg.FEC = *fec
	cfg.FECK = *fecK

	src := webcam.New(log)
	s := sender.New(cfg, src)
	if err := s.Start(); err != nil {
		log.Fatal("could not start sender", "error", err.Error())
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("shutting down udpvsend")
	s.Stop()
}
