/*
DESCRIPTION
  udpvrecv is a command-line front end for receiver.VideoReceiver: it
  binds a UDP socket, reassembles and decodes the incoming stream, and
  optionally exposes an HTTP control surface over it.

LICENSE
  See the udp-video module root for license information.
*/

// Command udpvrecv listens for a udpvsend stream and optionally serves
// it over HTTP.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kura-suke/udp-video/config"
	"github.com/kura-suke/udp-video/control"
	"github.com/kura-suke/udp-video/internal/logging"
	"github.com/kura-suke/udp-video/receiver"
)

const version = "v0.1.0"

// Logging configuration.
const (
	logPath      = "udpvrecv.log"
	logMaxSizeMB = 50
	logMaxBackup = 5
	logMaxAgeDay = 14
)

func main() {
	showVersion := flag.Bool("version", false, "show version")
	bindIP := flag.String("bind_ip", "0.0.0.0", "address to listen on")
	port := flag.Uint("port", config.DefaultServerPort, "UDP port to listen on")
	diff := flag.Bool("diff", true, "expect DXF0-encoded frames")
	fec := flag.String("fec", config.FECNone, "FEC scheme: none/low/mid/high")
	fecK := flag.Int("fec_k", config.DefaultFECK, "FEC group size")
	logLevel := flag.Int("log_level", int(logging.Info), "log level: -1 debug, 0 info, 1 warning, 2 error")
	logToStderr := flag.Bool("log_stderr", false, "log to stderr instead of a rotated file")
	httpAddr := flag.String("http_addr", "", "if set, serve /start /stop /status /mjpeg on this address instead of running a fixed session")
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
	log.Info("starting udpvrecv", "version", version)

	if *httpAddr != "" {
		srv := control.New(log)
		log.Info("serving control surface", "addr", *httpAddr)
		if err := http.ListenAndServe(*httpAddr, srv); err != nil {
			log.Fatal("control server exited", "error", err.Error())
		}
		return
	}

	cfg := config.NewConfig(log)
	cfg.BindIP = *bindIP
	cfg.Port = uint16(*port)
	cfg.Diff = *diff
	cfg.FEC = *fec
	cfg.FECK = *fecK

	rx := receiver.New(cfg)
	if err := rx.Start(); err != nil {
		log.Fatal("could not start receiver", "error", err.Error())
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("shutting down udpvrecv")
	rx.Stop()
}
