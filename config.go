package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"roomsync/stores/memory"
	"time"

	"github.com/sirupsen/logrus"
)

type config struct {
	listen       string
	logLevel     logrus.Level
	pollTimeout  time.Duration
	nameAttempts int
	words        string
	socketIO     bool
}

// parseConfig reads flags from args. A positional argument overrides -listen.
func parseConfig(args []string, output io.Writer) (config, error) {
	var cfg config

	fs := flag.NewFlagSet("roomsync", flag.ContinueOnError)
	fs.SetOutput(output)
	listen := fs.String("listen", ":3002", "Set the server listen address")
	logLevel := fs.String("loglevel", "info", "Set the logging level: debug, info, warn, error, fatal, panic")
	fs.DurationVar(&cfg.pollTimeout, "poll-timeout", 0, "Answer /list with 204 after this long without a change (0 waits until the client leaves)")
	fs.IntVar(&cfg.nameAttempts, "name-attempts", memory.DefaultMaxNameAttempts, "Room name candidates to try before make_room fails")
	fs.StringVar(&cfg.words, "words", "", "Word list for room names, one per line (default built-in fruits)")
	fs.BoolVar(&cfg.socketIO, "socketio", true, "Push room updates over socket.io")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		return cfg, fmt.Errorf("invalid log level: %w", err)
	}
	cfg.logLevel = level

	cfg.listen = *listen
	if fs.NArg() > 0 {
		cfg.listen = fs.Arg(0)
	}
	if cfg.pollTimeout < 0 {
		return cfg, fmt.Errorf("poll timeout must not be negative: %s", cfg.pollTimeout)
	}
	if cfg.nameAttempts < 1 {
		return cfg, fmt.Errorf("name attempts must be at least 1: %d", cfg.nameAttempts)
	}

	return cfg, nil
}

// resolveListen resolves the listen address once so bad input fails at startup.
func resolveListen(addr string) (string, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("resolve listen address %q: %w", addr, err)
	}
	return tcpAddr.String(), nil
}
