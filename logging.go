package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger writes human readable lines to stdout and, when a file is
// configured, to a size-rotated log file.
func newLogger(cfg LogConfig) (zerolog.Logger, io.Closer) {
	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	var closer io.Closer = io.NopCloser(nil)

	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename: cfg.File,
			MaxSize:  cfg.MaxSizeMB,
		}
		w = zerolog.MultiLevelWriter(w, zerolog.ConsoleWriter{Out: file, NoColor: true, TimeFormat: time.DateTime})
		closer = file
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), closer
}
