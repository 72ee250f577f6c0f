package main

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/micro-nova/slidered/internal/config"
)

// setupLogging installs the default slog logger. Logs go to errOut and, when
// cfg.LogFile is set, to a rotated log file as well. The returned closer
// flushes the file.
func setupLogging(cfg config.Config, errOut io.Writer) io.Closer {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	var (
		w      = errOut
		closer io.Closer = nopCloser{}
	)
	if cfg.LogFile != "" {
		logFile := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    15, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = io.MultiWriter(errOut, logFile)
		closer = logFile
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
