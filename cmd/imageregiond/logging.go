// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
)

// configureLogging sets up the standard logger.  If logFile is set,
// output goes to that file and is rotated.
func configureLogging(debug bool, logFile string) {
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if logFile != "" {
		logrus.SetOutput(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
		})
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}

// requestLogger returns a logger for per-request output, or nil if
// requests are not being logged.
func requestLogger(logRequests bool) *logrus.Logger {
	if !logRequests {
		return nil
	}
	stdlog := logrus.StandardLogger()
	return &logrus.Logger{
		Out:       stdlog.Out,
		Formatter: stdlog.Formatter,
		Hooks:     stdlog.Hooks,
		Level:     logrus.DebugLevel,
	}
}
