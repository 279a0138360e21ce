// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

// Package log provides leveled logging for Cargohold.
//
// There is a single process-wide logger writing to stderr. The level is
// configured once at startup from the [log] section of the config file.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Logger dispatches log events at or above its level to its writer
type Logger struct {
	mu    sync.Mutex
	level Level
	out   io.Writer
}

var defaultLogger = &Logger{level: INFO, out: os.Stderr}

// GetLogger returns the process-wide logger
func GetLogger() *Logger {
	return defaultLogger
}

// SetLevel changes the minimum level that will be written
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetOutput redirects the logger, used by tests
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// Log writes a single event if level is enabled
func (l *Logger) Log(level Level, format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level || l.level == NONE {
		return
	}
	fmt.Fprintf(l.out, "%s %-5s %s\n", time.Now().Format("2006/01/02 15:04:05"), level.String(), fmt.Sprintf(format, v...))
}

// SetLevel sets the level of the process-wide logger
func SetLevel(level Level) {
	defaultLogger.SetLevel(level)
}

// Trace records trace log
func Trace(format string, v ...any) {
	defaultLogger.Log(TRACE, format, v...)
}

// Debug records debug log
func Debug(format string, v ...any) {
	defaultLogger.Log(DEBUG, format, v...)
}

// Info records info log
func Info(format string, v ...any) {
	defaultLogger.Log(INFO, format, v...)
}

// Warn records warning log
func Warn(format string, v ...any) {
	defaultLogger.Log(WARN, format, v...)
}

// Error records error log
func Error(format string, v ...any) {
	defaultLogger.Log(ERROR, format, v...)
}

// Fatal records fatal log and exits the process
func Fatal(format string, v ...any) {
	defaultLogger.Log(FATAL, format, v...)
	os.Exit(1)
}
