// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package log

import "strings"

// Level is the level of the logger
type Level int

const (
	UNDEFINED Level = iota
	TRACE
	DEBUG
	INFO
	WARN
	ERROR
	FATAL
	NONE
)

var toString = map[Level]string{
	UNDEFINED: "undefined",
	TRACE:     "trace",
	DEBUG:     "debug",
	INFO:      "info",
	WARN:      "warn",
	ERROR:     "error",
	FATAL:     "fatal",
	NONE:      "none",
}

var toLevel = map[string]Level{
	"undefined": UNDEFINED,
	"trace":     TRACE,
	"debug":     DEBUG,
	"info":      INFO,
	"warn":      WARN,
	"warning":   WARN,
	"error":     ERROR,
	"fatal":     FATAL,
	"none":      NONE,
}

// String returns the level name
func (l Level) String() string {
	s, ok := toString[l]
	if ok {
		return s
	}
	return "info"
}

// LevelFromString takes a level string and returns a Level, defaulting to INFO
func LevelFromString(level string) Level {
	if l, ok := toLevel[strings.ToLower(level)]; ok {
		return l
	}
	return INFO
}
