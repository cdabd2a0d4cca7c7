// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package clog provides global conditional logging for application components.
package clog

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

var enabled = false

// Enable turns on conditional log output.
func Enable() {
	enabled = true
}

// A CLogger represents a logger object that logs output in the manner of a
// structured logger but can be conditionally enabled. By default, conditional
// logging is disabled.
type CLogger struct {
	entry *logrus.Entry // structured logger with a fixed prefix field
}

// New creates a new conditional logger with the given prefix, carried as the
// "component" field of every log line it emits.
func New(prefixFormat string, prefixArgs ...any) *CLogger {
	return &CLogger{
		logrus.WithField("component", fmt.Sprintf(prefixFormat, prefixArgs...)),
	}
}

// Printf logs output conditionally (if enabled with -l command line option) in
// the manner of log.Printf.
func (c *CLogger) Printf(format string, a ...any) {
	if !enabled {
		return
	}
	c.entry.Infof(format, a...)
}

// Errorf logs output unconditionally, i.e. always, in the manner of log.Printf.
func (c *CLogger) Errorf(format string, a ...any) {
	c.entry.Errorf(format, a...)
}
