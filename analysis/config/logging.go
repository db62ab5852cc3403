// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"io"
	"log"
	"os"
)

// LogLevel is the verbosity of a LogGroup
type LogLevel int

const (
	// ErrLevel=1 - the minimum level of logging.
	ErrLevel LogLevel = iota + 1

	// WarnLevel=2 - the level for logging warnings, and errors
	WarnLevel

	// InfoLevel=3 - the level for logging high-level information, results
	InfoLevel

	// DebugLevel=4 - the level for debugging information. Analysis diagnostics (unsupported instructions,
	// unanalyzed calls) are reported at that level.
	DebugLevel

	// TraceLevel=5 - the level for tracing. The abstract state of every CFG node is printed at that level, which
	// is only practical on small programs.
	TraceLevel
)

// LogGroup is a group of loggers, one per level. Messages below the level of the group are discarded.
type LogGroup struct {
	level LogLevel
	trace *log.Logger
	debug *log.Logger
	info  *log.Logger
	warn  *log.Logger
	err   *log.Logger
}

// NewLogGroup returns a log group that is configured to the logging settings stored inside the config
func NewLogGroup(config *Config) *LogGroup {
	return NewLogGroupAt(LogLevel(config.LogLevel), os.Stderr)
}

// NewLogGroupAt returns a log group at the given level writing to w
func NewLogGroupAt(level LogLevel, w io.Writer) *LogGroup {
	return &LogGroup{
		level: level,
		trace: log.New(w, "[TRACE] ", log.LstdFlags),
		debug: log.New(w, "[DEBUG] ", log.LstdFlags),
		info:  log.New(w, "[INFO] ", log.LstdFlags),
		warn:  log.New(w, "[WARN] ", log.LstdFlags),
		err:   log.New(w, "[ERROR] ", log.LstdFlags),
	}
}

// DiscardLogs returns a log group that drops every message
func DiscardLogs() *LogGroup {
	return NewLogGroupAt(ErrLevel-1, io.Discard)
}

// SetAllOutput sets all the output writers to the writer provided
func (l *LogGroup) SetAllOutput(w io.Writer) {
	for _, lg := range l.all() {
		lg.SetOutput(w)
	}
}

// SetAllFlags sets the flag of all loggers in the log group to the argument provided
func (l *LogGroup) SetAllFlags(x int) {
	for _, lg := range l.all() {
		lg.SetFlags(x)
	}
}

func (l *LogGroup) all() []*log.Logger {
	return []*log.Logger{l.trace, l.debug, l.info, l.warn, l.err}
}

// LogsTrace returns true when trace messages are printed
func (l *LogGroup) LogsTrace() bool { return l.level >= TraceLevel }

// LogsDebug returns true when debug messages are printed
func (l *LogGroup) LogsDebug() bool { return l.level >= DebugLevel }

// Tracef calls Trace.Printf to print to the trace logger. Arguments are handled in the manner of Printf
func (l *LogGroup) Tracef(format string, v ...any) {
	if l.level >= TraceLevel {
		l.trace.Printf(format, v...)
	}
}

// Debugf calls Debug.Printf to print to the debug logger. Arguments are handled in the manner of Printf
func (l *LogGroup) Debugf(format string, v ...any) {
	if l.level >= DebugLevel {
		l.debug.Printf(format, v...)
	}
}

// Infof calls Info.Printf to print to the info logger. Arguments are handled in the manner of Printf
func (l *LogGroup) Infof(format string, v ...any) {
	if l.level >= InfoLevel {
		l.info.Printf(format, v...)
	}
}

// Warnf calls Warn.Printf to print to the warning logger. Arguments are handled in the manner of Printf
func (l *LogGroup) Warnf(format string, v ...any) {
	if l.level >= WarnLevel {
		l.warn.Printf(format, v...)
	}
}

// Errorf calls Error.Printf to print to the error logger. Arguments are handled in the manner of Printf
func (l *LogGroup) Errorf(format string, v ...any) {
	if l.level >= ErrLevel {
		l.err.Printf(format, v...)
	}
}
