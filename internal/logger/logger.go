// Copyright (c) 2026 The Aeterno Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 3 as
// published by the Free Software Foundation.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package logger is a fairly minimal logging tool shared by the reaper,
// master, and slave binaries.
package logger

import (
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"
)

// A Logger is a fairly minimal logging tool.
type Logger interface {
	// Noticef is for messages that the operator should see.
	Noticef(format string, v ...any)
	// Debugf is for messages useful when debugging protocol traffic.
	Debugf(format string, v ...any)
}

type nullLogger struct{}

func (nullLogger) Noticef(format string, v ...any) {}
func (nullLogger) Debugf(format string, v ...any)  {}

// NullLogger is a logger that does nothing.
var NullLogger = nullLogger{}

var (
	logger     Logger = NullLogger
	loggerLock sync.Mutex
)

// Panicf notifies the operator and then panics. Reserved for detected
// invariant violations, never for ordinary protocol or I/O errors.
func Panicf(format string, v ...any) {
	loggerLock.Lock()
	defer loggerLock.Unlock()
	logger.Noticef("PANIC "+format, v...)
	panic(fmt.Sprintf(format, v...))
}

// Noticef notifies the operator of something.
func Noticef(format string, v ...any) {
	loggerLock.Lock()
	defer loggerLock.Unlock()
	logger.Noticef(format, v...)
}

// Debugf records something in the debug log.
func Debugf(format string, v ...any) {
	loggerLock.Lock()
	defer loggerLock.Unlock()
	logger.Debugf(format, v...)
}

// SetLogger sets the global logger to the given one. It must be called from
// a single goroutine before any logs are written.
func SetLogger(l Logger) (old Logger) {
	loggerLock.Lock()
	defer loggerLock.Unlock()
	old = logger
	logger = l
	return old
}

type defaultLogger struct {
	w      io.Writer
	prefix string
	debug  bool

	mu  sync.Mutex
	buf []byte
}

// Debugf only prints if the logger was constructed with debug enabled.
func (l *defaultLogger) Debugf(format string, v ...any) {
	if l.debug {
		l.Noticef("DEBUG "+format, v...)
	}
}

func (l *defaultLogger) Noticef(format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = l.buf[:0]
	l.buf = AppendTimestamp(l.buf, time.Now())
	l.buf = append(l.buf, ' ')
	l.buf = append(l.buf, l.prefix...)
	l.buf = fmt.Appendf(l.buf, format, v...)
	if l.buf[len(l.buf)-1] != '\n' {
		l.buf = append(l.buf, '\n')
	}
	l.w.Write(l.buf)
}

// New creates a Logger using the given io.Writer and prefix (printed between
// the timestamp and the message). debug controls whether Debugf is emitted.
func New(w io.Writer, prefix string, debug bool) Logger {
	return &defaultLogger{
		w:      w,
		prefix: prefix,
		debug:  debug,
		buf:    make([]byte, 0, 256),
	}
}

// Init installs a default stderr logger for prefix, with debug logging
// controlled by the AETERNO_LOG environment variable ("debug" enables it).
// The reaper, master, and slave binaries call this once at startup.
func Init(prefix string) {
	debug := os.Getenv("AETERNO_LOG") == "debug"
	SetLogger(New(os.Stderr, prefix, debug))
}

// AppendTimestamp appends a timestamp in format "YYYY-MM-DDTHH:mm:ss.sssZ" to
// the given byte slice and returns the extended slice.
//
// The timestamp is always in UTC and has exactly 3 fractional digits
// (millisecond precision). Makes no allocations if b has enough capacity.
func AppendTimestamp(b []byte, t time.Time) []byte {
	const capacity = 24

	utc := t.UTC()

	year := utc.Year()
	month := int(utc.Month())
	day := utc.Day()
	hour := utc.Hour()
	minute := utc.Minute()
	second := utc.Second()

	millisecond := utc.Nanosecond() / 1_000_000

	out := slices.Grow(b, capacity)
	out = out[:len(b)+capacity]
	b = out[len(b):]

	b[0] = byte('0' + year/1000%10)
	b[1] = byte('0' + year/100%10)
	b[2] = byte('0' + year/10%10)
	b[3] = byte('0' + year%10)
	b[4] = '-'

	b[5] = byte('0' + month/10)
	b[6] = byte('0' + month%10)
	b[7] = '-'

	b[8] = byte('0' + day/10)
	b[9] = byte('0' + day%10)
	b[10] = 'T'

	b[11] = byte('0' + hour/10)
	b[12] = byte('0' + hour%10)
	b[13] = ':'

	b[14] = byte('0' + minute/10)
	b[15] = byte('0' + minute%10)
	b[16] = ':'

	b[17] = byte('0' + second/10)
	b[18] = byte('0' + second%10)
	b[19] = '.'

	b[20] = byte('0' + millisecond/100)
	b[21] = byte('0' + millisecond/10%10)
	b[22] = byte('0' + millisecond%10)
	b[23] = 'Z'

	return out
}
