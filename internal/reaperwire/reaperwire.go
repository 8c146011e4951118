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

// Package reaperwire implements the Reaper's line-oriented text protocol:
// tokenization into a RawQuery, validation into a typed Query, and
// formatting of OK/ERR/HELO replies.
package reaperwire

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxLineLength is the frame ceiling for this protocol: a line longer than
// 256 bytes, not counting its trailing newline, is rejected.
const MaxLineLength = 256

// Version is the Reaper's own protocol/build version, reported in the HELO
// reply.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// CurrentVersion is the version this Reaper implementation reports.
var CurrentVersion = Version{Major: 1, Minor: 0, Patch: 0}

// RawQuery is the result of tokenizing one input line: a command word and
// its remaining whitespace-separated fields.
type RawQuery struct {
	Command string
	Fields  []string
}

// TokenizeLine splits a single protocol line (without its trailing newline)
// into a RawQuery. Any run of whitespace separates fields.
func TokenizeLine(line string) RawQuery {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return RawQuery{}
	}
	return RawQuery{Command: fields[0], Fields: fields[1:]}
}

// Query is a validated, semantically-checked request. Only a Query reaches
// execution, never a RawQuery.
type Query interface {
	isQuery()
}

// HeloQuery requests the Reaper's greeting.
type HeloQuery struct{}

// MasterQuery requests or confirms the mastering registration.
type MasterQuery struct{}

// StartQuery requests a new child process.
type StartQuery struct {
	Path string
	Args []string
}

// StopQuery requests validation of pid; no signal is sent to it.
type StopQuery struct {
	Pid int
}

// ByeQuery requests connection teardown; no reply is sent.
type ByeQuery struct{}

// InvalidQuery is produced for anything that fails tokenization or semantic
// validation; it always yields "ERR -1".
type InvalidQuery struct{}

func (HeloQuery) isQuery()    {}
func (MasterQuery) isQuery()  {}
func (StartQuery) isQuery()   {}
func (StopQuery) isQuery()    {}
func (ByeQuery) isQuery()     {}
func (InvalidQuery) isQuery() {}

// Validate turns a RawQuery into a Query. pathExists and signalable are
// injected so callers can test validation logic without touching the real
// filesystem or process table.
func Validate(raw RawQuery, pathExists func(string) bool, signalable func(int) bool) Query {
	switch strings.ToUpper(raw.Command) {
	case "HELO":
		return HeloQuery{}
	case "MASTER":
		return MasterQuery{}
	case "START":
		if len(raw.Fields) == 0 {
			return InvalidQuery{}
		}
		path := raw.Fields[0]
		if !pathExists(path) {
			return InvalidQuery{}
		}
		return StartQuery{Path: path, Args: raw.Fields[1:]}
	case "STOP":
		if len(raw.Fields) != 1 {
			return InvalidQuery{}
		}
		pid, err := strconv.Atoi(raw.Fields[0])
		if err != nil || pid <= 0 {
			return InvalidQuery{}
		}
		if !signalable(pid) {
			return InvalidQuery{}
		}
		return StopQuery{Pid: pid}
	case "BYE":
		return ByeQuery{}
	default:
		return InvalidQuery{}
	}
}

// FormatHelo renders the HELO success reply.
func FormatHelo(v Version, text string) string {
	return fmt.Sprintf("Aeterno %s - %s\n", v, text)
}

// FormatOK renders an "OK n" reply.
func FormatOK(n int) string {
	return fmt.Sprintf("OK %d\n", n)
}

// FormatErr renders an "ERR errno" reply.
func FormatErr(errno int) string {
	return fmt.Sprintf("ERR %d\n", errno)
}

// ParseHelo parses a Reaper HELO reply of the form
// "Aeterno <maj>.<min>.<patch> - <text>\n" (trailing newline optional) into
// a Version and the free-text suffix. It is used by the Master when
// performing its handshake with the Reaper.
func ParseHelo(line string) (Version, string, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.SplitN(line, " - ", 2)
	if len(fields) != 2 {
		return Version{}, "", fmt.Errorf("malformed HELO reply: %q", line)
	}
	head := strings.Fields(fields[0])
	if len(head) != 2 || head[0] != "Aeterno" {
		return Version{}, "", fmt.Errorf("malformed HELO reply: first word not Aeterno: %q", line)
	}
	parts := strings.SplitN(head[1], ".", 3)
	if len(parts) != 3 {
		return Version{}, "", fmt.Errorf("malformed HELO version: %q", head[1])
	}
	var v Version
	nums := []*int{&v.Major, &v.Minor, &v.Patch}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, "", fmt.Errorf("malformed HELO version component %q: %w", p, err)
		}
		*nums[i] = n
	}
	return v, fields[1], nil
}

// ParseOKErr parses an "OK n" or "ERR n" reply into (ok, n, error). It is
// used by the Master after forwarding START/STOP to the Reaper.
func ParseOKErr(line string) (ok bool, n int, err error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return false, 0, fmt.Errorf("malformed reply: %q", line)
	}
	n, convErr := strconv.Atoi(fields[1])
	if convErr != nil {
		return false, 0, fmt.Errorf("malformed reply value: %q", line)
	}
	switch fields[0] {
	case "OK":
		return true, n, nil
	case "ERR":
		return false, n, nil
	default:
		return false, 0, fmt.Errorf("malformed reply tag: %q", line)
	}
}
