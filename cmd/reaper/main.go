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

// Command aeterno-reaper is the PID-1 role: it inherits its listening
// socket from aeterno-init at a fixed descriptor, serves the line-oriented
// text protocol, spawns children on request, and relays wait(2) events to
// whichever connection holds the mastering slot.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"syscall"

	"gopkg.in/tomb.v2"

	"aeterno/internal/logger"
	"aeterno/internal/reaper"
	"aeterno/internal/reaperwire"
)

func main() {
	logger.Init("reaper")

	listener, err := inheritListener()
	if err != nil {
		fmt.Fprintf(os.Stderr, "aeterno-reaper: %v\n", err)
		os.Exit(1)
	}

	r := reaper.New()
	if err := r.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "aeterno-reaper: %v\n", err)
		os.Exit(1)
	}

	var t tomb.Tomb
	var wg sync.WaitGroup
	t.Go(func() error {
		return acceptLoop(listener, r, &wg)
	})

	if err := t.Wait(); err != nil {
		logger.Noticef("reaper: accept loop stopped: %v", err)
	}
	wg.Wait()
}

// inheritListener wraps the descriptor aeterno-init bound and dup2'd onto
// the fixed fd contract as a net.Listener.
func inheritListener() (net.Listener, error) {
	f := os.NewFile(uintptr(reaperListenFD), "aeterno-reaper-listener")
	if f == nil {
		return nil, fmt.Errorf("fd %d is not open", reaperListenFD)
	}
	listener, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("cannot wrap inherited fd %d: %w", reaperListenFD, err)
	}
	return listener, nil
}

const reaperListenFD = 4

func acceptLoop(listener net.Listener, r *reaper.Reaper, wg *sync.WaitGroup) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		promoted := r.Mastering.Promote(conn)
		logger.Debugf("reaper: accepted connection from %s (mastering=%v)", conn.RemoteAddr(), promoted)

		wg.Add(1)
		go func() {
			defer wg.Done()
			handleConn(conn, r)
		}()
	}
}

// handleConn implements the per-connection state machine.
func handleConn(conn net.Conn, r *reaper.Reaper) {
	defer func() {
		r.Mastering.Clear(conn)
		conn.Close()
	}()

	br := bufio.NewReaderSize(conn, 4096)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return // read-of-zero or I/O failure: close this connection only
		}
		line = strings.TrimRight(line, "\r\n")

		if len(line) > reaperwire.MaxLineLength {
			logWrite(r.Mastering.WriteReply(conn, reaperwire.FormatErr(-1)))
			continue
		}

		raw := reaperwire.TokenizeLine(line)
		query := reaperwire.Validate(raw, pathExists, func(pid int) bool {
			return reaper.StopProcess(pid) == nil
		})

		switch q := query.(type) {
		case reaperwire.HeloQuery:
			logWrite(r.Mastering.WriteReply(conn, reaperwire.FormatHelo(reaperwire.CurrentVersion, "hello")))

		case reaperwire.MasterQuery:
			if r.Mastering.Promote(conn) {
				logWrite(r.Mastering.WriteReply(conn, reaperwire.FormatOK(0)))
			} else {
				logWrite(r.Mastering.WriteReply(conn, reaperwire.FormatErr(-1)))
			}

		case reaperwire.StartQuery:
			pid, err := r.StartProcess(q.Path, q.Args)
			if err != nil {
				logger.Noticef("reaper: START %s failed: %v", q.Path, err)
				logWrite(r.Mastering.WriteReply(conn, reaperwire.FormatErr(errnoOf(err))))
			} else {
				logger.Debugf("reaper: START %s -> pid %d", q.Path, pid)
				logWrite(r.Mastering.WriteReply(conn, reaperwire.FormatOK(pid)))
			}

		case reaperwire.StopQuery:
			if err := reaper.StopProcess(q.Pid); err != nil {
				logWrite(r.Mastering.WriteReply(conn, reaperwire.FormatErr(errnoOf(err))))
			} else {
				logWrite(r.Mastering.WriteReply(conn, reaperwire.FormatOK(0)))
			}

		case reaperwire.ByeQuery:
			return

		default:
			logWrite(r.Mastering.WriteReply(conn, reaperwire.FormatErr(-1)))
		}
	}
}

func logWrite(err error) {
	if err != nil {
		logger.Debugf("reaper: write reply failed: %v", err)
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// errnoOf extracts the numeric errno from err, falling back to -1 when
// none is available. Preserves the real errno instead of collapsing
// every failure to -1.
func errnoOf(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return -1
}
