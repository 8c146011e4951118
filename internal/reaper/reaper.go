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

// Package reaper implements the PID-1 role of aeterno: it sets itself up as
// a child subreaper, spawns processes on request, and relays every observed
// wait(2) event as a text line to whichever connection currently holds the
// mastering registration.
package reaper

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
	"gopkg.in/tomb.v2"

	"aeterno/internal/logger"
)

// ErrNoMastering is returned by writeLine when no connection currently
// holds the mastering slot to relay a wait event to.
var ErrNoMastering = errors.New("no connection currently holds mastering")

// MasteringSlot tracks the single privileged connection wait events are
// relayed to. At most one is ever set.
type MasteringSlot struct {
	mu   sync.Mutex
	conn net.Conn

	// writeMu serializes every write to the current mastering connection.
	// Both the connection's own reply writer and the wait-relay goroutine
	// write to that same net.Conn; the descriptor stays valid for the
	// duration of any write the relay sends, so this mutex is what keeps
	// those writes from interleaving mid-line.
	writeMu sync.Mutex
}

// Promote makes conn the mastering connection if, and only if, the slot is
// currently empty. It reports whether conn now holds (or already held) the
// slot.
func (m *MasteringSlot) Promote(conn net.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		m.conn = conn
		return true
	}
	return m.conn == conn
}

// Holds reports whether conn currently holds the mastering slot.
func (m *MasteringSlot) Holds(conn net.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil && m.conn == conn
}

// Clear releases the slot if conn currently holds it. Called when a
// connection closes or sends BYE.
func (m *MasteringSlot) Clear(conn net.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == conn {
		m.conn = nil
	}
}

// writeLine writes line (which must already end in "\n") to whichever
// connection currently holds the slot. If none does, it reports
// ErrNoMastering and the caller should log-and-drop.
func (m *MasteringSlot) writeLine(line string) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNoMastering
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_, err := conn.Write([]byte(line))
	return err
}

// WriteReply writes a reply line belonging to conn. If conn currently holds
// the mastering slot, the write is serialized against the wait-relay
// goroutine via the same lock writeLine uses; otherwise it is written
// directly, since only the mastering connection is shared with the relay.
func (m *MasteringSlot) WriteReply(conn net.Conn, line string) error {
	m.mu.Lock()
	isMastering := conn == m.conn
	m.mu.Unlock()
	if !isMastering {
		_, err := conn.Write([]byte(line))
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_, err := conn.Write([]byte(line))
	return err
}

// Reaper owns the subreaper state, the mastering slot, and the dedicated
// wait-relay goroutine.
type Reaper struct {
	Mastering *MasteringSlot

	mu      sync.Mutex
	started bool
	pids    map[int]struct{}

	t tomb.Tomb
}

// New creates an unstarted Reaper.
func New() *Reaper {
	return &Reaper{
		Mastering: &MasteringSlot{},
		pids:      make(map[int]struct{}),
	}
}

// Start sets the process as a child subreaper and launches the dedicated
// wait-relay goroutine. Idempotent.
func (r *Reaper) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	isSubreaper, err := setChildSubreaper()
	if err != nil {
		return fmt.Errorf("cannot set child subreaper: %w", err)
	}
	if !isSubreaper {
		return fmt.Errorf("child subreaping unavailable on this platform")
	}
	r.started = true
	r.t.Go(r.reapLoop)
	return nil
}

// Stop terminates the wait-relay goroutine.
func (r *Reaper) Stop() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	r.t.Kill(nil)
	err := r.t.Wait()

	r.mu.Lock()
	r.started = false
	r.mu.Unlock()
	return err
}

func setChildSubreaper() (bool, error) {
	err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0)
	if err == unix.EINVAL {
		return false, nil
	}
	return true, err
}

// reapLoop blocks on SIGCHLD and drains terminated children until killed.
func (r *Reaper) reapLoop() error {
	logger.Debugf("reaper: waiting for SIGCHLD")
	sigChld := make(chan os.Signal, 1)
	signal.Notify(sigChld, unix.SIGCHLD)
	defer signal.Stop(sigChld)

	for {
		select {
		case <-sigChld:
			r.reapOnce()
		case <-r.t.Dying():
			logger.Debugf("reaper: wait-relay stopping")
			return nil
		}
	}
}

func (r *Reaper) reapOnce() {
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		switch err {
		case nil:
			if pid <= 0 {
				return
			}
			r.mu.Lock()
			delete(r.pids, pid)
			r.mu.Unlock()

			event := formatWaitEvent(pid, status)
			logger.Debugf("reaper: reaped pid %d: %s", pid, event)
			if werr := r.Mastering.writeLine(event); werr != nil {
				logger.Noticef("reaper: dropping wait event for pid %d, no mastering peer: %v", pid, werr)
			}
		case unix.ECHILD:
			return
		default:
			logger.Noticef("reaper: wait4 error: %v", err)
			return
		}
	}
}

// formatWaitEvent renders a human-readable, newline-terminated line
// describing a wait(2) status.
func formatWaitEvent(pid int, status unix.WaitStatus) string {
	switch {
	case status.Exited():
		return fmt.Sprintf("WAIT %d exited status=%d\n", pid, status.ExitStatus())
	case status.Signaled():
		return fmt.Sprintf("WAIT %d killed signal=%d\n", pid, status.Signal())
	case status.Stopped():
		return fmt.Sprintf("WAIT %d stopped signal=%d\n", pid, status.StopSignal())
	case status.Continued():
		return fmt.Sprintf("WAIT %d continued\n", pid)
	default:
		return fmt.Sprintf("WAIT %d unknown status=%#x\n", pid, uint32(status))
	}
}

// StartProcess spawns path with args as its argv, inheriting the reaper's
// own environment, and returns the OS pid. The pid is tracked so it can be
// removed from the internal bookkeeping map once reaped; the actual
// termination notification is relayed asynchronously via the mastering
// connection, not returned to the caller.
func (r *Reaper) StartProcess(path string, args []string) (pid int, err error) {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		logger.Panicf("reaper: StartProcess called before Start")
	}
	r.mu.Unlock()

	cmd := exec.Command(path, args...)
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.pids[cmd.Process.Pid] = struct{}{}
	r.mu.Unlock()

	// We deliberately never call cmd.Wait: the subreaper's wait4(-1,...)
	// loop above reaps every child, this process included. Release the
	// os.Process resources exec.Cmd would otherwise leak by detaching the
	// finalizer now that we've recorded the PID.
	cmd.Process.Release()

	return cmd.Process.Pid, nil
}

// StopProcess validates that pid is a positive, currently signalable
// process. It never sends a signal itself: STOP's semantics are a
// documented choice, and aeterno's choice is "liveness probe only" — see
// DESIGN.md's Open Questions.
func StopProcess(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("pid must be positive")
	}
	return unix.Kill(pid, 0)
}
