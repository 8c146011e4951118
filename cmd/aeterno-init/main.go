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

// Command aeterno-init is the short-lived PID-1 bootstrap: it binds the
// Reaper's listening socket, hands the descriptor to the Reaper at the
// fixed fd contract, and replaces itself with the Reaper image. It never
// returns on success.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// ReaperListenFD is the fixed descriptor number the Reaper expects its
// listening socket on at exec time.
const ReaperListenFD = 4

const (
	socketPath = "/run/aeterno/sys.sock"
	reaperName = "aeterno-reaper"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "aeterno-init: %v\n", err)
		os.Exit(1)
	}
	// run only returns on failure; a successful run ends in syscall.Exec
	// and this line is unreachable.
}

func run() error {
	reaperPath, err := exec.LookPath(reaperName)
	if err != nil {
		return fmt.Errorf("cannot locate %s: %w", reaperName, err)
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return fmt.Errorf("socket: %w", err)
	}

	// The parent directory must already exist; the stub does not create
	// missing path components.
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: socketPath}); err != nil {
		unix.Close(fd)
		return fmt.Errorf("bind %s: %w", socketPath, err)
	}

	const backlog = 16
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return fmt.Errorf("listen %s: %w", socketPath, err)
	}

	if fd != ReaperListenFD {
		if err := unix.Dup2(fd, ReaperListenFD); err != nil {
			unix.Close(fd)
			return fmt.Errorf("dup2 %d -> %d: %w", fd, ReaperListenFD, err)
		}
		unix.Close(fd)
	}

	if err := syscall.Exec(reaperPath, []string{reaperPath}, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", reaperPath, err)
	}
	return nil
}
