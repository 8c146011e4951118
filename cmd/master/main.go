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

// Command aeterno-master is the coordination tier: it holds the Reaper's
// mastering registration, accepts slave connections over its own
// binary-framed protocol, hands out unit UUIDs, and spawns the slave
// processes named in its configuration.
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"sync"

	"aeterno/internal/logger"
	"aeterno/internal/masterconfig"
	"aeterno/internal/metrics"
	"aeterno/internal/reaperclient"
	"aeterno/internal/unitstore"
	"aeterno/internal/wire"
)

const (
	masterSocketPath = "/run/aeterno/master.sock"
	reaperSocketPath = "/run/aeterno/sys.sock"
	metricsAddr      = "127.0.0.1:0"
)

func main() {
	logger.Init("master")

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "aeterno-master: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	reg := metrics.NewRegistry()
	unitsRegistered := reg.NewCounterVec("units_registered_total", "Total units registered.", nil)
	unitsStarted := reg.NewCounterVec("units_started_total", "Total units successfully started.", []string{"result"})
	slavesSpawned := reg.NewCounterVec("slaves_spawned_total", "Total slave processes spawned from configuration.", nil)

	store := unitstore.New()

	// The master socket must exist and be accepting connections before any
	// slave process is spawned, since a freshly spawned slave dials it
	// immediately and does not retry.
	listener, err := listenMaster(masterSocketPath)
	if err != nil {
		return err
	}
	defer listener.Close()
	logger.Noticef("master: listening on %s", masterSocketPath)

	rc, err := reaperclient.Dial(reaperSocketPath, func(line string) {
		logger.Noticef("master: wait event from reaper: %s", line)
	})
	if err != nil {
		return fmt.Errorf("cannot connect to reaper: %w", err)
	}
	defer rc.Close()

	var wg sync.WaitGroup
	acceptDone := make(chan error, 1)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				logger.Noticef("master: accept: %v", err)
				acceptDone <- err
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				handleSlave(conn, rc, store, unitsRegistered, unitsStarted)
			}()
		}
	}()

	version, text, err := rc.Handshake()
	if err != nil {
		return fmt.Errorf("reaper handshake failed: %w", err)
	}
	logger.Noticef("master: connected to reaper %s (%s)", version, text)

	if err := rc.RequestMastering(); err != nil {
		return fmt.Errorf("cannot acquire mastering: %w", err)
	}
	logger.Noticef("master: mastering registration acquired")

	go serveMetrics(reg)

	cfg, err := masterconfig.Load(masterconfig.DefaultPath)
	if err != nil {
		logger.Noticef("master: no usable config at %s: %v", masterconfig.DefaultPath, err)
		cfg = &masterconfig.Config{}
	}
	spawnSlaves(cfg, store, slavesSpawned)

	return <-acceptDone
}

// listenMaster binds the master's slave-facing unix socket with a narrowed
// umask, since the socket file must not be world-writable.
func listenMaster(path string) (*net.UnixListener, error) {
	os.Remove(path)
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	old := setUmask(0o117)
	defer restoreUmask(old)
	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	return listener, nil
}

func spawnSlaves(cfg *masterconfig.Config, store *unitstore.Store, counter *metrics.CounterVec) {
	for _, path := range cfg.Slaves {
		cmd := exec.Command(path)
		cmd.Env = os.Environ()
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			logger.Noticef("master: cannot spawn slave %s: %v", path, err)
			continue
		}
		store.AddSlave(cmd.Process.Pid)
		counter.WithLabelValues().Inc()
		logger.Debugf("master: spawned slave %s -> pid %d", path, cmd.Process.Pid)
		go func() {
			if err := cmd.Wait(); err != nil {
				logger.Noticef("master: slave %s (pid %d) exited: %v", path, cmd.Process.Pid, err)
				return
			}
			logger.Noticef("master: slave %s (pid %d) exited", path, cmd.Process.Pid)
		}()
	}
}

// handleSlave runs the per-connection worker loop for one slave process,
// decoding wire.Message requests and replying in kind.
// Every worker shares rc, the single Reaper connection; reaperclient
// serializes access so two workers forwarding START at once never read
// each other's reply.
func handleSlave(conn net.Conn, rc *reaperclient.Client, store *unitstore.Store, unitsRegistered, unitsStarted *metrics.CounterVec) {
	defer conn.Close()

	for {
		msg, err := wire.Decode(conn)
		if err != nil {
			return // short read / closed connection: this worker is done
		}

		switch m := msg.(type) {
		case wire.Helo:
			reply := wire.HeloReply{Version: "aeterno-master 1.0.0"}
			if err := wire.Encode(conn, reply); err != nil {
				return
			}

		case wire.RegisterUnit:
			id := store.RegisterUnit()
			unitsRegistered.WithLabelValues().Inc()
			logger.Debugf("master: registered unit %s", id)
			if err := wire.Encode(conn, wire.UnitRegistered{UUID: id}); err != nil {
				return
			}

		case wire.UnitStartExecutable:
			if !store.IsIssued(m.UUID) {
				sendProtocolError(conn, "unknown unit uuid")
				continue
			}
			pid, err := rc.Start(m.Exec)
			if err != nil {
				logger.Noticef("master: start %q for unit %s failed: %v", m.Exec, m.UUID, err)
				unitsStarted.WithLabelValues("error").Inc()
				sendProtocolError(conn, err.Error())
				continue
			}
			store.RecordChildStart(pid, m.UUID)
			unitsStarted.WithLabelValues("ok").Inc()
			if err := wire.Encode(conn, wire.UnitRegistered{UUID: m.UUID}); err != nil {
				return
			}

		case wire.ProtocolError:
			logger.Noticef("master: protocol error from slave: %s", m.Reason)

		default:
			sendProtocolError(conn, "unrecognized request")
		}
	}
}

func sendProtocolError(conn net.Conn, reason string) {
	if err := wire.Encode(conn, wire.ProtocolError{Reason: reason}); err != nil {
		logger.Debugf("master: failed to send protocol error: %v", err)
	}
}

func serveMetrics(reg *metrics.Registry) {
	listener, err := net.Listen("tcp", metricsAddr)
	if err != nil {
		logger.Noticef("master: metrics listener unavailable: %v", err)
		return
	}
	logger.Debugf("master: serving metrics on %s", listener.Addr())
	if err := http.Serve(listener, reg.Handler()); err != nil {
		logger.Noticef("master: metrics server stopped: %v", err)
	}
}
