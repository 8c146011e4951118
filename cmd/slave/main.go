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

// Command aeterno-slave is the unit tier: it enumerates its local unit
// definitions, registers each with the Master over the binary-framed
// protocol, and forwards a start request for every unit it registers. Real
// deployments would trigger starts from their own policy; this binary is
// a reference driver (see DESIGN.md's Open Questions).
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/google/uuid"

	"aeterno/internal/logger"
	"aeterno/internal/unitfile"
	"aeterno/internal/wire"
)

const masterSocketPath = "/run/aeterno/master.sock"

func main() {
	logger.Init("slave")

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "aeterno-slave: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	units, err := unitfile.LoadDir(unitfile.DefaultDir)
	if err != nil {
		return fmt.Errorf("cannot enumerate units: %w", err)
	}
	logger.Noticef("slave: enumerated %d unit(s) in %s", len(units), unitfile.DefaultDir)

	conn, err := net.Dial("unix", masterSocketPath)
	if err != nil {
		return fmt.Errorf("cannot connect to master: %w", err)
	}
	defer conn.Close()

	if err := wire.Encode(conn, wire.Helo{}); err != nil {
		return fmt.Errorf("send helo: %w", err)
	}
	reply, err := wire.Decode(conn)
	if err != nil {
		return fmt.Errorf("read helo reply: %w", err)
	}
	helo, ok := reply.(wire.HeloReply)
	if !ok {
		return fmt.Errorf("unexpected helo reply: %#v", reply)
	}
	logger.Noticef("slave: connected to %s", helo.Version)

	for i, unit := range units {
		if !unit.HasCommand() {
			logger.Noticef("slave: skipping unit %q: no ExecStart", unit.Name)
			continue
		}
		id, err := registerUnit(conn)
		if err != nil {
			logger.Noticef("slave: register %q failed: %v", unit.Name, err)
			continue
		}
		units[i].UUID = id
		logger.Noticef("slave: registered unit %q as %s", unit.Name, id)

		if err := startUnit(conn, id, unit.ExecStart); err != nil {
			logger.Noticef("slave: start %q (%s) failed: %v", unit.Name, id, err)
			continue
		}
		logger.Noticef("slave: started unit %q (%s)", unit.Name, id)
	}
	return nil
}

func registerUnit(conn net.Conn) (uuid.UUID, error) {
	if err := wire.Encode(conn, wire.RegisterUnit{}); err != nil {
		return uuid.UUID{}, err
	}
	reply, err := wire.Decode(conn)
	if err != nil {
		return uuid.UUID{}, err
	}
	switch r := reply.(type) {
	case wire.UnitRegistered:
		return r.UUID, nil
	case wire.ProtocolError:
		return uuid.UUID{}, fmt.Errorf("master reported protocol error: %s", r.Reason)
	default:
		return uuid.UUID{}, fmt.Errorf("unexpected register reply: %#v", reply)
	}
}

func startUnit(conn net.Conn, id uuid.UUID, exec string) error {
	req := wire.UnitStartExecutable{UUID: id, Exec: exec}
	if err := wire.Encode(conn, req); err != nil {
		return err
	}
	reply, err := wire.Decode(conn)
	if err != nil {
		return err
	}
	switch r := reply.(type) {
	case wire.UnitRegistered:
		return nil
	case wire.ProtocolError:
		return fmt.Errorf("master reported protocol error: %s", r.Reason)
	default:
		return fmt.Errorf("unexpected start reply: %#v", r)
	}
}
