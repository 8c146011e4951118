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

package main

import (
	"net"
	"testing"

	"github.com/google/uuid"
	. "gopkg.in/check.v1"

	"aeterno/internal/wire"
)

func Test(t *testing.T) { TestingT(t) }

var _ = Suite(&ClientSuite{})

// ClientSuite drives registerUnit/startUnit directly over an in-memory
// socket pair, playing the Master's side of the protocol by hand.
type ClientSuite struct{}

func (s *ClientSuite) TestRegisterUnitReturnsAssignedUUID(c *C) {
	server, client := net.Pipe()
	defer client.Close()
	want := uuid.New()

	go func() {
		msg, err := wire.Decode(server)
		c.Check(err, IsNil)
		c.Check(msg, Equals, wire.Message(wire.RegisterUnit{}))
		wire.Encode(server, wire.UnitRegistered{UUID: want})
	}()

	got, err := registerUnit(client)
	c.Assert(err, IsNil)
	c.Check(got, Equals, want)
}

func (s *ClientSuite) TestRegisterUnitPropagatesProtocolError(c *C) {
	server, client := net.Pipe()
	defer client.Close()

	go func() {
		wire.Decode(server)
		wire.Encode(server, wire.ProtocolError{Reason: "no more uuids"})
	}()

	_, err := registerUnit(client)
	c.Assert(err, ErrorMatches, ".*no more uuids.*")
}

func (s *ClientSuite) TestStartUnitSendsExecLine(c *C) {
	server, client := net.Pipe()
	defer client.Close()
	id := uuid.New()

	go func() {
		msg, err := wire.Decode(server)
		c.Check(err, IsNil)
		req, ok := msg.(wire.UnitStartExecutable)
		c.Check(ok, Equals, true)
		c.Check(req.UUID, Equals, id)
		c.Check(req.Exec, Equals, "/bin/true --flag")
		wire.Encode(server, wire.UnitRegistered{UUID: id})
	}()

	c.Assert(startUnit(client, id, "/bin/true --flag"), IsNil)
}

func (s *ClientSuite) TestStartUnitPropagatesProtocolError(c *C) {
	server, client := net.Pipe()
	defer client.Close()
	id := uuid.New()

	go func() {
		wire.Decode(server)
		wire.Encode(server, wire.ProtocolError{Reason: "exec failed"})
	}()

	err := startUnit(client, id, "/no/such/binary")
	c.Assert(err, ErrorMatches, ".*exec failed.*")
}
