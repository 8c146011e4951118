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

package reaperwire_test

import (
	"testing"

	. "gopkg.in/check.v1"

	"aeterno/internal/reaperwire"
)

func Test(t *testing.T) { TestingT(t) }

var _ = Suite(&WireSuite{})

type WireSuite struct{}

func alwaysTrue(string) bool  { return true }
func alwaysFalse(string) bool { return false }
func pidTrue(int) bool        { return true }
func pidFalse(int) bool       { return false }

func (s *WireSuite) TestTokenizeLine(c *C) {
	raw := reaperwire.TokenizeLine("START /bin/true --flag value")
	c.Check(raw.Command, Equals, "START")
	c.Check(raw.Fields, DeepEquals, []string{"/bin/true", "--flag", "value"})
}

func (s *WireSuite) TestTokenizeEmptyLine(c *C) {
	raw := reaperwire.TokenizeLine("   ")
	c.Check(raw.Command, Equals, "")
}

func (s *WireSuite) TestValidateHelo(c *C) {
	q := reaperwire.Validate(reaperwire.RawQuery{Command: "HELO"}, alwaysTrue, pidTrue)
	c.Check(q, Equals, reaperwire.HeloQuery{})
}

func (s *WireSuite) TestValidateStartMissingPath(c *C) {
	raw := reaperwire.RawQuery{Command: "START", Fields: []string{"/no/such/file"}}
	q := reaperwire.Validate(raw, alwaysFalse, pidTrue)
	c.Check(q, Equals, reaperwire.InvalidQuery{})
}

func (s *WireSuite) TestValidateStartExisting(c *C) {
	raw := reaperwire.RawQuery{Command: "START", Fields: []string{"/bin/true", "a", "b"}}
	q := reaperwire.Validate(raw, alwaysTrue, pidTrue)
	c.Check(q, DeepEquals, reaperwire.Query(reaperwire.StartQuery{Path: "/bin/true", Args: []string{"a", "b"}}))
}

func (s *WireSuite) TestValidateStartNoArgs(c *C) {
	raw := reaperwire.RawQuery{Command: "START"}
	q := reaperwire.Validate(raw, alwaysTrue, pidTrue)
	c.Check(q, Equals, reaperwire.InvalidQuery{})
}

func (s *WireSuite) TestValidateStopValid(c *C) {
	raw := reaperwire.RawQuery{Command: "STOP", Fields: []string{"123"}}
	q := reaperwire.Validate(raw, alwaysTrue, pidTrue)
	c.Check(q, Equals, reaperwire.Query(reaperwire.StopQuery{Pid: 123}))
}

func (s *WireSuite) TestValidateStopNotSignalable(c *C) {
	raw := reaperwire.RawQuery{Command: "STOP", Fields: []string{"123"}}
	q := reaperwire.Validate(raw, alwaysTrue, pidFalse)
	c.Check(q, Equals, reaperwire.InvalidQuery{})
}

func (s *WireSuite) TestValidateStopNegative(c *C) {
	raw := reaperwire.RawQuery{Command: "STOP", Fields: []string{"-1"}}
	q := reaperwire.Validate(raw, alwaysTrue, pidTrue)
	c.Check(q, Equals, reaperwire.InvalidQuery{})
}

func (s *WireSuite) TestValidateUnknownCommand(c *C) {
	raw := reaperwire.RawQuery{Command: "GARBAGE"}
	q := reaperwire.Validate(raw, alwaysTrue, pidTrue)
	c.Check(q, Equals, reaperwire.InvalidQuery{})
}

func (s *WireSuite) TestValidateBye(c *C) {
	q := reaperwire.Validate(reaperwire.RawQuery{Command: "bye"}, alwaysTrue, pidTrue)
	c.Check(q, Equals, reaperwire.ByeQuery{})
}

func (s *WireSuite) TestFormatHeloRoundTrip(c *C) {
	line := reaperwire.FormatHelo(reaperwire.Version{Major: 1, Minor: 2, Patch: 3}, "hello")
	c.Check(line, Equals, "Aeterno 1.2.3 - hello\n")

	v, text, err := reaperwire.ParseHelo(line)
	c.Assert(err, IsNil)
	c.Check(v, Equals, reaperwire.Version{Major: 1, Minor: 2, Patch: 3})
	c.Check(text, Equals, "hello")
}

func (s *WireSuite) TestParseHeloBadFirstWord(c *C) {
	_, _, err := reaperwire.ParseHelo("Bogus 1.2.3 - hi\n")
	c.Assert(err, NotNil)
}

func (s *WireSuite) TestFormatOKErr(c *C) {
	c.Check(reaperwire.FormatOK(42), Equals, "OK 42\n")
	c.Check(reaperwire.FormatErr(-1), Equals, "ERR -1\n")
}

func (s *WireSuite) TestParseOKErr(c *C) {
	ok, n, err := reaperwire.ParseOKErr("OK 42\n")
	c.Assert(err, IsNil)
	c.Check(ok, Equals, true)
	c.Check(n, Equals, 42)

	ok, n, err = reaperwire.ParseOKErr("ERR -1\n")
	c.Assert(err, IsNil)
	c.Check(ok, Equals, false)
	c.Check(n, Equals, -1)
}
