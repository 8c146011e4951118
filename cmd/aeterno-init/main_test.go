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
	"testing"

	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

var _ = Suite(&InitSuite{})

type InitSuite struct{}

func (s *InitSuite) TestReaperListenFDIsFour(c *C) {
	// The Reaper's accept loop hardcodes this same value when it inherits
	// the listening socket; the two must never drift apart.
	c.Check(ReaperListenFD, Equals, 4)
}

// TestRunFailsBeforeTouchingTheSocketWhenReaperBinaryIsMissing checks that
// run bails out on exec.LookPath before binding any socket, so a
// misconfigured PATH can never leave a half-bound sys.sock behind. The
// reaper binary is not expected to be on the test runner's PATH.
func (s *InitSuite) TestRunFailsBeforeTouchingTheSocketWhenReaperBinaryIsMissing(c *C) {
	err := run()
	c.Assert(err, NotNil)
	c.Check(err, ErrorMatches, ".*cannot locate aeterno-reaper.*")
}
