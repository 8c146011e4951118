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

package logger_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	. "gopkg.in/check.v1"

	"aeterno/internal/logger"
)

func Test(t *testing.T) { TestingT(t) }

var _ = Suite(&LogSuite{})

type LogSuite struct {
	logbuf        *bytes.Buffer
	restoreLogger func()
}

func (s *LogSuite) SetUpTest(c *C) {
	s.logbuf = &bytes.Buffer{}
	old := logger.SetLogger(logger.New(s.logbuf, "PREFIX: ", false))
	s.restoreLogger = func() { logger.SetLogger(old) }
}

func (s *LogSuite) TearDownTest(c *C) {
	s.restoreLogger()
}

func (s *LogSuite) TestNew(c *C) {
	var buf bytes.Buffer
	l := logger.New(&buf, "", false)
	c.Assert(l, NotNil)
}

func (s *LogSuite) TestNoticef(c *C) {
	logger.Noticef("hello %d", 42)
	c.Check(strings.Contains(s.logbuf.String(), "PREFIX: hello 42"), Equals, true)
}

func (s *LogSuite) TestDebugfDisabled(c *C) {
	logger.Debugf("xyzzy")
	c.Check(s.logbuf.String(), Equals, "")
}

func (s *LogSuite) TestDebugfEnabled(c *C) {
	logger.SetLogger(logger.New(s.logbuf, "PREFIX: ", true))
	logger.Debugf("xyzzy")
	c.Check(strings.Contains(s.logbuf.String(), "DEBUG xyzzy"), Equals, true)
}

func (s *LogSuite) TestAppendTimestampLength(c *C) {
	fixed := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	b := logger.AppendTimestamp(nil, fixed)
	c.Assert(len(b), Equals, 24)
	c.Check(string(b[10]), Equals, "T")
	c.Check(string(b[len(b)-1]), Equals, "Z")
}
