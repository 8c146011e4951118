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

package unitfile_test

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	. "gopkg.in/check.v1"

	"aeterno/internal/unitfile"
)

func Test(t *testing.T) { TestingT(t) }

var _ = Suite(&UnitFileSuite{})

type UnitFileSuite struct{}

func (s *UnitFileSuite) TestLoadDirNotFound(c *C) {
	_, err := unitfile.LoadDir(filepath.Join(c.MkDir(), "missing"))
	c.Assert(err, Equals, unitfile.ErrDirNotFound)
}

func (s *UnitFileSuite) TestLoadDirSkipsBadFiles(c *C) {
	dir := c.MkDir()
	c.Assert(os.WriteFile(filepath.Join(dir, "good.unit"),
		[]byte("Name = web\nExecStart = /usr/bin/web --serve\n"), 0o644), IsNil)
	c.Assert(os.WriteFile(filepath.Join(dir, "missing-exec.unit"),
		[]byte("Name = broken\n"), 0o644), IsNil)
	c.Assert(os.Mkdir(filepath.Join(dir, "subdir"), 0o755), IsNil)

	units, err := unitfile.LoadDir(dir)
	c.Assert(err, IsNil)
	c.Assert(units, HasLen, 1)
	c.Check(units[0].Name, Equals, "web")
	c.Check(units[0].ExecStart, Equals, "/usr/bin/web --serve")
	c.Check(units[0].HasCommand(), Equals, true)
}

func (s *UnitFileSuite) TestLoadDirEmpty(c *C) {
	units, err := unitfile.LoadDir(c.MkDir())
	c.Assert(err, IsNil)
	c.Check(units, HasLen, 0)
}

func (s *UnitFileSuite) TestLoadDirMultiple(c *C) {
	dir := c.MkDir()
	for _, name := range []string{"a", "b", "c"} {
		c.Assert(os.WriteFile(filepath.Join(dir, name+".unit"),
			[]byte("Name = "+name+"\nExecStart = /bin/"+name+"\n"), 0o644), IsNil)
	}
	units, err := unitfile.LoadDir(dir)
	c.Assert(err, IsNil)
	c.Assert(units, HasLen, 3)

	names := make([]string, len(units))
	for i, u := range units {
		names[i] = u.Name
	}
	sort.Strings(names)
	c.Check(names, DeepEquals, []string{"a", "b", "c"})
}
