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

import "golang.org/x/sys/unix"

// setUmask narrows file creation permissions for the socket bind below and
// returns the previous umask so it can be restored.
func setUmask(mask int) int {
	return unix.Umask(mask)
}

func restoreUmask(old int) {
	unix.Umask(old)
}
