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

// Package unitfile enumerates and parses the Slave's local unit
// definitions.
package unitfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/ini.v1"

	"aeterno/internal/logger"
)

// DefaultDir is the well-known services directory.
const DefaultDir = "/usr/local/aeterno/services/"

// ErrDirNotFound is returned by LoadDir when dir does not exist.
var ErrDirNotFound = errors.New("unitfile: services directory not found")

// Unit is a Slave's local, authoritative copy of a service definition. UUID
// is the zero value until the Master assigns one on registration.
type Unit struct {
	UUID      uuid.UUID
	Name      string
	ExecStart string
}

// HasCommand reports whether the unit has a non-empty command string, the
// precondition for being eligible for START.
func (u Unit) HasCommand() bool {
	return u.ExecStart != ""
}

// LoadDir parses every regular file directly inside dir as a unit
// definition. Files that fail to read or parse, or are missing required
// fields, are skipped with a warning; they do not abort enumeration. A
// missing dir yields ErrDirNotFound and a nil slice.
func LoadDir(dir string) ([]Unit, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrDirNotFound
		}
		return nil, fmt.Errorf("unitfile: cannot read %s: %w", dir, err)
	}

	var units []Unit
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		unit, err := loadFile(path)
		if err != nil {
			logger.Noticef("unitfile: skipping %s: %v", path, err)
			continue
		}
		units = append(units, unit)
	}
	return units, nil
}

func loadFile(path string) (Unit, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return Unit{}, err
	}
	section := cfg.Section("")
	name := section.Key("Name").String()
	execStart := section.Key("ExecStart").String()
	if name == "" {
		return Unit{}, fmt.Errorf("missing Name field")
	}
	if execStart == "" {
		return Unit{}, fmt.Errorf("missing ExecStart field")
	}
	return Unit{Name: name, ExecStart: execStart}, nil
}
