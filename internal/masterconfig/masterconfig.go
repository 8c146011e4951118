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

// Package masterconfig loads the Master's configuration file.
package masterconfig

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is the well-known location of the Master's configuration.
const DefaultPath = "/etc/aeterno/master.toml"

// Config is the decoded shape of master.toml.
type Config struct {
	Slaves []string `toml:"slaves"`
}

// Load reads and decodes path. A missing or empty slaves list is not an
// error: it simply means the Master starts with no slaves configured.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("masterconfig: cannot read %s: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("masterconfig: cannot parse %s: %w", path, err)
	}
	return &cfg, nil
}
