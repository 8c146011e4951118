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

// Package unitstore holds the Master's durable, in-memory records: the set
// of UUIDs it has issued to registering units, the pids of slave processes
// it spawned, and the pid→unit mapping for children started through the
// Reaper.
package unitstore

import (
	"sync"

	"github.com/google/uuid"
)

// Store is safe for concurrent use by the many slave-connection worker
// goroutines the Master runs.
type Store struct {
	mu       sync.Mutex
	units    map[uuid.UUID]struct{}
	slaves   []int
	children map[int]uuid.UUID
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		units:    make(map[uuid.UUID]struct{}),
		children: make(map[int]uuid.UUID),
	}
}

// RegisterUnit mints a fresh v4 UUID guaranteed unique across this Store's
// lifetime and records it as issued.
func (s *Store) RegisterUnit() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	for {
		if _, exists := s.units[id]; !exists {
			break
		}
		id = uuid.New()
	}
	s.units[id] = struct{}{}
	return id
}

// IsIssued reports whether id was previously returned by RegisterUnit.
func (s *Store) IsIssued(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.units[id]
	return ok
}

// AddSlave records the pid of a spawned slave process.
func (s *Store) AddSlave(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slaves = append(s.slaves, pid)
}

// Slaves returns a snapshot of the spawned slave pids.
func (s *Store) Slaves() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.slaves))
	copy(out, s.slaves)
	return out
}

// RecordChildStart associates a pid returned by a successful START with the
// unit UUID that requested it.
func (s *Store) RecordChildStart(pid int, unit uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children[pid] = unit
}

// ChildUnit looks up the unit UUID associated with a started child pid.
func (s *Store) ChildUnit(pid int) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.children[pid]
	return id, ok
}
