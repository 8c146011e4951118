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

// Package wire implements the Master's slave-facing binary-framed protocol:
// a 4-byte little-endian length header followed by a one-byte tag and
// tag-specific fields. Every frame is length-prefixed so Decode never has
// to guess where a message ends.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// MaxFrameSize is the ceiling on a single frame's payload, large enough for
// a unit's full exec line plus its fields without risking unbounded reads.
const MaxFrameSize = 64 * 1024

// ErrFrameTooLarge is returned by Decode when the advertised length exceeds
// MaxFrameSize.
var ErrFrameTooLarge = fmt.Errorf("wire: frame exceeds %d bytes", MaxFrameSize)

// ErrShortFrame is returned by Decode when the stream ends mid-frame.
var ErrShortFrame = fmt.Errorf("wire: short frame")

type tag byte

const (
	tagHelo tag = iota + 1
	tagRegisterUnit
	tagUnitStartExecutable
	tagProtocolError
	tagHeloReply
	tagUnitRegistered
)

// Message is the tagged-variant envelope shared by requests (slave→master)
// and replies (master→slave). Each variant is its own type carrying only
// its own fields; its tag byte is written by encode.
type Message interface {
	encode() []byte
}

// Helo is a slave's version-handshake request.
type Helo struct{}

// RegisterUnit asks the master to assign a fresh UUID to a unit.
type RegisterUnit struct{}

// UnitStartExecutable asks the master to forward a START to the Reaper.
type UnitStartExecutable struct {
	UUID uuid.UUID
	Exec string
}

// ProtocolError is the fallback request tag used when decoding fails or an
// unknown tag is observed.
type ProtocolError struct {
	Reason string
}

// HeloReply answers Helo with the master's version string.
type HeloReply struct {
	Version string
}

// UnitRegistered answers RegisterUnit with the assigned UUID.
type UnitRegistered struct {
	UUID uuid.UUID
}

func (Helo) encode() []byte                { return []byte{byte(tagHelo)} }
func (RegisterUnit) encode() []byte        { return []byte{byte(tagRegisterUnit)} }
func (m UnitStartExecutable) encode() []byte {
	buf := make([]byte, 0, 1+16+4+len(m.Exec))
	buf = append(buf, byte(tagUnitStartExecutable))
	idBytes, _ := m.UUID.MarshalBinary()
	buf = append(buf, idBytes...)
	buf = appendString(buf, m.Exec)
	return buf
}
func (m ProtocolError) encode() []byte {
	buf := []byte{byte(tagProtocolError)}
	return appendString(buf, m.Reason)
}
func (m HeloReply) encode() []byte {
	buf := []byte{byte(tagHeloReply)}
	return appendString(buf, m.Version)
}
func (m UnitRegistered) encode() []byte {
	buf := make([]byte, 0, 17)
	buf = append(buf, byte(tagUnitRegistered))
	idBytes, _ := m.UUID.MarshalBinary()
	return append(buf, idBytes...)
}

func appendString(buf []byte, s string) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, s...)
}

// Encode writes msg to w as one length-prefixed frame.
func Encode(w io.Writer, msg Message) error {
	payload := msg.encode()
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// Decode reads one length-prefixed frame from r and parses its tag. A frame
// that fails to parse, or carries an unrecognized tag, decodes as a
// ProtocolError rather than returning an error — only I/O failures (short
// read, oversized length) are returned as errors, matching a
// "protocol errors never terminate the connection" policy.
func Decode(r io.Reader) (Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, ErrShortFrame
	}
	return decodePayload(payload), nil
}

func decodePayload(payload []byte) Message {
	if len(payload) < 1 {
		return ProtocolError{Reason: "empty frame"}
	}
	switch tag(payload[0]) {
	case tagHelo:
		return Helo{}
	case tagRegisterUnit:
		return RegisterUnit{}
	case tagUnitStartExecutable:
		body := payload[1:]
		if len(body) < 16+4 {
			return ProtocolError{Reason: "short UnitStartExecutable frame"}
		}
		var id uuid.UUID
		if err := id.UnmarshalBinary(body[:16]); err != nil {
			return ProtocolError{Reason: "bad UUID"}
		}
		s, ok := readString(body[16:])
		if !ok {
			return ProtocolError{Reason: "bad string length"}
		}
		return UnitStartExecutable{UUID: id, Exec: s}
	case tagProtocolError:
		s, ok := readString(payload[1:])
		if !ok {
			return ProtocolError{Reason: "malformed ProtocolError frame"}
		}
		return ProtocolError{Reason: s}
	case tagHeloReply:
		s, ok := readString(payload[1:])
		if !ok {
			return ProtocolError{Reason: "malformed HeloReply frame"}
		}
		return HeloReply{Version: s}
	case tagUnitRegistered:
		body := payload[1:]
		if len(body) != 16 {
			return ProtocolError{Reason: "short UnitRegistered frame"}
		}
		var id uuid.UUID
		if err := id.UnmarshalBinary(body); err != nil {
			return ProtocolError{Reason: "bad UUID"}
		}
		return UnitRegistered{UUID: id}
	default:
		return ProtocolError{Reason: fmt.Sprintf("unknown tag %d", payload[0])}
	}
}

func readString(b []byte) (string, bool) {
	if len(b) < 4 {
		return "", false
	}
	n := binary.LittleEndian.Uint32(b[:4])
	if uint32(len(b)-4) < n {
		return "", false
	}
	return string(b[4 : 4+n]), true
}
