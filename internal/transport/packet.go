// Package transport delivers match results and calibration error codes to
// the receivers that actuate the keys.
package transport

import (
	"encoding/json"
	"fmt"

	"github.com/ayusman/ivory/internal/keyboard"
)

// Kind distinguishes key packets from error packets.
type Kind string

const (
	KindKeys  Kind = "keys"
	KindError Kind = "error"
)

// Packet is one message to a receiver.
type Packet struct {
	Kind Kind
	Keys keyboard.MatchResult
	Code int
}

// KeysPacket wraps a per-frame match result.
func KeysPacket(r keyboard.MatchResult) Packet {
	return Packet{Kind: KindKeys, Keys: r}
}

// ErrorPacket wraps a calibration error code.
func ErrorPacket(code int) Packet {
	return Packet{Kind: KindError, Code: code}
}

// Bytes returns the wire form sent to the actuator.
func (p Packet) Bytes() []byte {
	if p.Kind == KindError {
		return EncodeError(p.Code)
	}
	return EncodeKeys(p.Keys)
}

// MarshalJSON renders the packet for browser clients.
func (p Packet) MarshalJSON() ([]byte, error) {
	if p.Kind == KindError {
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Code int  `json:"code"`
		}{p.Kind, p.Code})
	}
	return json.Marshal(struct {
		Type Kind  `json:"type"`
		Keys []int `json:"keys"`
	}{p.Kind, p.Keys[:]})
}

// EncodeKeys packs a match result as one byte per fingertip slot. Every
// value is a key number or NoKey, so it fits in a byte.
func EncodeKeys(r keyboard.MatchResult) []byte {
	buf := make([]byte, keyboard.NumSlots)
	for i, k := range r {
		if k < 0 || k > keyboard.NoKey {
			k = keyboard.NoKey
		}
		buf[i] = byte(k)
	}
	return buf
}

// EncodeError formats a calibration error code as the receiver expects it.
func EncodeError(code int) []byte {
	return []byte(fmt.Sprintf("error code %d", code))
}
