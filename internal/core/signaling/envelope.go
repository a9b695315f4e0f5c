// Package signaling defines the JSON envelope used for all room
// signaling traffic and its codec. Payloads arrive from an untrusted,
// unordered public channel, so decoding is total: a malformed message
// yields the caller-supplied fallback instead of an error.
package signaling

import (
	"encoding/json"

	"livecast/internal/core/domain"
)

// Kind disambiguates the sender role so each coordinator can ignore
// messages from its own role.
type Kind string

const (
	KindPeer    Kind = "peer"
	KindHost    Kind = "host"
	KindUnknown Kind = "unknown"
)

// Envelope is the wire-level unit of all signaling traffic.
type Envelope struct {
	Type     Kind            `json:"type"`
	ClientID domain.ClientID `json:"clientId"`
	Message  string          `json:"message"`
}

// FallbackEnvelope is the safe default produced for unparseable
// payloads; neither coordinator's dispatch matches kind "unknown".
func FallbackEnvelope() Envelope {
	return Envelope{Type: KindUnknown, ClientID: "", Message: ""}
}

// Encode serializes an envelope. Marshaling this shape cannot fail.
func Encode(e Envelope) []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return []byte("{}")
	}
	return data
}

// Decode parses a signaling payload, returning fallback on any
// malformed input. A recognized JSON object with an unrecognized type
// keeps its clientId and message but is normalized to kind "unknown".
func Decode(data []byte, fallback Envelope) Envelope {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return fallback
	}
	switch e.Type {
	case KindPeer, KindHost, KindUnknown:
	default:
		e.Type = KindUnknown
	}
	return e
}
