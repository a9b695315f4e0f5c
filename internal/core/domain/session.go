package domain

import "regexp"

// StreamStatus is the lifecycle state of a broadcast or view session.
type StreamStatus string

const (
	StreamStatusOffline StreamStatus = "offline"
	StreamStatusLive    StreamStatus = "live"
)

// StreamSource identifies the active capture path of a host session.
type StreamSource string

const (
	StreamSourceNone   StreamSource = ""
	StreamSourceScreen StreamSource = "screen"
	StreamSourceCamera StreamSource = "camera"
)

// SignalingConnection is the registry record for one signaling client.
// Overwritten in place on every transport lifecycle event, never deleted.
type SignalingConnection struct {
	ClientID  ClientID
	Connected bool
}

// MediaConnection is the registry record for one media transport
// client. PeerID may be empty before registration completes.
type MediaConnection struct {
	ClientID  ClientID
	PeerID    TransportPeerID
	Connected bool
}

// Wire message literals exchanged over the room topic.
const (
	MessageStreamLive    = "stream:live"
	MessageStreamOffline = "stream:offline"
)

var streamRequestPattern = regexp.MustCompile(`(?i)^stream:[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// StreamRequestMessage builds the viewer's stream request payload.
func StreamRequestMessage(peer TransportPeerID) string {
	return "stream:" + string(peer)
}

// ParseStreamRequest matches a payload against the stream:<uuid>
// pattern (case-insensitive) and extracts the requester's transport
// peer id.
func ParseStreamRequest(message string) (TransportPeerID, bool) {
	if !streamRequestPattern.MatchString(message) {
		return "", false
	}
	return TransportPeerID(message[len("stream:"):]), true
}
