// Package ports declares the interfaces between the coordination
// services and the infrastructure adapters that back them.
package ports

import (
	"livecast/internal/core/domain"
	"livecast/internal/media"
)

// NotifyOption adjusts how a notification is presented.
type NotifyOption func(*NotifyParams)

// NotifyParams carries presentation overrides for one notification.
type NotifyParams struct {
	// DurationMs overrides the level's default display duration.
	DurationMs int
}

// WithDuration overrides the notification display duration.
func WithDuration(ms int) NotifyOption {
	return func(p *NotifyParams) {
		p.DurationMs = ms
	}
}

// Notifier surfaces user-facing notifications. Each call returns the
// id of the notification it raised.
type Notifier interface {
	Info(title, message string, opts ...NotifyOption) string
	Success(title, message string, opts ...NotifyOption) string
	Warning(title, message string, opts ...NotifyOption) string
	Error(title, message string, opts ...NotifyOption) string
}

// Translate resolves a message key into the configured locale.
type Translate func(key string) string

// MessageHandler consumes one signaling payload from a topic.
type MessageHandler func(topic string, payload []byte)

// SignalingClient is an established connection to the signaling broker.
type SignalingClient interface {
	ClientID() domain.ClientID
	Subscribe(topic string, handler MessageHandler) error
	Publish(topic string, payload []byte) error
	Unsubscribe(topic string) error
	Close()
}

// SignalingDialer connects new signaling clients.
type SignalingDialer interface {
	Connect(clientID domain.ClientID) (SignalingClient, error)
}

// MediaCall is one live media session with a remote peer.
type MediaCall interface {
	RemotePeerID() domain.TransportPeerID
	// ReplaceTracks swaps the outbound tracks for the given stream,
	// matched positionally by kind. The remote end is not re-signaled.
	ReplaceTracks(stream *media.Stream) error
	Stats() domain.CallStats
	Close()
}

// RemoteStreamHandler receives the inbound stream of an answered call.
type RemoteStreamHandler func(stream *media.RemoteStream, call MediaCall)

// MediaClient is an established media transport endpoint.
type MediaClient interface {
	ClientID() domain.ClientID
	PeerID() domain.TransportPeerID
	// CallRemotePeer starts an outbound call carrying stream.
	CallRemotePeer(target domain.TransportPeerID, stream *media.Stream) (MediaCall, error)
	// ListenForIncomingCalls installs handler for inbound calls,
	// replacing any previous handler.
	ListenForIncomingCalls(handler RemoteStreamHandler)
	Close()
}

// MediaDialer connects new media transport endpoints.
type MediaDialer interface {
	Connect(clientID domain.ClientID) (MediaClient, error)
}

// SignalingRegistry tracks signaling connection state per client.
type SignalingRegistry interface {
	SetClient(clientID domain.ClientID, connected bool) error
	GetClient(clientID domain.ClientID) (domain.SignalingConnection, bool)
	// Watch registers an observer called after every state change.
	Watch(fn func(domain.SignalingConnection))
}

// MediaRegistry tracks media transport state per client.
type MediaRegistry interface {
	SetClient(clientID domain.ClientID, peerID domain.TransportPeerID, connected bool) error
	GetClient(clientID domain.ClientID) (domain.MediaConnection, bool)
	// Watch registers an observer called after every state change.
	Watch(fn func(domain.MediaConnection))
}

// CaptureBackend acquires local capture streams.
type CaptureBackend interface {
	Devices() ([]media.DeviceInfo, error)
	Screen(req media.ScreenRequest) (*media.Stream, error)
	Camera(req media.CameraRequest) (*media.Stream, error)
}
