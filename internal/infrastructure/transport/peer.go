// Package transport implements the media ports on WebRTC. Offer,
// answer and ICE candidates travel over per-peer broker topics; media
// flows peer to peer once the session is negotiated.
package transport

import (
	"encoding/json"
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"livecast/internal/core/domain"
	"livecast/internal/core/ports"
	"livecast/pkg/config"
)

const (
	msgOffer     = "offer"
	msgAnswer    = "answer"
	msgCandidate = "candidate"
)

// negotiationMessage is the session-negotiation payload exchanged over
// per-peer topics.
type negotiationMessage struct {
	Type      string                   `json:"type"`
	CallID    string                   `json:"callId"`
	From      string                   `json:"from"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

// Dialer connects media transport endpoints.
type Dialer struct {
	cfg       *config.Config
	registry  ports.MediaRegistry
	notifier  ports.Notifier
	translate ports.Translate
	logger    *zap.SugaredLogger
}

func NewDialer(cfg *config.Config, registry ports.MediaRegistry, notifier ports.Notifier, translate ports.Translate, logger *zap.SugaredLogger) *Dialer {
	return &Dialer{
		cfg:       cfg,
		registry:  registry,
		notifier:  notifier,
		translate: translate,
		logger:    logger,
	}
}

// Connect establishes a media endpoint for clientID: a broker session
// on its negotiation topic and a fresh transport peer id. Registration
// is reported through the media registry and a notification; a lost
// broker session flips the registry off and reconnects indefinitely.
func (d *Dialer) Connect(clientID domain.ClientID) (ports.MediaClient, error) {
	c := &client{
		clientID:  clientID,
		peerID:    domain.TransportPeerID(uuid.NewString()),
		cfg:       d.cfg,
		registry:  d.registry,
		notifier:  d.notifier,
		translate: d.translate,
		logger:    d.logger,
		calls:     make(map[string]negotiator),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(d.cfg.Signaling.BrokerURL).
		SetClientID(string(clientID) + "-rtc").
		SetAutoReconnect(true).
		SetOnConnectHandler(c.onBrokerConnect).
		SetConnectionLostHandler(c.onBrokerLost)

	c.mqtt = mqtt.NewClient(opts)

	token := c.mqtt.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		msg := c.translate("TOAST_MESSAGE_UNKNOWN_ERROR")
		if err != nil {
			msg = err.Error()
		}
		c.notifier.Error(c.translate("TOAST_TITLE_ERROR"), msg)
		return nil, fmt.Errorf("failed to connect media endpoint: %w", err)
	}

	return c, nil
}

type negotiator interface {
	handleAnswer(sdp string)
	handleCandidate(init webrtc.ICECandidateInit)
}

type client struct {
	clientID  domain.ClientID
	peerID    domain.TransportPeerID
	cfg       *config.Config
	mqtt      mqtt.Client
	registry  ports.MediaRegistry
	notifier  ports.Notifier
	translate ports.Translate
	logger    *zap.SugaredLogger

	mu      sync.Mutex
	calls   map[string]negotiator
	handler ports.RemoteStreamHandler
	closed  bool
}

func (c *client) ClientID() domain.ClientID      { return c.clientID }
func (c *client) PeerID() domain.TransportPeerID { return c.peerID }

// topicFor is the negotiation topic of a transport peer.
func (c *client) topicFor(peer domain.TransportPeerID) string {
	return c.cfg.Signaling.RoomTopic + "peers/" + string(peer)
}

func (c *client) onBrokerConnect(_ mqtt.Client) {
	token := c.mqtt.Subscribe(c.topicFor(c.peerID), c.cfg.Signaling.QoS, func(_ mqtt.Client, m mqtt.Message) {
		c.dispatch(m.Payload())
	})
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			c.logger.Errorw("media negotiation subscribe failed", "client_id", c.clientID, "error", err)
			c.notifier.Error(c.translate("TOAST_TITLE_ERROR"), err.Error())
			return
		}
		c.logger.Infow("media endpoint ready", "client_id", c.clientID, "peer_id", c.peerID)
		if err := c.registry.SetClient(c.clientID, c.peerID, true); err != nil {
			c.logger.Errorw("failed to record media state", "client_id", c.clientID, "error", err)
		}
		c.notifier.Success(c.translate("TOAST_TITLE_SUCCESS"), c.translate("PEER_CLIENT_CONNECTED"))
	}()
}

// onCallLost records a dead peer session. The registry entry flips off
// so the coordinators can react to a remote that vanished without a
// clean offline signal.
func (c *client) onCallLost(callID string, state webrtc.PeerConnectionState) {
	c.logger.Warnw("call lost", "call_id", callID, "state", state.String())
	if err := c.registry.SetClient(c.clientID, c.peerID, false); err != nil {
		c.logger.Errorw("failed to record media state", "client_id", c.clientID, "error", err)
	}
	c.notifier.Error(c.translate("TOAST_TITLE_ERROR"), c.translate("PEER_CLIENT_ERROR"))
}

func (c *client) onBrokerLost(_ mqtt.Client, err error) {
	c.logger.Warnw("media endpoint disconnected", "client_id", c.clientID, "error", err)
	if err := c.registry.SetClient(c.clientID, c.peerID, false); err != nil {
		c.logger.Errorw("failed to record media state", "client_id", c.clientID, "error", err)
	}
	c.notifier.Warning(c.translate("TOAST_TITLE_WARNING"), c.translate("PEER_CLIENT_DISCONNECTED"))
}

// dispatch routes one negotiation payload: answers and candidates go
// to the call they belong to, offers start an inbound call.
func (c *client) dispatch(payload []byte) {
	var msg negotiationMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Warnw("malformed negotiation message dropped", "client_id", c.clientID, "error", err)
		return
	}

	c.mu.Lock()
	call, known := c.calls[msg.CallID]
	handler := c.handler
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	switch msg.Type {
	case msgOffer:
		if known {
			return
		}
		if handler == nil {
			c.logger.Infow("inbound call ignored, no handler installed", "client_id", c.clientID, "call_id", msg.CallID)
			return
		}
		c.answerCall(msg, handler)
	case msgAnswer:
		if !known {
			c.logger.Debugw("answer for unknown call dropped", "call_id", msg.CallID, "error", domain.ErrCallNotFound)
			return
		}
		call.handleAnswer(msg.SDP)
	case msgCandidate:
		if known && msg.Candidate != nil {
			call.handleCandidate(*msg.Candidate)
		}
	}
}

func (c *client) publishTo(peer domain.TransportPeerID, msg negotiationMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Errorw("failed to encode negotiation message", "client_id", c.clientID, "error", err)
		return
	}
	token := c.mqtt.Publish(c.topicFor(peer), c.cfg.Signaling.QoS, false, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			c.logger.Errorw("negotiation publish failed", "client_id", c.clientID, "peer", peer, "error", err)
		}
	}()
}

func (c *client) registerCall(callID string, n negotiator) {
	c.mu.Lock()
	c.calls[callID] = n
	c.mu.Unlock()
}

func (c *client) dropCall(callID string) {
	c.mu.Lock()
	delete(c.calls, callID)
	c.mu.Unlock()
}

func (c *client) iceServers() []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(c.cfg.WebRTC.ICEServers))
	for _, s := range c.cfg.WebRTC.ICEServers {
		server := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			server.Username = s.Username
			server.Credential = s.Credential
		}
		servers = append(servers, server)
	}
	return servers
}

// ListenForIncomingCalls installs handler, replacing any previous one.
func (c *client) ListenForIncomingCalls(handler ports.RemoteStreamHandler) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

// Close ends the endpoint deliberately: no reconnect follows.
func (c *client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	calls := make([]negotiator, 0, len(c.calls))
	for _, call := range c.calls {
		calls = append(calls, call)
	}
	c.calls = make(map[string]negotiator)
	c.mu.Unlock()

	for _, call := range calls {
		if closer, ok := call.(interface{ Close() }); ok {
			closer.Close()
		}
	}

	c.mqtt.Disconnect(250)
	if err := c.registry.SetClient(c.clientID, c.peerID, false); err != nil {
		c.logger.Errorw("failed to record media state", "client_id", c.clientID, "error", err)
	}
	c.notifier.Info(c.translate("TOAST_TITLE_INFO"), c.translate("PEER_CLIENT_CLOSED"))
}
