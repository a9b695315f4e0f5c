package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"livecast/internal/core/domain"
	"livecast/internal/core/ports"
	"livecast/internal/core/signaling"
	"livecast/internal/media"
	"livecast/pkg/config"
	"livecast/pkg/tracing"
)

// ViewSnapshot is the observable state of a viewer session. Quality
// figures are derived from the reception counters once per sample
// interval.
type ViewSnapshot struct {
	Room        domain.RoomID
	ClientID    domain.ClientID
	Status      domain.StreamStatus
	BitrateBps  int64
	FrameRate   float64
	Resolution  string
	AudioTracks int
	VideoTracks int
}

const noResolution = "-"

// ViewService coordinates a viewer session: it requests the broadcast
// once both transports are ready, receives the host's call and samples
// reception quality while live.
type ViewService struct {
	cfg             *config.Config
	logger          *zap.SugaredLogger
	notifier        ports.Notifier
	translate       ports.Translate
	signalingDialer ports.SignalingDialer
	mediaDialer     ports.MediaDialer
	sigRegistry     ports.SignalingRegistry
	mediaRegistry   ports.MediaRegistry

	mu          sync.Mutex
	room        domain.RoomID
	clientID    domain.ClientID
	signaling   ports.SignalingClient
	mediaClient ports.MediaClient
	status      domain.StreamStatus
	listening   bool
	sigReady    bool
	mediaReady  bool
	call        ports.MediaCall
	remote      *media.RemoteStream
	lastStats   domain.CallStats
	bitrateBps  int64
	frameRate   float64
	resolution  string
	stopSample  chan struct{}
	limiter     *rate.Limiter
}

func NewViewService(
	cfg *config.Config,
	logger *zap.SugaredLogger,
	notifier ports.Notifier,
	translate ports.Translate,
	signalingDialer ports.SignalingDialer,
	mediaDialer ports.MediaDialer,
	sigRegistry ports.SignalingRegistry,
	mediaRegistry ports.MediaRegistry,
) *ViewService {
	s := &ViewService{
		cfg:             cfg,
		logger:          logger,
		notifier:        notifier,
		translate:       translate,
		signalingDialer: signalingDialer,
		mediaDialer:     mediaDialer,
		sigRegistry:     sigRegistry,
		mediaRegistry:   mediaRegistry,
		status:          domain.StreamStatusOffline,
		resolution:      noResolution,
	}
	if cfg.RateLimiting.Enabled {
		s.limiter = rate.NewLimiter(
			rate.Limit(cfg.RateLimiting.Signaling.MessagesPerSecond),
			cfg.RateLimiting.Signaling.Burst,
		)
	}
	return s
}

// Mount connects both transports for room and installs the readiness
// gate: the stream request goes out only once the signaling session
// and the media registration are both up.
func (s *ViewService) Mount(ctx context.Context, room domain.RoomID) error {
	ctx, span := tracing.StartSpan(ctx, "ViewService.Mount")
	defer span.End()

	clientID := domain.NewClientID(s.cfg.Signaling.PeerPrefix)
	span.SetAttributes(tracing.RoomIDKey.String(string(room)), tracing.ClientIDKey.String(string(clientID)))

	s.mu.Lock()
	s.room = room
	s.clientID = clientID
	s.mu.Unlock()

	s.sigRegistry.Watch(s.onSignalingState)
	s.mediaRegistry.Watch(s.onMediaState)

	sig, err := s.signalingDialer.Connect(clientID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("failed to connect signaling: %w", err)
	}
	mediaClient, err := s.mediaDialer.Connect(clientID)
	if err != nil {
		sig.Close()
		tracing.RecordError(ctx, err)
		return fmt.Errorf("failed to connect media transport: %w", err)
	}

	s.mu.Lock()
	s.signaling = sig
	s.mediaClient = mediaClient
	s.mu.Unlock()

	s.logger.Infow("viewer session mounted", "room", room, "client_id", clientID)
	s.maybeStart()
	return nil
}

func (s *ViewService) roomTopic() string {
	return s.cfg.Signaling.RoomTopic + string(s.room)
}

func (s *ViewService) onSignalingState(record domain.SignalingConnection) {
	s.mu.Lock()
	if record.ClientID != s.clientID {
		s.mu.Unlock()
		return
	}
	s.sigReady = record.Connected
	if !record.Connected {
		// Re-arm the gate: a recovered session must subscribe and
		// request again.
		s.listening = false
	}
	s.mu.Unlock()
	s.maybeStart()
}

func (s *ViewService) onMediaState(record domain.MediaConnection) {
	s.mu.Lock()
	if record.ClientID != s.clientID {
		s.mu.Unlock()
		return
	}
	wasReady := s.mediaReady
	s.mediaReady = record.Connected
	if !record.Connected {
		s.listening = false
	}
	s.mu.Unlock()

	if wasReady && !record.Connected {
		// The media transport dropped out from under a live view.
		s.goOffline()
		return
	}
	s.maybeStart()
}

// maybeStart begins listening and requests the stream whenever both
// transports report ready. A transport drop re-arms the gate, so a
// recovered session subscribes and requests again.
func (s *ViewService) maybeStart() {
	s.mu.Lock()
	ready := s.sigReady && s.mediaReady && s.signaling != nil && s.mediaClient != nil
	if !ready || s.listening {
		s.mu.Unlock()
		return
	}
	s.listening = true
	sig := s.signaling
	mediaClient := s.mediaClient
	s.mu.Unlock()

	mediaClient.ListenForIncomingCalls(s.onStreamReceived)

	if err := sig.Subscribe(s.roomTopic(), s.handleMessage); err != nil {
		s.logger.Errorw("failed to subscribe to room topic", "room", s.room, "error", err)
		s.mu.Lock()
		s.listening = false
		s.mu.Unlock()
		return
	}
	s.requestStream()
}

// requestStream asks the host to call this viewer's transport peer.
func (s *ViewService) requestStream() {
	s.mu.Lock()
	sig := s.signaling
	mediaClient := s.mediaClient
	clientID := s.clientID
	s.mu.Unlock()
	if sig == nil || mediaClient == nil {
		return
	}

	payload := signaling.Encode(signaling.Envelope{
		Type:     signaling.KindPeer,
		ClientID: clientID,
		Message:  domain.StreamRequestMessage(mediaClient.PeerID()),
	})
	if err := sig.Publish(s.roomTopic(), payload); err != nil {
		s.logger.Errorw("failed to request stream", "room", s.room, "error", err)
		return
	}
	s.logger.Infow("stream requested", "room", s.room, "peer_id", mediaClient.PeerID())
}

// handleMessage consumes one room-topic payload. Only host
// announcements from another sender are acted on.
func (s *ViewService) handleMessage(topic string, payload []byte) {
	if s.limiter != nil && !s.limiter.Allow() {
		s.logger.Warnw("signaling message dropped by rate limit", "topic", topic)
		return
	}

	env := signaling.Decode(payload, signaling.FallbackEnvelope())

	s.mu.Lock()
	self := s.clientID
	s.mu.Unlock()

	if env.Type != signaling.KindHost || env.ClientID == self {
		return
	}

	switch env.Message {
	case domain.MessageStreamLive:
		// The host just went live (or came back); ask again.
		s.requestStream()
	case domain.MessageStreamOffline:
		s.goOffline()
	}
}

// onStreamReceived accepts the host's inbound call and starts quality
// sampling.
func (s *ViewService) onStreamReceived(remote *media.RemoteStream, call ports.MediaCall) {
	s.mu.Lock()
	old := s.call
	s.call = call
	s.remote = remote
	s.status = domain.StreamStatusLive
	s.lastStats = call.Stats()
	if s.stopSample != nil {
		close(s.stopSample)
	}
	stop := make(chan struct{})
	s.stopSample = stop
	s.mu.Unlock()

	// A newer call supersedes the current one.
	if old != nil && old != call {
		old.Close()
	}

	s.logger.Infow("stream received", "room", s.room,
		"audio_tracks", remote.AudioTracks, "video_tracks", remote.VideoTracks)

	go s.sampleLoop(call, stop)
}

// sampleLoop derives bitrate, framerate and resolution from the call's
// cumulative counters once per interval.
func (s *ViewService) sampleLoop(call ports.MediaCall, stop chan struct{}) {
	ticker := time.NewTicker(s.cfg.Quality.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			stats := call.Stats()

			s.mu.Lock()
			if s.call != call {
				s.mu.Unlock()
				return
			}
			elapsed := stats.Timestamp.Sub(s.lastStats.Timestamp).Seconds()
			if elapsed > 0 {
				deltaBytes := stats.BytesReceived - s.lastStats.BytesReceived
				deltaFrames := stats.FramesReceived - s.lastStats.FramesReceived
				s.bitrateBps = int64(float64(deltaBytes*8) / elapsed)
				s.frameRate = float64(deltaFrames) / elapsed
			}
			if stats.FrameWidth > 0 && stats.FrameHeight > 0 {
				s.resolution = fmt.Sprintf("%dx%d", stats.FrameWidth, stats.FrameHeight)
			}
			s.lastStats = stats
			s.mu.Unlock()
		}
	}
}

// goOffline resets the session to its idle state: the call is closed,
// sampling stops and the quality figures return to zero.
func (s *ViewService) goOffline() {
	s.mu.Lock()
	if s.status != domain.StreamStatusLive && s.call == nil {
		s.mu.Unlock()
		return
	}
	call := s.call
	s.call = nil
	s.remote = nil
	s.status = domain.StreamStatusOffline
	s.bitrateBps = 0
	s.frameRate = 0
	s.resolution = noResolution
	s.lastStats = domain.CallStats{}
	if s.stopSample != nil {
		close(s.stopSample)
		s.stopSample = nil
	}
	s.mu.Unlock()

	if call != nil {
		call.Close()
	}
	s.logger.Infow("view went offline", "room", s.room)
}

// Snapshot reports the observable session state.
func (s *ViewService) Snapshot() ViewSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := ViewSnapshot{
		Room:       s.room,
		ClientID:   s.clientID,
		Status:     s.status,
		BitrateBps: s.bitrateBps,
		FrameRate:  s.frameRate,
		Resolution: s.resolution,
	}
	if s.remote != nil {
		snap.AudioTracks = s.remote.AudioTracks
		snap.VideoTracks = s.remote.VideoTracks
	}
	return snap
}

// Unmount tears the session down and releases both transports.
func (s *ViewService) Unmount(ctx context.Context) {
	_, span := tracing.StartSpan(ctx, "ViewService.Unmount")
	defer span.End()

	s.goOffline()

	s.mu.Lock()
	sig := s.signaling
	mediaClient := s.mediaClient
	s.signaling = nil
	s.mediaClient = nil
	s.listening = false
	s.mu.Unlock()

	if sig != nil {
		if err := sig.Unsubscribe(s.roomTopic()); err != nil {
			s.logger.Warnw("failed to release room topic", "room", s.room, "error", err)
		}
		sig.Close()
	}
	if mediaClient != nil {
		mediaClient.Close()
	}
}
