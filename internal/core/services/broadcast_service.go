// Package services contains the two session coordinators: the host
// side broadcasting a capture stream and the viewer side receiving it.
package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"livecast/internal/core/domain"
	"livecast/internal/core/ports"
	"livecast/internal/core/signaling"
	"livecast/internal/media"
	"livecast/pkg/config"
	"livecast/pkg/tracing"
)

// BroadcastSnapshot is the observable state of a host session.
type BroadcastSnapshot struct {
	Room        domain.RoomID
	ClientID    domain.ClientID
	Status      domain.StreamStatus
	Source      domain.StreamSource
	ViewerCount int
	Gains       []float64
	Levels      []float64
}

// BroadcastService coordinates a host session: capture, mixing,
// signaling presence and one outbound media call per requesting
// viewer.
type BroadcastService struct {
	cfg             *config.Config
	logger          *zap.SugaredLogger
	notifier        ports.Notifier
	translate       ports.Translate
	signalingDialer ports.SignalingDialer
	mediaDialer     ports.MediaDialer
	capture         ports.CaptureBackend

	mu          sync.Mutex
	room        domain.RoomID
	clientID    domain.ClientID
	signaling   ports.SignalingClient
	mediaClient ports.MediaClient
	status      domain.StreamStatus
	source      domain.StreamSource
	raw         *media.Stream
	mixed       *media.Stream
	gains       []float64
	meter       *media.LevelMeter
	activeCalls map[domain.TransportPeerID]ports.MediaCall
	limiter     *rate.Limiter
}

func NewBroadcastService(
	cfg *config.Config,
	logger *zap.SugaredLogger,
	notifier ports.Notifier,
	translate ports.Translate,
	signalingDialer ports.SignalingDialer,
	mediaDialer ports.MediaDialer,
	capture ports.CaptureBackend,
) *BroadcastService {
	s := &BroadcastService{
		cfg:             cfg,
		logger:          logger,
		notifier:        notifier,
		translate:       translate,
		signalingDialer: signalingDialer,
		mediaDialer:     mediaDialer,
		capture:         capture,
		status:          domain.StreamStatusOffline,
		source:          domain.StreamSourceNone,
		activeCalls:     make(map[domain.TransportPeerID]ports.MediaCall),
	}
	if cfg.RateLimiting.Enabled {
		s.limiter = rate.NewLimiter(
			rate.Limit(cfg.RateLimiting.Signaling.MessagesPerSecond),
			cfg.RateLimiting.Signaling.Burst,
		)
	}
	return s
}

// Mount establishes the session identities and connects both
// transports. An empty room gets a generated id.
func (s *BroadcastService) Mount(ctx context.Context, room domain.RoomID) error {
	ctx, span := tracing.StartSpan(ctx, "BroadcastService.Mount")
	defer span.End()

	if room == "" {
		room = domain.NewRoomID()
	}
	clientID := domain.NewClientID(s.cfg.Signaling.HostPrefix)
	span.SetAttributes(tracing.RoomIDKey.String(string(room)), tracing.ClientIDKey.String(string(clientID)))

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
	s.room = room
	s.clientID = clientID
	s.signaling = sig
	s.mediaClient = mediaClient
	s.mu.Unlock()

	s.logger.Infow("host session mounted", "room", room, "client_id", clientID)
	return nil
}

func (s *BroadcastService) roomTopic() string {
	return s.cfg.Signaling.RoomTopic + string(s.room)
}

// Devices lists the available capture devices.
func (s *BroadcastService) Devices() ([]media.DeviceInfo, error) {
	return s.capture.Devices()
}

// CaptureScreen switches the session to screen capture. The previous
// capture, if any, is stopped first; on failure the session is left
// without a capture source.
func (s *BroadcastService) CaptureScreen(ctx context.Context, req media.ScreenRequest) error {
	ctx, span := tracing.StartSpan(ctx, "BroadcastService.CaptureScreen")
	defer span.End()

	stream, err := s.capture.Screen(req)
	return s.installCapture(ctx, domain.StreamSourceScreen, stream, err)
}

// CaptureCamera switches the session to camera capture.
func (s *BroadcastService) CaptureCamera(ctx context.Context, req media.CameraRequest) error {
	ctx, span := tracing.StartSpan(ctx, "BroadcastService.CaptureCamera")
	defer span.End()

	stream, err := s.capture.Camera(req)
	return s.installCapture(ctx, domain.StreamSourceCamera, stream, err)
}

func (s *BroadcastService) installCapture(ctx context.Context, source domain.StreamSource, stream *media.Stream, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseCaptureLocked()

	if err != nil {
		s.source = domain.StreamSourceNone
		s.logger.Errorw("capture failed", "source", source, "error", err)
		s.notifier.Error(s.translate("TOAST_TITLE_ERROR"), err.Error())
		tracing.RecordError(ctx, err)
		return err
	}

	s.raw = stream
	s.source = source
	s.gains = make([]float64, len(stream.AudioTracks()))
	for i := range s.gains {
		s.gains[i] = 1.0
	}
	s.rebuildMixedLocked()
	s.meter = media.NewLevelMeter(stream)

	s.logger.Infow("capture started", "source", source,
		"audio_tracks", len(stream.AudioTracks()), "video_tracks", len(stream.VideoTracks()))
	return nil
}

// ResetSource stops the active capture without ending the broadcast.
func (s *BroadcastService) ResetSource() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseCaptureLocked()
	s.source = domain.StreamSourceNone
}

// releaseCaptureLocked stops the capture pipeline. Caller holds s.mu.
func (s *BroadcastService) releaseCaptureLocked() {
	if s.meter != nil {
		s.meter.Close()
		s.meter = nil
	}
	if s.mixed != nil {
		s.mixed.CloseAudioTracks()
		s.mixed = nil
	}
	if s.raw != nil {
		s.raw.Close()
		s.raw = nil
	}
	s.gains = nil
}

// rebuildMixedLocked derives a fresh mixed stream from the raw capture
// and the current gains, then moves every active call onto it. Caller
// holds s.mu.
func (s *BroadcastService) rebuildMixedLocked() {
	if s.mixed != nil {
		s.mixed.CloseAudioTracks()
	}
	s.mixed = media.NewMixedStream(s.raw, s.gains)

	for peer, call := range s.activeCalls {
		if err := call.ReplaceTracks(s.mixed); err != nil {
			s.logger.Warnw("failed to move call onto rebuilt stream", "peer", peer, "error", err)
		}
	}
}

// SetTrackVolume adjusts the gain of one audio track and rebuilds the
// outbound stream synchronously.
func (s *BroadcastService) SetTrackVolume(ctx context.Context, index int, gain float64) error {
	_, span := tracing.StartSpan(ctx, "BroadcastService.SetTrackVolume")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.raw == nil {
		return domain.ErrNoCapture
	}
	if index < 0 || index >= len(s.gains) {
		return domain.ErrTrackIndexOutOfRange
	}
	if gain < 0 {
		gain = 0
	}

	s.gains[index] = gain
	s.rebuildMixedLocked()
	s.logger.Infow("track volume changed", "index", index, "gain", gain)
	return nil
}

// Levels reports the current per-track RMS amplitude.
func (s *BroadcastService) Levels() []float64 {
	s.mu.Lock()
	meter := s.meter
	s.mu.Unlock()
	if meter == nil {
		return nil
	}
	return meter.Levels()
}

// Start goes live: the room topic is subscribed and the live
// announcement published. Idempotent while already live.
func (s *BroadcastService) Start(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "BroadcastService.Start")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	span.SetAttributes(tracing.RoomIDKey.String(string(s.room)))

	if s.status == domain.StreamStatusLive {
		return nil
	}
	if s.raw == nil {
		tracing.RecordError(ctx, domain.ErrNoCapture)
		return domain.ErrNoCapture
	}
	if s.signaling == nil {
		tracing.RecordError(ctx, domain.ErrNotConnected)
		return domain.ErrNotConnected
	}

	if err := s.signaling.Subscribe(s.roomTopic(), s.handleMessage); err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("failed to subscribe to room topic: %w", err)
	}

	announce := signaling.Encode(signaling.Envelope{
		Type:     signaling.KindHost,
		ClientID: s.clientID,
		Message:  domain.MessageStreamLive,
	})
	if err := s.signaling.Publish(s.roomTopic(), announce); err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("failed to announce broadcast: %w", err)
	}

	s.status = domain.StreamStatusLive
	s.logger.Infow("broadcast started", "room", s.room, "source", s.source)
	return nil
}

// Stop ends the broadcast: the offline announcement goes out, the
// room topic is released, every viewer call is closed and the capture
// pipeline is torn down.
func (s *BroadcastService) Stop(ctx context.Context) error {
	_, span := tracing.StartSpan(ctx, "BroadcastService.Stop")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	span.SetAttributes(tracing.RoomIDKey.String(string(s.room)))

	if s.status != domain.StreamStatusLive {
		return domain.ErrNotLive
	}

	announce := signaling.Encode(signaling.Envelope{
		Type:     signaling.KindHost,
		ClientID: s.clientID,
		Message:  domain.MessageStreamOffline,
	})
	if err := s.signaling.Publish(s.roomTopic(), announce); err != nil {
		s.logger.Warnw("failed to announce offline", "room", s.room, "error", err)
	}
	if err := s.signaling.Unsubscribe(s.roomTopic()); err != nil {
		s.logger.Warnw("failed to release room topic", "room", s.room, "error", err)
	}

	for peer, call := range s.activeCalls {
		call.Close()
		delete(s.activeCalls, peer)
	}

	s.releaseCaptureLocked()
	s.source = domain.StreamSourceNone
	s.status = domain.StreamStatusOffline

	s.logger.Infow("broadcast stopped", "room", s.room)
	return nil
}

// handleMessage consumes one room-topic payload. Only viewer stream
// requests are acted on; everything else, including the host's own
// announcements echoed back, is dropped.
func (s *BroadcastService) handleMessage(topic string, payload []byte) {
	if s.limiter != nil && !s.limiter.Allow() {
		s.logger.Warnw("signaling message dropped by rate limit", "topic", topic)
		return
	}

	env := signaling.Decode(payload, signaling.FallbackEnvelope())

	s.mu.Lock()
	self := s.clientID
	live := s.status == domain.StreamStatusLive
	mixed := s.mixed
	mediaClient := s.mediaClient
	s.mu.Unlock()

	if env.Type != signaling.KindPeer || env.ClientID == self || !live {
		return
	}
	peer, ok := domain.ParseStreamRequest(env.Message)
	if !ok {
		return
	}

	call, err := mediaClient.CallRemotePeer(peer, mixed)
	if err != nil {
		s.logger.Errorw("failed to call viewer", "peer", peer, "error", err)
		s.notifier.Error(s.translate("TOAST_TITLE_ERROR"), s.translate("PEER_CLIENT_ERROR"))
		return
	}

	// A repeated request supersedes the previous call record; the old
	// call is left to its own lifecycle.
	s.mu.Lock()
	s.activeCalls[peer] = call
	viewers := len(s.activeCalls)
	s.mu.Unlock()

	s.logger.Infow("viewer joined", "peer", peer, "viewers", viewers)
}

// Snapshot reports the observable session state.
func (s *BroadcastService) Snapshot() BroadcastSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	gains := make([]float64, len(s.gains))
	copy(gains, s.gains)

	var levels []float64
	if s.meter != nil {
		levels = s.meter.Levels()
	}

	return BroadcastSnapshot{
		Room:        s.room,
		ClientID:    s.clientID,
		Status:      s.status,
		Source:      s.source,
		ViewerCount: len(s.activeCalls),
		Gains:       gains,
		Levels:      levels,
	}
}

// ViewerURL builds the shareable link for the mounted room.
func (s *BroadcastService) ViewerURL(origin string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ViewerURL(origin, s.room)
}

// Unmount releases both transports. The broadcast, if live, is
// stopped first.
func (s *BroadcastService) Unmount(ctx context.Context) {
	if err := s.Stop(ctx); err != nil && err != domain.ErrNotLive {
		s.logger.Warnw("failed to stop broadcast during unmount", "error", err)
	}

	s.mu.Lock()
	sig := s.signaling
	mediaClient := s.mediaClient
	s.signaling = nil
	s.mediaClient = nil
	s.mu.Unlock()

	if mediaClient != nil {
		mediaClient.Close()
	}
	if sig != nil {
		sig.Close()
	}
}
