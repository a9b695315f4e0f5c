package transport

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/rtcp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"
	pionmedia "github.com/pion/webrtc/v3/pkg/media"

	"livecast/internal/core/domain"
	"livecast/internal/core/ports"
	"livecast/internal/media"
)

func audioCodec() webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: media.SampleRate, Channels: 1}
}

func videoCodec() webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
}

// outboundSender pairs one RTP sender with the subscription pumping
// frames into its local track. Order within its slice is the
// re-negotiation position.
type outboundSender struct {
	local       *webrtc.TrackLocalStaticSample
	sender      *webrtc.RTPSender
	unsubscribe func()
}

// outboundCall is a host-side call carrying the broadcast stream to
// one remote peer.
type outboundCall struct {
	callID string
	remote domain.TransportPeerID
	client *client
	pc     *webrtc.PeerConnection

	mu           sync.Mutex
	audioSenders []*outboundSender
	videoSenders []*outboundSender
	videoSources []*media.VideoTrack
	remoteSet    bool
	pending      []webrtc.ICECandidateInit
	closed       bool
}

// CallRemotePeer starts an outbound call: one PCMU sender per audio
// track, one VP8 sender per video track, offer published to the
// target's negotiation topic.
func (c *client) CallRemotePeer(target domain.TransportPeerID, stream *media.Stream) (ports.MediaCall, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: c.iceServers()})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	call := &outboundCall{
		callID: uuid.NewString(),
		remote: target,
		client: c,
		pc:     pc,
	}

	for _, at := range stream.AudioTracks() {
		sender, err := call.addAudioSender(at)
		if err != nil {
			pc.Close()
			return nil, err
		}
		call.audioSenders = append(call.audioSenders, sender)
	}
	for _, vt := range stream.VideoTracks() {
		sender, err := call.addVideoSender(vt)
		if err != nil {
			pc.Close()
			return nil, err
		}
		call.videoSenders = append(call.videoSenders, sender)
		call.videoSources = append(call.videoSources, vt)
	}

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		init := candidate.ToJSON()
		c.publishTo(target, negotiationMessage{
			Type:      msgCandidate,
			CallID:    call.callID,
			From:      string(c.peerID),
			Candidate: &init,
		})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			c.logger.Infow("call connected", "call_id", call.callID, "peer", target)
			call.applyBitrateCap()
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected:
			c.onCallLost(call.callID, state)
		}
	})

	c.registerCall(call.callID, call)

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		call.Close()
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		call.Close()
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}

	c.publishTo(target, negotiationMessage{
		Type:   msgOffer,
		CallID: call.callID,
		From:   string(c.peerID),
		SDP:    offer.SDP,
	})

	return call, nil
}

func (call *outboundCall) addAudioSender(src *media.AudioTrack) (*outboundSender, error) {
	local, err := webrtc.NewTrackLocalStaticSample(audioCodec(), src.ID(), "livecast")
	if err != nil {
		return nil, fmt.Errorf("failed to create audio track: %w", err)
	}
	sender, err := call.pc.AddTrack(local)
	if err != nil {
		return nil, fmt.Errorf("failed to add audio track: %w", err)
	}
	go drainRTCP(sender)
	return &outboundSender{
		local:       local,
		sender:      sender,
		unsubscribe: pumpAudio(src, local),
	}, nil
}

func (call *outboundCall) addVideoSender(src *media.VideoTrack) (*outboundSender, error) {
	local, err := webrtc.NewTrackLocalStaticSample(videoCodec(), src.ID(), "livecast")
	if err != nil {
		return nil, fmt.Errorf("failed to create video track: %w", err)
	}
	sender, err := call.pc.AddTrack(local)
	if err != nil {
		return nil, fmt.Errorf("failed to add video track: %w", err)
	}
	go drainRTCP(sender)
	return &outboundSender{
		local:       local,
		sender:      sender,
		unsubscribe: pumpVideo(src, local),
	}, nil
}

// pumpAudio compands PCM frames to mu-law and feeds the RTP track.
func pumpAudio(src *media.AudioTrack, local *webrtc.TrackLocalStaticSample) func() {
	return src.Subscribe(func(frame []int16) {
		_ = local.WriteSample(pionmedia.Sample{
			Data:     media.EncodeMulaw(frame),
			Duration: media.FrameDuration,
		})
	})
}

func pumpVideo(src *media.VideoTrack, local *webrtc.TrackLocalStaticSample) func() {
	return src.Subscribe(func(sample media.VideoSample) {
		_ = local.WriteSample(pionmedia.Sample{
			Data:     sample.Data,
			Duration: sample.Duration,
		})
	})
}

// drainRTCP keeps the sender's interceptor chain flowing.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// applyBitrateCap forwards the configured outbound cap to every video
// source whose encoder accepts one. Sources without the capability are
// skipped silently.
func (call *outboundCall) applyBitrateCap() {
	call.mu.Lock()
	sources := make([]*media.VideoTrack, len(call.videoSources))
	copy(sources, call.videoSources)
	call.mu.Unlock()

	for _, vt := range sources {
		if bc, ok := vt.Source().(media.BitrateController); ok {
			bc.SetMaxBitrate(call.client.cfg.WebRTC.MaxBitrate)
		}
	}
}

func (call *outboundCall) RemotePeerID() domain.TransportPeerID { return call.remote }

// ReplaceTracks swaps the outbound sources for stream's tracks,
// matched positionally by kind. The negotiated senders stay in place;
// only the frame pumps move.
func (call *outboundCall) ReplaceTracks(stream *media.Stream) error {
	call.mu.Lock()
	defer call.mu.Unlock()
	if call.closed {
		return domain.ErrNotConnected
	}

	audio := stream.AudioTracks()
	video := stream.VideoTracks()
	if len(audio) != len(call.audioSenders) || len(video) != len(call.videoSenders) {
		return domain.ErrTrackIndexOutOfRange
	}

	for i, sender := range call.audioSenders {
		sender.unsubscribe()
		sender.unsubscribe = pumpAudio(audio[i], sender.local)
	}
	for i, sender := range call.videoSenders {
		sender.unsubscribe()
		sender.unsubscribe = pumpVideo(video[i], sender.local)
	}
	call.videoSources = video

	return nil
}

// Stats reports nothing for an outbound call: reception counters live
// on the viewer side.
func (call *outboundCall) Stats() domain.CallStats {
	return domain.CallStats{Timestamp: time.Now()}
}

func (call *outboundCall) handleAnswer(sdp string) {
	call.mu.Lock()
	if call.closed {
		call.mu.Unlock()
		return
	}
	pending := call.pending
	call.pending = nil
	call.remoteSet = true
	call.mu.Unlock()

	err := call.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	})
	if err != nil {
		call.client.logger.Errorw("failed to apply answer", "call_id", call.callID, "error", err)
		return
	}
	for _, init := range pending {
		if err := call.pc.AddICECandidate(init); err != nil {
			call.client.logger.Warnw("failed to add buffered candidate", "call_id", call.callID, "error", err)
		}
	}
}

func (call *outboundCall) handleCandidate(init webrtc.ICECandidateInit) {
	call.mu.Lock()
	if call.closed {
		call.mu.Unlock()
		return
	}
	if !call.remoteSet {
		call.pending = append(call.pending, init)
		call.mu.Unlock()
		return
	}
	call.mu.Unlock()

	if err := call.pc.AddICECandidate(init); err != nil {
		call.client.logger.Warnw("failed to add candidate", "call_id", call.callID, "error", err)
	}
}

// Close tears the call down and detaches every frame pump. Idempotent.
func (call *outboundCall) Close() {
	call.mu.Lock()
	if call.closed {
		call.mu.Unlock()
		return
	}
	call.closed = true
	senders := append(append([]*outboundSender(nil), call.audioSenders...), call.videoSenders...)
	call.mu.Unlock()

	for _, s := range senders {
		s.unsubscribe()
	}
	call.pc.Close()
	call.client.dropCall(call.callID)
}

// inboundCall is a viewer-side call receiving the broadcast stream.
type inboundCall struct {
	callID string
	remote domain.TransportPeerID
	client *client
	pc     *webrtc.PeerConnection

	mu        sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit
	closed    bool
	done      chan struct{}

	bytesReceived  uint64
	framesReceived uint64
	frameWidth     int
	frameHeight    int
}

// answerCall accepts an inbound offer: the answer goes back to the
// caller's topic and the handler fires once the session connects.
func (c *client) answerCall(msg negotiationMessage, handler ports.RemoteStreamHandler) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: c.iceServers()})
	if err != nil {
		c.logger.Errorw("failed to create peer connection", "call_id", msg.CallID, "error", err)
		c.notifier.Error(c.translate("TOAST_TITLE_ERROR"), c.translate("PEER_CLIENT_ERROR"))
		return
	}

	call := &inboundCall{
		callID: msg.CallID,
		remote: domain.TransportPeerID(msg.From),
		client: c,
		pc:     pc,
		done:   make(chan struct{}),
	}
	c.registerCall(call.callID, call)

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		init := candidate.ToJSON()
		c.publishTo(call.remote, negotiationMessage{
			Type:      msgCandidate,
			CallID:    call.callID,
			From:      string(c.peerID),
			Candidate: &init,
		})
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		switch track.Kind() {
		case webrtc.RTPCodecTypeVideo:
			go call.sendPLI(track)
			go call.readVideo(track)
		case webrtc.RTPCodecTypeAudio:
			go call.readAudio(track)
		}
	})

	var fireOnce sync.Once
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			c.logger.Infow("inbound call connected", "call_id", call.callID, "peer", call.remote)
			fireOnce.Do(func() {
				handler(call.remoteStream(), call)
			})
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected:
			c.onCallLost(call.callID, state)
		}
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: msg.SDP}); err != nil {
		c.logger.Errorw("failed to apply offer", "call_id", call.callID, "error", err)
		call.Close()
		return
	}
	call.mu.Lock()
	call.remoteSet = true
	pending := call.pending
	call.pending = nil
	call.mu.Unlock()
	for _, init := range pending {
		if err := pc.AddICECandidate(init); err != nil {
			c.logger.Warnw("failed to add buffered candidate", "call_id", call.callID, "error", err)
		}
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		c.logger.Errorw("failed to create answer", "call_id", call.callID, "error", err)
		call.Close()
		return
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		c.logger.Errorw("failed to set local description", "call_id", call.callID, "error", err)
		call.Close()
		return
	}

	c.publishTo(call.remote, negotiationMessage{
		Type:   msgAnswer,
		CallID: call.callID,
		From:   string(c.peerID),
		SDP:    answer.SDP,
	})
}

func (call *inboundCall) remoteStream() *media.RemoteStream {
	stream := &media.RemoteStream{ID: call.callID}
	for _, receiver := range call.pc.GetReceivers() {
		track := receiver.Track()
		if track == nil {
			continue
		}
		switch track.Kind() {
		case webrtc.RTPCodecTypeAudio:
			stream.AudioTracks++
		case webrtc.RTPCodecTypeVideo:
			stream.VideoTracks++
		}
	}
	return stream
}

// sendPLI asks the sender for a keyframe at a fixed interval so late
// joiners and lossy paths recover a decodable picture.
func (call *inboundCall) sendPLI(track *webrtc.TrackRemote) {
	ticker := time.NewTicker(call.client.cfg.WebRTC.PLIInterval)
	defer ticker.Stop()
	for {
		select {
		case <-call.done:
			return
		case <-ticker.C:
			err := call.pc.WriteRTCP([]rtcp.Packet{
				&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
			})
			if err != nil {
				return
			}
		}
	}
}

func (call *inboundCall) readVideo(track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if err != io.EOF {
				call.client.logger.Debugw("video read ended", "call_id", call.callID, "error", err)
			}
			return
		}

		call.mu.Lock()
		call.bytesReceived += uint64(len(pkt.Payload))
		if pkt.Marker {
			call.framesReceived++
		}
		call.mu.Unlock()

		call.inspectKeyframe(pkt.Payload)
	}
}

// inspectKeyframe extracts the frame geometry from VP8 keyframe
// headers. Only the first packet of a keyframe carries them.
func (call *inboundCall) inspectKeyframe(payload []byte) {
	var vp8 codecs.VP8Packet
	frame, err := vp8.Unmarshal(payload)
	if err != nil || vp8.S != 1 || vp8.PID != 0 {
		return
	}
	if len(frame) < 10 || frame[0]&0x01 != 0 {
		return
	}

	width := int(uint16(frame[6])|uint16(frame[7])<<8) & 0x3FFF
	height := int(uint16(frame[8])|uint16(frame[9])<<8) & 0x3FFF

	call.mu.Lock()
	call.frameWidth = width
	call.frameHeight = height
	call.mu.Unlock()
}

func (call *inboundCall) readAudio(track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		call.mu.Lock()
		call.bytesReceived += uint64(len(pkt.Payload))
		call.mu.Unlock()
	}
}

func (call *inboundCall) RemotePeerID() domain.TransportPeerID { return call.remote }

// ReplaceTracks is not meaningful on the receiving side.
func (call *inboundCall) ReplaceTracks(_ *media.Stream) error {
	return domain.ErrNotConnected
}

// Stats snapshots the cumulative reception counters.
func (call *inboundCall) Stats() domain.CallStats {
	call.mu.Lock()
	defer call.mu.Unlock()
	return domain.CallStats{
		Timestamp:      time.Now(),
		BytesReceived:  call.bytesReceived,
		FramesReceived: call.framesReceived,
		FrameWidth:     call.frameWidth,
		FrameHeight:    call.frameHeight,
	}
}

func (call *inboundCall) handleAnswer(string) {}

func (call *inboundCall) handleCandidate(init webrtc.ICECandidateInit) {
	call.mu.Lock()
	if call.closed {
		call.mu.Unlock()
		return
	}
	if !call.remoteSet {
		call.pending = append(call.pending, init)
		call.mu.Unlock()
		return
	}
	call.mu.Unlock()

	if err := call.pc.AddICECandidate(init); err != nil {
		call.client.logger.Warnw("failed to add candidate", "call_id", call.callID, "error", err)
	}
}

// Close tears the call down. Idempotent.
func (call *inboundCall) Close() {
	call.mu.Lock()
	if call.closed {
		call.mu.Unlock()
		return
	}
	call.closed = true
	call.mu.Unlock()

	close(call.done)
	call.pc.Close()
	call.client.dropCall(call.callID)
}
