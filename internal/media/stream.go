// Package media models local capture streams: ordered audio and video
// tracks with synchronous frame fan-out, per-track gain mixing and RMS
// level metering. The audio pipeline is mono PCM at 8 kHz in 20 ms
// frames; video tracks carry encoded VP8 samples.
package media

import (
	"sync"
	"time"
)

const (
	// SampleRate is the PCM pipeline rate in Hz.
	SampleRate = 8000
	// FrameDuration is the audio frame size.
	FrameDuration = 20 * time.Millisecond
	// SamplesPerFrame is the number of PCM samples in one audio frame.
	SamplesPerFrame = SampleRate / 50
)

// VideoSample is one encoded video frame.
type VideoSample struct {
	Data     []byte
	Duration time.Duration
	Keyframe bool
}

// BitrateController is optionally implemented by video sources whose
// encoder accepts an outbound bitrate cap.
type BitrateController interface {
	SetMaxBitrate(bps int)
}

// AudioTrack fans out PCM frames to its subscribers. Delivery is
// synchronous on the pusher's goroutine; subscribers must not retain
// the frame slice.
type AudioTrack struct {
	id    string
	label string

	mu      sync.Mutex
	subs    map[int]func([]int16)
	nextSub int
	closed  bool
	onClose func()
}

// NewAudioTrack creates an audio track. onClose releases the backing
// source when the track is stopped; it may be nil.
func NewAudioTrack(id, label string, onClose func()) *AudioTrack {
	return &AudioTrack{
		id:      id,
		label:   label,
		subs:    make(map[int]func([]int16)),
		onClose: onClose,
	}
}

func (t *AudioTrack) ID() string    { return t.id }
func (t *AudioTrack) Label() string { return t.label }

// Subscribe registers a frame consumer and returns its cancel func.
func (t *AudioTrack) Subscribe(fn func(frame []int16)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}

// Push delivers one PCM frame to all subscribers. No-op once closed.
func (t *AudioTrack) Push(frame []int16) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	subs := make([]func([]int16), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.mu.Unlock()

	for _, fn := range subs {
		fn(frame)
	}
}

// Close stops the track and releases its source. Idempotent.
func (t *AudioTrack) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	onClose := t.onClose
	t.subs = make(map[int]func([]int16))
	t.mu.Unlock()

	if onClose != nil {
		onClose()
	}
}

// VideoTrack fans out encoded video samples. Same delivery rules as
// AudioTrack.
type VideoTrack struct {
	id    string
	label string

	mu      sync.Mutex
	subs    map[int]func(VideoSample)
	nextSub int
	closed  bool
	onClose func()
	source  any

	width     int
	height    int
	frameRate int
}

// NewVideoTrack creates a video track. source is the producing capture
// source, kept so callers can probe it for optional capabilities such
// as BitrateController.
func NewVideoTrack(id, label string, source any, onClose func()) *VideoTrack {
	return &VideoTrack{
		id:      id,
		label:   label,
		source:  source,
		subs:    make(map[int]func(VideoSample)),
		onClose: onClose,
	}
}

func (t *VideoTrack) ID() string    { return t.id }
func (t *VideoTrack) Label() string { return t.label }
func (t *VideoTrack) Source() any   { return t.source }

// SetDimensions records the nominal frame geometry reported by the
// capture source.
func (t *VideoTrack) SetDimensions(width, height, frameRate int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.width, t.height, t.frameRate = width, height, frameRate
}

// Dimensions returns the nominal width, height and framerate.
func (t *VideoTrack) Dimensions() (int, int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.width, t.height, t.frameRate
}

// Subscribe registers a sample consumer and returns its cancel func.
func (t *VideoTrack) Subscribe(fn func(sample VideoSample)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}

// Push delivers one encoded sample to all subscribers. No-op once closed.
func (t *VideoTrack) Push(sample VideoSample) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	subs := make([]func(VideoSample), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.mu.Unlock()

	for _, fn := range subs {
		fn(sample)
	}
}

// Close stops the track and releases its source. Idempotent.
func (t *VideoTrack) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	onClose := t.onClose
	t.subs = make(map[int]func(VideoSample))
	t.mu.Unlock()

	if onClose != nil {
		onClose()
	}
}

// Stream is an ordered collection of live tracks. Track order is
// significant: senders are matched positionally during call
// re-negotiation.
type Stream struct {
	id string

	mu    sync.Mutex
	audio []*AudioTrack
	video []*VideoTrack
}

func NewStream(id string) *Stream {
	return &Stream{id: id}
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) AddAudioTrack(t *AudioTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, t)
}

func (s *Stream) AddVideoTrack(t *VideoTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.video = append(s.video, t)
}

// AudioTracks returns the audio tracks in order.
func (s *Stream) AudioTracks() []*AudioTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*AudioTrack, len(s.audio))
	copy(out, s.audio)
	return out
}

// VideoTracks returns the video tracks in order.
func (s *Stream) VideoTracks() []*VideoTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*VideoTrack, len(s.video))
	copy(out, s.video)
	return out
}

// Close stops every track, releasing capture resources. Idempotent.
func (s *Stream) Close() {
	for _, t := range s.AudioTracks() {
		t.Close()
	}
	for _, t := range s.VideoTracks() {
		t.Close()
	}
}

// CloseAudioTracks stops only the audio tracks. Used when a derived
// stream is rebuilt: its gain stages must detach while the shared
// video tracks stay live.
func (s *Stream) CloseAudioTracks() {
	for _, t := range s.AudioTracks() {
		t.Close()
	}
}

// RemoteStream is the viewer-side view of an inbound stream.
type RemoteStream struct {
	ID          string
	AudioTracks int
	VideoTracks int
}
