package media

import (
	"math"
	"sync"
)

// LevelMeter samples RMS amplitude for every audio track of a capture
// stream. Levels update on every delivered frame and are normalized to
// [0, 1]. Close releases all track subscriptions.
type LevelMeter struct {
	mu          sync.Mutex
	levels      []float64
	unsubscribe []func()
	closed      bool
}

// NewLevelMeter attaches an analyser to each audio track of stream.
func NewLevelMeter(stream *Stream) *LevelMeter {
	tracks := stream.AudioTracks()
	m := &LevelMeter{
		levels: make([]float64, len(tracks)),
	}

	for i, track := range tracks {
		idx := i
		m.unsubscribe = append(m.unsubscribe, track.Subscribe(func(frame []int16) {
			rms := frameRMS(frame)
			m.mu.Lock()
			if !m.closed {
				m.levels[idx] = rms
			}
			m.mu.Unlock()
		}))
	}

	return m
}

// Levels returns the most recent RMS level per audio track.
func (m *LevelMeter) Levels() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.levels))
	copy(out, m.levels)
	return out
}

// Close detaches all analysers and zeroes the levels. Idempotent.
func (m *LevelMeter) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.levels = nil
	unsub := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	for _, fn := range unsub {
		fn()
	}
}

// frameRMS computes root-mean-square amplitude of a PCM frame with
// samples normalized to [-1, 1] before squaring.
func frameRMS(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		normalized := float64(s) / 32768.0
		sum += normalized * normalized
	}
	return math.Sqrt(sum / float64(len(frame)))
}
