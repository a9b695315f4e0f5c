package media

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStream(audioTracks, videoTracks int) *Stream {
	s := NewStream("test")
	for i := 0; i < audioTracks; i++ {
		s.AddAudioTrack(NewAudioTrack("a", "audio", nil))
	}
	for i := 0; i < videoTracks; i++ {
		s.AddVideoTrack(NewVideoTrack("v", "video", nil, nil))
	}
	return s
}

func TestAudioTrackFanOut(t *testing.T) {
	track := NewAudioTrack("a1", "mic", nil)

	var got [][]int16
	cancel := track.Subscribe(func(frame []int16) {
		got = append(got, frame)
	})

	track.Push([]int16{1, 2, 3})
	require.Len(t, got, 1)
	assert.Equal(t, []int16{1, 2, 3}, got[0])

	cancel()
	track.Push([]int16{4})
	assert.Len(t, got, 1)
}

func TestAudioTrackCloseRunsOnCloseOnce(t *testing.T) {
	calls := 0
	track := NewAudioTrack("a1", "mic", func() { calls++ })

	track.Close()
	track.Close()

	assert.Equal(t, 1, calls)

	delivered := false
	track.Subscribe(func([]int16) { delivered = true })
	track.Push([]int16{1})
	assert.False(t, delivered, "closed track must not deliver frames")
}

func TestVideoTrackDimensions(t *testing.T) {
	track := NewVideoTrack("v1", "video", nil, nil)
	track.SetDimensions(1920, 1080, 60)

	w, h, fps := track.Dimensions()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
	assert.Equal(t, 60, fps)
}

func TestMixedStreamPreservesTrackCounts(t *testing.T) {
	tests := []struct {
		name  string
		audio int
		video int
		gains []float64
	}{
		{"screen with system audio and mic", 2, 1, []float64{1.0, 0.5}},
		{"camera with mic", 1, 1, []float64{1.0}},
		{"video only", 0, 1, nil},
		{"muted single track", 1, 1, []float64{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newTestStream(tt.audio, tt.video)
			mixed := NewMixedStream(src, tt.gains)

			assert.Len(t, mixed.AudioTracks(), tt.audio)
			assert.Len(t, mixed.VideoTracks(), tt.video)
		})
	}
}

func TestMixedStreamSharesVideoTracks(t *testing.T) {
	src := newTestStream(1, 1)
	mixed := NewMixedStream(src, nil)

	require.Len(t, mixed.VideoTracks(), 1)
	assert.Same(t, src.VideoTracks()[0], mixed.VideoTracks()[0])
}

func TestGainStageAppliesGain(t *testing.T) {
	src := newTestStream(1, 0)
	mixed := NewMixedStream(src, []float64{0.5})

	var got []int16
	mixed.AudioTracks()[0].Subscribe(func(frame []int16) {
		got = append([]int16(nil), frame...)
	})

	src.AudioTracks()[0].Push([]int16{1000, -2000, 0})
	assert.Equal(t, []int16{500, -1000, 0}, got)
}

func TestGainStageZeroGainStillDelivers(t *testing.T) {
	src := newTestStream(1, 0)
	mixed := NewMixedStream(src, []float64{0})

	require.Len(t, mixed.AudioTracks(), 1, "muted track must remain in the mixed stream")

	var got []int16
	mixed.AudioTracks()[0].Subscribe(func(frame []int16) {
		got = append([]int16(nil), frame...)
	})

	src.AudioTracks()[0].Push([]int16{1000, -2000})
	assert.Equal(t, []int16{0, 0}, got, "muted track delivers silence, not nothing")
}

func TestGainStageClampsToPCMRange(t *testing.T) {
	src := newTestStream(1, 0)
	mixed := NewMixedStream(src, []float64{4.0})

	var got []int16
	mixed.AudioTracks()[0].Subscribe(func(frame []int16) {
		got = append([]int16(nil), frame...)
	})

	src.AudioTracks()[0].Push([]int16{20000, -20000})
	assert.Equal(t, []int16{32767, -32768}, got)
}

func TestCloseAudioTracksDetachesGainStages(t *testing.T) {
	src := newTestStream(1, 1)
	mixed := NewMixedStream(src, []float64{1.0})

	delivered := 0
	mixed.AudioTracks()[0].Subscribe(func([]int16) { delivered++ })

	src.AudioTracks()[0].Push([]int16{1})
	require.Equal(t, 1, delivered)

	mixed.CloseAudioTracks()
	src.AudioTracks()[0].Push([]int16{2})
	assert.Equal(t, 1, delivered, "detached gain stage must not deliver")

	videoAlive := false
	mixed.VideoTracks()[0].Subscribe(func(VideoSample) { videoAlive = true })
	mixed.VideoTracks()[0].Push(VideoSample{Data: []byte{0}, Duration: time.Second / 30})
	assert.True(t, videoAlive, "shared video track must stay live across a rebuild")
}

func TestLevelMeter(t *testing.T) {
	src := newTestStream(2, 0)
	meter := NewLevelMeter(src)
	defer meter.Close()

	// Constant full-scale frame: RMS is 32767/32768.
	full := make([]int16, SamplesPerFrame)
	for i := range full {
		full[i] = 32767
	}
	src.AudioTracks()[0].Push(full)
	src.AudioTracks()[1].Push(make([]int16, SamplesPerFrame))

	levels := meter.Levels()
	require.Len(t, levels, 2)
	assert.InDelta(t, 1.0, levels[0], 1e-4)
	assert.Zero(t, levels[1])
}

func TestLevelMeterSine(t *testing.T) {
	src := newTestStream(1, 0)
	meter := NewLevelMeter(src)
	defer meter.Close()

	// Full-scale sine has RMS 1/sqrt(2).
	frame := make([]int16, SamplesPerFrame)
	for i := range frame {
		frame[i] = int16(32767 * math.Sin(2*math.Pi*float64(i)/float64(SamplesPerFrame)))
	}
	src.AudioTracks()[0].Push(frame)

	levels := meter.Levels()
	require.Len(t, levels, 1)
	assert.InDelta(t, 1/math.Sqrt2, levels[0], 0.01)
}

func TestLevelMeterCloseDetaches(t *testing.T) {
	src := newTestStream(1, 0)
	meter := NewLevelMeter(src)
	meter.Close()
	meter.Close()

	src.AudioTracks()[0].Push([]int16{10000})
	assert.Empty(t, meter.Levels())
}

func TestEncodeMulaw(t *testing.T) {
	tests := []struct {
		name   string
		sample int16
		want   byte
	}{
		{"silence", 0, 0xFF},
		{"positive max", 32767, 0x80},
		{"negative max", -32768, 0x00},
		{"small positive", 100, 0xF2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeMulaw([]int16{tt.sample})
			assert.Equal(t, []byte{tt.want}, got)
		})
	}
}

func TestEncodeMulawSignBit(t *testing.T) {
	pos := linearToMulaw(5000)
	neg := linearToMulaw(-5000)
	assert.Equal(t, byte(0x80), (pos^neg)&0x80, "sign bit must differ for mirrored samples")
	assert.Equal(t, pos&0x7F, neg&0x7F, "magnitude bits must match for mirrored samples")
}

func TestEncodeMulawMonotonic(t *testing.T) {
	// Companded codes decrease as positive amplitude increases.
	prev := linearToMulaw(0)
	for _, s := range []int16{50, 500, 5000, 20000, 32767} {
		code := linearToMulaw(s)
		assert.LessOrEqual(t, code, prev, "sample %d", s)
		prev = code
	}
}

func TestConstraintsClamp(t *testing.T) {
	tests := []struct {
		name string
		in   Constraints
		want Constraints
	}{
		{
			"within limits is unchanged",
			ScreenConstraints(),
			ScreenConstraints(),
		},
		{
			"no maximums leaves ideals alone",
			Constraints{IdealWidth: 7680, IdealHeight: 4320},
			Constraints{IdealWidth: 7680, IdealHeight: 4320},
		},
		{
			"ideal above max is clamped",
			func() Constraints {
				c := ScreenConstraints()
				c.IdealWidth = 7680
				c.IdealHeight = 4320
				return c
			}(),
			func() Constraints {
				c := ScreenConstraints()
				c.IdealWidth = c.MaxWidth
				c.IdealHeight = c.MaxHeight
				return c
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Clamp())
		})
	}
}

func TestScreenAndCameraConstraints(t *testing.T) {
	screen := ScreenConstraints()
	assert.False(t, screen.EchoCancellation)
	assert.False(t, screen.NoiseSuppression)
	assert.Equal(t, 1920, screen.IdealWidth)

	camera := CameraConstraints()
	assert.True(t, camera.EchoCancellation)
	assert.True(t, camera.NoiseSuppression)
}

func TestExpandCommand(t *testing.T) {
	c := Constraints{IdealWidth: 1280, IdealHeight: 720, IdealFrameRate: 30}
	got := expandCommand("capture -d {device} -s {width}x{height} -r {framerate} -b {bitrate}", "cam0", c, 10_000_000)
	assert.Equal(t, "capture -d cam0 -s 1280x720 -r 30 -b 10000000", got)
}
