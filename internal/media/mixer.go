package media

// NewMixedStream builds the outbound stream derived from a raw capture
// stream: video tracks pass through unchanged, every audio track is
// routed through its own gain stage. The mixed stream exposes one
// gained audio track per source track; summation happens at playback,
// where the receiving end mixes all delivered audio tracks. A missing
// gain entry defaults to unity.
//
// The derived audio tracks detach from their sources when closed; the
// shared video tracks are owned by the raw stream.
func NewMixedStream(src *Stream, gains []float64) *Stream {
	mixed := NewStream(src.ID() + "-mixed")

	for _, vt := range src.VideoTracks() {
		mixed.AddVideoTrack(vt)
	}

	for i, at := range src.AudioTracks() {
		gain := 1.0
		if i < len(gains) {
			gain = gains[i]
		}
		mixed.AddAudioTrack(newGainTrack(at, gain))
	}

	return mixed
}

func newGainTrack(src *AudioTrack, gain float64) *AudioTrack {
	var unsubscribe func()
	derived := NewAudioTrack(src.ID()+"-gain", src.Label(), func() {
		unsubscribe()
	})
	unsubscribe = src.Subscribe(func(frame []int16) {
		derived.Push(applyGain(frame, gain))
	})
	return derived
}

func applyGain(frame []int16, gain float64) []int16 {
	if gain == 1.0 {
		return frame
	}
	out := make([]int16, len(frame))
	for i, s := range frame {
		v := float64(s) * gain
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
