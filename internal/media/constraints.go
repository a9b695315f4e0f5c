package media

// Constraints are the capture parameters requested from a device.
type Constraints struct {
	AspectRatioX int
	AspectRatioY int

	IdealWidth int
	MaxWidth   int

	IdealHeight int
	MaxHeight   int

	IdealFrameRate int
	MaxFrameRate   int

	EchoCancellation bool
	NoiseSuppression bool
	SampleRate       int
}

// ScreenConstraints are the parameters for screen capture. System
// audio is passed through unprocessed.
func ScreenConstraints() Constraints {
	return Constraints{
		AspectRatioX:     16,
		AspectRatioY:     9,
		IdealWidth:       1920,
		MaxWidth:         3840,
		IdealHeight:      1080,
		MaxHeight:        2160,
		IdealFrameRate:   60,
		MaxFrameRate:     60,
		EchoCancellation: false,
		NoiseSuppression: false,
		SampleRate:       44100,
	}
}

// CameraConstraints are the parameters for camera capture. The
// microphone path gets echo cancellation and noise suppression.
func CameraConstraints() Constraints {
	c := ScreenConstraints()
	c.EchoCancellation = true
	c.NoiseSuppression = true
	return c
}

// Clamp caps ideal values at their maximums.
func (c Constraints) Clamp() Constraints {
	if c.MaxWidth > 0 && c.IdealWidth > c.MaxWidth {
		c.IdealWidth = c.MaxWidth
	}
	if c.MaxHeight > 0 && c.IdealHeight > c.MaxHeight {
		c.IdealHeight = c.MaxHeight
	}
	if c.MaxFrameRate > 0 && c.IdealFrameRate > c.MaxFrameRate {
		c.IdealFrameRate = c.MaxFrameRate
	}
	return c
}

// DeviceInfo describes an available capture device.
type DeviceInfo struct {
	DeviceID string
	Kind     string
	Label    string
}

const (
	DeviceKindVideoInput = "videoinput"
	DeviceKindAudioInput = "audioinput"
)

// ScreenRequest asks for a screen capture, optionally mixed with a
// microphone track.
type ScreenRequest struct {
	AudioDeviceID string
	EnableMic     bool
	Constraints   Constraints
}

// CameraRequest asks for a camera capture.
type CameraRequest struct {
	VideoDeviceID string
	AudioDeviceID string
	EnableMic     bool
	Constraints   Constraints
}
