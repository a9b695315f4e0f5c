package media

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3/pkg/media/ivfreader"
	"go.uber.org/zap"
)

// ExecConfig wires capture to external helper commands. Video commands
// must write an IVF (VP8) stream to stdout; audio commands raw s16le
// mono PCM at the pipeline rate. Placeholders {device}, {width},
// {height}, {framerate} and {bitrate} are substituted before
// execution; {bitrate} carries the outbound cap in bits per second.
type ExecConfig struct {
	ScreenCommand      string
	CameraCommand      string
	MicCommand         string
	SystemAudioCommand string
	MaxBitrate         int
	Devices            []DeviceInfo
}

// ExecBackend acquires capture streams by running helper commands.
type ExecBackend struct {
	cfg    ExecConfig
	logger *zap.SugaredLogger
}

func NewExecBackend(cfg ExecConfig, logger *zap.SugaredLogger) *ExecBackend {
	return &ExecBackend{cfg: cfg, logger: logger}
}

// Devices lists the configured capture devices.
func (b *ExecBackend) Devices() ([]DeviceInfo, error) {
	out := make([]DeviceInfo, len(b.cfg.Devices))
	copy(out, b.cfg.Devices)
	return out, nil
}

// Screen acquires a screen capture stream: display video, system audio
// when configured, and the microphone when requested.
func (b *ExecBackend) Screen(req ScreenRequest) (*Stream, error) {
	if b.cfg.ScreenCommand == "" {
		return nil, errors.New("no screen capture command configured")
	}
	constraints := req.Constraints.Clamp()
	stream := NewStream("screen-" + uuid.NewString())

	video, err := b.startVideoSource(b.cfg.ScreenCommand, "", constraints)
	if err != nil {
		return nil, fmt.Errorf("screen capture failed: %w", err)
	}
	stream.AddVideoTrack(video)

	if b.cfg.SystemAudioCommand != "" {
		audio, err := b.startAudioSource(b.cfg.SystemAudioCommand, "", "system audio")
		if err != nil {
			stream.Close()
			return nil, fmt.Errorf("system audio capture failed: %w", err)
		}
		stream.AddAudioTrack(audio)
	}

	if req.EnableMic {
		mic, err := b.startAudioSource(b.cfg.MicCommand, req.AudioDeviceID, "microphone")
		if err != nil {
			stream.Close()
			return nil, fmt.Errorf("microphone capture failed: %w", err)
		}
		stream.AddAudioTrack(mic)
	}

	return stream, nil
}

// Camera acquires a camera capture stream, with the microphone only
// when explicitly enabled.
func (b *ExecBackend) Camera(req CameraRequest) (*Stream, error) {
	if b.cfg.CameraCommand == "" {
		return nil, errors.New("no camera capture command configured")
	}
	constraints := req.Constraints.Clamp()
	stream := NewStream("camera-" + uuid.NewString())

	video, err := b.startVideoSource(b.cfg.CameraCommand, req.VideoDeviceID, constraints)
	if err != nil {
		return nil, fmt.Errorf("camera capture failed: %w", err)
	}
	stream.AddVideoTrack(video)

	if req.EnableMic {
		mic, err := b.startAudioSource(b.cfg.MicCommand, req.AudioDeviceID, "microphone")
		if err != nil {
			stream.Close()
			return nil, fmt.Errorf("microphone capture failed: %w", err)
		}
		stream.AddAudioTrack(mic)
	}

	return stream, nil
}

// startVideoSource launches the capture helper. The outbound bitrate
// cap is fixed at the encoder for the lifetime of the process, so the
// track carries no runtime bitrate control.
func (b *ExecBackend) startVideoSource(command, deviceID string, constraints Constraints) (*VideoTrack, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, "sh", "-c", expandCommand(command, deviceID, constraints, b.cfg.MaxBitrate))
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, err
	}

	track := NewVideoTrack("video-"+uuid.NewString(), "video", nil, func() {
		cancel()
		_ = cmd.Wait()
	})
	track.SetDimensions(constraints.IdealWidth, constraints.IdealHeight, constraints.IdealFrameRate)

	go b.pumpVideo(track, stdout)
	return track, nil
}

func (b *ExecBackend) pumpVideo(track *VideoTrack, r io.Reader) {
	reader, header, err := ivfreader.NewWith(r)
	if err != nil {
		b.logger.Errorw("failed to read capture stream header", "track", track.ID(), "error", err)
		return
	}

	frameDuration := time.Duration(float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator) * float64(time.Second))
	if frameDuration <= 0 {
		frameDuration = time.Second / 30
	}
	frameRate := int(time.Second / frameDuration)
	track.SetDimensions(int(header.Width), int(header.Height), frameRate)

	for {
		frame, _, err := reader.ParseNextFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				b.logger.Warnw("capture stream read error", "track", track.ID(), "error", err)
			}
			return
		}
		track.Push(VideoSample{
			Data:     frame,
			Duration: frameDuration,
			Keyframe: len(frame) > 0 && frame[0]&0x01 == 0,
		})
	}
}

func (b *ExecBackend) startAudioSource(command, deviceID, label string) (*AudioTrack, error) {
	if command == "" {
		return nil, fmt.Errorf("no capture command configured for %s", label)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, "sh", "-c", expandCommand(command, deviceID, Constraints{}, 0))
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, err
	}

	track := NewAudioTrack("audio-"+uuid.NewString(), label, func() {
		cancel()
		_ = cmd.Wait()
	})

	go b.pumpAudio(track, stdout)
	return track, nil
}

func (b *ExecBackend) pumpAudio(track *AudioTrack, r io.Reader) {
	buf := make([]byte, SamplesPerFrame*2)
	frame := make([]int16, SamplesPerFrame)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				b.logger.Warnw("audio capture read error", "track", track.ID(), "error", err)
			}
			return
		}
		for i := range frame {
			frame[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
		}
		track.Push(frame)
	}
}

func expandCommand(command, deviceID string, constraints Constraints, bitrate int) string {
	replacer := strings.NewReplacer(
		"{device}", deviceID,
		"{width}", strconv.Itoa(constraints.IdealWidth),
		"{height}", strconv.Itoa(constraints.IdealHeight),
		"{framerate}", strconv.Itoa(constraints.IdealFrameRate),
		"{bitrate}", strconv.Itoa(bitrate),
	)
	return replacer.Replace(command)
}
