package domain

import "time"

// CallStats is a cumulative snapshot of an inbound media connection,
// read by the viewer's quality sampler once per second. Bitrate and
// framerate are derived from deltas between consecutive snapshots.
type CallStats struct {
	Timestamp      time.Time
	BytesReceived  uint64
	FramesReceived uint64
	FrameWidth     int
	FrameHeight    int
}
