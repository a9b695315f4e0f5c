// Package monitoring exposes session state as Prometheus metrics.
package monitoring

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"livecast/internal/core/domain"
	"livecast/internal/core/services"
)

// Collector translates coordinator snapshots into gauge updates. It is
// driven by a periodic observe loop, not by the coordinators
// themselves.
type Collector struct {
	broadcastLive prometheus.Gauge
	activeCalls   prometheus.Gauge
	audioLevel    *prometheus.GaugeVec
	trackGain     *prometheus.GaugeVec
	viewLive      prometheus.Gauge
	viewBitrate   prometheus.Gauge
	viewFramerate prometheus.Gauge
	notifications *prometheus.CounterVec
}

func NewCollector() *Collector {
	return &Collector{
		broadcastLive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "livecast_broadcast_live",
			Help: "Whether the host session is currently live (1) or offline (0)",
		}),
		activeCalls: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "livecast_active_calls",
			Help: "Number of viewer calls currently tracked by the host",
		}),
		audioLevel: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "livecast_audio_level",
			Help: "RMS amplitude per capture audio track, normalized to [0,1]",
		}, []string{"track"}),
		trackGain: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "livecast_track_gain",
			Help: "Configured gain per capture audio track",
		}, []string{"track"}),
		viewLive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "livecast_view_live",
			Help: "Whether the viewer session is currently receiving (1) or offline (0)",
		}),
		viewBitrate: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "livecast_view_bitrate_bps",
			Help: "Reception bitrate of the viewer session in bits per second",
		}),
		viewFramerate: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "livecast_view_framerate",
			Help: "Reception framerate of the viewer session",
		}),
		notifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "livecast_notifications_total",
			Help: "Notifications raised, by level",
		}, []string{"level"}),
	}
}

// ObserveBroadcast records one host snapshot.
func (c *Collector) ObserveBroadcast(snap services.BroadcastSnapshot) {
	if snap.Status == domain.StreamStatusLive {
		c.broadcastLive.Set(1)
	} else {
		c.broadcastLive.Set(0)
	}
	c.activeCalls.Set(float64(snap.ViewerCount))

	for i, level := range snap.Levels {
		c.audioLevel.WithLabelValues(strconv.Itoa(i)).Set(level)
	}
	for i, gain := range snap.Gains {
		c.trackGain.WithLabelValues(strconv.Itoa(i)).Set(gain)
	}
}

// ObserveView records one viewer snapshot.
func (c *Collector) ObserveView(snap services.ViewSnapshot) {
	if snap.Status == domain.StreamStatusLive {
		c.viewLive.Set(1)
	} else {
		c.viewLive.Set(0)
	}
	c.viewBitrate.Set(float64(snap.BitrateBps))
	c.viewFramerate.Set(snap.FrameRate)
}

// CountNotification increments the per-level notification counter.
func (c *Collector) CountNotification(level string) {
	c.notifications.WithLabelValues(level).Inc()
}
