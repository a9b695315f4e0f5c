// Package http exposes the coordinator state over a small REST API:
// session control for the host page, state polling for the viewer
// page, toast delivery over websocket and the operational endpoints.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"livecast/internal/core/domain"
	"livecast/internal/core/services"
	"livecast/internal/infrastructure/middleware"
	"livecast/internal/infrastructure/notify"
	"livecast/internal/media"
	"livecast/pkg/config"
)

// BroadcastHandler serves the host-side API.
type BroadcastHandler struct {
	cfg    *config.Config
	svc    *services.BroadcastService
	hub    *notify.Hub
	logger *zap.SugaredLogger
}

func NewBroadcastHandler(cfg *config.Config, svc *services.BroadcastService, hub *notify.Hub, logger *zap.SugaredLogger) *BroadcastHandler {
	return &BroadcastHandler{cfg: cfg, svc: svc, hub: hub, logger: logger}
}

func (h *BroadcastHandler) RegisterRoutes(r *gin.Engine) {
	r.Use(middleware.Tracing())
	r.Use(middleware.RateLimit(h.cfg))

	r.GET("/health", handleHealth)
	if h.cfg.Monitoring.PrometheusEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	r.GET("/ws/toasts", gin.WrapF(h.hub.ServeWS))

	api := r.Group("/api")
	{
		api.GET("/broadcast", h.getBroadcast)
		api.POST("/broadcast/start", h.startBroadcast)
		api.POST("/broadcast/stop", h.stopBroadcast)
		api.POST("/broadcast/capture", h.capture)
		api.POST("/broadcast/volume", h.setVolume)
		api.GET("/devices", h.listDevices)
	}
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type broadcastResponse struct {
	Room        string    `json:"room"`
	ClientID    string    `json:"clientId"`
	Status      string    `json:"status"`
	Source      string    `json:"source"`
	ViewerCount int       `json:"viewerCount"`
	Gains       []float64 `json:"gains"`
	Levels      []float64 `json:"levels"`
	ViewerURL   string    `json:"viewerUrl"`
}

func (h *BroadcastHandler) getBroadcast(c *gin.Context) {
	snap := h.svc.Snapshot()

	origin := "http://" + c.Request.Host
	c.JSON(http.StatusOK, broadcastResponse{
		Room:        string(snap.Room),
		ClientID:    string(snap.ClientID),
		Status:      string(snap.Status),
		Source:      string(snap.Source),
		ViewerCount: snap.ViewerCount,
		Gains:       snap.Gains,
		Levels:      snap.Levels,
		ViewerURL:   domain.ViewerURL(origin, snap.Room),
	})
}

func (h *BroadcastHandler) startBroadcast(c *gin.Context) {
	if err := h.svc.Start(c.Request.Context()); err != nil {
		status := http.StatusInternalServerError
		if err == domain.ErrNoCapture {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(domain.StreamStatusLive)})
}

func (h *BroadcastHandler) stopBroadcast(c *gin.Context) {
	if err := h.svc.Stop(c.Request.Context()); err != nil {
		status := http.StatusInternalServerError
		if err == domain.ErrNotLive {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(domain.StreamStatusOffline)})
}

type captureRequest struct {
	Source        string `json:"source" binding:"required"`
	VideoDeviceID string `json:"videoDeviceId"`
	AudioDeviceID string `json:"audioDeviceId"`
	EnableMic     bool   `json:"enableMic"`
}

func (h *BroadcastHandler) capture(c *gin.Context) {
	var req captureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var err error
	switch domain.StreamSource(req.Source) {
	case domain.StreamSourceScreen:
		err = h.svc.CaptureScreen(c.Request.Context(), media.ScreenRequest{
			AudioDeviceID: req.AudioDeviceID,
			EnableMic:     req.EnableMic,
			Constraints:   media.ScreenConstraints(),
		})
	case domain.StreamSourceCamera:
		err = h.svc.CaptureCamera(c.Request.Context(), media.CameraRequest{
			VideoDeviceID: req.VideoDeviceID,
			AudioDeviceID: req.AudioDeviceID,
			EnableMic:     req.EnableMic,
			Constraints:   media.CameraConstraints(),
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "source must be screen or camera"})
		return
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": req.Source})
}

type volumeRequest struct {
	Index int     `json:"index"`
	Gain  float64 `json:"gain"`
}

func (h *BroadcastHandler) setVolume(c *gin.Context) {
	var req volumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.SetTrackVolume(c.Request.Context(), req.Index, req.Gain); err != nil {
		status := http.StatusInternalServerError
		switch err {
		case domain.ErrTrackIndexOutOfRange:
			status = http.StatusBadRequest
		case domain.ErrNoCapture:
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": req.Index, "gain": req.Gain})
}

type deviceResponse struct {
	DeviceID string `json:"deviceId"`
	Kind     string `json:"kind"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

func (h *BroadcastHandler) listDevices(c *gin.Context) {
	devices, err := h.svc.Devices()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// The first device of each kind is the default selection.
	seen := make(map[string]bool)
	out := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceResponse{
			DeviceID: d.DeviceID,
			Kind:     d.Kind,
			Label:    d.Label,
			Selected: !seen[d.Kind],
		})
		seen[d.Kind] = true
	}
	c.JSON(http.StatusOK, gin.H{"devices": out})
}
