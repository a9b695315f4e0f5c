package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"livecast/internal/core/services"
	"livecast/internal/infrastructure/middleware"
	"livecast/internal/infrastructure/notify"
	"livecast/pkg/config"
)

// ViewHandler serves the viewer-side API.
type ViewHandler struct {
	cfg    *config.Config
	svc    *services.ViewService
	hub    *notify.Hub
	logger *zap.SugaredLogger
}

func NewViewHandler(cfg *config.Config, svc *services.ViewService, hub *notify.Hub, logger *zap.SugaredLogger) *ViewHandler {
	return &ViewHandler{cfg: cfg, svc: svc, hub: hub, logger: logger}
}

func (h *ViewHandler) RegisterRoutes(r *gin.Engine) {
	r.Use(middleware.Tracing())
	r.Use(middleware.RateLimit(h.cfg))

	r.GET("/health", handleHealth)
	if h.cfg.Monitoring.PrometheusEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	r.GET("/ws/toasts", gin.WrapF(h.hub.ServeWS))

	r.GET("/api/live/:room", h.getLive)
}

type viewResponse struct {
	Room        string  `json:"room"`
	ClientID    string  `json:"clientId"`
	Status      string  `json:"status"`
	BitrateBps  int64   `json:"bitrateBps"`
	FrameRate   float64 `json:"frameRate"`
	Resolution  string  `json:"resolution"`
	AudioTracks int     `json:"audioTracks"`
	VideoTracks int     `json:"videoTracks"`
}

func (h *ViewHandler) getLive(c *gin.Context) {
	snap := h.svc.Snapshot()
	if c.Param("room") != string(snap.Room) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown room"})
		return
	}
	c.JSON(http.StatusOK, viewResponse{
		Room:        string(snap.Room),
		ClientID:    string(snap.ClientID),
		Status:      string(snap.Status),
		BitrateBps:  snap.BitrateBps,
		FrameRate:   snap.FrameRate,
		Resolution:  snap.Resolution,
		AudioTracks: snap.AudioTracks,
		VideoTracks: snap.VideoTracks,
	})
}
