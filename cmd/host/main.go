package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"livecast/internal/core/domain"
	"livecast/internal/core/ports"
	"livecast/internal/core/services"
	handlers "livecast/internal/handlers/http"
	"livecast/internal/infrastructure/monitoring"
	"livecast/internal/infrastructure/notify"
	"livecast/internal/infrastructure/registry"
	"livecast/internal/infrastructure/signaling"
	"livecast/internal/infrastructure/transport"
	"livecast/internal/media"
	"livecast/pkg/config"
	"livecast/pkg/i18n"
	"livecast/pkg/logger"
	"livecast/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	room := flag.String("room", "", "room id to broadcast to (generated when empty)")
	flag.Parse()

	cfg, err := config.Load(resolveConfigPath(*configPath))
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format).Sugar()
	defer log.Sync()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "livecast-host",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tp.Shutdown(ctx)
	}()

	registries := registry.New(cfg, log)

	hub := notify.NewHub(log)
	var notifier ports.Notifier = notify.NewFanout(hub, notify.NewLogNotifier(log))
	var collector *monitoring.Collector
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewCollector()
		notifier = monitoring.CountNotifications(collector, notifier)
	}
	translate := i18n.Translator(cfg.Locale)

	capture := media.NewExecBackend(media.ExecConfig{
		ScreenCommand:      cfg.Media.ScreenCommand,
		CameraCommand:      cfg.Media.CameraCommand,
		MicCommand:         cfg.Media.MicCommand,
		SystemAudioCommand: cfg.Media.SystemAudioCommand,
		MaxBitrate:         cfg.WebRTC.MaxBitrate,
		Devices:            configuredDevices(cfg),
	}, log)

	svc := services.NewBroadcastService(
		cfg, log, notifier, translate,
		signaling.NewDialer(cfg, registries.Signaling, notifier, translate, log),
		transport.NewDialer(cfg, registries.Media, notifier, translate, log),
		capture,
	)

	ctx := context.Background()
	if err := svc.Mount(ctx, domain.RoomID(*room)); err != nil {
		log.Fatalw("failed to mount host session", "error", err)
	}
	log.Infow("share this link with viewers", "url", svc.ViewerURL("http://localhost"+cfg.Server.Address))

	if collector != nil {
		go observeLoop(cfg, collector, svc)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handlers.NewBroadcastHandler(cfg, svc, hub, log).RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infow("host API listening", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server error", "error", err)
		}
	}()

	waitForShutdown(log, cfg, server, func(shutdownCtx context.Context) {
		svc.Unmount(shutdownCtx)
	})
}

func observeLoop(cfg *config.Config, collector *monitoring.Collector, svc *services.BroadcastService) {
	ticker := time.NewTicker(cfg.Monitoring.MetricsInterval)
	defer ticker.Stop()
	for range ticker.C {
		collector.ObserveBroadcast(svc.Snapshot())
	}
}

func configuredDevices(cfg *config.Config) []media.DeviceInfo {
	devices := make([]media.DeviceInfo, 0, len(cfg.Media.Devices))
	for _, d := range cfg.Media.Devices {
		devices = append(devices, media.DeviceInfo{DeviceID: d.DeviceID, Kind: d.Kind, Label: d.Label})
	}
	return devices
}

func resolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	for _, p := range []string{"configs/config.yaml", "config.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return "configs/config.yaml"
}

func waitForShutdown(log *zap.SugaredLogger, cfg *config.Config, server *http.Server, teardown func(context.Context)) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	teardown(ctx)
	if err := server.Shutdown(ctx); err != nil {
		log.Errorw("forced shutdown", "error", err)
	}
	log.Infow("stopped")
}
