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

	"livecast/internal/core/domain"
	"livecast/internal/core/ports"
	"livecast/internal/core/services"
	handlers "livecast/internal/handlers/http"
	"livecast/internal/infrastructure/monitoring"
	"livecast/internal/infrastructure/notify"
	"livecast/internal/infrastructure/registry"
	"livecast/internal/infrastructure/signaling"
	"livecast/internal/infrastructure/transport"
	"livecast/pkg/config"
	"livecast/pkg/i18n"
	"livecast/pkg/logger"
	"livecast/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	room := flag.String("room", "", "room id to watch")
	flag.Parse()

	cfg, err := config.Load(resolveConfigPath(*configPath))
	if err != nil {
		panic(err)
	}
	if *room == "" {
		panic("a room id is required: -room <id>")
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format).Sugar()
	defer log.Sync()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "livecast-viewer",
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

	svc := services.NewViewService(
		cfg, log, notifier, translate,
		signaling.NewDialer(cfg, registries.Signaling, notifier, translate, log),
		transport.NewDialer(cfg, registries.Media, notifier, translate, log),
		registries.Signaling,
		registries.Media,
	)

	ctx := context.Background()
	if err := svc.Mount(ctx, domain.RoomID(*room)); err != nil {
		log.Fatalw("failed to mount viewer session", "error", err)
	}

	if collector != nil {
		go observeLoop(cfg, collector, svc)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handlers.NewViewHandler(cfg, svc, hub, log).RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infow("viewer API listening", "address", cfg.Server.Address, "room", *room)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	svc.Unmount(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("forced shutdown", "error", err)
	}
	log.Infow("stopped")
}

func observeLoop(cfg *config.Config, collector *monitoring.Collector, svc *services.ViewService) {
	ticker := time.NewTicker(cfg.Monitoring.MetricsInterval)
	defer ticker.Stop()
	for range ticker.C {
		collector.ObserveView(svc.Snapshot())
	}
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
