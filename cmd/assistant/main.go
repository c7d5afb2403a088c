package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okume/camassist/internal/camera"
	"github.com/okume/camassist/internal/logger"
	"github.com/okume/camassist/internal/metrics"
	"github.com/okume/camassist/internal/remote"
	"github.com/okume/camassist/internal/webui"
)

func main() {
	cfg := webui.DefaultConfig()

	var (
		remoteBase   string
		userID       string
		frontCamera  string
		backCamera   string
		intervalMs   int
		logLevel     string
		logColor     bool
	)

	flag.StringVar(&cfg.Addr, "http", cfg.Addr, "HTTP server address")
	flag.StringVar(&remoteBase, "remote-base", "http://localhost:8000", "Inference service base URL")
	flag.StringVar(&userID, "user-id", remote.DefaultUserID, "Session user id sent to the service")
	flag.StringVar(&frontCamera, "camera-front", "http://localhost:8090/stream", "MJPEG URL for the user-facing camera")
	flag.StringVar(&backCamera, "camera-back", "", "MJPEG URL for the environment-facing camera (defaults to the front URL)")
	flag.IntVar(&cfg.IdealWidth, "width", cfg.IdealWidth, "Requested camera width")
	flag.IntVar(&cfg.IdealHeight, "height", cfg.IdealHeight, "Requested camera height")
	flag.IntVar(&intervalMs, "capture-interval", int(cfg.CaptureInterval.Milliseconds()), "Initial capture interval in milliseconds")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error, silent)")
	flag.BoolVar(&logColor, "log-color", true, "Enable colored log output")
	flag.Parse()

	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, logColor)

	cfg.CaptureInterval = time.Duration(intervalMs) * time.Millisecond
	if backCamera == "" {
		backCamera = frontCamera
	}

	factory := func(facing camera.Facing, idealWidth, idealHeight int) (camera.Source, error) {
		url := frontCamera
		if facing == camera.FacingEnvironment {
			url = backCamera
		}
		source, err := camera.NewMJPEGSource(url, idealWidth, idealHeight)
		if err != nil {
			return nil, err
		}
		return source, nil
	}

	m := metrics.New()
	cam := camera.NewController(factory, m)
	client := remote.New(remoteBase, userID)
	server := webui.NewServer(cfg, client, cam, m)
	defer server.Close()

	logger.Info("Main", "Assistant listening on %s", cfg.Addr)
	logger.Info("Main", "Inference service: %s (user=%s)", remoteBase, userID)
	logger.Info("Main", "Log level: %s", level)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Handler(),
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("Main", "Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("Main", "Shutdown incomplete: %v", err)
	}
}
