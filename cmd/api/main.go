package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"energy-net/internal/api"
	"energy-net/internal/api/handlers"
	"energy-net/internal/config"
	"energy-net/internal/data"
	"energy-net/internal/episode"
	"energy-net/internal/logging"
	"energy-net/internal/session"
	"energy-net/internal/store"
	"energy-net/internal/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfgPath := flag.String("config", envOr("ENERGY_NET_CONFIG", "configs/energy_net.yaml"), "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		logrus.WithError(err).Fatal("failed to set up logging")
	}

	// Get configuration from environment
	if port := os.Getenv("API_PORT"); port != "" {
		cfg.API.Addr = ":" + port
	}
	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := data.LoadCatalog(data.DefaultCatalogPath())
	if err != nil {
		log.WithError(err).Warn("no policy catalog loaded; requests must carry inline specs")
		catalog = &data.Catalog{}
	}

	deps := &handlers.Deps{
		Base:      cfg,
		PresetDir: filepath.Join(filepath.Dir(*cfgPath), "pcs"),
		Catalog:   catalog,
		Engine:    episode.New(log),
		Recorder:  telemetry.NewRecorder(),
		Log:       log,
	}

	if dsn := envOr("DATABASE_URL", cfg.Storage.PostgresDSN); dsn != "" {
		st, err := store.Open(ctx, dsn, log)
		if err != nil {
			log.WithError(err).Fatal("failed to open episode store")
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			log.WithError(err).Fatal("failed to migrate episode store")
		}
		deps.Store = st
		log.Info("episode store enabled")
	}

	sessions := session.NewStore(cfg.API.SessionTTL, log)
	go sessions.Run(ctx, time.Minute)

	router := api.NewRouter(deps, sessions, cfg.API.CORSOrigins, log)
	srv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("server shutdown")
		}
	}()

	log.WithFields(logrus.Fields{
		"addr":     cfg.API.Addr,
		"policies": len(catalog.Policies),
		"presets":  deps.PresetDir,
	}).Info("starting API server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("failed to start server")
	}
	log.Info("server stopped")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
