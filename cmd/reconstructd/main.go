package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"reconstructd/internal/backend"
	"reconstructd/internal/common/fsutil"
	"reconstructd/internal/config"
	"reconstructd/internal/httpapi"
	"reconstructd/internal/jobs"
	"reconstructd/internal/registry"
	"reconstructd/internal/sr"
	"reconstructd/internal/upload"
)

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// .env is optional; real env always wins.
	_ = godotenv.Load()

	addr := flag.String("addr", envDefault("RECONSTRUCTD_ADDR", ""), "HTTP listen address, e.g. :8000")
	configPath := flag.String("config", envDefault("RECONSTRUCTD_CONFIG", ""), "Optional config file (.yaml/.json/.toml)")
	modelsDir := flag.String("models-dir", "", "Directory to scan for model artifacts (*.pt, *.pth, *.onnx)")
	dataDir := flag.String("data-dir", "", "Root directory for uploads and outputs")
	defaultBackend := flag.String("default-backend", "", "Backend id used when a job omits one")
	device := flag.String("device", envDefault("RECONSTRUCTD_DEVICE", ""), "Execution device: auto, cpu or cuda")
	maxConcurrent := flag.Int("max-concurrent", 0, "Maximum jobs executing at once")
	retentionMin := flag.Int("retention-min", 0, "Minutes a terminal job is kept before the reaper removes it")
	reaperSec := flag.Int("reaper-sec", 0, "Seconds between cleanup sweeps")
	logLevel := flag.String("log-level", envDefault("RECONSTRUCTD_LOG_LEVEL", ""), "zerolog level: debug, info, warn, error")
	flag.Parse()

	var cfg config.Config
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			l := stderrLog()
			l.Fatal().Err(err).Str("path", *configPath).Msg("load config")
		}
	}
	// flags override file values; defaults fill the rest
	applyString(addr, cfg.Addr, ":8000")
	applyString(modelsDir, cfg.ModelsDir, "models")
	applyString(dataDir, cfg.DataDir, "data")
	applyString(defaultBackend, cfg.DefaultBackend, "")
	applyString(device, cfg.Device, "auto")
	applyString(logLevel, cfg.LogLevel, "info")
	applyInt(maxConcurrent, cfg.MaxConcurrent, 2)
	applyInt(retentionMin, cfg.RetentionMin, 60)
	applyInt(reaperSec, cfg.ReaperSec, 60)

	log := newLogger(*logLevel)

	dev, err := backend.ResolveDevice(*device)
	if err != nil {
		log.Fatal().Err(err).Msg("device resolution failed")
	}

	reg, err := registry.LoadDir(*modelsDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", *modelsDir).Msg("load model registry")
	}
	if len(reg) == 0 {
		log.Warn().Str("dir", *modelsDir).Msg("no model artifacts found")
	}
	if *defaultBackend == "" && len(reg) > 0 {
		*defaultBackend = reg[0].ID
	}

	uploadsDir := filepath.Join(*dataDir, "uploads")
	outputsDir := filepath.Join(*dataDir, "outputs")
	for _, d := range []string{uploadsDir, outputsDir} {
		if err := fsutil.EnsureDir(d); err != nil {
			log.Fatal().Err(err).Str("dir", d).Msg("create data dir")
		}
	}

	maxUpload := int64(cfg.MaxUploadMB) << 20
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}

	backends := backend.New(sr.New(), reg, dev, *defaultBackend, log)
	store := jobs.NewStore()
	sched := jobs.NewScheduler(store, backends, jobs.SchedulerConfig{
		MaxConcurrent: *maxConcurrent,
		OutputsDir:    outputsDir,
	}, log)
	reaper := jobs.NewReaper(store,
		time.Duration(*retentionMin)*time.Minute,
		time.Duration(*reaperSec)*time.Second,
		log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)
	if !cfg.CleanupOff {
		go reaper.Run(ctx)
	}

	httpapi.SetLogger(log)
	httpapi.SetMaxUploadBytes(maxUpload)
	httpapi.SetCORSOrigins(cfg.CORSOrigins)
	validator := upload.NewValidator(nil, maxUpload, uploadsDir)
	mux := httpapi.NewMux(sched, backends, validator)
	srv := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		log.Info().
			Str("addr", *addr).
			Str("models_dir", *modelsDir).
			Str("device", string(dev)).
			Int("max_concurrent", *maxConcurrent).
			Msg("reconstructd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	if err := backends.Close(); err != nil {
		log.Error().Err(err).Msg("backend close error")
	}
}

// applyString fills *p from the config value, then the default, when unset.
func applyString(p *string, fromCfg, def string) {
	if *p != "" {
		return
	}
	if fromCfg != "" {
		*p = fromCfg
		return
	}
	*p = def
}

func applyInt(p *int, fromCfg, def int) {
	if *p > 0 {
		return
	}
	if fromCfg > 0 {
		*p = fromCfg
		return
	}
	*p = def
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func stderrLog() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
