package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"llamad/internal/config"
	"llamad/internal/daemon"
	"llamad/internal/httpapi"
	"llamad/internal/llm"
	"llamad/internal/supervise"
)

func main() {
	// Flags with environment variable defaults
	defaultAddr := ":9090"
	if v := os.Getenv("LLAMAD_ADDR"); v != "" {
		defaultAddr = v
	}
	configPath := flag.String("config", os.Getenv("LLAMAD_CONFIG"), "Path to config file (.yaml/.json/.toml)")
	addr := flag.String("addr", defaultAddr, "HTTP listen address, e.g. :9090")
	modelsDir := flag.String("models-dir", "", "Directory to scan for *.gguf model files")
	modelPath := flag.String("model", "", "Default model path for the managed server")
	binaryPath := flag.String("binary", "", "Path to the llama-server binary (empty = auto-detect)")
	serverPort := flag.Int("server-port", 0, "Port for the managed llama-server")
	ctxSize := flag.Int("ctx-size", 0, "Context size for the managed server")
	gpuLayers := flag.Int("gpu-layers", 0, "GPU layers for the managed server (0 = CPU only)")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	corsEnabled := flag.Bool("cors-enabled", false, "Enable CORS middleware")
	corsOrigins := flag.String("cors-origins", "*", "Comma-separated allowed CORS origins")
	flag.Parse()

	logger := newLogger(*logLevel)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *configPath).Msg("load config")
	}
	applyFlags(&cfg, *addr, *modelsDir, *modelPath, *binaryPath, *serverPort, *ctxSize, *gpuLayers)
	cfg.CORSEnabled = cfg.CORSEnabled || *corsEnabled
	if cfg.CORSEnabled && len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = splitCSV(*corsOrigins)
	}
	cfg = config.ApplyDefaults(cfg)

	client := llm.New(fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port))
	sup := supervise.New(
		supervise.Config{Server: cfg.Server},
		client,
		supervise.WithLogger(logger),
		supervise.WithPublisher(httpapi.EventMetrics{}),
	)
	d := daemon.New(cfg, sup, client, logger)

	httpapi.SetLogger(logger)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins)

	baseCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(d)}

	g, gctx := errgroup.WithContext(baseCtx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Addr).Str("models_dir", cfg.Server.ModelDir).Int("server_port", cfg.Server.Port).Msg("llamad listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("graceful shutdown")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

// loadConfig reads the config file when a path is given; otherwise returns
// an empty config to be filled by flags and defaults.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Config{}, nil
	}
	return config.Load(path)
}

// applyFlags lets explicit flags override file values.
func applyFlags(cfg *config.Config, addr, modelsDir, modelPath, binaryPath string, port, ctxSize, gpuLayers int) {
	if addr != "" {
		cfg.Addr = addr
	}
	if modelsDir != "" {
		cfg.Server.ModelDir = modelsDir
	}
	if modelPath != "" {
		cfg.Server.ModelPath = modelPath
	}
	if binaryPath != "" {
		cfg.Server.BinaryPath = binaryPath
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	if ctxSize > 0 {
		cfg.Server.ContextSize = ctxSize
	}
	if gpuLayers > 0 {
		cfg.Server.GPULayers = gpuLayers
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
