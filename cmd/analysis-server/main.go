package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/food-analyzer/internal/config"
	"github.com/menta2k/food-analyzer/internal/logger"
	"github.com/menta2k/food-analyzer/internal/server"
	"github.com/menta2k/food-analyzer/pkg/client"
	"github.com/menta2k/food-analyzer/pkg/gemini"
	"github.com/menta2k/food-analyzer/pkg/llamacpp"
	"github.com/menta2k/food-analyzer/pkg/nutrition"
	"github.com/menta2k/food-analyzer/pkg/ollama"
)

// Local backends default to a small multimodal model
const localModel = "openbmb/minicpm-v4.5"

func main() {
	var configPath, backend, model, url, port string

	flag.StringVar(&configPath, "config", "", "JSON config file (default "+config.GetConfigPath()+" when present)")
	flag.StringVar(&backend, "backend", "", "vision backend: gemini, ollama or llamacpp")
	flag.StringVar(&model, "model", "", "model name")
	flag.StringVar(&url, "url", "", "server URL for ollama (http://localhost:11434) or llamacpp (http://localhost:8080)")
	flag.StringVar(&port, "port", "", "listen port")
	flag.Parse()

	cfg, err := config.Load(config.ResolvePath(configPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if backend != "" {
		cfg.Vision.Backend = backend
	}
	if model != "" {
		cfg.Vision.Model = model
	}
	if url != "" {
		cfg.Vision.URL = url
	}
	if port != "" {
		cfg.Server.Port = port
	}

	logger, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.Sugar()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	vc, err := newVisionClient(&cfg.Vision)
	if err != nil {
		log.Fatal("Failed to create vision client: ", err)
	}
	logger.Info("Vision backend ready",
		zap.String("backend", cfg.Vision.Backend),
		zap.String("model", cfg.Vision.Model))

	estimator := nutrition.NewEstimator(vc, cfg.Vision.Model, logger.Named("nutrition"))
	srv := server.New(cfg.Server, estimator, logger.Named("server"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed: ", err)
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown: ", err)
	}

	log.Info("Server exited")
}

// newVisionClient builds the configured backend, filling in local defaults
func newVisionClient(v *config.VisionConfig) (client.VisionClient, error) {
	switch v.Backend {
	case config.BackendGemini:
		return gemini.NewClient(v.APIKey)
	case config.BackendOllama:
		if v.URL == "" {
			v.URL = "http://localhost:11434"
		}
		if v.Model == "" || v.Model == nutrition.DefaultModel {
			v.Model = localModel
		}
		return ollama.NewClient(v.URL)
	case config.BackendLlamaCpp:
		if v.URL == "" {
			v.URL = "http://localhost:8080"
		}
		if v.Model == "" || v.Model == nutrition.DefaultModel {
			v.Model = localModel
		}
		return llamacpp.NewClient(v.URL)
	default:
		return nil, fmt.Errorf("unknown backend %q", v.Backend)
	}
}
