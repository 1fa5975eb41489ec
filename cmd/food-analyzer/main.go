package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"

	foodanalyzer "github.com/menta2k/food-analyzer"
	"github.com/menta2k/food-analyzer/internal/config"
	"github.com/menta2k/food-analyzer/internal/logger"
	"github.com/menta2k/food-analyzer/internal/utils"
	"github.com/menta2k/food-analyzer/pkg/normalizer"
	"github.com/menta2k/food-analyzer/pkg/render"
	"github.com/menta2k/food-analyzer/pkg/types"
	"github.com/menta2k/food-analyzer/pkg/uploader"
	"github.com/menta2k/food-analyzer/pkg/workflow"
)

var formats = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
}

func main() {
	var in, url, configPath, format, saveDir, saveConfig, logLevel string
	var maxWidth, quality int
	var asJSON, debug bool

	flag.StringVar(&in, "in", "", "food photo to analyze (jpg/png/webp)")
	flag.StringVar(&url, "url", "", "analysis server base URL (default http://localhost:5000)")
	flag.StringVar(&configPath, "config", "", "JSON config file (default "+config.GetConfigPath()+" when present)")
	flag.IntVar(&maxWidth, "maxwidth", 0, "maximum width of the uploaded image (px)")
	flag.IntVar(&quality, "quality", 0, "re-encode quality (1-100)")
	flag.StringVar(&format, "format", "", "upload format: jpg|png|webp")
	flag.StringVar(&saveDir, "save", "", "directory to write the normalised image to")
	flag.StringVar(&saveConfig, "save-config", "", "write the effective config to this path and exit")
	flag.StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error")
	flag.BoolVar(&asJSON, "json", false, "print the report as JSON")
	flag.BoolVar(&debug, "debug", false, "human-readable development logging")
	flag.Parse()

	cfg, err := config.Load(config.ResolvePath(configPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if url != "" {
		cfg.Upload.BaseURL = url
	}
	if maxWidth > 0 {
		cfg.Normalizer.MaxWidth = maxWidth
	}
	if quality > 0 {
		cfg.Normalizer.Quality = quality
	}
	if format != "" {
		mt, ok := formats[strings.ToLower(format)]
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown format %q (use jpg, png or webp)\n", format)
			os.Exit(2)
		}
		cfg.Normalizer.MediaType = mt
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if debug {
		cfg.Log.Development = true
	}

	log, err := logger.NewSugared(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	if saveConfig != "" {
		if err := cfg.SaveToFile(saveConfig); err != nil {
			log.Fatal(err)
		}
		log.Infow("config written", "path", saveConfig)
		return
	}

	if in == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -in photo.jpg [-url http://localhost:5000] [-maxwidth 1024] [-quality 90] [-format jpg|png|webp] [-save outdir] [-json]\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}

	if !utils.FileExists(in) {
		log.Fatalw("input not found", "path", in)
	}
	if !utils.IsImageFile(in) {
		log.Debugw("no image extension, detecting media type from content", "path", in)
	}

	fa, err := foodanalyzer.NewWithConfig(
		normalizer.Config{
			MaxWidth:  cfg.Normalizer.MaxWidth,
			Quality:   cfg.Normalizer.Quality,
			MediaType: cfg.Normalizer.MediaType,
		},
		uploader.Config{
			BaseURL:   cfg.Upload.BaseURL,
			Endpoint:  cfg.Upload.Endpoint,
			FieldName: cfg.Upload.FieldName,
		},
		log.Desugar(),
	)
	if err != nil {
		log.Fatal(err)
	}
	fa.Controller().Observe(transitionLogger(log.Desugar()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := fa.AnalyzeFile(ctx, in)
	if err != nil {
		var ae *types.AnalysisError
		switch {
		case errors.As(err, &ae):
			log.Errorw("analysis failed", "error", ae.Error(), "status", ae.StatusCode)
		case errors.Is(err, context.Canceled):
			log.Warn("cancelled")
		default:
			log.Error(err)
		}
		os.Exit(1)
	}

	if saveDir != "" {
		if err := saveArtifact(log, saveDir, report.Artifact); err != nil {
			log.Error(err)
		}
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report.View); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := render.WriteText(os.Stdout, report.View); err != nil {
		log.Fatal(err)
	}
}

// transitionLogger logs every state change and notice reported by the controller
func transitionLogger(log *zap.Logger) func(workflow.ViewModel) {
	var mu sync.Mutex
	last := types.StateIdle
	lastNotice := ""
	return func(vm workflow.ViewModel) {
		mu.Lock()
		defer mu.Unlock()
		if vm.State != last {
			log.Info("state",
				zap.Stringer("from", last),
				zap.Stringer("to", vm.State),
				zap.String("file", vm.FileName))
			last = vm.State
		}
		if vm.Notice != "" && vm.Notice != lastNotice {
			log.Warn(vm.Notice)
		}
		lastNotice = vm.Notice
		if vm.Error != "" && vm.State == types.StateErrored {
			log.Debug("error banner", zap.String("message", vm.Error))
		}
	}
}

func saveArtifact(log *zap.SugaredLogger, dir string, artifact types.NormalizedArtifact) error {
	if err := utils.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, utils.SanitizeFilename(artifact.Filename))
	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Infow("wrote", "path", path, "size", utils.FormatFileSize(int64(len(artifact.Data))))
	return nil
}
