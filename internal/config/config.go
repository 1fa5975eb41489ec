package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/menta2k/food-analyzer/internal/utils"
)

// Config holds the application configuration
type Config struct {
	Normalizer NormalizerConfig `json:"normalizer" mapstructure:"normalizer"`
	Upload     UploadConfig     `json:"upload" mapstructure:"upload"`
	Server     ServerConfig     `json:"server" mapstructure:"server"`
	Vision     VisionConfig     `json:"vision" mapstructure:"vision"`
	Log        LogConfig        `json:"log" mapstructure:"log"`
}

// NormalizerConfig holds the client-side resize and re-encode settings
type NormalizerConfig struct {
	MaxWidth  int    `json:"max_width" mapstructure:"max_width"`
	Quality   int    `json:"quality" mapstructure:"quality"`
	MediaType string `json:"media_type" mapstructure:"media_type"`
}

// UploadConfig holds the analysis endpoint used by the client
type UploadConfig struct {
	BaseURL   string `json:"base_url" mapstructure:"base_url"`
	Endpoint  string `json:"endpoint" mapstructure:"endpoint"`
	FieldName string `json:"field_name" mapstructure:"field_name"`
}

// ServerConfig holds the analysis server settings
type ServerConfig struct {
	Host             string `json:"host" mapstructure:"host"`
	Port             string `json:"port" mapstructure:"port"`
	MaxUploadBytes   int64  `json:"max_upload_bytes" mapstructure:"max_upload_bytes"`
	MaxImageDim      int    `json:"max_image_dim" mapstructure:"max_image_dim"`
	ThumbnailQuality int    `json:"thumbnail_quality" mapstructure:"thumbnail_quality"`
}

// VisionConfig selects the model backend queried by the server
type VisionConfig struct {
	Backend string `json:"backend" mapstructure:"backend"`
	Model   string `json:"model" mapstructure:"model"`
	URL     string `json:"url,omitempty" mapstructure:"url"`
	APIKey  string `json:"-" mapstructure:"api_key"`
}

// LogConfig controls the zap logger
type LogConfig struct {
	Level       string `json:"level" mapstructure:"level"`
	Development bool   `json:"development" mapstructure:"development"`
}

// Vision backends
const (
	BackendGemini   = "gemini"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Normalizer: NormalizerConfig{
			MaxWidth:  1024,
			Quality:   90,
			MediaType: "image/jpeg",
		},
		Upload: UploadConfig{
			BaseURL:   "http://localhost:5000",
			Endpoint:  "/api/analyze",
			FieldName: "image",
		},
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             "5000",
			MaxUploadBytes:   16 << 20,
			MaxImageDim:      1024,
			ThumbnailQuality: 90,
		},
		Vision: VisionConfig{
			Backend: BackendGemini,
			Model:   "models/gemini-2.5-flash",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads .env, then layers defaults, the optional JSON file at path and
// environment variables such as NORMALIZER_MAX_WIDTH or GEMINI_API_KEY.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("vision.api_key", "VISION_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT", "FLASK_PORT")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("normalizer.max_width", d.Normalizer.MaxWidth)
	v.SetDefault("normalizer.quality", d.Normalizer.Quality)
	v.SetDefault("normalizer.media_type", d.Normalizer.MediaType)
	v.SetDefault("upload.base_url", d.Upload.BaseURL)
	v.SetDefault("upload.endpoint", d.Upload.Endpoint)
	v.SetDefault("upload.field_name", d.Upload.FieldName)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.max_upload_bytes", d.Server.MaxUploadBytes)
	v.SetDefault("server.max_image_dim", d.Server.MaxImageDim)
	v.SetDefault("server.thumbnail_quality", d.Server.ThumbnailQuality)
	v.SetDefault("vision.backend", d.Vision.Backend)
	v.SetDefault("vision.model", d.Vision.Model)
	v.SetDefault("vision.url", d.Vision.URL)
	v.SetDefault("vision.api_key", d.Vision.APIKey)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

// SaveToFile saves configuration to a JSON file. The API key is never written.
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Normalizer.MaxWidth < 1 {
		return fmt.Errorf("normalizer.max_width must be positive")
	}

	if c.Normalizer.Quality < 1 || c.Normalizer.Quality > 100 {
		return fmt.Errorf("normalizer.quality must be between 1 and 100")
	}

	switch c.Normalizer.MediaType {
	case "image/jpeg", "image/png", "image/webp":
	default:
		return fmt.Errorf("normalizer.media_type %q is not supported", c.Normalizer.MediaType)
	}

	if c.Upload.BaseURL == "" {
		return fmt.Errorf("upload.base_url cannot be empty")
	}

	if c.Upload.FieldName == "" {
		return fmt.Errorf("upload.field_name cannot be empty")
	}

	if c.Server.MaxUploadBytes < 1 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}

	if c.Server.MaxImageDim < 1 {
		return fmt.Errorf("server.max_image_dim must be positive")
	}

	if c.Server.ThumbnailQuality < 1 || c.Server.ThumbnailQuality > 100 {
		return fmt.Errorf("server.thumbnail_quality must be between 1 and 100")
	}

	switch c.Vision.Backend {
	case BackendGemini, BackendOllama, BackendLlamaCpp:
	default:
		return fmt.Errorf("vision.backend must be one of %s, %s, %s", BackendGemini, BackendOllama, BackendLlamaCpp)
	}

	return nil
}

// Addr returns the server listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// ResolvePath returns explicit when set, otherwise the default config path
// if a file exists there, otherwise "" (defaults and environment only).
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := GetConfigPath(); utils.FileExists(p) {
		return p
	}
	return ""
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "food-analyzer", "config.json")
}
