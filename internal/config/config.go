// Package config loads and validates a project's external_services.json:
// the embedder and image-generation endpoints the core core talks to, kept
// outside the Store because they're deployment concerns, not project data.
package config

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/veighnsche/ralph/internal/rerr"
)

// EmbedderConfig points at the external embedding/LLM API.
type EmbedderConfig struct {
	APIURL         string  `mapstructure:"api_url" json:"api_url"`
	EmbeddingModel string  `mapstructure:"embedding_model" json:"embedding_model"`
	EmbeddingDims  int     `mapstructure:"embedding_dims" json:"embedding_dims"`
	LLMModel       string  `mapstructure:"llm_model" json:"llm_model"`
	LLMTemperature float64 `mapstructure:"llm_temperature" json:"llm_temperature"`
}

// ImageGenConfig points at the external image-generation API.
type ImageGenConfig struct {
	APIURL          string `mapstructure:"api_url" json:"api_url"`
	DefaultWorkflow string `mapstructure:"default_workflow" json:"default_workflow"`
	TimeoutSecs     int    `mapstructure:"timeout_secs" json:"timeout_secs"`
}

// ExternalServices is the full external_services.json schema.
type ExternalServices struct {
	Version  int            `mapstructure:"version" json:"version"`
	Embedder EmbedderConfig `mapstructure:"embedder" json:"embedder"`
	ImageGen ImageGenConfig `mapstructure:"image_gen" json:"image_gen"`
}

// Load reads and validates external_services.json at path.
func Load(path string) (*ExternalServices, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, rerr.New(rerr.CodeProjectInit, "read %s: %v", path, err)
	}

	cfg := &ExternalServices{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, rerr.New(rerr.CodeProjectInit, "parse %s: %v", path, err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *ExternalServices) error {
	if cfg.Version <= 0 {
		return rerr.New(rerr.CodeProjectInit, "version must be positive, got %d", cfg.Version)
	}
	if err := validateURL(cfg.Embedder.APIURL, "embedder.api_url"); err != nil {
		return err
	}
	if cfg.Embedder.EmbeddingDims <= 0 {
		return rerr.New(rerr.CodeProjectInit, "embedder.embedding_dims must be > 0, got %d", cfg.Embedder.EmbeddingDims)
	}
	if cfg.Embedder.LLMTemperature < 0 || cfg.Embedder.LLMTemperature > 2 {
		return rerr.New(rerr.CodeProjectInit, "embedder.llm_temperature must be in [0, 2], got %v", cfg.Embedder.LLMTemperature)
	}

	if cfg.ImageGen.APIURL != "" {
		if err := validateURL(cfg.ImageGen.APIURL, "image_gen.api_url"); err != nil {
			return err
		}
	}
	if cfg.ImageGen.DefaultWorkflow != "" {
		if err := validateRelativeFilename(cfg.ImageGen.DefaultWorkflow, "image_gen.default_workflow"); err != nil {
			return err
		}
	}
	return nil
}

func validateURL(raw, field string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return rerr.New(rerr.CodeProjectInit, "%s must be an http(s) URL, got %q", field, raw)
	}
	return nil
}

func validateRelativeFilename(name, field string) error {
	if filepath.IsAbs(name) {
		return rerr.New(rerr.CodeProjectInit, "%s must be a relative filename, got %q", field, name)
	}
	if strings.Contains(name, "..") {
		return rerr.New(rerr.CodeProjectInit, "%s must not contain '..', got %q", field, name)
	}
	return nil
}
