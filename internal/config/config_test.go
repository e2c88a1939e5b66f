package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "external_services.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `{
		"version": 1,
		"embedder": {"api_url": "http://localhost:8899", "embedding_model": "bge-small", "embedding_dims": 384, "llm_model": "llama3", "llm_temperature": 0.7},
		"image_gen": {"api_url": "http://localhost:7860", "default_workflow": "default.json", "timeout_secs": 30}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 384, cfg.Embedder.EmbeddingDims)
	require.Equal(t, "default.json", cfg.ImageGen.DefaultWorkflow)
}

func TestLoad_RejectsBadScheme(t *testing.T) {
	path := writeConfig(t, `{"version":1,"embedder":{"api_url":"ftp://x","embedding_dims":3,"llm_temperature":0.5}}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsZeroDims(t *testing.T) {
	path := writeConfig(t, `{"version":1,"embedder":{"api_url":"http://x","embedding_dims":0,"llm_temperature":0.5}}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsOutOfRangeTemperature(t *testing.T) {
	path := writeConfig(t, `{"version":1,"embedder":{"api_url":"http://x","embedding_dims":3,"llm_temperature":3.0}}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsTraversalInWorkflow(t *testing.T) {
	path := writeConfig(t, `{
		"version": 1,
		"embedder": {"api_url": "http://x", "embedding_dims": 3, "llm_temperature": 0.5},
		"image_gen": {"api_url": "http://y", "default_workflow": "../../etc/passwd"}
	}`)
	_, err := Load(path)
	require.Error(t, err)
}
