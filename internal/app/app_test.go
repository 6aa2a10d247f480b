package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-commit-reporter/internal/adapter/queue"
	"github.com/arturoeanton/go-commit-reporter/internal/middleware"
	"github.com/arturoeanton/go-commit-reporter/pkg/config"
)

func memoryConfig() *config.Config {
	return &config.Config{
		AppName:           "Commit Reporter",
		StorageBackend:    config.StorageMemory,
		CacheMaxItems:     10,
		LLMProvider:       "deepseek",
		Repositories:      `[{"name":"api","url":"https://github.com/acme/api"}]`,
		JobAttempts:       3,
		WorkerConcurrency: 1,
	}
}

func TestNew_MemoryBackend(t *testing.T) {
	a, err := New(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &queue.MemoryQueue{}, a.Queue())
	assert.IsType(t, middleware.LogAuditWriter{}, a.AuditWriter)
	assert.Nil(t, a.AuditReader)
	require.Len(t, a.Registry.List(), 1)
	assert.Equal(t, "api", a.Registry.List()[0].Name)
	assert.NotNil(t, a.Reports)
	assert.NotNil(t, a.Jobs)
	assert.NotNil(t, a.Pool)

	// no database: returns immediately
	a.RunMaintenance(context.Background())
}

func TestNew_OllamaProvider(t *testing.T) {
	cfg := memoryConfig()
	cfg.LLMProvider = "ollama"
	cfg.OllamaChatURL = "http://localhost:11434"
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	a.Close()
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.StorageBackend = config.StoragePostgres
	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "DATABASE_URL")

	cfg = memoryConfig()
	cfg.LLMProvider = "gpt"
	_, err = New(context.Background(), cfg)
	assert.ErrorContains(t, err, "LLM_PROVIDER")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "repo", "api")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "api", line["repo"])

	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
