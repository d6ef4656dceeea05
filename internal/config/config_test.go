package config

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.False(t, cfg.AgendaEnabled)
	assert.False(t, cfg.AgendaDisableJobProcessing)
	assert.Equal(t, StoreMongo, cfg.AgendaStore)
	assert.Equal(t, "agenda_jobs", cfg.AgendaCollection)
	assert.Equal(t, 5*time.Second, cfg.AgendaProcessEvery)
	assert.Equal(t, 10*time.Minute, cfg.AgendaDefaultLockLifetime)
	assert.Equal(t, "1 day", cfg.AgendaPurgeInterval)
	assert.Equal(t, 7*24*time.Hour, cfg.AgendaPurgeRetention)
	assert.False(t, cfg.RenderEnabled)
	assert.Equal(t, "$.html", cfg.RenderResponsePath)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("AGENDA_ENABLED", "true")
	t.Setenv("AGENDA_DISABLE_JOB_PROCESSING", "1")
	t.Setenv("AGENDA_STORE", "Memory")
	t.Setenv("AGENDA_PROCESS_EVERY_SEC", "2")
	t.Setenv("AGENDA_MAX_CONCURRENCY", "not-a-number")
	t.Setenv("RENDER_ENABLED", "true")
	t.Setenv("RENDER_SERVER_URL", "http://vite:5173")

	cfg := Load()

	assert.True(t, cfg.AgendaEnabled)
	assert.True(t, cfg.AgendaDisableJobProcessing)
	assert.Equal(t, StoreMemory, cfg.AgendaStore)
	assert.Equal(t, 2*time.Second, cfg.AgendaProcessEvery)
	assert.Equal(t, 20, cfg.AgendaMaxConcurrency)
	assert.True(t, cfg.RenderEnabled)
	assert.Equal(t, "http://vite:5173", cfg.RenderServerURL)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{ServiceName: "agenda", LogLevel: "warn", LogFormat: "json"}, &buf)

	logger.Info("dropped")
	logger.Warn("kept", "job", "reports.build")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "agenda", entry["service"])
	assert.Equal(t, "reports.build", entry["job"])
}
