package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorelens/internal/config"
)

func TestHealthService_ReadinessCheck(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	broken := config.DefaultTables()
	broken.Lexicon["empty"] = nil

	tests := []struct {
		name       string
		tables     *config.Tables
		paths      *config.Paths
		wantStatus string
		notReady   string
	}{
		{"ready", config.DefaultTables(), &config.Paths{OutputDir: t.TempDir()}, "ready", ""},
		{"export disabled", config.DefaultTables(), nil, "ready", ""},
		{"no tables", nil, nil, "not_ready", "tables"},
		{"invalid tables", broken, nil, "not_ready", "tables"},
		{"output not writable", config.DefaultTables(), &config.Paths{OutputDir: filepath.Join(blocker, "out")}, "not_ready", "output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := NewHealthService("1.0.0", "", tt.tables, tt.paths, nil)
			status := hs.ReadinessCheck(context.Background())

			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Equal(t, "1.0.0", status.Version)
			if tt.notReady != "" {
				assert.Equal(t, "not_ready", status.Services[tt.notReady].Status)
				assert.NotEmpty(t, status.Services[tt.notReady].Message)
			}
		})
	}
}

func TestHealthService_Probes(t *testing.T) {
	hs := NewHealthService("1.2.3", "2026-01-01", config.DefaultTables(), nil, nil)
	ctx := context.Background()

	assert.Equal(t, "ok", hs.HealthCheck(ctx).Status)

	live := hs.LivenessCheck(ctx)
	assert.Equal(t, "alive", live.Status)
	assert.Contains(t, live.Runtime, "goroutines")

	v := hs.Version()
	assert.Equal(t, "1.2.3", v["version"])
	assert.Equal(t, "2026-01-01", v["build_time"])
}
