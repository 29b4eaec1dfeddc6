package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hperssn/promille/internal/bac"
)

func TestDurationUnmarshalText(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		want        time.Duration
		expectError bool
	}{
		{"Hours", "12h", 12 * time.Hour, false},
		{"Compound", "1h30m", 90 * time.Minute, false},
		{"Negative", "-5m", 0, true},
		{"Garbage", "soon", 0, true},
		{"Empty string", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.input))
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration)
		})
	}
}

func TestLoadFromBytes(t *testing.T) {
	data := []byte(`
[server]
addr = ":9090"

[storage]
sqlite_path = "/var/lib/promille/sessions.db"
retry_base = "50ms"

[sessions]
inactivity_threshold = "8h"
sweep_interval = "30m"

[model]
legal_limit = 0.02
series_step = "5m"

[model.thresholds]
caution = 0.01
warning = 0.03
danger = 0.06
critical = 0.12
`)

	cfg, err := LoadFromBytes(data)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "/var/lib/promille/sessions.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 50*time.Millisecond, cfg.Storage.RetryBase.Duration)
	assert.Equal(t, 8*time.Hour, cfg.Sessions.InactivityThreshold.Duration)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.SweepInterval.Duration)

	cal := cfg.Calibration()
	assert.Equal(t, 0.02, cal.LegalLimit)
	assert.Equal(t, 5*time.Minute, cal.SeriesStep)
	assert.Equal(t, bac.Thresholds{Caution: 0.01, Warning: 0.03, Danger: 0.06, Critical: 0.12}, cal.Thresholds)
	assert.Equal(t, bac.DefaultCalibration().EliminationRate, cal.EliminationRate)
}

func TestSetDefault(t *testing.T) {
	var cfg Config
	cfg.SetDefault()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "promille.db", cfg.Storage.SQLitePath)
	assert.Empty(t, cfg.Storage.PostgresDSN)
	assert.Equal(t, 3, cfg.Storage.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Storage.PersistTimeout.Duration)
	assert.Equal(t, 12*time.Hour, cfg.Sessions.InactivityThreshold.Duration)
	assert.Equal(t, time.Hour, cfg.Sessions.SweepInterval.Duration)
	assert.Equal(t, bac.DefaultCalibration(), cfg.Calibration())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"Thresholds out of order", "[model.thresholds]\ncaution = 0.09\n"},
		{"Sweep slower than inactivity", "[sessions]\ninactivity_threshold = \"30m\"\nsweep_interval = \"1h\"\n"},
		{"Bad duration", "[sessions]\nsweep_interval = \"often\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.toml))
			assert.Error(t, err)
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promille.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\naddr = \":7000\"\n"), 0o644))

	t.Setenv("PROMILLE_ADDR", ":7100")
	t.Setenv("PROMILLE_INACTIVITY", "6h")
	t.Setenv("PROMILLE_MAX_RETRIES", "not-a-number")
	t.Setenv("DATABASE_URL", "postgres://promille@localhost/promille?sslmode=disable")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7100", cfg.Server.Addr)
	assert.Equal(t, 6*time.Hour, cfg.Sessions.InactivityThreshold.Duration)
	assert.Equal(t, 3, cfg.Storage.MaxRetries)
	assert.Equal(t, "postgres://promille@localhost/promille?sslmode=disable", cfg.Storage.PostgresDSN)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadInvalidEnvDuration(t *testing.T) {
	t.Setenv("PROMILLE_SWEEP_INTERVAL", "whenever")
	_, err := Load("")
	assert.Error(t, err)
}
