package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("JWT_SECRET_KEY", "jwt-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, time.UTC, cfg.App.Timezone)
	assert.Equal(t, 4370, cfg.Device.Port)
	assert.Equal(t, 10*time.Second, cfg.Device.ConnectTimeout)
	assert.Equal(t, 25*time.Second, cfg.Device.FetchTimeout)
	assert.Equal(t, 3, cfg.Device.BindAttempts)
	assert.Equal(t, "09:00", cfg.Metrics.DefaultCutoff.String())
	assert.Equal(t, 15, cfg.Metrics.GraceMinutes)
	assert.InDelta(t, 0.6, cfg.Metrics.Weights.Attendance, 1e-9)
	assert.InDelta(t, 0.25, cfg.Metrics.Weights.Punctuality, 1e-9)
	assert.InDelta(t, 0.15, cfg.Metrics.Weights.Consistency, 1e-9)
	assert.Equal(t, 95.0, cfg.Metrics.Tiers.Excellent)
	assert.Zero(t, cfg.Sync.Interval)
	assert.Empty(t, cfg.Sync.Targets)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_TIMEZONE", "Asia/Jakarta")
	t.Setenv("SYNC_INTERVAL", "15m")
	t.Setenv("SYNC_DEVICES", "10.0.0.5@C1, 10.0.0.6:5005@C2")
	t.Setenv("METRICS_WEIGHTS", "0.7,0.3,0")
	t.Setenv("METRICS_DEFAULT_CUTOFF", "08:30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Asia/Jakarta", cfg.App.Timezone.String())
	assert.Equal(t, 15*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, []SyncTarget{
		{Address: "10.0.0.5", Port: 4370, CompanyID: "C1"},
		{Address: "10.0.0.6", Port: 5005, CompanyID: "C2"},
	}, cfg.Sync.Targets)
	assert.InDelta(t, 0.7, cfg.Metrics.Weights.Attendance, 1e-9)
	assert.Equal(t, "08:30", cfg.Metrics.DefaultCutoff.String())
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"missing jwt secret", "JWT_SECRET_KEY", ""},
		{"bad timezone", "APP_TIMEZONE", "Mars/Olympus"},
		{"bad cutoff", "METRICS_DEFAULT_CUTOFF", "9am"},
		{"two weights", "METRICS_WEIGHTS", "0.5,0.5"},
		{"negative weight", "METRICS_WEIGHTS", "1,-0.5,0.5"},
		{"zero weights", "METRICS_WEIGHTS", "0,0,0"},
		{"bad device", "SYNC_DEVICES", "10.0.0.5"},
		{"bad duration", "DEVICE_FETCH_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseSyncTarget(t *testing.T) {
	target, err := ParseSyncTarget("terminal.local:4371@C9", 4370)
	require.NoError(t, err)
	assert.Equal(t, SyncTarget{Address: "terminal.local", Port: 4371, CompanyID: "C9"}, target)

	_, err = ParseSyncTarget("10.0.0.5:99999@C1", 4370)
	assert.Error(t, err)

	_, err = ParseSyncTarget("@C1", 4370)
	assert.Error(t, err)
}
