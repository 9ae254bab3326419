package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FACE_COOLDOWN", "")
	t.Setenv("STORE_BACKEND", "")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, 2*time.Minute, cfg.FaceCooldown)
	assert.Equal(t, 128, cfg.FaceDescriptorDim)
	assert.True(t, cfg.LiveFeed)
	assert.False(t, cfg.GeofenceEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FACE_COOLDOWN", "90s")
	t.Setenv("GYM_LATITUDE", "11.0168")
	t.Setenv("GYM_LONGITUDE", "76.9558")
	t.Setenv("GYM_MAX_DISTANCE_METERS", "250")
	t.Setenv("LIVE_FEED", "false")
	t.Setenv("RATE_LIMIT_PER_MIN", "not-a-number")

	cfg := Load()
	assert.Equal(t, 90*time.Second, cfg.FaceCooldown)
	assert.InDelta(t, 11.0168, cfg.GymLatitude, 1e-9)
	assert.True(t, cfg.GeofenceEnabled())
	assert.False(t, cfg.LiveFeed)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := App{GymTimezone: "Mars/Olympus_Mons"}
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestCORSOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	assert.Equal(t, []string{"*"}, Load().CORSOrigins)

	t.Setenv("CORS_ALLOWED_ORIGINS", "https://gym.example.com, http://localhost:5173,")
	assert.Equal(t, []string{"https://gym.example.com", "http://localhost:5173"}, Load().CORSOrigins)
}
