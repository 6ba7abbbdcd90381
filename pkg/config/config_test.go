package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, []int{1, 2, 3}, cfg.Academic.AllowedYears)
	assert.Equal(t, []int{1, 2}, cfg.Academic.AllowedSemesters)
	assert.Equal(t, int64(20*1024*1024), cfg.Blob.MaxUploadSizeBytes)
	assert.Equal(t, BlobProviderLocal, cfg.Blob.Provider)
	assert.Equal(t, time.Duration(0), cfg.Lifecycle.SweepInterval)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, []string{"https://edu-packet.vercel.app"}, cfg.CORS.AllowedOrigins)
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("MAX_UPLOAD_SIZE", "5MB")
	t.Setenv("ALLOWED_YEARS", "1, 2")
	t.Setenv("LIFECYCLE_SWEEP_INTERVAL", "6h")
	t.Setenv("BLOB_PROVIDER", "Cloudinary")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(5*1024*1024), cfg.Blob.MaxUploadSizeBytes)
	assert.Equal(t, []int{1, 2}, cfg.Academic.AllowedYears)
	assert.Equal(t, 6*time.Hour, cfg.Lifecycle.SweepInterval)
	assert.Equal(t, BlobProviderCloudinary, cfg.Blob.Provider)
}

func TestLoadRejectsMalformedYears(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ALLOWED_YEARS", "one,two")

	_, err := Load()
	require.Error(t, err)
}

func TestDatabaseURL(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "edu", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/edu?sslmode=disable", cfg.URL())
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
