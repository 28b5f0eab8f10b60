package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"CONFIG_FILE", "HTTP_ADDR", "DB_PATH", "NATS_URL", "S3_KEY_PREFIX"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "./data/sketchparty.db", cfg.Database.Path)
	assert.Equal(t, "", cfg.Relay.URL)
	assert.Equal(t, "drawings", cfg.S3.KeyPrefix)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("DB_PATH", "/tmp/other.db")
	t.Setenv("NATS_URL", "nats://broker:4222")
	t.Setenv("S3_PUBLIC_BUCKET", "party")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, "nats://broker:4222", cfg.Relay.URL)
	assert.Equal(t, "party", cfg.S3.Bucket)
}

func TestLoadYAMLFileWithEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
http:
  addr: ":7070"
relay:
  url: "nats://from-file:4222"
s3:
  bucket: file-bucket
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("NATS_URL", "nats://from-env:4222")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "file-bucket", cfg.S3.Bucket)
	// Environment wins over the file.
	assert.Equal(t, "nats://from-env:4222", cfg.Relay.URL)
}

func TestLoadBadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: [not a mapping"), 0o644))

	t.Setenv("CONFIG_FILE", path)
	_, err := Load()
	assert.Error(t, err)
}
