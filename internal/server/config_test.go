package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, 30*24*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.Advertise)
	assert.Equal(t, DefaultSessionSecret, cfg.secret())
	assert.Equal(t, "0.0.0.0:5000", cfg.Addr())
}

func TestParseConfig_Overrides(t *testing.T) {
	cfg, err := ParseConfig(map[string]string{
		"PORT":                    "8080",
		"CLMSETUP_SESSION_SECRET": "s3cret",
		"CLMSETUP_SESSION_TTL":    "2h",
		"CLMSETUP_ADVERTISE":      "false",
		"CLMSETUP_INSTANCE":       "Bay 1",
	})
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "s3cret", cfg.secret())
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.Advertise)
	assert.Equal(t, "Bay 1", cfg.Instance)
}

func TestParseConfig_Invalid(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	tests := []struct {
		name    string
		environ map[string]string
	}{
		{"bad port", map[string]string{"PORT": "70000"}},
		{"port not a number", map[string]string{"PORT": "abc"}},
		{"zero ttl", map[string]string{"CLMSETUP_SESSION_TTL": "0s"}},
		{"zero burst", map[string]string{"CLMSETUP_AUTH_BURST": "0"}},
		{"missing static dir", map[string]string{"CLMSETUP_STATIC_DIR": "/does/not/exist"}},
		{"static dir is a file", map[string]string{"CLMSETUP_STATIC_DIR": file}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig(tt.environ)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CLMSETUP_INSTANCE=Garage Bay\n"), 0600))
	t.Setenv("CLMSETUP_INSTANCE", "")
	os.Unsetenv("CLMSETUP_INSTANCE")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Garage Bay", cfg.Instance)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}
