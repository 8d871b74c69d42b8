package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("CONFIG_ENV", "nonexistent")

	cfg, err := Load()
	req.NoError(err)
	req.Equal("release", cfg.Mode)
	req.Equal(8080, cfg.Port)
	req.Equal(10*time.Minute, cfg.SweepInterval)
	req.Equal(time.Hour, cfg.StaleAfter)
	req.Equal(5*time.Second, cfg.StoreTimeout)
	req.Equal(10, cfg.JoinLimit)
	req.Equal(10*time.Second, cfg.JoinWindow)
}

func TestLoad_UnparsableConfig(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	t.Chdir(dir)

	req.NoError(os.MkdirAll("config", 0o755))
	req.NoError(os.WriteFile(
		filepath.Join("config", "config.broken.yaml"),
		[]byte("port: not-a-number\n"),
		0o644,
	))
	t.Setenv("CONFIG_ENV", "broken")

	_, err := Load()
	req.Error(err)
}
