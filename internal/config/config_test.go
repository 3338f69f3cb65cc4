package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	req := require.New(t)
	path := writeConfig(t, `
app:
  env: test
  jwt_secret: s
mongo:
  uri: mongodb://localhost:27017
  database: carebridge
`)

	cfg, err := Load(path)

	req.NoError(err)
	req.Equal(8080, cfg.App.Port)
	req.Equal("messages", cfg.Mongo.MessagesCollection)
	req.Equal("appointments", cfg.Mongo.AppointmentsCollection)
	req.Equal(25*time.Second, cfg.PingInterval)
	req.Equal(10*time.Second, cfg.WriteDeadline)
	req.Equal(60*time.Second, cfg.ReadDeadline)
	req.Equal(int64(64*1024), cfg.WS.MaxMessageSizeBytes)
	req.Equal(24*time.Hour, cfg.PresenceTTL)
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	req := require.New(t)
	path := writeConfig(t, `
app:
  port: 9000
ws:
  ping_interval_seconds: 5
redis:
  presence_ttl_seconds: 60
`)

	cfg, err := Load(path)

	req.NoError(err)
	req.Equal(9000, cfg.App.Port)
	req.Equal(5*time.Second, cfg.PingInterval)
	req.Equal(time.Minute, cfg.PresenceTTL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
