package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, "8092", c.HTTP.Port)
	assert.Equal(t, 20*time.Second, c.HTTP.ReadHeaderTimeout)
	assert.Equal(t, 12, c.Checkout.Hour)
	assert.InDelta(t, 0.1, c.LateFee.NightlyFraction, 1e-9)
	assert.True(t, c.LateFee.CapAtNightlyRate)
	assert.EqualValues(t, 10, c.Invoice.CorrectionTolerance)
	assert.True(t, c.Metrics.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
app:
  timezone: UTC
http:
  port: "9000"
  read_header_timeout: 5s
latefee:
  hourly_rate: 50000
  max_fee: 300000
redis:
  draft_ttl: 2h
`)

	t.Setenv("HOTEL_HTTP_PORT", "9100")
	t.Setenv("HOTEL_LOG_LEVEL", "debug")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", c.HTTP.Port)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 5*time.Second, c.HTTP.ReadHeaderTimeout)
	assert.EqualValues(t, 50000, c.LateFee.HourlyRate)
	assert.EqualValues(t, 300000, c.LateFee.MaxFee)
	assert.Equal(t, 2*time.Hour, c.Redis.DraftTTL)

	loc, err := c.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "storage:\n  driver: postgres\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "storage:\n  driver: sqlite\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "checkout:\n  hour: 25\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "app:\n  timezone: Mars/Olympus\n"))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
