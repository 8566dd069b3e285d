package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv makes sure variables from the outer environment do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envNames {
		t.Setenv(env, "")
		require.NoError(t, os.Unsetenv(env))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("FTP_IP", "10.0.0.5")
	t.Setenv("FTP_USER", "images")
	t.Setenv("FTP_PASS", "s3cret")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "ftp", cfg.FTP.Scheme)
	assert.Equal(t, "10.0.0.5", cfg.FTP.Host)
	assert.Equal(t, 21, cfg.FTP.Port)
	assert.Equal(t, "images", cfg.FTP.User)
	assert.Equal(t, "s3cret", cfg.FTP.Password)
	assert.Equal(t, "./", cfg.FTP.Root)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, strategyDownload, cfg.Strategy)
	assert.Equal(t, 1024, cfg.ChunkSize)
	assert.Equal(t, "/storage", cfg.StorageDir)
	assert.False(t, cfg.Log.Debug)
	assert.Equal(t, 10, cfg.Log.MaxSizeMB)
	assert.Zero(t, cfg.FTP.ListRetries)
	assert.Equal(t, 30*time.Minute, cfg.Device.CopyTimeout)
	assert.Equal(t, 30*time.Minute, time.Duration(cfg.Device.MaxLoops)*cliPollInterval)
	assert.False(t, cfg.FTP.InsecureHost)
	assert.False(t, cfg.Device.InsecureHost)
}

func TestLoadConfigInsecureHostKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("FTP_IP", "ftp.lab")
	t.Setenv("FTP_INSECURE_HOST_KEY", "true")
	t.Setenv("DEVICE_INSECURE_HOST_KEY", "1")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.True(t, cfg.FTP.InsecureHost)
	assert.True(t, cfg.Device.InsecureHost)
}

func TestLoadConfigHistoricalEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("FTP_IP", "ftp.lab")
	t.Setenv("FTP_POLL", "5")
	t.Setenv("DEBUG", "True")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.True(t, cfg.Log.Debug)
}

func TestLoadConfigSFTPDefaultPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("FTP_IP", "ftp.lab")
	t.Setenv("FTP_SCHEME", "SFTP")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "sftp", cfg.FTP.Scheme)
	assert.Equal(t, 22, cfg.FTP.Port)
	assert.Equal(t, "sftp://ftp.lab:22", cfg.FTP.URL().String())
}

func TestLoadConfigFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "onlooker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ftp:
  host: file-host
  user: images
  poll: 2
transfer:
  strategy: device
device:
  host: 10.1.1.1
  user: admin
  vrf: Mgmt-vrf
  dialect: nxos
  copy_timeout: 10m
`), 0o644))
	t.Setenv("FTP_IP", "env-host")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env-host", cfg.FTP.Host)
	assert.Equal(t, 2*time.Minute, cfg.PollInterval)
	assert.Equal(t, strategyDevice, cfg.Strategy)
	assert.Equal(t, "10.1.1.1:22", cfg.Device.Addr())
	assert.Equal(t, "Mgmt-vrf", cfg.Device.VRF)
	assert.Equal(t, "nxos", cfg.Device.Dialect)
	assert.Equal(t, 10*time.Minute, cfg.Device.CopyTimeout)
}

func TestLoadConfigMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	clearEnv(t)
	t.Setenv("FTP_POLL", "0")
	t.Setenv("TRANSFER_STRATEGY", "device")
	t.Setenv("DEVICE_DIALECT", "junos")
	t.Setenv("TRANSFER_CHUNK_SIZE", "0")

	_, err := LoadConfig("")
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "FTP_IP is required")
	assert.Contains(t, msg, "FTP_POLL must be at least 1 minute")
	assert.Contains(t, msg, "chunk_size")
	assert.Contains(t, msg, "device.host is required")
	assert.Contains(t, msg, "device.user is required")
	assert.Contains(t, msg, `unknown device dialect "junos"`)
}

func TestValidateStrategies(t *testing.T) {
	base := func() *Config {
		return &Config{
			FTP:          FTPConfig{Scheme: "ftp", Host: "h"},
			PollInterval: time.Minute,
			ChunkSize:    1024,
			StorageDir:   "/storage",
			Strategy:     strategyDownload,
			Device:       DeviceConfig{Dialect: "ios"},
		}
	}

	require.NoError(t, base().Validate())

	c := base()
	c.Strategy = "carrier-pigeon"
	assert.ErrorContains(t, c.Validate(), "unknown transfer.strategy")

	c = base()
	c.Strategy = strategyS3
	assert.ErrorContains(t, c.Validate(), "s3.bucket is required")
	c.S3.Bucket = "images"
	assert.NoError(t, c.Validate())

	c = base()
	c.Strategy = strategyDevice
	c.FTP.Scheme = "sftp"
	c.Device.Host, c.Device.User = "sw1", "admin"
	assert.ErrorContains(t, c.Validate(), "needs an ftp source")
}
