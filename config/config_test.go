package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "islandcompare.yml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvHost, "")
	t.Setenv(EnvKey, "")
	t.Setenv(EnvPollInterval, "")
	// keep the user's real ~/.islandcompare.yml out of the way
	t.Setenv("HOME", t.TempDir())
}

func TestResolveDefaults(t *testing.T) {
	clearEnv(t)

	conf, err := Resolve(Overrides{Key: "secret"})
	require.NoError(t, err)
	assert.Equal(t, DefaultHost, conf.Host)
	assert.Equal(t, "secret", conf.Key)
	assert.Equal(t, DefaultPollInterval, conf.PollInterval)
}

func TestResolveMissingKey(t *testing.T) {
	clearEnv(t)

	_, err := Resolve(Overrides{})
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestResolvePrecedence(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "host: https://file.example/\nkey: filekey\npoll_interval: 30s\ns3_region: us-west-2\n")

	conf, err := Resolve(Overrides{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, "https://file.example/", conf.Host)
	assert.Equal(t, "filekey", conf.Key)
	assert.Equal(t, 30*time.Second, conf.PollInterval)
	assert.Equal(t, "us-west-2", conf.S3Region)

	t.Setenv(EnvHost, "https://env.example/")
	t.Setenv(EnvPollInterval, "5s")
	conf, err = Resolve(Overrides{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, "https://env.example/", conf.Host)
	assert.Equal(t, 5*time.Second, conf.PollInterval)

	conf, err = Resolve(Overrides{ConfigFile: path, Host: "https://flag.example/", Key: "flagkey", PollInterval: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "https://flag.example/", conf.Host)
	assert.Equal(t, "flagkey", conf.Key)
	assert.Equal(t, time.Second, conf.PollInterval)
}

func TestLoadFile(t *testing.T) {
	conf, err := LoadFile(filepath.Join(t.TempDir(), "absent.yml"), false)
	require.NoError(t, err)
	assert.Equal(t, &Config{}, conf)

	_, err = LoadFile(filepath.Join(t.TempDir(), "absent.yml"), true)
	assert.Error(t, err)

	_, err = LoadFile(writeConfig(t, "hots: typo\n"), true)
	assert.Error(t, err, "unknown keys are rejected")
}

func TestResolveBadEnvInterval(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPollInterval, "soon")

	_, err := Resolve(Overrides{Key: "secret"})
	assert.Error(t, err)
}
