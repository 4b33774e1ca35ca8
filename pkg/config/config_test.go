package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
	URL  string `yaml:"url"`
}

func (s *sample) Validate() error {
	if s.Port == 0 {
		return errors.New("port is required")
	}
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestExpand(t *testing.T) {
	t.Setenv("PANELA_TEST_SET", "value")
	t.Setenv("PANELA_TEST_EMPTY", "")

	assert.Equal(t, "value", Expand("$PANELA_TEST_SET"))
	assert.Equal(t, "value", Expand("${PANELA_TEST_SET:-other}"))
	assert.Equal(t, "other", Expand("${PANELA_TEST_EMPTY:-other}"))
	assert.Equal(t, "http://localhost:8080", Expand("${PANELA_TEST_UNSET:-http://localhost:8080}"))
	assert.Equal(t, "", Expand("${PANELA_TEST_UNSET}"))
}

func TestLoadKeepsDefaults(t *testing.T) {
	t.Setenv("PANELA_TEST_URL", "https://api.example.com")
	path := writeFile(t, "port: 3000\nurl: ${PANELA_TEST_URL}\n")

	cfg := sample{Name: "default"}
	require.NoError(t, Load(path, &cfg))
	assert.Equal(t, sample{Name: "default", Port: 3000, URL: "https://api.example.com"}, cfg)
}

func TestLoadValidates(t *testing.T) {
	path := writeFile(t, "name: x\n")
	err := Load(path, &sample{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port is required")
}

func TestLoadMissingFile(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &sample{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadOptional(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg := sample{Port: 8080}
	require.NoError(t, LoadOptional(missing, &cfg))
	assert.Equal(t, 8080, cfg.Port)

	assert.Error(t, LoadOptional(missing, &sample{}))
}
