package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := Default()
	assert.Equal(t, "wgpu", s.RenderAPI)
	assert.Equal(t, 1280, s.WinWidth)
	assert.Equal(t, 720, s.WinHeight)
	assert.True(t, s.PollingMode)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := Default()
	s.WindowsTitle = "pulsecore demo"
	s.WinWidth = 1920
	s.WinHeight = 1080

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, Save(path, s))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s.WindowsTitle, loaded.WindowsTitle)
	assert.Equal(t, s.WinWidth, loaded.WinWidth)
	assert.Equal(t, s.WinHeight, loaded.WinHeight)
}

func TestLoadPartialDocumentOverridesOnlyNamedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("windows_title: Custom Title\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Custom Title", s.WindowsTitle)
	assert.Equal(t, 1280, s.WinWidth)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
