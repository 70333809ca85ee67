// Package config implements Settings, the closed set of configuration
// options the core reads at startup, loaded from a YAML document.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings holds every recognised configuration option. Unknown keys in
// the source document are ignored.
type Settings struct {
	RenderAPI          string  `yaml:"render_api"`
	WinX               int     `yaml:"win_x"`
	WinY               int     `yaml:"win_y"`
	WinWidth           int     `yaml:"win_width"`
	WinHeight          int     `yaml:"win_height"`
	FullScreen         bool    `yaml:"full_screen"`
	WindowsTitle       string  `yaml:"windows_title"`
	BPP                int     `yaml:"bpp"`
	DepthBufferDepth   int     `yaml:"depth_buffer_depth"`
	StencilBufferDepth int     `yaml:"stencil_buffer_depth"`
	ClearColor         [4]float32 `yaml:"clear_color"`
	PollingMode        bool    `yaml:"polling_mode"`
	DefaultFont        string  `yaml:"default_font"`
	RenderMode         string  `yaml:"render_mode"`
}

// Default returns a Settings populated with the engine's out-of-the-box
// values, matching the teacher's window/renderer defaults.
func Default() *Settings {
	return &Settings{
		RenderAPI:    "wgpu",
		WinX:         0,
		WinY:         0,
		WinWidth:     1280,
		WinHeight:    720,
		FullScreen:   false,
		WindowsTitle: "Default Window Title",
		BPP:          32,
		ClearColor:   [4]float32{0, 0, 0, 1},
		PollingMode:  true,
		RenderMode:   "forward",
	}
}

// Load reads and unmarshals the YAML document at path over a Default
// Settings value, so a partial document only overrides what it names.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings %q: %w", path, err)
	}
	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse settings %q: %w", path, err)
	}
	return s, nil
}

// Save marshals s as YAML to path.
func Save(path string, s *Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings %q: %w", path, err)
	}
	return nil
}
