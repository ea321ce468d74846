// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"image/color"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/user/camlab/pkg/orchestrator"
	"github.com/user/camlab/pkg/pipeline"
	"github.com/user/camlab/pkg/ports"
	"github.com/user/camlab/pkg/stages/capture"
)

// Config represents the full configuration for camlab.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Camera   CameraConfig  `yaml:"camera"`
	Render   RenderConfig  `yaml:"render"`
	Writer   WriterConfig  `yaml:"writer"`
	Preview  PreviewConfig `yaml:"preview"`
	Debug    DebugConfig   `yaml:"debug"`
}

// CameraConfig represents the capture session settings.
type CameraConfig struct {
	Preset       string   `yaml:"preset"`
	PixelFormat  string   `yaml:"pixel_format"`
	Orientation  string   `yaml:"orientation"`
	FrameRate    float64  `yaml:"frame_rate"`
	Position     string   `yaml:"position"`
	Devices      []string `yaml:"devices"`
	RequireAudio bool     `yaml:"require_audio"`
	PoolSize     int      `yaml:"pool_size"`
}

// RenderConfig represents the compositor settings.
type RenderConfig struct {
	Effect      string `yaml:"effect"`
	ClearColor  string `yaml:"clear_color"`
	MaxTextures int    `yaml:"max_textures"`
	MaxInFlight int    `yaml:"max_in_flight"`
}

// WriterConfig represents the recording settings.
type WriterConfig struct {
	OutputDir       string `yaml:"output_dir"`
	FileName        string `yaml:"file_name"`
	Quality         int    `yaml:"quality"`
	QueueDepth      int    `yaml:"queue_depth"`
	FragmentSamples int    `yaml:"fragment_samples"`
}

// PreviewConfig represents the WebSocket preview surface.
type PreviewConfig struct {
	Listen  string `yaml:"listen"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Quality int    `yaml:"quality"`
}

// DebugConfig represents debug output.
type DebugConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		Camera: CameraConfig{
			Preset:       string(capture.PresetHD1920x1080),
			PixelFormat:  "bgra",
			Orientation:  "portrait",
			FrameRate:    30,
			Position:     "back",
			Devices:      []string{"dual", "wide"},
			RequireAudio: true,
			PoolSize:     6,
		},
		Render: RenderConfig{
			Effect:      "none",
			ClearColor:  "#000000",
			MaxTextures: 4,
			MaxInFlight: 3,
		},
		Writer: WriterConfig{
			OutputDir:       ".",
			FileName:        "record.mov",
			Quality:         capture.DefaultJPEGQuality,
			QueueDepth:      4,
			FragmentSamples: 30,
		},
		Preview: PreviewConfig{
			Width:   360,
			Height:  640,
			Quality: 70,
		},
		Debug: DebugConfig{
			Dir: "./debug",
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// ParseColor parses a hex color string ("#rrggbb" or "#rrggbbaa") to color.Color.
func ParseColor(hex string) color.Color {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.Black
	}

	c := color.RGBA{A: 255}
	c.R = hexByte(hex[0], hex[1])
	c.G = hexByte(hex[2], hex[3])
	c.B = hexByte(hex[4], hex[5])
	if len(hex) == 8 {
		c.A = hexByte(hex[6], hex[7])
	}
	return c
}

func hexByte(hi, lo byte) uint8 {
	return hexValue(hi)<<4 | hexValue(lo)
}

func hexValue(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}

// Level returns the configured log level.
func (c Config) Level() ports.LogLevel {
	return ports.ParseLogLevel(strings.ToLower(c.LogLevel))
}

// Effect returns the configured effect.
func (c Config) Effect() (pipeline.Effect, error) {
	return pipeline.ParseEffect(c.Render.Effect)
}

// DeviceTypes returns the configured device fallback order.
func (c CameraConfig) DeviceTypes() ([]ports.DeviceType, error) {
	types := make([]ports.DeviceType, 0, len(c.Devices))
	for _, d := range c.Devices {
		switch strings.ToLower(d) {
		case "dual":
			types = append(types, ports.DeviceDualCamera)
		case "wide":
			types = append(types, ports.DeviceWideAngleCamera)
		default:
			return nil, fmt.Errorf("unknown camera device %q", d)
		}
	}
	return types, nil
}

// ToPipelineConfig converts Config to orchestrator.Config.
func (c Config) ToPipelineConfig() (orchestrator.Config, error) {
	cfg := orchestrator.DefaultConfig()

	preset, err := capture.ParsePreset(c.Camera.Preset)
	if err != nil {
		return cfg, err
	}
	format, err := pipeline.ParsePixelFormat(c.Camera.PixelFormat)
	if err != nil {
		return cfg, err
	}
	devices, err := c.Camera.DeviceTypes()
	if err != nil {
		return cfg, err
	}
	effect, err := c.Effect()
	if err != nil {
		return cfg, err
	}

	cfg.Capture.Preset = preset
	cfg.Capture.PixelFormat = format
	cfg.Capture.FrameRate = c.Camera.FrameRate
	cfg.Capture.RequireAudio = c.Camera.RequireAudio
	if len(devices) > 0 {
		cfg.Capture.DeviceTypes = devices
	}
	switch strings.ToLower(c.Camera.Orientation) {
	case "", "portrait":
		cfg.Capture.Orientation = ports.OrientationPortrait
	case "landscape":
		cfg.Capture.Orientation = ports.OrientationLandscape
	default:
		return cfg, fmt.Errorf("unknown orientation %q", c.Camera.Orientation)
	}
	switch strings.ToLower(c.Camera.Position) {
	case "", "back":
		cfg.Capture.Position = ports.PositionBack
	case "front":
		cfg.Capture.Position = ports.PositionFront
	default:
		return cfg, fmt.Errorf("unknown camera position %q", c.Camera.Position)
	}

	cfg.Textures.MaxTextures = c.Render.MaxTextures
	if c.Render.ClearColor != "" {
		cfg.Render.ClearColor = ParseColor(c.Render.ClearColor)
	}
	cfg.Effect = effect

	cfg.Writer.OutputDir = c.Writer.OutputDir
	cfg.Writer.FileName = c.Writer.FileName
	cfg.Quality = c.Writer.Quality

	return cfg, nil
}
