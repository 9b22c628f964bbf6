// SPDX-License-Identifier: MIT
package config

import (
	"encoding"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"

	"ledspectrum/internal/fft"
	"ledspectrum/internal/led"
	"ledspectrum/internal/log"
	"ledspectrum/pkg/bitint"
)

// Core configuration constants that define the boundaries and defaults
// for the spectrum pipeline.
const (
	// Matrix
	DefaultWidth    = 8
	DefaultHeight   = 11
	DefaultFPS      = 60
	DefaultMinSleep = 20 * time.Millisecond

	// Serial link
	DefaultSerialPort  = "/dev/ttyUSB0"
	DefaultBaud        = 115200
	DefaultSettleDelay = 2 * time.Second

	// Audio capture
	DefaultBackend    = BackendAuto
	DefaultDeviceID   = MinDeviceID // -1 selects by name pattern or the system default
	DefaultSampleRate = 0           // 0 opens direct capture at the device rate
	FallbackRate      = 44100       // loopback capture rate when sample_rate is 0
	DefaultBlockSize  = 1024
	DefaultChannels   = 2
	DefaultMix        = MixFirst
	DefaultWindow     = "hann"

	// Control surface
	DefaultGain      = 1.0
	DefaultColorMode = "rainbow"

	// Recording
	DefaultBitDepth = 16

	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 2 * time.Second

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents automatic device selection
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per block (power of 2)

	// Error handling configuration
	DefaultMaxConsecutiveWriteFailures = 5 // Max failures before stopping
)

// Capture backends.
const (
	BackendAuto     = "auto"
	BackendDirect   = "direct"
	BackendLoopback = "loopback"
	BackendFile     = "file"
)

// Channel selection for the analysis signal.
const (
	MixFirst = "first"
	MixMean  = "mean"
)

// DefaultDevicePatterns are the capture device names that identify a
// loopback-style "what you hear" input.
var DefaultDevicePatterns = []string{"Stereo Mix", "立体声混音"}

// Config is the complete runtime configuration. Every value is fixed at
// process start; the control values are only the initial state the operator
// adjusts afterwards.
type Config struct {
	LogLevel        string   `yaml:"log_level" toml:"log_level"`               // debug, info, warn or error.
	LogFile         string   `yaml:"log_file" toml:"log_file"`                 // Log destination while the terminal UI is active.
	ShutdownTimeout Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"` // Bound on joining workers at shutdown.

	Matrix    MatrixConfig    `yaml:"matrix" toml:"matrix"`
	Serial    SerialConfig    `yaml:"serial" toml:"serial"`
	Audio     AudioConfig     `yaml:"audio" toml:"audio"`
	Control   ControlConfig   `yaml:"control" toml:"control"`
	Recording RecordingConfig `yaml:"recording" toml:"recording"`
}

// MatrixConfig describes the LED matrix and the frame rate it is driven at.
type MatrixConfig struct {
	Width    int      `yaml:"width" toml:"width"`         // Columns, one per frequency band.
	Height   int      `yaml:"height" toml:"height"`       // Cells per column.
	FPS      int      `yaml:"fps" toml:"fps"`             // Target frame rate.
	MinSleep Duration `yaml:"min_sleep" toml:"min_sleep"` // Minimum pause between frames.
}

// SerialConfig holds the serial link to the LED controller.
type SerialConfig struct {
	Port             string   `yaml:"port" toml:"port"`                             // e.g. /dev/ttyUSB0 or COM3.
	Baud             int      `yaml:"baud" toml:"baud"`                             // Baud rate.
	SettleDelay      Duration `yaml:"settle_delay" toml:"settle_delay"`             // Wait after opening; controllers reset on open.
	MaxWriteFailures int      `yaml:"max_write_failures" toml:"max_write_failures"` // Consecutive failed frames before stopping.
	DryRun           bool     `yaml:"dry_run" toml:"dry_run"`                       // Log frames instead of opening a port.
}

// AudioConfig holds the capture source and analysis settings.
type AudioConfig struct {
	Backend        string   `yaml:"backend" toml:"backend"`                 // auto, direct, loopback or file.
	DevicePatterns []string `yaml:"device_patterns" toml:"device_patterns"` // Name substrings marking a direct capture device.
	InputDevice    int      `yaml:"input_device" toml:"input_device"`       // PortAudio device index (-1 for automatic).
	SampleRate     float64  `yaml:"sample_rate" toml:"sample_rate"`         // Hz; 0 uses the device default.
	BlockSize      int      `yaml:"block_size" toml:"block_size"`           // Samples per analysis block (power of 2).
	Channels       int      `yaml:"channels" toml:"channels"`               // Capture channel count.
	Mix            string   `yaml:"mix" toml:"mix"`                         // first or mean.
	Window         string   `yaml:"window" toml:"window"`                   // Analysis window function.
	LowLatency     bool     `yaml:"low_latency" toml:"low_latency"`         // Request the device's low input latency.
	GateThreshold  float64  `yaml:"gate_threshold" toml:"gate_threshold"`   // Peak below which a block is silence (0 disables).
	File           string   `yaml:"file" toml:"file"`                       // Replay source for the file backend.
	Loop           bool     `yaml:"loop" toml:"loop"`                       // Restart the file at end of stream.
	Realtime       bool     `yaml:"realtime" toml:"realtime"`               // Pace file blocks at the sample rate.
}

// ControlConfig holds the initial control state.
type ControlConfig struct {
	Gain       float64 `yaml:"gain" toml:"gain"`
	ColorMode  string  `yaml:"color_mode" toml:"color_mode"`
	SolidColor [3]int  `yaml:"solid_color" toml:"solid_color"` // RGB for the solid color mode.
}

// RecordingConfig holds settings for recording the analysis channel.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled" toml:"enabled"`
	OutputFile string `yaml:"output_file" toml:"output_file"` // Empty generates recording-<timestamp>.wav.
	BitDepth   int    `yaml:"bit_depth" toml:"bit_depth"`     // 16, 24 or 32.
}

// NewConfig creates a new Config instance with default values.
// This is the base configuration before applying a configuration file,
// environment overrides and command line flags.
func NewConfig() *Config {
	return &Config{
		LogLevel:        DefaultLogLevel,
		ShutdownTimeout: Duration(DefaultShutdownTimeout),
		Matrix: MatrixConfig{
			Width:    DefaultWidth,
			Height:   DefaultHeight,
			FPS:      DefaultFPS,
			MinSleep: Duration(DefaultMinSleep),
		},
		Serial: SerialConfig{
			Port:             DefaultSerialPort,
			Baud:             DefaultBaud,
			SettleDelay:      Duration(DefaultSettleDelay),
			MaxWriteFailures: DefaultMaxConsecutiveWriteFailures,
		},
		Audio: AudioConfig{
			Backend:        DefaultBackend,
			DevicePatterns: append([]string(nil), DefaultDevicePatterns...),
			InputDevice:    DefaultDeviceID,
			SampleRate:     DefaultSampleRate,
			BlockSize:      DefaultBlockSize,
			Channels:       DefaultChannels,
			Mix:            DefaultMix,
			Window:         DefaultWindow,
			Realtime:       true,
		},
		Control: ControlConfig{
			Gain:       DefaultGain,
			ColorMode:  DefaultColorMode,
			SolidColor: [3]int{255, 255, 255},
		},
		Recording: RecordingConfig{
			BitDepth: DefaultBitDepth,
		},
	}
}

// Validate reports the first configuration value the pipeline cannot run with.
func (c *Config) Validate() error {
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return errors.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be positive")
	}

	// Matrix
	if c.Matrix.Width <= 0 || c.Matrix.Height <= 0 {
		return errors.Errorf("matrix size %dx%d must be positive", c.Matrix.Width, c.Matrix.Height)
	}
	if c.Matrix.FPS <= 0 {
		return errors.Errorf("matrix.fps must be positive, got %d", c.Matrix.FPS)
	}
	if c.Matrix.MinSleep < 0 {
		return errors.New("matrix.min_sleep must not be negative")
	}

	// Serial
	if !c.Serial.DryRun && strings.TrimSpace(c.Serial.Port) == "" {
		return errors.New("serial.port must be set unless serial.dry_run is enabled")
	}
	if c.Serial.Baud <= 0 {
		return errors.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if c.Serial.SettleDelay < 0 {
		return errors.New("serial.settle_delay must not be negative")
	}
	if c.Serial.MaxWriteFailures < 1 {
		return errors.Errorf("serial.max_write_failures must be at least 1, got %d", c.Serial.MaxWriteFailures)
	}

	// Audio
	switch c.Audio.Backend {
	case BackendAuto, BackendDirect, BackendLoopback:
	case BackendFile:
		if c.Audio.File == "" {
			return errors.New("audio.file must be set for the file backend")
		}
	default:
		return errors.Errorf("audio.backend %q is not one of auto, direct, loopback, file", c.Audio.Backend)
	}
	if c.Audio.InputDevice < MinDeviceID {
		return errors.Errorf("audio.input_device %d is invalid", c.Audio.InputDevice)
	}
	if c.Audio.SampleRate != 0 && (c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate) {
		return errors.Errorf("audio.sample_rate %.0f outside [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.BlockSize < 2 || c.Audio.BlockSize > MaxBufferFrames || !bitint.IsPowerOfTwo(c.Audio.BlockSize) {
		return errors.Errorf("audio.block_size must be a power of 2 in [2, %d], got %d (try %d)",
			MaxBufferFrames, c.Audio.BlockSize, bitint.NextPowerOfTwo(c.Audio.BlockSize))
	}
	if c.Audio.Channels < 1 {
		return errors.Errorf("audio.channels must be at least 1, got %d", c.Audio.Channels)
	}
	if c.Audio.Mix != MixFirst && c.Audio.Mix != MixMean {
		return errors.Errorf("audio.mix %q is not one of first, mean", c.Audio.Mix)
	}
	if _, err := fft.ParseWindow(c.Audio.Window); err != nil {
		return errors.Wrap(err, "audio.window")
	}
	if c.Audio.GateThreshold < 0 || c.Audio.GateThreshold > 1 {
		return errors.Errorf("audio.gate_threshold must be in [0, 1], got %g", c.Audio.GateThreshold)
	}

	// Control
	if c.Control.Gain <= 0 || math.IsInf(c.Control.Gain, 0) || math.IsNaN(c.Control.Gain) {
		return errors.Errorf("control.gain must be a positive number, got %g", c.Control.Gain)
	}
	if _, err := led.ParseColorMode(c.Control.ColorMode); err != nil {
		return errors.Wrap(err, "control.color_mode")
	}
	for _, v := range c.Control.SolidColor {
		if v < 0 || v > 255 {
			return errors.Errorf("control.solid_color %v has a channel outside [0, 255]", c.Control.SolidColor)
		}
	}

	// Recording
	switch c.Recording.BitDepth {
	case 16, 24, 32:
	default:
		return errors.Errorf("recording.bit_depth must be 16, 24 or 32, got %d", c.Recording.BitDepth)
	}

	return nil
}

// Period is the frame scheduler's target tick interval.
func (m MatrixConfig) Period() time.Duration {
	return time.Second / time.Duration(m.FPS)
}

// Duration is a time.Duration that is written as a string such as "20ms" in
// YAML and TOML files.
type Duration time.Duration

var (
	_ encoding.TextUnmarshaler = (*Duration)(nil)
	_ encoding.TextMarshaler   = (*Duration)(nil)
)

func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }
