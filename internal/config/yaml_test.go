// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if cfg.Matrix.Width != DefaultWidth || cfg.Serial.Baud != DefaultBaud {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadConfig_SearchPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, "ledspectrum.yaml"), []byte("matrix:\n  fps: 30\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Matrix.FPS != 30 {
		t.Errorf("fps = %d, want 30 from ledspectrum.yaml", cfg.Matrix.FPS)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, "config.yaml", ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected unmarshal error, got %v", err)
	}
}

func TestLoadConfig_UnsupportedExtension(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, "config.json", "{}")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported config format") {
		t.Errorf("expected unsupported format error, got %v", err)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, "config.yaml", `
log_level: debug
shutdown_timeout: 3s
matrix:
  width: 16
  height: 8
  fps: 30
  min_sleep: 10ms
serial:
  port: COM3
  max_write_failures: 2
audio:
  backend: loopback
  device_patterns: ["Monitor of"]
  block_size: 2048
  mix: mean
control:
  gain: 0.5
  color_mode: gradient
  solid_color: [255, 0, 0]
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q, want debug", cfg.LogLevel)
	}
	if cfg.ShutdownTimeout.Std() != 3*time.Second {
		t.Errorf("shutdown_timeout = %v, want 3s", cfg.ShutdownTimeout.Std())
	}
	if cfg.Matrix.Width != 16 || cfg.Matrix.Height != 8 || cfg.Matrix.FPS != 30 {
		t.Errorf("matrix = %+v", cfg.Matrix)
	}
	if cfg.Matrix.MinSleep.Std() != 10*time.Millisecond {
		t.Errorf("min_sleep = %v, want 10ms", cfg.Matrix.MinSleep.Std())
	}
	if cfg.Serial.Port != "COM3" || cfg.Serial.MaxWriteFailures != 2 {
		t.Errorf("serial = %+v", cfg.Serial)
	}
	if cfg.Serial.Baud != DefaultBaud {
		t.Errorf("baud = %d, want default %d to survive", cfg.Serial.Baud, DefaultBaud)
	}
	if cfg.Audio.Backend != BackendLoopback || cfg.Audio.BlockSize != 2048 || cfg.Audio.Mix != MixMean {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if len(cfg.Audio.DevicePatterns) != 1 || cfg.Audio.DevicePatterns[0] != "Monitor of" {
		t.Errorf("device_patterns = %v", cfg.Audio.DevicePatterns)
	}
	if cfg.Control.Gain != 0.5 || cfg.Control.ColorMode != "gradient" || cfg.Control.SolidColor != [3]int{255, 0, 0} {
		t.Errorf("control = %+v", cfg.Control)
	}
}

func TestLoadConfig_TOML(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, "config.toml", `
log_level = "warn"

[matrix]
width = 32
fps = 25
min_sleep = "15ms"

[serial]
port = "/dev/ttyACM0"
baud = 57600

[audio]
backend = "file"
file = "song.ogg"
loop = true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("log_level = %q, want warn", cfg.LogLevel)
	}
	if cfg.Matrix.Width != 32 || cfg.Matrix.FPS != 25 {
		t.Errorf("matrix = %+v", cfg.Matrix)
	}
	if cfg.Matrix.MinSleep.Std() != 15*time.Millisecond {
		t.Errorf("min_sleep = %v, want 15ms", cfg.Matrix.MinSleep.Std())
	}
	if cfg.Serial.Port != "/dev/ttyACM0" || cfg.Serial.Baud != 57600 {
		t.Errorf("serial = %+v", cfg.Serial)
	}
	if cfg.Audio.Backend != BackendFile || cfg.Audio.File != "song.ogg" || !cfg.Audio.Loop {
		t.Errorf("audio = %+v", cfg.Audio)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENV_LOG_LEVEL", "error")
	t.Setenv("ENV_SERIAL_PORT", "/dev/ttyS1")
	t.Setenv("ENV_SERIAL_BAUD", "9600")
	t.Setenv("ENV_AUDIO_BACKEND", "Direct")
	t.Setenv("ENV_DRY_RUN", "true")

	path := writeTempConfig(t, "config.yaml", "serial:\n  port: /dev/ttyUSB3\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.LogLevel != "error" {
		t.Errorf("log_level = %q, want error", cfg.LogLevel)
	}
	if cfg.Serial.Port != "/dev/ttyS1" {
		t.Errorf("port = %q, env must win over file", cfg.Serial.Port)
	}
	if cfg.Serial.Baud != 9600 {
		t.Errorf("baud = %d, want 9600", cfg.Serial.Baud)
	}
	if cfg.Audio.Backend != BackendDirect {
		t.Errorf("backend = %q, want direct", cfg.Audio.Backend)
	}
	if !cfg.Serial.DryRun {
		t.Error("dry_run should be enabled from env")
	}
}

func TestLoadConfig_EnvInvalid(t *testing.T) {
	t.Setenv("ENV_SERIAL_BAUD", "fast")

	_, err := LoadConfig(writeTempConfig(t, "config.yaml", ""))
	if err == nil || !strings.Contains(err.Error(), "ENV_SERIAL_BAUD") {
		t.Errorf("expected ENV_SERIAL_BAUD error, got %v", err)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("ENV_SERIAL_PORT", "/dev/ttyS1")
	path := writeTempConfig(t, "config.yaml", "matrix:\n  fps: 30\n")

	cfg, err := LoadConfig(path,
		func(c *Config) { c.Serial.Port = "COM4" },
		func(c *Config) { c.Matrix.FPS *= 2 },
	)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Serial.Port != "COM4" {
		t.Errorf("port = %q, overrides must win over env", cfg.Serial.Port)
	}
	if cfg.Matrix.FPS != 60 {
		t.Errorf("fps = %d, want 60", cfg.Matrix.FPS)
	}

	_, err = LoadConfig(path, func(c *Config) { c.Matrix.Width = 0 })
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("overrides must be validated, got %v", err)
	}
}
