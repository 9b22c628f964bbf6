// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ledspectrum/internal/config"
	"ledspectrum/internal/ledserial"
)

func TestParseArgs_Defaults(t *testing.T) {
	opts, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("ParseArgs error: %v", err)
	}
	if !opts.Run || opts.Command != "" {
		t.Fatalf("Run=%v Command=%q, want run of the pipeline", opts.Run, opts.Command)
	}
	cfg := opts.Config
	if cfg.Matrix.FPS != config.DefaultFPS || cfg.Serial.Baud != config.DefaultBaud {
		t.Errorf("FPS=%d Baud=%d, want defaults", cfg.Matrix.FPS, cfg.Serial.Baud)
	}
	if cfg.Audio.Backend != config.DefaultBackend {
		t.Errorf("Backend = %q, want %q", cfg.Audio.Backend, config.DefaultBackend)
	}
}

func TestParseArgs_Flags(t *testing.T) {
	opts, err := ParseArgs([]string{
		"--port", "COM3", "--fps", "30", "-g", "2.5", "--color", "gradient",
		"--width", "16", "--dry-run", "--headless", "-v",
	})
	if err != nil {
		t.Fatalf("ParseArgs error: %v", err)
	}
	cfg := opts.Config
	if cfg.Serial.Port != "COM3" || !cfg.Serial.DryRun {
		t.Errorf("serial = %+v", cfg.Serial)
	}
	if cfg.Matrix.FPS != 30 || cfg.Matrix.Width != 16 {
		t.Errorf("matrix = %+v", cfg.Matrix)
	}
	if cfg.Control.Gain != 2.5 || cfg.Control.ColorMode != "gradient" {
		t.Errorf("control = %+v", cfg.Control)
	}
	if !opts.Headless || cfg.LogLevel != "debug" {
		t.Errorf("Headless=%v LogLevel=%q", opts.Headless, cfg.LogLevel)
	}
}

func TestParseArgs_FileImpliesBackend(t *testing.T) {
	opts, err := ParseArgs([]string{"--file", "song.ogg", "--loop"})
	if err != nil {
		t.Fatalf("ParseArgs error: %v", err)
	}
	if opts.Config.Audio.Backend != config.BackendFile || opts.Config.Audio.File != "song.ogg" || !opts.Config.Audio.Loop {
		t.Errorf("audio = %+v", opts.Config.Audio)
	}

	// An explicit backend wins and then fails validation without a file.
	if _, err := ParseArgs([]string{"--backend", "file"}); err == nil {
		t.Error("expected error for file backend without a file")
	}
}

func TestParseArgs_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledspectrum.yaml")
	data := "matrix:\n  fps: 20\n  height: 9\nserial:\n  port: /dev/ttyACM1\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := ParseArgs([]string{"--config", path, "--fps", "40"})
	if err != nil {
		t.Fatalf("ParseArgs error: %v", err)
	}
	cfg := opts.Config
	if cfg.Matrix.FPS != 40 {
		t.Errorf("FPS = %d, want the flag value 40", cfg.Matrix.FPS)
	}
	if cfg.Matrix.Height != 9 || cfg.Serial.Port != "/dev/ttyACM1" {
		t.Errorf("file values lost: height=%d port=%q", cfg.Matrix.Height, cfg.Serial.Port)
	}
}

func TestParseArgs_Commands(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		command string
		message ledserial.Command
		wantErr string
	}{
		{"list", []string{"list"}, CommandList, nil, ""},
		{"ports", []string{"ports"}, CommandPorts, nil, ""},
		{"clear", []string{"clear"}, CommandClear, ledserial.ClearCommand{}, ""},
		{"fill", []string{"fill", "255", "0", "16"}, CommandFill, ledserial.FillCommand{R: 255, B: 16}, ""},
		{"pix", []string{"pix", "3", "10", "1", "2", "3"}, CommandPix,
			ledserial.PixelCommand{X: 3, Y: 10, R: 1, G: 2, B: 3}, ""},
		{"pix large coordinate", []string{"pix", "300", "0", "0", "0", "0"}, CommandPix,
			ledserial.PixelCommand{X: 300}, ""},
		{"fill out of range", []string{"fill", "256", "0", "0"}, "", nil, "out of range"},
		{"fill negative", []string{"fill", "--", "0", "-1", "0"}, "", nil, "out of range"},
		{"fill not a number", []string{"fill", "red", "0", "0"}, "", nil, "not a number"},
		{"fill missing args", []string{"fill", "1", "2"}, "", nil, "accepts 3 arg(s)"},
		{"clear extra args", []string{"clear", "now"}, "", nil, "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := ParseArgs(tt.args)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseArgs error: %v", err)
			}
			if opts.Command != tt.command {
				t.Errorf("Command = %q, want %q", opts.Command, tt.command)
			}
			if opts.Message != tt.message {
				t.Errorf("Message = %#v, want %#v", opts.Message, tt.message)
			}
		})
	}
}

func TestParseArgs_ListInteractive(t *testing.T) {
	opts, err := ParseArgs([]string{"list", "-i"})
	if err != nil {
		t.Fatalf("ParseArgs error: %v", err)
	}
	if opts.Command != CommandList || !opts.Interactive {
		t.Errorf("Command=%q Interactive=%v", opts.Command, opts.Interactive)
	}
}

func TestParseArgs_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero width", []string{"--width", "0"}},
		{"bad block size", []string{"--block-size", "1000"}},
		{"bad color", []string{"--color", "plaid"}},
		{"unknown flag", []string{"--nope"}},
		{"positional arg", []string{"extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseArgs(tt.args); err == nil {
				t.Errorf("ParseArgs(%v) succeeded, want error", tt.args)
			}
		})
	}
}
