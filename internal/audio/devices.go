// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"io"
	"strings"

	"github.com/gordonklaus/portaudio"

	"ledspectrum/internal/config"
)

// PortAudio entry points, replaced in tests.
var (
	paLibInitialize             = portaudio.Initialize
	paLibTerminate              = portaudio.Terminate
	paLibDevicesFunc            = portaudio.Devices
	paLibDefaultInputDeviceFunc = portaudio.DefaultInputDevice
	paDevicesFunc               = paDevices
)

// Device represents an audio device.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
}

// Initialize sets up the PortAudio subsystem.
// Every successful call must be paired with a Terminate call.
func Initialize() error {
	if err := paLibInitialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate releases one PortAudio initialization.
func Terminate() error {
	if err := paLibTerminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// HostDevices returns all devices PortAudio reports, indexed by ID.
func HostDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
		}
	}
	return devices, nil
}

// InputDevice retrieves the capture device for the given device ID.
// config.MinDeviceID (-1) selects the system default input device.
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	devices, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}

	if deviceID == config.MinDeviceID {
		return paLibDefaultInputDeviceFunc()
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	if devices[deviceID].MaxInputChannels == 0 {
		return nil, fmt.Errorf("device %d (%s) does not support input", deviceID, devices[deviceID].Name)
	}
	return devices[deviceID], nil
}

// ListDevices writes a table of the available devices to w.
func ListDevices(w io.Writer) error {
	devices, err := paDevicesFunc()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Audio Devices\n\n")
	for i, device := range devices {
		in, out := device.MaxInputChannels, device.MaxOutputChannels

		kind := ""
		switch {
		case in > 0 && out > 0:
			kind = "Input/Output"
		case in > 0:
			kind = "Input"
		case out > 0:
			kind = "Output"
		}

		fmt.Fprintf(w, "[%d] %s (%s)\n", i, device.Name, kind)
		fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n", in, out)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)
		fmt.Fprintf(w, "    Latency: Low=%.2fms, High=%.2fms\n\n",
			device.DefaultLowInputLatency.Seconds()*1000,
			device.DefaultHighInputLatency.Seconds()*1000)
	}
	return nil
}

// paDevices returns all PortAudio devices, never a nil slice on success.
func paDevices() ([]*portaudio.DeviceInfo, error) {
	devices, err := paLibDevicesFunc()
	if err != nil {
		return nil, err
	}
	if devices == nil {
		devices = []*portaudio.DeviceInfo{}
	}
	return devices, nil
}

// matchDevice returns the first input-capable device whose name contains
// one of patterns, ignoring case.
func matchDevice(devices []*portaudio.DeviceInfo, patterns []string) (*portaudio.DeviceInfo, bool) {
	for _, d := range devices {
		if d == nil || d.MaxInputChannels == 0 {
			continue
		}
		name := strings.ToLower(d.Name)
		for _, p := range patterns {
			if p != "" && strings.Contains(name, strings.ToLower(p)) {
				return d, true
			}
		}
	}
	return nil, false
}

type plan struct {
	backend string
	device  *portaudio.DeviceInfo
	reason  string
}

// choose picks the capture strategy once at startup. An explicit device
// index wins, then a name match, then the default input.
func choose(cfg *config.AudioConfig, devices []*portaudio.DeviceInfo, defaultInput func() (*portaudio.DeviceInfo, error)) (plan, error) {
	if cfg.InputDevice != config.MinDeviceID && cfg.Backend != config.BackendLoopback {
		id := cfg.InputDevice
		if id < 0 || id >= len(devices) {
			return plan{}, fmt.Errorf("invalid device ID: %d", id)
		}
		if devices[id].MaxInputChannels == 0 {
			return plan{}, fmt.Errorf("device %d (%s) does not support input", id, devices[id].Name)
		}
		return plan{config.BackendDirect, devices[id], fmt.Sprintf("device %d", id)}, nil
	}

	if cfg.Backend != config.BackendLoopback {
		if d, ok := matchDevice(devices, cfg.DevicePatterns); ok {
			return plan{config.BackendDirect, d, "name match"}, nil
		}
		if cfg.Backend == config.BackendDirect {
			return plan{}, fmt.Errorf("%w: no input matches %q", ErrNoDevice, cfg.DevicePatterns)
		}
	}

	d, err := defaultInput()
	if err != nil || d == nil || d.MaxInputChannels == 0 {
		if err == nil {
			err = fmt.Errorf("default input has no channels")
		}
		return plan{}, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	return plan{config.BackendLoopback, d, "default input"}, nil
}

// streamParams derives the input stream parameters for the chosen device.
// Without a configured rate, direct capture runs at the device's own rate
// and loopback capture at config.FallbackRate.
func streamParams(cfg *config.AudioConfig, p plan) (portaudio.StreamParameters, error) {
	device := p.device
	channels := min(cfg.Channels, device.MaxInputChannels)
	if channels < 1 {
		return portaudio.StreamParameters{}, fmt.Errorf("device %s does not support input", device.Name)
	}

	rate := cfg.SampleRate
	if rate == 0 {
		rate = config.FallbackRate
		if p.backend == config.BackendDirect && device.DefaultSampleRate > 0 {
			rate = device.DefaultSampleRate
		}
	}

	latency := device.DefaultHighInputLatency
	if cfg.LowLatency {
		latency = device.DefaultLowInputLatency
	}

	return portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  latency,
		},
		SampleRate:      rate,
		FramesPerBuffer: cfg.BlockSize,
	}, nil
}
