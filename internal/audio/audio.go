// SPDX-License-Identifier: MIT
/*
Package audio produces fixed-size analysis blocks from a capture device or a
file.

Three Source variants exist:
  - direct capture reads a named device (a loopback-style input such as
    "Stereo Mix") with blocking PortAudio reads
  - loopback capture falls back to the default input and buffers blocks
    delivered by a PortAudio callback, dropping them when the reader falls
    behind
  - file replay decodes WAV, MP3 or Ogg Vorbis and paces blocks at real time

Every variant reduces its channels to one analysis channel. The block
returned by NextBlock is reused by the next call.
*/
package audio

import (
	"context"
	"errors"
	"fmt"

	"ledspectrum/internal/config"
	"ledspectrum/internal/log"
)

var (
	// ErrNoDevice is returned when no capture device matches the request.
	ErrNoDevice = errors.New("no capture device available")

	// ErrEndOfStream is returned by a non-looping file source once the file
	// is exhausted.
	ErrEndOfStream = errors.New("end of audio stream")
)

// Source yields mono sample blocks of a fixed size.
type Source interface {
	// NextBlock blocks until BlockSize samples are available. The returned
	// slice is only valid until the next call.
	NextBlock(ctx context.Context) ([]float64, error)
	SampleRate() float64
	BlockSize() int
	Name() string
	Close() error
}

// Open selects and opens the source described by cfg. Capture backends
// initialize PortAudio and release it on Close.
func Open(cfg *config.AudioConfig) (Source, error) {
	if cfg.Backend == config.BackendFile {
		return OpenFile(cfg.File, FileOptions{
			BlockSize: cfg.BlockSize,
			Mix:       cfg.Mix,
			Loop:      cfg.Loop,
			Realtime:  cfg.Realtime,
		})
	}

	if err := Initialize(); err != nil {
		return nil, err
	}
	src, err := openCapture(cfg)
	if err != nil {
		_ = Terminate()
		return nil, err
	}
	return src, nil
}

func openCapture(cfg *config.AudioConfig) (Source, error) {
	devices, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}
	p, err := choose(cfg, devices, paLibDefaultInputDeviceFunc)
	if err != nil {
		return nil, err
	}
	log.Infof("selected %s capture on %q (%s)", p.backend, p.device.Name, p.reason)

	params, err := streamParams(cfg, p)
	if err != nil {
		return nil, err
	}
	switch p.backend {
	case config.BackendDirect:
		return openDirect(p.device.Name, params, cfg.Mix)
	case config.BackendLoopback:
		return openLoopback(p.device.Name, params, cfg.Mix)
	}
	return nil, fmt.Errorf("unknown capture backend %q", p.backend)
}
