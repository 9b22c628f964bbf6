// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync/atomic"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var errNotRecording = errors.New("not recording")

// Recorder writes the analysis channel to a mono PCM WAV file.
type Recorder struct {
	path        string
	isRecording atomic.Bool
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *goaudio.IntBuffer // reused for format conversion
	scale       float64
}

// RecordingFileName returns the default output name for a recording
// started at t.
func RecordingFileName(t time.Time) string {
	return "recording-" + t.Format("20060102-150405") + ".wav"
}

// StartRecording creates filename and begins a recording at sampleRate.
// bitDepth is 16, 24 or 32.
func StartRecording(filename string, sampleRate, bitDepth, blockSize int) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	r := &Recorder{
		path:       filename,
		outputFile: file,
		wavEncoder: wav.NewEncoder(file, sampleRate, bitDepth, 1, 1),
		sampleBuf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
			Data:           make([]int, blockSize),
			SourceBitDepth: bitDepth,
		},
		scale: float64(int64(1)<<(bitDepth-1) - 1),
	}
	r.isRecording.Store(true)
	return r, nil
}

// Path returns the output file name.
func (r *Recorder) Path() string { return r.path }

// Recording reports whether Write still accepts samples.
func (r *Recorder) Recording() bool { return r.isRecording.Load() }

// Write appends block, clipped to [-1, 1].
func (r *Recorder) Write(block []float64) error {
	if !r.isRecording.Load() {
		return errNotRecording
	}
	if cap(r.sampleBuf.Data) < len(block) {
		r.sampleBuf.Data = make([]int, len(block))
	}
	data := r.sampleBuf.Data[:len(block)]
	for i, s := range block {
		if math.IsNaN(s) {
			s = 0
		}
		data[i] = int(math.Round(max(-1, min(1, s)) * r.scale))
	}
	r.sampleBuf.Data = data

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}
	return nil
}

// Stop finalizes the WAV header and closes the file. Later calls return nil.
func (r *Recorder) Stop() error {
	if !r.isRecording.CompareAndSwap(true, false) {
		return nil
	}

	var errs []error
	if err := r.wavEncoder.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.outputFile.Close(); err != nil {
		errs = append(errs, err)
	}
	r.wavEncoder, r.outputFile = nil, nil
	return errors.Join(errs...)
}
