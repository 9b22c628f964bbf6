// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"

	"ledspectrum/internal/log"
)

// FileOptions configures a file replay source.
type FileOptions struct {
	BlockSize int
	Mix       string
	Loop      bool // restart at end of file instead of returning ErrEndOfStream
	Realtime  bool // pace blocks at BlockSize/SampleRate
}

// decoders return interleaved samples, the channel count and the rate.
var decoders = map[string]func(io.ReadSeeker) ([]float32, int, int, error){
	".wav":  decodeWAV,
	".wave": decodeWAV,
	".mp3":  decodeMP3,
	".ogg":  decodeOgg,
	".oga":  decodeOgg,
}

// fileSource replays a decoded file as analysis blocks. Nothing is played.
type fileSource struct {
	name       string
	samples    []float64
	sampleRate float64
	opts       FileOptions

	pos    int
	block  []float64
	ticker *time.Ticker
}

// OpenFile decodes a .wav, .mp3 or .ogg file into memory.
func OpenFile(path string, opts FileOptions) (Source, error) {
	if opts.BlockSize < 1 {
		return nil, fmt.Errorf("invalid block size %d", opts.BlockSize)
	}

	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported audio file format %q", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	interleaved, channels, rate, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if channels < 1 || rate <= 0 || len(interleaved) < channels {
		return nil, fmt.Errorf("%s contains no audio", path)
	}

	samples := make([]float64, len(interleaved)/channels)
	Downmix(samples, interleaved, channels, opts.Mix)

	log.With("component", "audio", "backend", "file").Info("decoded audio file",
		"file", path, "rate", rate, "channels", channels,
		"duration", time.Duration(float64(len(samples))/float64(rate)*float64(time.Second)))

	return &fileSource{
		name:       filepath.Base(path),
		samples:    samples,
		sampleRate: float64(rate),
		opts:       opts,
		block:      make([]float64, opts.BlockSize),
	}, nil
}

func (s *fileSource) SampleRate() float64 { return s.sampleRate }
func (s *fileSource) BlockSize() int      { return s.opts.BlockSize }
func (s *fileSource) Name() string        { return s.name }

// NextBlock returns the next block, zero padded at the end of the file.
func (s *fileSource) NextBlock(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.samples) {
		if !s.opts.Loop {
			return nil, ErrEndOfStream
		}
		s.pos = 0
	}

	if s.opts.Realtime {
		if s.ticker == nil {
			period := time.Duration(float64(s.opts.BlockSize) / s.sampleRate * float64(time.Second))
			s.ticker = time.NewTicker(period)
		} else {
			select {
			case <-s.ticker.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	n := copy(s.block, s.samples[s.pos:])
	clear(s.block[n:])
	s.pos += n
	return s.block, nil
}

func (s *fileSource) Close() error {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	return nil
}

func decodeWAV(r io.ReadSeeker) ([]float32, int, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, 0, errors.New("invalid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, err
	}

	depth := int(dec.BitDepth)
	if depth < 8 || depth > 32 {
		return nil, 0, 0, fmt.Errorf("unsupported bit depth %d", depth)
	}
	scale := float32(int64(1) << (depth - 1))
	offset := 0
	if depth == 8 {
		offset = 128 // 8-bit PCM is unsigned
	}

	out := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = float32(v-offset) / scale
	}
	return out, int(dec.NumChans), int(dec.SampleRate), nil
}

// decodeMP3 reads the 16-bit little-endian stereo stream go-mp3 produces.
func decodeMP3(r io.ReadSeeker) ([]float32, int, int, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, 0, err
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, 0, err
	}
	out := make([]float32, len(raw)/2)
	for i := range out {
		v := int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		out[i] = float32(v) / 32768.0
	}
	return out, 2, dec.SampleRate(), nil
}

func decodeOgg(r io.ReadSeeker) ([]float32, int, int, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, 0, 0, err
	}
	var (
		out []float32
		buf = make([]float32, 4096)
	)
	for {
		n, err := dec.Read(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, 0, err
		}
	}
	return out, dec.Channels(), dec.SampleRate(), nil
}
