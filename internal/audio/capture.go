// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"ledspectrum/internal/log"
)

// inputStream is the subset of *portaudio.Stream the capture sources use.
type inputStream interface {
	Start() error
	Read() error
	Stop() error
	Close() error
}

// openStream is replaced in tests.
var openStream = func(p portaudio.StreamParameters, args ...any) (inputStream, error) {
	return portaudio.OpenStream(p, args...)
}

// captureBase holds what both capture variants share.
type captureBase struct {
	name       string
	sampleRate float64
	blockSize  int
	channels   int
	mix        string
	logger     *slog.Logger

	closeOnce sync.Once
	stream    inputStream
}

func (c *captureBase) SampleRate() float64 { return c.sampleRate }
func (c *captureBase) BlockSize() int      { return c.blockSize }
func (c *captureBase) Name() string        { return c.name }

// Close stops the stream and releases PortAudio. Later calls return nil.
func (c *captureBase) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = errors.Join(c.stream.Stop(), c.stream.Close(), Terminate())
	})
	return err
}

func newCaptureBase(name, backend string, p portaudio.StreamParameters, mix string) captureBase {
	return captureBase{
		name:       name,
		sampleRate: p.SampleRate,
		blockSize:  p.FramesPerBuffer,
		channels:   p.Input.Channels,
		mix:        mix,
		logger:     log.With("component", "audio", "backend", backend, "device", name),
	}
}

// directCapture pulls blocks with blocking stream reads.
type directCapture struct {
	captureBase
	raw      []float32
	block    []float64
	overruns uint64
}

func openDirect(name string, p portaudio.StreamParameters, mix string) (*directCapture, error) {
	c := &directCapture{
		captureBase: newCaptureBase(name, "direct", p, mix),
		raw:         make([]float32, p.FramesPerBuffer*p.Input.Channels),
		block:       make([]float64, p.FramesPerBuffer),
	}
	stream, err := openStream(p, c.raw)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream on %s: %w", name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start input stream on %s: %w", name, err)
	}
	c.stream = stream
	return c, nil
}

// NextBlock reads one block. An input overflow drops samples but still
// yields the block that was read.
func (c *directCapture) NextBlock(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return nil, fmt.Errorf("capture read on %s: %w", c.name, err)
		}
		c.overruns++
		c.logger.Debug("input overflowed, samples dropped", "overruns", c.overruns)
	}
	Downmix(c.block, c.raw, c.channels, c.mix)
	return c.block, nil
}

// loopbackCapture buffers blocks delivered by the stream callback.
type loopbackCapture struct {
	captureBase
	queue    *blockQueue
	reported uint64
}

// loopbackBuffers is how many blocks the callback may run ahead.
const loopbackBuffers = 4

func openLoopback(name string, p portaudio.StreamParameters, mix string) (*loopbackCapture, error) {
	c := &loopbackCapture{
		captureBase: newCaptureBase(name, "loopback", p, mix),
		queue:       newBlockQueue(p.FramesPerBuffer, loopbackBuffers),
	}
	stream, err := openStream(p, c.callback)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream on %s: %w", name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start input stream on %s: %w", name, err)
	}
	c.stream = stream
	return c, nil
}

func (c *loopbackCapture) callback(in []float32) {
	c.queue.push(in, c.channels, c.mix)
}

// NextBlock waits for the next buffered block or ctx.
func (c *loopbackCapture) NextBlock(ctx context.Context) ([]float64, error) {
	block, err := c.queue.pop(ctx)
	if err != nil {
		return nil, err
	}
	if d := c.queue.Dropped(); d != c.reported {
		c.logger.Debug("reader behind, samples dropped", "dropped", d)
		c.reported = d
	}
	return block, nil
}

// blockQueue passes fixed-size blocks from one producer to one consumer
// through a fixed pool of buffers. When no buffer is free the producer drops
// samples instead of waiting.
type blockQueue struct {
	size    int
	free    chan []float64
	full    chan []float64
	dropped atomic.Uint64

	// producer side
	cur []float64
	n   int

	// consumer side
	held []float64
}

func newBlockQueue(size, buffers int) *blockQueue {
	q := &blockQueue{
		size: size,
		free: make(chan []float64, buffers),
		full: make(chan []float64, buffers),
	}
	for range buffers {
		q.free <- make([]float64, size)
	}
	return q
}

func (q *blockQueue) push(in []float32, channels int, mix string) {
	if channels < 1 {
		channels = 1
	}
	frames := len(in) / channels
	for f := 0; f < frames; f++ {
		if q.cur == nil {
			select {
			case b := <-q.free:
				q.cur, q.n = b, 0
			default:
				q.dropped.Add(uint64(frames - f))
				return
			}
		}
		q.cur[q.n] = mixFrame(in[f*channels:(f+1)*channels], mix)
		q.n++
		if q.n == q.size {
			q.full <- q.cur
			q.cur = nil
		}
	}
}

func (q *blockQueue) pop(ctx context.Context) ([]float64, error) {
	if q.held != nil {
		q.free <- q.held
		q.held = nil
	}
	select {
	case b := <-q.full:
		q.held = b
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dropped returns the number of frames discarded so far.
func (q *blockQueue) Dropped() uint64 { return q.dropped.Load() }
