// SPDX-License-Identifier: MIT

// Package pipeline wires capture, analysis, shared state and the frame
// scheduler together and runs them as concurrent workers.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"ledspectrum/internal/analysis"
	"ledspectrum/internal/audio"
	"ledspectrum/internal/config"
	"ledspectrum/internal/fft"
	"ledspectrum/internal/led"
	"ledspectrum/internal/log"
	"ledspectrum/internal/scheduler"
	"ledspectrum/internal/state"
	"ledspectrum/internal/transport"
)

// ErrShutdownTimeout is returned by Run when the workers do not stop within
// the configured shutdown timeout.
var ErrShutdownTimeout = errors.New("workers did not stop before the shutdown timeout")

// Deps are the opened resources a Pipeline takes ownership of.
type Deps struct {
	Source    audio.Source
	Transport transport.Transport
	State     *state.State
	Recorder  *audio.Recorder // optional
}

// Pipeline runs the capture, scheduler and controller listener workers.
type Pipeline struct {
	cfg      *config.Config
	source   audio.Source
	analyzer *analysis.Analyzer
	gate     *audio.Gate
	recorder *audio.Recorder
	state    *state.State
	sched    *scheduler.Scheduler
	enc      *led.Encoder
	listener transport.LineListener
	timeout  time.Duration
	logger   *slog.Logger
}

// New builds a Pipeline over deps. The analyzer uses the source's actual
// sample rate and block size.
func New(cfg *config.Config, deps Deps) (*Pipeline, error) {
	if deps.Source == nil || deps.Transport == nil || deps.State == nil {
		return nil, errors.New("pipeline needs a source, a transport and a state")
	}

	window, err := fft.ParseWindow(cfg.Audio.Window)
	if err != nil {
		return nil, errors.Wrap(err, "invalid analysis window")
	}
	analyzer, err := analysis.NewAnalyzer(analysis.Config{
		Width:      cfg.Matrix.Width,
		Height:     cfg.Matrix.Height,
		BlockSize:  deps.Source.BlockSize(),
		SampleRate: deps.Source.SampleRate(),
		Window:     window,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create analyzer")
	}

	enc := led.NewEncoder(cfg.Matrix.Width, cfg.Matrix.Height)
	sc := cfg.Control.SolidColor
	enc.Solid = led.RGB{R: uint8(sc[0]), G: uint8(sc[1]), B: uint8(sc[2])}

	sched, err := scheduler.New(scheduler.Config{
		Period:           cfg.Matrix.Period(),
		MinSleep:         cfg.Matrix.MinSleep.Std(),
		MaxWriteFailures: cfg.Serial.MaxWriteFailures,
	}, deps.State, enc, deps.Transport)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scheduler")
	}

	p := &Pipeline{
		cfg:      cfg,
		source:   deps.Source,
		analyzer: analyzer,
		gate:     audio.NewGate(cfg.Audio.GateThreshold),
		recorder: deps.Recorder,
		state:    deps.State,
		sched:    sched,
		enc:      enc,
		timeout:  cfg.ShutdownTimeout.Std(),
		logger:   log.With("component", "pipeline"),
	}
	if l, ok := deps.Transport.(transport.LineListener); ok {
		p.listener = l
	}
	return p, nil
}

// State returns the shared state the workers publish to.
func (p *Pipeline) State() *state.State { return p.state }

// Scheduler returns the frame scheduler.
func (p *Pipeline) Scheduler() *scheduler.Scheduler { return p.sched }

// Encoder returns the frame encoder the scheduler renders with.
func (p *Pipeline) Encoder() *led.Encoder { return p.enc }

// Analyzer returns the spectrum analyzer.
func (p *Pipeline) Analyzer() *analysis.Analyzer { return p.analyzer }

// Run starts the workers and blocks until ctx is done, the source ends or a
// worker fails. Once shutdown begins the workers get the shutdown timeout to
// return; ErrShutdownTimeout is returned if they do not.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.capture(gctx, cancel) })
	g.Go(func() error { return p.sched.Run(gctx) })
	if p.listener != nil {
		g.Go(func() error { return p.listen(gctx) })
	}

	p.logger.Info("running",
		"source", p.source.Name(),
		"sample_rate", p.source.SampleRate(),
		"block_size", p.source.BlockSize(),
		"matrix", [2]int{p.cfg.Matrix.Width, p.cfg.Matrix.Height},
		"fps", p.cfg.Matrix.FPS)

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-gctx.Done():
	}

	p.logger.Debug("shutting down", "timeout", p.timeout)
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		p.logger.Error("workers still running after shutdown timeout", "timeout", p.timeout)
		return ErrShutdownTimeout
	}
}

// capture is the capture-and-analyze worker. It owns the source and the
// recorder. End of stream stops the whole pipeline without an error.
func (p *Pipeline) capture(ctx context.Context, stop context.CancelFunc) error {
	logger := p.logger.With("worker", "capture")
	defer func() {
		if err := p.source.Close(); err != nil {
			logger.Warn("failed to close audio source", "error", err)
		}
		p.stopRecording(logger)
	}()

	for {
		block, err := p.source.NextBlock(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, audio.ErrEndOfStream) {
				logger.Info("end of audio stream")
				stop()
				return nil
			}
			return errors.Wrap(err, "audio capture failed")
		}

		if p.recorder != nil && p.recorder.Recording() {
			if err := p.recorder.Write(block); err != nil {
				logger.Error("recording stopped", "error", err)
				p.stopRecording(logger)
			}
		}

		p.gate.Apply(block)
		p.state.Publish(p.analyzer.Analyze(block, p.state.Gain()))
	}
}

func (p *Pipeline) stopRecording(logger *slog.Logger) {
	if p.recorder == nil || !p.recorder.Recording() {
		return
	}
	if err := p.recorder.Stop(); err != nil {
		logger.Warn("failed to finalize recording", "file", p.recorder.Path(), "error", err)
		return
	}
	logger.Info("recording saved", "file", p.recorder.Path())
}

// listen logs what the controller sends back.
func (p *Pipeline) listen(ctx context.Context) error {
	logger := p.logger.With("worker", "listener")
	err := p.listener.Listen(ctx, func(line string) {
		logger.Debug("controller", "line", line)
	})
	if err != nil {
		// A lost back channel does not stop the pipeline.
		logger.Warn("controller listener stopped", "error", err)
	}
	return nil
}
