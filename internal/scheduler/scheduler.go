// SPDX-License-Identifier: MIT

// Package scheduler drives the LED matrix at a fixed frame rate.
//
// Each tick snapshots the latest analysis frame, encodes it and sends it as
// a single FRAME_BEGIN message. Ticks never queue: a late tick shows the
// most recent frame and the next one is scheduled from its own start time.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"ledspectrum/internal/led"
	"ledspectrum/internal/ledserial"
	"ledspectrum/internal/log"
	"ledspectrum/internal/state"
	"ledspectrum/internal/transport"
)

// ErrTooManyWriteFailures stops Run once the consecutive failure budget is
// spent.
var ErrTooManyWriteFailures = errors.New("too many consecutive serial write failures")

// Config holds the timing and failure policy of a Scheduler.
type Config struct {
	Period           time.Duration // target interval between ticks
	MinSleep         time.Duration // floor on the sleep after a tick
	MaxWriteFailures int           // consecutive failures tolerated; 0 never gives up
}

// Scheduler is the FrameScheduler. Running and Paused are the two states,
// selected by the paused flag in the shared state.
type Scheduler struct {
	cfg    Config
	state  *state.State
	enc    *led.Encoder
	tr     transport.Transport
	logger *slog.Logger

	heights []int
	pix     []byte
	msg     []byte

	failures int
	sent     atomic.Uint64
	dropped  atomic.Uint64
}

// New returns a Scheduler that reads st and writes to tr.
func New(cfg Config, st *state.State, enc *led.Encoder, tr transport.Transport) (*Scheduler, error) {
	if cfg.Period <= 0 {
		return nil, errors.Errorf("frame period must be positive, got %v", cfg.Period)
	}
	if cfg.MinSleep < 0 {
		return nil, errors.Errorf("minimum sleep must not be negative, got %v", cfg.MinSleep)
	}
	if st == nil || enc == nil || tr == nil {
		return nil, errors.New("scheduler needs a state, an encoder and a transport")
	}

	size := enc.FrameSize()
	return &Scheduler{
		cfg:     cfg,
		state:   st,
		enc:     enc,
		tr:      tr,
		logger:  log.With("component", "scheduler"),
		heights: make([]int, 0, enc.Width),
		pix:     make([]byte, 0, size),
		msg:     make([]byte, 0, len(ledserial.FrameMarker)+size),
	}, nil
}

// SleepFor returns how long to wait after a tick that took elapsed.
func SleepFor(period, minSleep, elapsed time.Duration) time.Duration {
	return max(minSleep, period-elapsed)
}

// Tick runs one scheduler step and reports whether a frame was sent. A
// failed write drops the frame; the error is only returned once the failure
// budget is exhausted.
func (s *Scheduler) Tick() (bool, error) {
	if s.state.Paused() {
		return false, nil
	}

	s.heights, _ = s.state.HeightsInto(s.heights)
	s.pix = s.enc.Encode(s.pix, s.heights, s.state.ColorMode())
	s.msg = ledserial.AppendFrame(s.msg[:0], s.pix)

	if err := s.tr.Send(s.msg); err != nil {
		s.failures++
		s.dropped.Add(1)
		s.logger.Warn("frame dropped", "error", err, "consecutive", s.failures)
		if s.cfg.MaxWriteFailures > 0 && s.failures >= s.cfg.MaxWriteFailures {
			return false, errors.Wrapf(ErrTooManyWriteFailures, "%d in a row, last: %v", s.failures, err)
		}
		return false, nil
	}

	s.failures = 0
	s.sent.Add(1)
	return true, nil
}

// Run ticks until ctx is done or the failure budget is spent. On return it
// sends CLEAR and closes the transport, whatever the reason.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting", "period", s.cfg.Period, "min_sleep", s.cfg.MinSleep)
	defer func() {
		s.shutdown()
		s.logger.Info("stopped", "sent", s.sent.Load(), "dropped", s.dropped.Load())
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		start := time.Now()
		if _, err := s.Tick(); err != nil {
			return err
		}
		timer.Reset(SleepFor(s.cfg.Period, s.cfg.MinSleep, time.Since(start)))
	}
}

func (s *Scheduler) shutdown() {
	s.msg = ledserial.AppendClear(s.msg[:0])
	if err := s.tr.Send(s.msg); err != nil {
		s.logger.Warn("failed to clear matrix", "error", err)
	}
	if err := s.tr.Close(); err != nil {
		s.logger.Warn("failed to close transport", "error", err)
	}
}

// Sent returns the number of frames written.
func (s *Scheduler) Sent() uint64 { return s.sent.Load() }

// Dropped returns the number of frames lost to write failures.
func (s *Scheduler) Dropped() uint64 { return s.dropped.Load() }
