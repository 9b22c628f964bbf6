// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"ledspectrum/internal/config"
	"ledspectrum/internal/log"
	"ledspectrum/internal/transport"
)

// openSerial is replaced in tests.
var openSerial = func(name string, baud int) (transport.Transport, error) {
	return transport.OpenSerial(name, baud)
}

// OpenTransport opens the LED link described by cfg. After opening a real
// port it waits cfg.SettleDelay for the controller to come out of reset.
func OpenTransport(ctx context.Context, cfg config.SerialConfig) (transport.Transport, error) {
	if cfg.DryRun {
		return transport.NewLoggingTransport(), nil
	}

	tr, err := openSerial(cfg.Port, cfg.Baud)
	if err != nil {
		return nil, err
	}
	log.Infof("opened serial port %s at %d baud", cfg.Port, cfg.Baud)

	if d := cfg.SettleDelay.Std(); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			_ = tr.Close()
			return nil, errors.Wrap(ctx.Err(), "interrupted while waiting for the controller")
		}
	}
	return tr, nil
}
