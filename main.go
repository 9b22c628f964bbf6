// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"ledspectrum/cmd"
	"ledspectrum/internal/audio"
	"ledspectrum/internal/config"
	"ledspectrum/internal/led"
	"ledspectrum/internal/ledserial"
	"ledspectrum/internal/log"
	"ledspectrum/internal/pipeline"
	"ledspectrum/internal/state"
	"ledspectrum/internal/transport"
	"ledspectrum/internal/tui"
	"ledspectrum/pkg/build"
)

// main drives the spectrum display in three phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load the configuration
//   - Execute one-off commands if requested
//   - Open the audio source and the serial link
//
// 2. Concurrent Phase (Hot Path):
//   - Capture and analyze audio blocks
//   - Send frames at the configured rate
//   - Run the control UI, or wait for a signal when headless
//
// 3. Shutdown Phase (Cold Path):
//   - Blank the matrix and close the serial link
//   - Stop recording if active
//   - Release the audio source
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds carry no ldflags; report and continue.
	if err := build.Initialize(); err != nil {
		log.Debugf("build info: %v", err)
	}

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if !opts.Run {
		return
	}
	cfg := opts.Config

	if level, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.Command != "" {
		if err := executeCommand(ctx, opts); err != nil {
			log.Fatal(err)
		}
		return
	}

	st, err := state.New(cfg.Matrix.Width, cfg.Control.Gain, colorMode(cfg.Control.ColorMode))
	if err != nil {
		log.Fatal(err)
	}

	src, err := audio.Open(&cfg.Audio)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("audio source %s: %.0f Hz, %d samples per block", src.Name(), src.SampleRate(), src.BlockSize())

	tr, err := pipeline.OpenTransport(ctx, cfg.Serial)
	if err != nil {
		src.Close()
		log.Fatal(err)
	}

	var rec *audio.Recorder
	if cfg.Recording.Enabled {
		name := cfg.Recording.OutputFile
		if name == "" {
			name = audio.RecordingFileName(time.Now())
		}
		rec, err = audio.StartRecording(name, int(src.SampleRate()), cfg.Recording.BitDepth, src.BlockSize())
		if err != nil {
			tr.Close()
			src.Close()
			log.Fatal(err)
		}
	}

	p, err := pipeline.New(cfg, pipeline.Deps{
		Source:    src,
		Transport: tr,
		State:     st,
		Recorder:  rec,
	})
	if err != nil {
		tr.Close()
		src.Close()
		if rec != nil {
			rec.Stop()
		}
		log.Fatal(err)
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	interactive := !opts.Headless &&
		term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		err = runInteractive(ctx, cfg, p)
	} else {
		log.Infof("running headless on %s, press Ctrl+C to stop", cfg.Serial.Port)
		err = p.Run(ctx)
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if rec != nil {
		fmt.Printf("\nRecording saved to: %s\n", rec.Path())
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

// runInteractive runs the pipeline behind the control UI. Quitting the UI
// cancels the pipeline; a pipeline that stops on its own closes the UI.
func runInteractive(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline) error {
	if err := redirectLogs(cfg.LogFile); err != nil {
		return err
	}
	defer log.SetOutput(os.Stderr)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.NewControlModel(p.State(), p.Encoder(), p.Scheduler(), cfg.Matrix.Period(), cancel)
	prog := tui.NewControlProgram(model)

	done := make(chan error, 1)
	go func() {
		err := p.Run(ctx)
		prog.Send(tui.DoneMsg{Err: err})
		done <- err
	}()

	if _, err := prog.Run(); err != nil {
		cancel()
		<-done
		return err
	}
	cancel()
	return <-done
}

// redirectLogs keeps log lines off the alternate screen.
func redirectLogs(path string) error {
	if path == "" {
		log.SetOutput(io.Discard)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(f)
	return nil
}

// colorMode parses the configured mode; unknown names fall back to rainbow.
func colorMode(name string) led.ColorMode {
	m, err := led.ParseColorMode(name)
	if err != nil {
		log.Warnf("%v, using %s", err, m)
	}
	return m
}

// executeCommand handles one-off commands that don't run the pipeline.
func executeCommand(ctx context.Context, opts *cmd.Options) error {
	switch opts.Command {
	case cmd.CommandList:
		return listDevices(opts.Interactive)
	case cmd.CommandPorts:
		return listPorts()
	case cmd.CommandClear, cmd.CommandFill, cmd.CommandPix:
		return sendCommand(ctx, opts.Config.Serial, opts.Message)
	default:
		return fmt.Errorf("unknown command %q", opts.Command)
	}
}

func listDevices(interactive bool) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if !interactive {
		return audio.ListDevices(os.Stdout)
	}
	d, ok, err := tui.PickDevice(audio.HostDevices)
	if err != nil || !ok {
		return err
	}
	fmt.Printf("--device %d  # %s\n", d.ID, d.Name)
	return nil
}

func listPorts() error {
	ports, err := transport.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, p := range ports {
		if p.IsUSB {
			fmt.Printf("%s\tUSB %s:%s %s %s\n", p.Name, p.VID, p.PID, p.Product, p.Serial)
			continue
		}
		fmt.Println(p.Name)
	}
	return nil
}

func sendCommand(ctx context.Context, cfg config.SerialConfig, msg ledserial.Command) error {
	tr, err := pipeline.OpenTransport(ctx, cfg)
	if err != nil {
		return err
	}
	sendErr := tr.Send(msg.AppendTo(nil))
	return errors.Join(sendErr, tr.Close())
}
