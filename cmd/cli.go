// SPDX-License-Identifier: MIT

// Package cmd parses the command line into Options.
package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"ledspectrum/internal/config"
	"ledspectrum/internal/ledserial"
	"ledspectrum/pkg/build"
)

// One-off commands. An empty Command runs the pipeline.
const (
	CommandList  = "list"
	CommandPorts = "ports"
	CommandClear = "clear"
	CommandFill  = "fill"
	CommandPix   = "pix"
)

// Options is the parsed command line.
type Options struct {
	Command     string
	Message     ledserial.Command // for clear, fill and pix
	Run         bool              // false when only help or version was shown
	Headless    bool
	Interactive bool // list: pick a device in the terminal UI
	Verbose     bool
	Config      *config.Config
}

// flagValues receives the persistent flags. Only flags set on the command
// line are applied on top of the configuration file.
type flagValues struct {
	configPath string
	logLevel   string
	port       string
	baud       int
	dryRun     bool
	device     int
	backend    string
	file       string
	loop       bool
	sampleRate float64
	blockSize  int
	channels   int
	lowLatency bool
	gate       float64
	fps        int
	width      int
	height     int
	gain       float64
	color      string
	record     bool
	output     string
}

// ParseArgs parses args (without the program name) and loads the
// configuration they select.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	opts := &Options{}
	var (
		v   flagValues
		ran *cobra.Command
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ran = cmd
			return nil
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	if args == nil {
		args = []string{} // nil makes cobra read os.Args
	}
	rootCmd.SetArgs(args)

	oneOff := func(name string, cmd *cobra.Command, msg func(vs []int) ledserial.Command) {
		cmd.RunE = func(c *cobra.Command, args []string) error {
			ran = c
			opts.Command = name
			if msg != nil {
				vs, err := parseValues(name, args)
				if err != nil {
					return err
				}
				opts.Message = msg(vs)
			}
			return nil
		}
		rootCmd.AddCommand(cmd)
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
	}
	listCmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false,
		"Pick a capture device in the terminal UI")
	oneOff(CommandList, listCmd, nil)

	oneOff(CommandPorts, &cobra.Command{
		Use:   "ports",
		Short: "List available serial ports",
		Args:  cobra.NoArgs,
	}, nil)

	oneOff(CommandClear, &cobra.Command{
		Use:   "clear",
		Short: "Blank the LED matrix",
		Args:  cobra.NoArgs,
	}, func([]int) ledserial.Command { return ledserial.ClearCommand{} })

	oneOff(CommandFill, &cobra.Command{
		Use:   "fill R G B",
		Short: "Fill the LED matrix with one color",
		Args:  cobra.ExactArgs(3),
	}, func(vs []int) ledserial.Command {
		return ledserial.FillCommand{R: uint8(vs[0]), G: uint8(vs[1]), B: uint8(vs[2])}
	})

	oneOff(CommandPix, &cobra.Command{
		Use:   "pix X Y R G B",
		Short: "Set a single LED",
		Args:  cobra.ExactArgs(5),
	}, func(vs []int) ledserial.Command {
		return ledserial.PixelCommand{X: vs[0], Y: vs[1], R: uint8(vs[2]), G: uint8(vs[3]), B: uint8(vs[4])}
	})

	pf := rootCmd.PersistentFlags()

	// General
	pf.StringVar(&v.configPath, "config", "",
		"Configuration file (.yaml, .yml or .toml). Default searches ledspectrum.{yaml,yml,toml}")
	pf.StringVar(&v.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn or error")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "Show verbose output (same as --log-level debug)")
	pf.BoolVar(&opts.Headless, "headless", false, "Run without the terminal UI")

	// Serial link
	pf.StringVarP(&v.port, "port", "p", config.DefaultSerialPort, "Serial port of the LED controller")
	pf.IntVar(&v.baud, "baud", config.DefaultBaud, "Serial baud rate")
	pf.BoolVar(&v.dryRun, "dry-run", false, "Log frames instead of opening the serial port")

	// Audio source
	pf.IntVarP(&v.device, "device", "d", config.DefaultDeviceID,
		"Capture device ID. Use 'list' command to see available devices.")
	pf.StringVar(&v.backend, "backend", config.DefaultBackend, "Audio backend: auto, direct, loopback or file")
	pf.StringVarP(&v.file, "file", "f", "", "Replay a .wav, .mp3 or .ogg file instead of capturing (implies --backend file)")
	pf.BoolVar(&v.loop, "loop", false, "Restart the replay file at its end")
	pf.Float64VarP(&v.sampleRate, "sample-rate", "s", config.DefaultSampleRate, "Sample rate in Hz, 0 uses the device rate (44100 for loopback)")
	pf.IntVarP(&v.blockSize, "block-size", "b", config.DefaultBlockSize, "Samples per analysis block (power of 2)")
	pf.IntVarP(&v.channels, "channels", "c", config.DefaultChannels, "Number of channels to capture")
	pf.BoolVarP(&v.lowLatency, "low-latency", "l", false, "Use the device's low input latency")
	pf.Float64Var(&v.gate, "gate", 0, "Noise gate threshold in [0, 1], 0 disables")

	// Matrix and control
	pf.IntVar(&v.fps, "fps", config.DefaultFPS, "Target frame rate")
	pf.IntVar(&v.width, "width", config.DefaultWidth, "Matrix width (number of bands)")
	pf.IntVar(&v.height, "height", config.DefaultHeight, "Matrix height")
	pf.Float64VarP(&v.gain, "gain", "g", config.DefaultGain, "Initial gain")
	pf.StringVar(&v.color, "color", config.DefaultColorMode, "Initial color mode: rainbow, solid or gradient")

	// Recording
	pf.BoolVarP(&v.record, "record", "r", false, "Record the analysis channel to a WAV file")
	pf.StringVarP(&v.output, "output", "o", "", "Recording file name. Default is recording-YYYYMMDD-HHMMSS.wav")

	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if ran == nil {
		// Help or version was printed.
		return opts, nil
	}
	opts.Run = true

	cfg, err := config.LoadConfig(v.configPath, func(c *config.Config) {
		applyFlags(ran.Flags(), &v, c)
		if opts.Verbose {
			c.LogLevel = "debug"
		}
	})
	if err != nil {
		return nil, err
	}
	opts.Config = cfg
	return opts, nil
}

// applyFlags copies every flag the user set into c.
func applyFlags(fs *pflag.FlagSet, v *flagValues, c *config.Config) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "log-level":
			c.LogLevel = v.logLevel
		case "port":
			c.Serial.Port = v.port
		case "baud":
			c.Serial.Baud = v.baud
		case "dry-run":
			c.Serial.DryRun = v.dryRun
		case "device":
			c.Audio.InputDevice = v.device
		case "backend":
			c.Audio.Backend = strings.ToLower(v.backend)
		case "file":
			c.Audio.File = v.file
			if !fs.Changed("backend") {
				c.Audio.Backend = config.BackendFile
			}
		case "loop":
			c.Audio.Loop = v.loop
		case "sample-rate":
			c.Audio.SampleRate = v.sampleRate
		case "block-size":
			c.Audio.BlockSize = v.blockSize
		case "channels":
			c.Audio.Channels = v.channels
		case "low-latency":
			c.Audio.LowLatency = v.lowLatency
		case "gate":
			c.Audio.GateThreshold = v.gate
		case "fps":
			c.Matrix.FPS = v.fps
		case "width":
			c.Matrix.Width = v.width
		case "height":
			c.Matrix.Height = v.height
		case "gain":
			c.Control.Gain = v.gain
		case "color":
			c.Control.ColorMode = v.color
		case "record":
			c.Recording.Enabled = v.record
		case "output":
			c.Recording.OutputFile = v.output
		}
	})
}

// parseValues parses the integer arguments of fill and pix. Color channels
// are 0-255; pixel coordinates only need to be non-negative.
func parseValues(name string, args []string) ([]int, error) {
	coords := 0
	if name == CommandPix {
		coords = 2
	}
	vs := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %q is not a number", name, i+1, a)
		}
		if n < 0 || (i >= coords && n > 255) {
			return nil, fmt.Errorf("%s: argument %d: %d out of range", name, i+1, n)
		}
		vs[i] = n
	}
	return vs, nil
}
