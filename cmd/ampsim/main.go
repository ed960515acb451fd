package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guidoenr/ampsim/internal/app"
	"github.com/guidoenr/ampsim/internal/audio"
	"github.com/guidoenr/ampsim/internal/visualizer"
	"github.com/guidoenr/ampsim/internal/web"
	"golang.org/x/term"
)

func main() {
	var (
		deviceName = flag.String("audio-device", "", "Optional PortAudio input device name (substring match)")
		outputName = flag.String("output-device", "", "Optional PortAudio output device name (substring match)")
		sampleRate = flag.Float64("sample-rate", 0, "Output sample rate in Hz (0 uses the device default)")
		blockSize  = flag.Int("block-size", 128, "Frames rendered per output callback")
		latency    = flag.Duration("latency", 0, "Requested input latency (the device minimum is used if lower)")
		width      = flag.Int("width", 80, "Display width in cells, or points with --window")
		height     = flag.Int("height", 24, "Display height in cells, or points with --window")
		pixelRatio = flag.Float64("pixel-ratio", 1, "Backing pixels per display unit")
		targetFPS  = flag.Float64("fps", 60, "Visualizer frames per second")
		noAudio    = flag.Bool("no-audio", false, "Run with a synthetic guitar and a silent output")
		debug      = flag.Bool("debug", false, "Enable verbose logging")
		showStatus = flag.Bool("status", true, "Display status bar")
		noColor    = flag.Bool("no-color", false, "Disable ANSI color output")
		useWindow  = flag.Bool("window", false, "Draw in a desktop window (requires -tags sdl)")
		webPort    = flag.Int("web-port", 0, "Serve the remote control panel on this port (0 disables)")
		profile    = flag.String("profile", "", "Write per-frame timings as CSV to this path")
		listDevs   = flag.Bool("list-audio-devices", false, "List available audio devices and exit")
	)

	flag.Parse()

	if *width <= 0 || *height <= 0 {
		log.Fatalf("invalid dimensions: width=%d height=%d", *width, *height)
	}
	if *targetFPS <= 0 {
		log.Fatalf("fps must be positive (got %.2f)", *targetFPS)
	}
	if *pixelRatio <= 0 {
		log.Fatalf("pixel-ratio must be positive (got %.2f)", *pixelRatio)
	}
	if *useWindow && !visualizer.SupportsWindow() {
		log.Fatalf("--window needs a build with -tags sdl")
	}

	if !*useWindow {
		if fd := int(os.Stdout.Fd()); fd >= 0 {
			if w, h, err := term.GetSize(fd); err == nil {
				if w > 0 {
					*width = w
				}
				if h > 0 {
					*height = h
				}
			}
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(os.Stdout, "[ampsim] ", log.LstdFlags)
	if !*debug {
		logger.SetOutput(os.Stderr)
		logger.SetFlags(0)
	}

	needAudio := !*noAudio || *listDevs
	if needAudio {
		if err := audio.Initialize(); err != nil {
			logger.Fatalf("failed to initialize PortAudio: %v", err)
		}
		defer audio.Terminate()
	}

	if *listDevs {
		listDevices(logger)
		return
	}

	a, err := app.New(app.Config{
		DeviceName:       *deviceName,
		OutputDeviceName: *outputName,
		SampleRate:       *sampleRate,
		BlockSize:        *blockSize,
		Latency:          *latency,
		TargetFPS:        *targetFPS,
		Width:            *width,
		Height:           *height,
		PixelRatio:       *pixelRatio,
		DisableAudio:     *noAudio,
		ShowStatusBar:    *showStatus,
		UseANSI:          !*noColor,
		UseWindow:        *useWindow,
		ProfilePath:      *profile,
		Log:              logger,
	})
	if err != nil {
		logger.Fatalf("failed to create app: %v", err)
	}

	if *webPort > 0 {
		server, err := web.NewServer(a.Panel(), log.New(logger.Writer(), "[web] ", logger.Flags()))
		if err != nil {
			logger.Fatalf("web: %v", err)
		}
		a.AddNotifier(server)
		a.OnSpectrum(server.PublishSpectrum)
		go func() {
			if err := server.Run(ctx, fmt.Sprintf(":%d", *webPort)); err != nil {
				logger.Printf("web: %v", err)
			}
		}()
	}

	if err := a.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			fmt.Println("\nExiting...")
			return
		}
		logger.Fatalf("runtime error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
}

func listDevices(logger *log.Logger) {
	devices, err := audio.ListDevices()
	if err != nil {
		logger.Fatalf("list devices: %v", err)
	}
	fmt.Printf("\n=== Audio Devices ===\n\n")
	for _, dev := range devices {
		markers := ""
		if dev.IsDefaultInput {
			markers += " (default input)"
		}
		if dev.IsDefaultOutput {
			markers += " (default output)"
		}
		fmt.Printf("- %s [%s]%s\n    inputs:%d outputs:%d sample:%.0f Hz low-latency:%v\n",
			dev.Name, dev.HostAPI, markers, dev.MaxInput, dev.MaxOutput, dev.DefaultSampleHz, dev.LowInputLatency)
	}
	if dev, err := audio.AutoDetectDevice(); err == nil && dev != nil {
		fmt.Printf("\nAuto-detected input: %s (%.0f Hz, %d channels)\n", dev.Name, dev.DefaultSampleRate, dev.MaxInputChannels)
	}
}
