package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"turntablegate/inhibitor"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("turntabled v%s\n", version)
	fmt.Println("Ball release inhibition gate for turntable speed changes")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  turntabled [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Reads light sensor period samples and hall sensor revolution ticks from")
	fmt.Println("  Linux input devices (or IPC), and inhibits ball release for a number of")
	fmt.Println("  revolutions after the turntable period changes.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        YAML config file (flags override file values)")
	fmt.Println()
	fmt.Println("  -light-device string")
	fmt.Printf("        Input device for the light sensor, empty disables (default %q)\n", defaultLightDevice)
	fmt.Println()
	fmt.Println("  -hall-device string")
	fmt.Printf("        Input device for the hall sensor, empty disables (default %q)\n", defaultHallDevice)
	fmt.Println()
	fmt.Println("  -threshold float")
	fmt.Println("        Relative period change that arms inhibition (default 0.08)")
	fmt.Println()
	fmt.Println("  -rearm-rounds int")
	fmt.Println("        Revolutions inhibition lasts after a change (default 2)")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultSocketPath)
	fmt.Println()
	fmt.Println("  -http-port int")
	fmt.Printf("        HTTP API / state websocket port, 0 disables (default %d)\n", defaultHTTPPort)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Sensors on input devices, defaults otherwise")
	fmt.Println("  turntabled -light-device /dev/input/event4 -hall-device /dev/input/event5")
	fmt.Println()
	fmt.Println("  # Sensor drivers deliver samples over IPC only")
	fmt.Println("  turntabled -light-device '' -hall-device ''")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to input devices (run as root or add user to 'input' group)")
	fmt.Println("  - The release scheduler must skip a release while inhibited:")
	fmt.Println("      turntable-ctl status   or   GET /api/inhibited")
	fmt.Println()
}

func main() {
	fs := flag.NewFlagSet("turntabled", flag.ExitOnError)
	var (
		configPath  = fs.String("config", "", "YAML config file")
		lightDevice = fs.String("light-device", defaultLightDevice, "Input device for the light sensor")
		hallDevice  = fs.String("hall-device", defaultHallDevice, "Input device for the hall sensor")
		threshold   = fs.Float64("threshold", inhibitor.DefaultThreshold, "Relative period change that arms inhibition")
		rearmRounds = fs.Int("rearm-rounds", inhibitor.DefaultRearmRounds, "Revolutions inhibition lasts after a change")
		ipcSocket   = fs.String("ipc-socket", defaultSocketPath, "Unix domain socket path for IPC")
		httpPort    = fs.Int("http-port", defaultHTTPPort, "HTTP API port (0 disables)")
		logLevelStr = fs.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion = fs.Bool("version", false, "Print version and exit")
		showHelp    = fs.Bool("help", false, "Print help message")
	)
	fs.Usage = printUsage
	_ = fs.Parse(os.Args[1:])

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the file.
	var o FlagOverrides
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "light-device":
			o.LightDevice = lightDevice
		case "hall-device":
			o.HallDevice = hallDevice
		case "threshold":
			o.Threshold = threshold
		case "rearm-rounds":
			o.RearmRounds = rearmRounds
		case "ipc-socket":
			o.IPCSocketPath = ipcSocket
		case "http-port":
			o.HTTPPort = httpPort
		case "log-level":
			o.LogLevel = logLevelStr
		}
	})
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	// Validate already checked the level.
	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(os.Stdout, logLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("turntabled stopped", "error", err)
		os.Exit(1)
	}
}

// run wires sensors, daemon loop, IPC and HTTP, and blocks until shutdown.
func run(cfg Config, logger *slog.Logger) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// cancel also stops everything when a component fails.
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	inhibitorCfg := cfg.ToInhibitorConfig()
	inhibitorCfg.Logger = logger.With("component", "inhibitor")
	state := NewDaemonState(inhibitorCfg)

	// Central event bus. Sensors, IPC and HTTP all feed it; only runDaemon reads it.
	events := make(chan Event, eventQueueSize)

	// Broadcasts only have a consumer when the HTTP server runs.
	var broadcasts chan StateBroadcast
	if cfg.HTTP.Port > 0 {
		broadcasts = make(chan StateBroadcast, broadcastQueueSize)
	}

	// Open sensor devices
	sensors := newSensorMap(cfg.Sensors)
	var files []*os.File
	for _, dev := range sensors.devices() {
		f, err := os.Open(dev)
		if err != nil {
			for _, opened := range files {
				opened.Close()
			}
			return fmt.Errorf("open input device %s (run as root or add user to 'input' group): %w", dev, err)
		}
		files = append(files, f)
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	readErr := make(chan error, 1)
	if len(files) > 0 {
		raw := make(chan rawEvent, eventQueueSize)
		startSensorReaders(ctx, files, raw, readErr)
		go forwardSensorEvents(ctx, raw, sensors, events, logger)
	}

	go runDaemon(ctx, events, state, broadcasts, logger)

	ipcErr := make(chan error, 1)
	go func() {
		ipcErr <- runIPCServer(ctx, ExpandPath(cfg.IPC.SocketPath), events, state.Gate, logger)
	}()

	httpErr := make(chan error, 1)
	if cfg.HTTP.Port > 0 {
		srv := NewServer(logger, state.Gate, events, ServerConfig{})
		go srv.Hub().Run(ctx)
		go RunBroadcaster(ctx, srv.Hub(), broadcasts, logger)
		go func() {
			httpErr <- runHTTPServer(ctx, cfg.HTTP.Port, srv.Router(), logger)
		}()
	}

	logger.Debug("starting turntabled", "version", version)
	logger.Info("listening",
		"light_device", cfg.Sensors.Light.Device,
		"hall_device", cfg.Sensors.Hall.Device,
		"ipc", cfg.IPC.SocketPath,
		"http_port", cfg.HTTP.Port,
		"threshold", cfg.Inhibitor.Threshold,
		"rearm_rounds", cfg.Inhibitor.RearmRounds)

	return awaitShutdown(ctx, cancel, readErr, ipcErr, httpErr, cfg.HTTP.Port > 0, logger)
}

// awaitShutdown blocks until ctx is done or a component fails, then cancels the
// rest and waits for the IPC listener to close and the HTTP server to drain.
// The first failure is returned.
func awaitShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	readErr <-chan error,
	ipcErr <-chan error,
	httpErr <-chan error,
	httpEnabled bool,
	logger *slog.Logger,
) error {
	ipcPending, httpPending := true, httpEnabled

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-readErr:
		runErr = fmt.Errorf("sensor reader stopped: %w", err)
	case err := <-ipcErr:
		ipcPending = false
		if err != nil {
			runErr = fmt.Errorf("IPC server: %w", err)
		}
	case err := <-httpErr:
		httpPending = false
		runErr = err
	}
	cancel()

	if ipcPending {
		if err := <-ipcErr; err != nil && runErr == nil {
			runErr = fmt.Errorf("IPC server: %w", err)
		}
	}
	if httpPending {
		if err := <-httpErr; err != nil && runErr == nil {
			runErr = err
		}
	}
	logger.Debug("shutdown complete")
	return runErr
}

// forwardSensorEvents translates raw input events into sensor Events.
//
// Sends to events block: dropping a sensor observation would silently shift the
// inhibition window, and the daemon loop drains quickly.
func forwardSensorEvents(ctx context.Context, raw <-chan rawEvent, sensors sensorMap, events chan<- Event, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-raw:
			ev, kind, ok := sensors.translate(r)
			if !ok {
				if r.Event.Type != EV_SYN {
					logger.Debug("ignoring input event", "device", r.Device,
						"type", r.Event.Type, "code", r.Event.Code, "value", r.Event.Value)
				}
				continue
			}
			logger.Debug("sensor event", "sensor", kind, "value", r.Event.Value)
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
