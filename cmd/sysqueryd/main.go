package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sysqueryd/internal/config"
	"sysqueryd/internal/endpoint"
	"sysqueryd/internal/errcode"
	"sysqueryd/internal/executor"
	"sysqueryd/internal/healthz"
	"sysqueryd/internal/history"
	"sysqueryd/internal/logger"
	"sysqueryd/internal/sampler"
	"sysqueryd/internal/server"
	"sysqueryd/internal/watchdog"
)

const version = "1.0.0"

var log = logger.WithComponent("main")

var errHelp = errors.New("help requested")

func main() {
	if len(os.Args) == 2 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Printf("sysqueryd version %s\n", version)
			return
		case "help", "--help", "-h":
			printHelp(os.Stdout)
			return
		}
	}

	cfgPath, port, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, errHelp) {
			printHelp(os.Stdout)
			return
		}
		errcode.Exit(os.Stderr, err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		errcode.Exit(os.Stderr, errcode.New(errcode.WrongParams, fmt.Errorf("config: %w", err)))
	}
	cfg.Server.Port = port
	logger.Init(logger.ParseLevel(cfg.Log.Level))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		errcode.Exit(os.Stderr, err)
	}
	log.Info("exited cleanly")
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `sysqueryd - host information over a minimal HTTP subset

Usage:
  sysqueryd [--config path] <port>
  sysqueryd version

Endpoints:
  GET /hostname   hostname of the machine
  GET /cpu-name   CPU model name
  GET /load       CPU load over the sampling interval, e.g. 12.34%

Options:
  --config    Path to YAML configuration file (optional)
`)
}

// parseArgs accepts an optional --config flag followed by exactly one
// all-digit port argument.
func parseArgs(args []string) (string, int, error) {
	fs := flag.NewFlagSet("sysqueryd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfgPath := fs.String("config", "", "Path to YAML config (optional)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return "", 0, errHelp
		}
		return "", 0, errcode.New(errcode.WrongParams, err)
	}
	if fs.NArg() != 1 {
		return "", 0, errcode.New(errcode.WrongParams, fmt.Errorf("expected one port argument, got %d", fs.NArg()))
	}
	port, err := config.ValidatePort(fs.Arg(0))
	if err != nil {
		return "", 0, errcode.New(errcode.WrongParams, err)
	}
	return *cfgPath, port, nil
}

// run wires the components and serves until ctx is cancelled. Only startup
// failures are returned; everything after the listener is up is per-connection.
func run(ctx context.Context, cfg config.Config) error {
	runner := executor.New(cfg.Commands.Shell)
	src, err := sampler.NewSource(cfg.Sampler.Source, runner, cfg.Commands.Stat)
	if err != nil {
		return errcode.New(errcode.WrongParams, err)
	}

	var (
		rec  endpoint.Recorder
		hist healthz.HistoryReader
	)
	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path, cfg.History.MaxEntries)
		if err != nil {
			log.Warn("history disabled", "path", cfg.History.Path, "error", err)
		} else {
			defer store.Close()
			rec, hist = store, store
		}
	}

	disp := endpoint.Standard(cfg, runner, sampler.New(src), rec)

	ln, err := server.Listen(server.ListenConfigFrom(cfg.Server))
	if err != nil {
		return err
	}

	stats := watchdog.NewStats()
	if cfg.Health.Enabled {
		go healthz.New(stats, hist, cfg.Health.Port).Run(ctx)
	}
	go watchdog.Run(ctx, stats, time.Minute)

	log.Info("sysqueryd started",
		"port", cfg.Server.Port,
		"sampler", cfg.Sampler.Source,
		"interval", cfg.Sampler.Interval.String(),
		"endpoints", disp.Registered(),
	)
	return server.New(ln, disp, cfg.Server, stats).Serve(ctx)
}
