package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"goa.design/clue/log"

	"mcpshell/internal/config"
	"mcpshell/internal/dispatch"
	"mcpshell/internal/pipeline"
	"mcpshell/internal/registry"
	"mcpshell/internal/rpcadapter"
	"mcpshell/internal/sandbox"
	"mcpshell/internal/telemetry"
)

func main() {
	var (
		configF = flag.String("config", "", "path to a YAML configuration file")
		debugF  = flag.Bool("debug", false, "enable debug-level logging")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configF)
	if err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "loading configuration"})
		os.Exit(1)
	}
	if *debugF || cfg.Debug {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debug(ctx, log.KV{K: "msg", V: "debug logging enabled"})
	}

	obs := telemetry.New(telemetry.NewClueLogger(), telemetry.NewClueMetrics(), telemetry.NewClueTracer())

	runner, err := sandbox.NewRunner()
	if err != nil {
		// A process with no sandbox facility still serves tool and preview
		// stages; only CommandStage fails, and it fails per-call rather than
		// at startup.
		log.Info(ctx, log.KV{K: "msg", V: "sandbox runner unavailable, command stages will fail"}, log.KV{K: "error", V: err.Error()})
		runner = nil
	}

	discovery := registry.NewDiscovery(obs)
	registryClient := registry.NewClient(registry.WithObservability(obs))
	registryBase := func(ctx context.Context) (string, error) {
		ep, err := discovery.Discover(ctx, registry.Options{
			Host:           cfg.Registry.Host,
			Port:           cfg.Registry.Port,
			SkipScan:       cfg.Registry.SkipScan,
			DefaultPort:    cfg.Registry.DefaultPort,
			ScanRangeStart: cfg.Registry.ScanRangeStart,
			ScanRangeEnd:   cfg.Registry.ScanRangeEnd,
		})
		if err != nil {
			return "", err
		}
		return ep.BaseURL(), nil
	}

	dispatcher := dispatch.New(registryBase, registryClient, cfg.Registry.CallTimeout, obs)
	engine := pipeline.NewEngine(dispatcher, runner, obs)
	adapter := rpcadapter.New(engine, dispatcher)

	server := mcp.NewServer(&mcp.Implementation{Name: "mcpshell", Version: "0.1.0"}, nil)
	adapter.Register(server)

	log.Info(ctx, log.KV{K: "msg", V: "mcpshell starting"})
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "server exited"})
		os.Exit(1)
	}
}
