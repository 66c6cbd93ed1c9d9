package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/geanlabs/leanattest/config"
	"github.com/geanlabs/leanattest/node"
	"github.com/geanlabs/leanattest/observability/logging"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (defaults are used when empty)")
	logLevel := flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	listenAddr := flag.String("listen-addr", "", "Listen address override")
	bootnodes := flag.String("bootnodes", "", "Comma-separated bootnode multiaddrs")
	nodeKey := flag.String("node-key", "", "Path to the hex-encoded secp256k1 node key (created if missing)")
	metricsPort := flag.Int("metrics-port", -1, "Prometheus metrics port override (0 = disabled)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logging.NewComponentLogger(logging.CompNode).Error("failed to load config", "err", err)
			os.Exit(1)
		}
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *listenAddr != "" {
		cfg.P2P.ListenAddrs = []string{*listenAddr}
	}
	if *nodeKey != "" {
		cfg.P2P.NodeKey = *nodeKey
	}
	if *bootnodes != "" {
		cfg.P2P.Bootnodes = strings.Split(*bootnodes, ",")
	}
	if *metricsPort >= 0 {
		cfg.Metrics.Port = *metricsPort
	}

	// Quiet the stdlib logger used by some libp2p transports.
	logging.Init(logging.ParseLevel(cfg.LogLevel))
	log.SetOutput(io.Discard)
	logger := logging.NewComponentLogger(logging.CompNode)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n, err := node.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize node", "err", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down...")
		cancel()
	}()

	if err := n.Run(ctx); err != nil {
		logger.Error("node exited with error", "err", err)
		os.Exit(1)
	}
}
