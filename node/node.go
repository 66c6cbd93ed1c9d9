// Package node assembles storage, verification, gossip and metrics into a
// running attestation verifier.
package node

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/geanlabs/leanattest/config"
	"github.com/geanlabs/leanattest/crypto/bls"
	"github.com/geanlabs/leanattest/observability/logging"
	"github.com/geanlabs/leanattest/observability/metrics"
	"github.com/geanlabs/leanattest/p2p"
	"github.com/geanlabs/leanattest/storage"
	"github.com/geanlabs/leanattest/storage/memory"
	"github.com/geanlabs/leanattest/storage/pebbledb"
	"github.com/geanlabs/leanattest/verifier"
)

type Node struct {
	cfg      *config.Config
	store    storage.Store
	verifier *verifier.Service
	host     host.Host
	net      *p2p.Service
	metrics  *http.Server
	logger   *slog.Logger
}

// New opens the store, loads committees and joins the gossip topic.
func New(ctx context.Context, cfg *config.Config) (*Node, error) {
	logger := logging.NewComponentLogger(logging.CompNode)

	store, err := OpenStore(cfg.Storage)
	if err != nil {
		return nil, err
	}
	logging.NewComponentLogger(logging.CompStorage).Info("store opened",
		"backend", cfg.Storage.Backend,
		"path", cfg.Storage.Path,
	)

	keys, err := LoadCommittees(cfg.Committees)
	if err != nil {
		store.Close()
		return nil, err
	}

	v, err := verifier.New(store, keys, cfg, logging.NewComponentLogger(logging.CompVerifier))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create verifier: %w", err)
	}

	h, err := p2p.NewHost(cfg.P2P)
	if err != nil {
		store.Close()
		return nil, err
	}

	bootnodes, err := p2p.ParseBootnodes(cfg.P2P.Bootnodes)
	if err != nil {
		h.Close()
		store.Close()
		return nil, fmt.Errorf("parse bootnodes: %w", err)
	}

	params := p2p.DefaultGossipParams()
	params.MaxMessageSize = cfg.Gossip.MaxMessageSize
	net, err := p2p.NewService(ctx, p2p.ServiceConfig{
		Host:      h,
		Importer:  v,
		Topic:     cfg.Gossip.Topic,
		Params:    params,
		Bootnodes: bootnodes,
		Logger:    logging.NewComponentLogger(logging.CompGossip),
	})
	if err != nil {
		h.Close()
		store.Close()
		return nil, fmt.Errorf("create p2p service: %w", err)
	}

	n := &Node{
		cfg:      cfg,
		store:    store,
		verifier: v,
		host:     h,
		net:      net,
		logger:   logger,
	}

	if cfg.Metrics.Port > 0 {
		reg := prometheus.NewRegistry()
		if err := metrics.Register(reg); err != nil {
			n.close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		n.metrics = metrics.NewServer(cfg.Metrics.Port, reg)
	}
	return n, nil
}

// Run serves until ctx is cancelled, then shuts everything down.
func (n *Node) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	if n.metrics != nil {
		go func() {
			if err := n.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
		n.logger.Info("metrics server started", "addr", n.metrics.Addr)
	}

	n.logger.Info("node running",
		"peer_id", n.host.ID(),
		"topic", n.cfg.Gossip.Topic,
		"committees", len(n.cfg.Committees),
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	if n.metrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.metrics.Shutdown(shutdownCtx); err != nil {
			n.logger.Warn("metrics shutdown", "error", err)
		}
	}
	n.close()
	n.logger.Info("node stopped")
	return runErr
}

// Verifier returns the node's attestation verifier.
func (n *Node) Verifier() *verifier.Service { return n.verifier }

// PeerCount returns the number of connected peers.
func (n *Node) PeerCount() int { return n.net.PeerCount() }

func (n *Node) close() {
	n.net.Stop()
	if err := n.host.Close(); err != nil {
		n.logger.Warn("close host", "error", err)
	}
	if err := n.store.Close(); err != nil {
		n.logger.Warn("close store", "error", err)
	}
}

// OpenStore opens the backend named by cfg.
func OpenStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendPebble:
		s, err := pebbledb.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open pebble store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidBackend, cfg.Backend)
	}
}

// LoadCommittees decodes the configured committee keys.
func LoadCommittees(committees []config.CommitteeConfig) (*verifier.StaticKeys, error) {
	keys := verifier.NewStaticKeys()
	for _, c := range committees {
		members := make([]*bls.PublicKey, len(c.Members))
		for i, m := range c.Members {
			raw, err := hex.DecodeString(strings.TrimPrefix(m, "0x"))
			if err != nil {
				return nil, fmt.Errorf("committee slot %d shard %d member %d: %w", c.Slot, c.Shard, i, err)
			}
			pk, err := bls.PublicKeyFromBytes(raw)
			if err != nil {
				return nil, fmt.Errorf("committee slot %d shard %d member %d: %w", c.Slot, c.Shard, i, err)
			}
			members[i] = pk
		}
		keys.Set(c.Slot, c.Shard, members)
	}
	return keys, nil
}
