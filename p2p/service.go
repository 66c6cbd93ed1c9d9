package p2p

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/geanlabs/leanattest/common/types"
	"github.com/geanlabs/leanattest/observability/logging"
	atttypes "github.com/geanlabs/leanattest/types"
)

// Service gossips attestations on a single topic. Every message, local or
// remote, passes through AttestationValidator before delivery.
type Service struct {
	host   host.Host
	pubsub *pubsub.PubSub
	logger *slog.Logger

	topic *pubsub.Topic
	sub   *pubsub.Subscription

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ServiceConfig holds configuration for the p2p service.
type ServiceConfig struct {
	Host      host.Host
	Importer  Importer
	Topic     string
	Params    GossipParams
	Bootnodes []peer.AddrInfo
	Logger    *slog.Logger
	// OnAttestation, if set, is called for every accepted remote attestation.
	OnAttestation func(root types.Root)
}

// NewService joins the attestation topic and registers its validator.
func NewService(ctx context.Context, cfg ServiceConfig) (*Service, error) {
	ctx, cancel := context.WithCancel(ctx)

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewComponentLogger(logging.CompGossip)
	}

	ps, err := NewGossipSub(ctx, cfg.Host, cfg.Params)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create gossipsub: %w", err)
	}

	validator := AttestationValidator(cfg.Importer, cfg.Params.MaxMessageSize, logger)
	if err := ps.RegisterTopicValidator(cfg.Topic, validator); err != nil {
		cancel()
		return nil, fmt.Errorf("register validator: %w", err)
	}

	topic, err := ps.Join(cfg.Topic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("join attestation topic: %w", err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe attestation topic: %w", err)
	}

	svc := &Service{
		host:   cfg.Host,
		pubsub: ps,
		logger: logger,
		topic:  topic,
		sub:    sub,
		ctx:    ctx,
		cancel: cancel,
	}

	for _, pi := range cfg.Bootnodes {
		if err := cfg.Host.Connect(ctx, pi); err != nil {
			logger.Warn("failed to connect to bootnode",
				"peer", pi.ID,
				"error", err,
			)
		} else {
			logger.Info("connected to bootnode", "peer", pi.ID)
		}
	}

	svc.wg.Add(1)
	go svc.processAttestations(cfg.OnAttestation)

	logger.Info("p2p service started",
		"peer_id", cfg.Host.ID(),
		"topic", cfg.Topic,
	)
	return svc, nil
}

// Stop shuts down the service. It does not close the host.
func (s *Service) Stop() {
	s.cancel()
	s.sub.Cancel()
	s.wg.Wait()
	if err := s.topic.Close(); err != nil {
		s.logger.Warn("close topic", "error", err)
	}
	s.logger.Info("p2p service stopped")
}

// PublishAttestation validates att locally and gossips it.
func (s *Service) PublishAttestation(ctx context.Context, att *atttypes.Attestation) error {
	return s.topic.Publish(ctx, EncodeAttestation(att))
}

// PeerCount returns the number of connected peers.
func (s *Service) PeerCount() int {
	return len(s.host.Network().Peers())
}

func (s *Service) processAttestations(onAttestation func(types.Root)) {
	defer s.wg.Done()

	for {
		msg, err := s.sub.Next(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return // context cancelled
			}
			s.logger.Error("attestation subscription error", "error", err)
			continue
		}

		// Skip self-published messages
		if msg.ReceivedFrom == s.host.ID() {
			continue
		}

		root, _ := msg.ValidatorData.(types.Root)
		s.logger.Debug("received attestation",
			"peer", msg.ReceivedFrom,
			"root", logging.ShortHash(root),
		)
		if onAttestation != nil {
			onAttestation(root)
		}
	}
}
