// Package verifier checks incoming attestations against their committee and
// stores the ones that verify.
package verifier

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/geanlabs/leanattest/clock"
	"github.com/geanlabs/leanattest/common/ssz"
	"github.com/geanlabs/leanattest/common/types"
	"github.com/geanlabs/leanattest/config"
	"github.com/geanlabs/leanattest/crypto/bls"
	"github.com/geanlabs/leanattest/observability/logging"
	"github.com/geanlabs/leanattest/observability/metrics"
	"github.com/geanlabs/leanattest/storage"
	atttypes "github.com/geanlabs/leanattest/types"
)

var (
	ErrInvalidSignature = errors.New("invalid aggregate signature")
	ErrDuplicate        = errors.New("attestation already imported")
	ErrNoParticipants   = errors.New("attestation has no participants")
	ErrOutsideWindow    = errors.New("attestation slot outside propagation window")

	// ErrMixedCustody is returned when only some participants set their
	// custody bit; such an aggregate covers two messages.
	ErrMixedCustody = errors.New("mixed custody bits")
)

// Service imports attestations into a store.
type Service struct {
	store  storage.Store
	keys   KeySource
	domain types.Domain
	logger *slog.Logger

	clock      *clock.SlotClock // nil disables the window check
	windowSpan uint64

	// mu makes the duplicate check and the write atomic.
	mu sync.Mutex
}

// Option customises a Service.
type Option func(*Service)

// WithClock enables the propagation window check against c.
func WithClock(c *clock.SlotClock, span uint64) Option {
	return func(s *Service) {
		s.clock, s.windowSpan = c, span
	}
}

// New creates a verifier. A nil logger uses the verifier component logger.
// The propagation window is checked when cfg sets a genesis time.
func New(store storage.Store, keys KeySource, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	domain, err := cfg.Domain(config.DomainAttestation)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewComponentLogger(logging.CompVerifier)
	}
	s := &Service{
		store:  store,
		keys:   keys,
		domain: domain,
		logger: logger,
	}
	if cfg.Chain.GenesisTime > 0 {
		s.clock = clock.New(cfg.Chain.GenesisTime, cfg.Chain.SecondsPerSlot)
		s.windowSpan = cfg.Chain.PropagationSlots
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Import decodes raw, verifies it and stores it under its canonical root.
func (s *Service) Import(raw []byte) (types.Root, error) {
	var att atttypes.Attestation
	if err := ssz.Unmarshal(raw, &att); err != nil {
		s.reject(metrics.ReasonDecode, types.Root{}, err)
		return types.Root{}, fmt.Errorf("decode attestation: %w", err)
	}
	return s.ImportAttestation(&att)
}

// ImportAttestation verifies att and stores it under its canonical root.
func (s *Service) ImportAttestation(att *atttypes.Attestation) (types.Root, error) {
	root := att.CanonicalRoot()

	if s.clock != nil && !s.clock.InWindow(att.Data.Slot, s.windowSpan) {
		err := fmt.Errorf("%w: slot %d, current %d", ErrOutsideWindow, att.Data.Slot, s.clock.CurrentSlot())
		s.reject(metrics.ReasonWindow, root, err)
		return root, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen, err := s.store.HasAttestation(root)
	if err != nil {
		s.reject(metrics.ReasonStorage, root, err)
		return root, fmt.Errorf("lookup attestation: %w", err)
	}
	if seen {
		s.reject(metrics.ReasonDuplicate, root, ErrDuplicate)
		return root, ErrDuplicate
	}

	members, err := s.keys.Committee(att.Data.Slot, att.Data.Shard)
	if err != nil {
		s.reject(metrics.ReasonCommittee, root, err)
		return root, err
	}
	if err := att.ValidateBitfields(len(members)); err != nil {
		s.reject(metrics.ReasonBitfield, root, err)
		return root, err
	}

	groupKey, custodyBit, err := participants(att, members)
	if err != nil {
		s.reject(metrics.ReasonBitfield, root, err)
		return root, err
	}

	timer := prometheus.NewTimer(metrics.SignatureVerificationTime)
	ok := att.VerifySignature(groupKey, custodyBit, s.domain)
	timer.ObserveDuration()
	if !ok {
		s.reject(metrics.ReasonSignature, root, ErrInvalidSignature)
		return root, ErrInvalidSignature
	}

	if err := s.store.PutAttestation(root, att); err != nil {
		s.reject(metrics.ReasonStorage, root, err)
		return root, fmt.Errorf("store attestation: %w", err)
	}

	metrics.AttestationsImported.Inc()
	s.logger.Info("attestation imported",
		"root", logging.ShortHash(root),
		"slot", att.Data.Slot,
		"shard", att.Data.Shard,
		"participants", att.AggregationBitfield.Count(),
	)
	return root, nil
}

// participants aggregates the keys of every member with its aggregation bit
// set and reports which custody bit they all signed.
func participants(att *atttypes.Attestation, members []*bls.PublicKey) (*bls.AggregatePublicKey, bool, error) {
	var keys []*bls.PublicKey
	custody := 0
	for i, pk := range members {
		if !att.AggregationBitfield.Get(i) {
			continue
		}
		keys = append(keys, pk)
		if att.CustodyBitfield.Get(i) {
			custody++
		}
	}
	if len(keys) == 0 {
		return nil, false, ErrNoParticipants
	}
	if custody != 0 && custody != len(keys) {
		return nil, false, fmt.Errorf("%w: %d of %d participants", ErrMixedCustody, custody, len(keys))
	}
	group, err := bls.AggregatePublicKeys(keys...)
	if err != nil {
		return nil, false, err
	}
	return group, custody != 0, nil
}

func (s *Service) reject(reason string, root types.Root, err error) {
	metrics.AttestationsRejected.WithLabelValues(reason).Inc()
	s.logger.Debug("attestation rejected",
		"reason", reason,
		"root", logging.ShortHash(root),
		"error", err,
	)
}

// IsRejection reports whether err means the attestation itself is invalid,
// as opposed to already known or not yet checkable.
func IsRejection(err error) bool {
	var decodeErr *ssz.DecodeError
	switch {
	case err == nil:
		return false
	case errors.As(err, &decodeErr),
		errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrNoParticipants),
		errors.Is(err, ErrMixedCustody),
		errors.Is(err, atttypes.ErrBitfieldLength),
		errors.Is(err, atttypes.ErrBitfieldMismatch),
		errors.Is(err, atttypes.ErrCustodyNotSubset):
		return true
	default:
		return false
	}
}
