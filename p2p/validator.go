package p2p

import (
	"context"
	"errors"
	"log/slog"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/geanlabs/leanattest/common/types"
	"github.com/geanlabs/leanattest/observability/logging"
	"github.com/geanlabs/leanattest/observability/metrics"
	"github.com/geanlabs/leanattest/verifier"
)

// Importer verifies and stores a decoded attestation payload.
type Importer interface {
	Import(raw []byte) (types.Root, error)
}

// AttestationValidator returns a topic validator that imports every message.
// Invalid attestations are rejected so the sender is penalised. Duplicates
// and attestations that cannot be checked yet are ignored.
// On accept, the message's ValidatorData holds the canonical root.
func AttestationValidator(imp Importer, maxSize int, logger *slog.Logger) pubsub.ValidatorEx {
	if logger == nil {
		logger = logging.NewComponentLogger(logging.CompGossip)
	}
	return func(ctx context.Context, from peer.ID, msg *pubsub.Message) pubsub.ValidationResult {
		raw, err := Decompress(msg.GetData(), maxSize)
		if err != nil {
			logger.Debug("rejecting undecodable message", "peer", from, "error", err)
			return result(pubsub.ValidationReject)
		}

		root, err := imp.Import(raw)
		switch {
		case err == nil:
			msg.ValidatorData = root
			return result(pubsub.ValidationAccept)
		case verifier.IsRejection(err):
			logger.Debug("rejecting attestation", "peer", from, "error", err)
			return result(pubsub.ValidationReject)
		case errors.Is(err, verifier.ErrDuplicate):
			return result(pubsub.ValidationIgnore)
		default:
			logger.Debug("ignoring attestation", "peer", from, "error", err)
			return result(pubsub.ValidationIgnore)
		}
	}
}

func result(r pubsub.ValidationResult) pubsub.ValidationResult {
	label := metrics.ResultIgnore
	switch r {
	case pubsub.ValidationAccept:
		label = metrics.ResultAccept
	case pubsub.ValidationReject:
		label = metrics.ResultReject
	}
	metrics.GossipValidationResults.WithLabelValues(label).Inc()
	return r
}
