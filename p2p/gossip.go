// Package p2p carries attestations over libp2p gossipsub.
package p2p

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/golang/snappy"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"github.com/libp2p/go-libp2p/core/host"
)

// Message-id domains, chosen by whether the payload snappy-decodes.
var (
	MessageDomainValidSnappy   = [4]byte{0x01, 0x00, 0x00, 0x00}
	MessageDomainInvalidSnappy = [4]byte{0x00, 0x00, 0x00, 0x00}
)

// GossipParams holds the gossipsub mesh parameters.
type GossipParams struct {
	D                 int           // Target mesh peers
	DLow              int           // Low watermark
	DHigh             int           // High watermark
	DLazy             int           // Gossip-only peers
	HeartbeatInterval time.Duration
	FanoutTTL         time.Duration
	MCacheLen         int // Message cache windows
	MCacheGossip      int // Gossip windows
	SeenTTL           time.Duration
	MaxMessageSize    int
}

// DefaultGossipParams returns the parameters used when none are configured.
func DefaultGossipParams() GossipParams {
	return GossipParams{
		D:                 8,
		DLow:              6,
		DHigh:             12,
		DLazy:             6,
		HeartbeatInterval: 700 * time.Millisecond,
		FanoutTTL:         60 * time.Second,
		MCacheLen:         6,
		MCacheGossip:      3,
		// two epochs of 64 slots at 6 seconds
		SeenTTL:        768 * time.Second,
		MaxMessageSize: 1 << 20,
	}
}

// MessageID is a 20-byte gossipsub message identifier.
type MessageID [20]byte

// ComputeMessageID computes the message ID for a gossipsub message.
// ID = SHA256(domain + uint64_le(len(topic)) + topic + data)[:20]
func ComputeMessageID(topic []byte, data []byte, snappyValid bool) MessageID {
	domain := MessageDomainInvalidSnappy
	if snappyValid {
		domain = MessageDomainValidSnappy
	}

	var topicLen [8]byte
	binary.LittleEndian.PutUint64(topicLen[:], uint64(len(topic)))

	h := sha256.New()
	h.Write(domain[:])
	h.Write(topicLen[:])
	h.Write(topic)
	h.Write(data)

	var id MessageID
	copy(id[:], h.Sum(nil)[:20])
	return id
}

// newMessageID returns a message-id function that hashes the decompressed
// payload when it is valid snappy of at most maxSize bytes, and the raw
// payload otherwise. The decoded length is checked before anything is
// allocated.
func newMessageID(maxSize int) func(*pb.Message) string {
	return func(msg *pb.Message) string {
		data := msg.GetData()
		valid := false
		if n, err := snappy.DecodedLen(data); err == nil && n <= maxSize {
			if decoded, err := snappy.Decode(nil, data); err == nil {
				data, valid = decoded, true
			}
		}
		id := ComputeMessageID([]byte(msg.GetTopic()), data, valid)
		return string(id[:])
	}
}

// GossipOptions returns the pubsub options for params.
func GossipOptions(params GossipParams) []pubsub.Option {
	gs := pubsub.DefaultGossipSubParams()
	gs.D = params.D
	gs.Dlo = params.DLow
	gs.Dhi = params.DHigh
	gs.Dlazy = params.DLazy
	gs.HeartbeatInterval = params.HeartbeatInterval
	gs.FanoutTTL = params.FanoutTTL
	gs.HistoryLength = params.MCacheLen
	gs.HistoryGossip = params.MCacheGossip

	return []pubsub.Option{
		pubsub.WithMessageIdFn(newMessageID(params.MaxMessageSize)),
		pubsub.WithGossipSubParams(gs),
		pubsub.WithSeenMessagesTTL(params.SeenTTL),
		pubsub.WithNoAuthor(),
		pubsub.WithMessageSignaturePolicy(pubsub.StrictNoSign),
		pubsub.WithMaxMessageSize(snappy.MaxEncodedLen(params.MaxMessageSize)),
		pubsub.WithFloodPublish(false),
	}
}

// NewGossipSub creates a gossipsub router on h.
func NewGossipSub(ctx context.Context, h host.Host, params GossipParams) (*pubsub.PubSub, error) {
	return pubsub.NewGossipSub(ctx, h, GossipOptions(params)...)
}
