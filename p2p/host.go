package p2p

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/multiformats/go-multiaddr"

	"github.com/geanlabs/leanattest/config"
)

const (
	userAgent       = "leanattest"
	peerGracePeriod = time.Minute
)

// NewHost creates the node's libp2p host. The identity is read from
// cfg.NodeKey, which is created on first start; an empty path gives an
// ephemeral identity. The connection manager trims back to LowPeers once
// more than MaxPeers are connected.
func NewHost(cfg config.P2PConfig) (host.Host, error) {
	privKey, err := loadOrCreateNodeKey(cfg.NodeKey)
	if err != nil {
		return nil, err
	}

	cm, err := connmgr.NewConnManager(cfg.LowPeers(), cfg.MaxPeers, connmgr.WithGracePeriod(peerGracePeriod))
	if err != nil {
		return nil, fmt.Errorf("create connection manager: %w", err)
	}

	h, err := libp2p.New(
		libp2p.Identity(privKey),
		libp2p.ListenAddrStrings(cfg.ListenAddrs...),
		libp2p.ConnectionManager(cm),
		libp2p.UserAgent(userAgent),
		libp2p.Ping(true),
	)
	if err != nil {
		cm.Close()
		return nil, fmt.Errorf("create host: %w", err)
	}
	return h, nil
}

// loadOrCreateNodeKey reads a hex-encoded secp256k1 key from path, writing a
// fresh one there if the file does not exist.
func loadOrCreateNodeKey(path string) (crypto.PrivKey, error) {
	if path == "" {
		return generateNodeKey()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		key, err := generateNodeKey()
		if err != nil {
			return nil, err
		}
		raw, err := key.Raw()
		if err != nil {
			return nil, fmt.Errorf("encode node key: %w", err)
		}
		if err := os.WriteFile(path, []byte(hex.EncodeToString(raw)), 0o600); err != nil {
			return nil, fmt.Errorf("write node key: %w", err)
		}
		return key, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read node key: %w", err)
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(string(data)), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode node key %s: %w", path, err)
	}
	key, err := crypto.UnmarshalSecp256k1PrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("parse node key %s: %w", path, err)
	}
	return key, nil
}

func generateNodeKey() (crypto.PrivKey, error) {
	key, _, err := crypto.GenerateSecp256k1Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate node key: %w", err)
	}
	return key, nil
}

// ParseBootnodes parses a list of multiaddr strings into peer.AddrInfo.
func ParseBootnodes(addrs []string) ([]peer.AddrInfo, error) {
	var peers []peer.AddrInfo
	for _, addr := range addrs {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return nil, fmt.Errorf("parse multiaddr %s: %w", addr, err)
		}
		pi, err := peer.AddrInfoFromP2pAddr(ma)
		if err != nil {
			return nil, fmt.Errorf("parse peer info %s: %w", addr, err)
		}
		peers = append(peers, *pi)
	}
	return peers, nil
}
