package p2p

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/libp2p/go-libp2p/p2p/net/connmgr"

	"github.com/geanlabs/leanattest/config"
)

func testP2PConfig(nodeKey string) config.P2PConfig {
	return config.P2PConfig{
		NodeKey:     nodeKey,
		ListenAddrs: []string{"/ip4/127.0.0.1/tcp/0"},
		MaxPeers:    8,
	}
}

func TestNewHost_PersistsNodeKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.key")

	h1, err := NewHost(testP2PConfig(path))
	if err != nil {
		t.Fatalf("NewHost() error = %v", err)
	}
	id := h1.ID()
	h1.Close()

	if info, err := os.Stat(path); err != nil {
		t.Fatalf("node key not written: %v", err)
	} else if info.Mode().Perm() != 0o600 {
		t.Errorf("node key mode = %v, want 0600", info.Mode().Perm())
	}

	h2, err := NewHost(testP2PConfig(path))
	if err != nil {
		t.Fatalf("NewHost() error = %v", err)
	}
	defer h2.Close()
	if h2.ID() != id {
		t.Errorf("peer ID = %s after restart, want %s", h2.ID(), id)
	}
}

func TestNewHost_EphemeralIdentity(t *testing.T) {
	h1, err := NewHost(testP2PConfig(""))
	if err != nil {
		t.Fatalf("NewHost() error = %v", err)
	}
	defer h1.Close()
	h2, err := NewHost(testP2PConfig(""))
	if err != nil {
		t.Fatalf("NewHost() error = %v", err)
	}
	defer h2.Close()

	if h1.ID() == h2.ID() {
		t.Error("hosts without a node key should get distinct identities")
	}
}

func TestNewHost_InvalidNodeKey(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not hex", "zz"},
		{"wrong length", "0102"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "node.key")
			if err := os.WriteFile(path, []byte(tt.data), 0o600); err != nil {
				t.Fatal(err)
			}
			if h, err := NewHost(testP2PConfig(path)); err == nil {
				h.Close()
				t.Error("NewHost() should fail")
			}
		})
	}
}

func TestNewHost_ConnectionLimits(t *testing.T) {
	cfg := testP2PConfig("")
	h, err := NewHost(cfg)
	if err != nil {
		t.Fatalf("NewHost() error = %v", err)
	}
	defer h.Close()

	cm, ok := h.ConnManager().(*connmgr.BasicConnMgr)
	if !ok {
		t.Fatalf("ConnManager() = %T, want *connmgr.BasicConnMgr", h.ConnManager())
	}
	info := cm.GetInfo()
	if info.HighWater != cfg.MaxPeers || info.LowWater != cfg.LowPeers() {
		t.Errorf("watermarks = (%d, %d), want (%d, %d)", info.LowWater, info.HighWater, cfg.LowPeers(), cfg.MaxPeers)
	}
	if len(h.Addrs()) == 0 {
		t.Error("host should listen on the configured address")
	}
}
