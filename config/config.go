// Package config loads the verifier's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/multiformats/go-multiaddr"
	"gopkg.in/yaml.v3"

	"github.com/geanlabs/leanattest/common/types"
)

// Well-known domain names.
const (
	DomainAttestation = "attestation"
)

const (
	BackendMemory = "memory"
	BackendPebble = "pebble"
)

var (
	ErrUnknownDomain  = errors.New("unknown domain")
	ErrInvalidBackend = errors.New("invalid storage backend")
	ErrInvalidConfig  = errors.New("invalid config")
)

// DomainValue is a domain tag written either as a decimal or a 0x-prefixed
// hex integer.
type DomainValue types.Domain

func (d *DomainValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: domain must be a scalar", node.Line)
	}
	s := strings.TrimSpace(node.Value)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return fmt.Errorf("line %d: parse domain %q: %w", node.Line, node.Value, err)
	}
	*d = DomainValue(v)
	return nil
}

type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type GossipConfig struct {
	Topic          string `yaml:"topic"`
	MaxMessageSize int    `yaml:"max_message_size"`
}

// ChainConfig sets the slot clock. A zero GenesisTime disables the
// propagation window check.
type ChainConfig struct {
	GenesisTime      uint64 `yaml:"genesis_time"`
	SecondsPerSlot   uint64 `yaml:"seconds_per_slot"`
	PropagationSlots uint64 `yaml:"propagation_slots"`
}

// P2PConfig configures the libp2p host. An empty NodeKey gives the node a
// new identity on every start.
type P2PConfig struct {
	NodeKey     string   `yaml:"node_key"`
	ListenAddrs []string `yaml:"listen_addrs"`
	Bootnodes   []string `yaml:"bootnodes"`
	MaxPeers    int      `yaml:"max_peers"`
}

// LowPeers is the connection count the host trims back to once MaxPeers is
// exceeded.
func (c P2PConfig) LowPeers() int {
	return c.MaxPeers - c.MaxPeers/4
}

// MetricsConfig controls the Prometheus endpoint. Port 0 disables it.
type MetricsConfig struct {
	Port int `yaml:"port"`
}

// CommitteeConfig assigns an ordered list of hex-encoded public keys to a
// shard at a slot.
type CommitteeConfig struct {
	Slot    types.Slot  `yaml:"slot"`
	Shard   types.Shard `yaml:"shard"`
	Members []string    `yaml:"members"`
}

// Config is the top-level configuration.
type Config struct {
	LogLevel   string                 `yaml:"log_level"`
	Domains    map[string]DomainValue `yaml:"domains"`
	Storage    StorageConfig          `yaml:"storage"`
	Gossip     GossipConfig           `yaml:"gossip"`
	Chain      ChainConfig            `yaml:"chain"`
	P2P        P2PConfig              `yaml:"p2p"`
	Metrics    MetricsConfig          `yaml:"metrics"`
	Committees []CommitteeConfig      `yaml:"committees"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Domains: map[string]DomainValue{
			DomainAttestation: 1,
		},
		Storage: StorageConfig{Backend: BackendMemory},
		Gossip: GossipConfig{
			Topic:          "/eth2/beacon_attestation/ssz_snappy",
			MaxMessageSize: 1 << 20,
		},
		Chain: ChainConfig{
			SecondsPerSlot:   6,
			PropagationSlots: 32,
		},
		P2P: P2PConfig{
			ListenAddrs: []string{"/ip4/0.0.0.0/tcp/9000"},
			MaxPeers:    50,
		},
	}
}

// Load reads and parses a YAML file on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPebble:
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: pebble backend needs a path", ErrInvalidBackend)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Storage.Backend)
	}
	if c.Gossip.Topic == "" {
		return fmt.Errorf("%w: empty gossip topic", ErrInvalidConfig)
	}
	if c.Gossip.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: max_message_size must be positive", ErrInvalidConfig)
	}
	if c.Chain.SecondsPerSlot == 0 {
		return fmt.Errorf("%w: seconds_per_slot must be positive", ErrInvalidConfig)
	}
	if len(c.P2P.ListenAddrs) == 0 {
		return fmt.Errorf("%w: no listen addresses", ErrInvalidConfig)
	}
	for _, addr := range c.P2P.ListenAddrs {
		if _, err := multiaddr.NewMultiaddr(addr); err != nil {
			return fmt.Errorf("%w: listen address %q: %v", ErrInvalidConfig, addr, err)
		}
	}
	if c.P2P.MaxPeers <= 0 {
		return fmt.Errorf("%w: max_peers must be positive", ErrInvalidConfig)
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("%w: metrics port %d", ErrInvalidConfig, c.Metrics.Port)
	}
	seen := make(map[[2]uint64]bool)
	for i, cm := range c.Committees {
		if len(cm.Members) == 0 {
			return fmt.Errorf("%w: committee %d has no members", ErrInvalidConfig, i)
		}
		k := [2]uint64{uint64(cm.Slot), uint64(cm.Shard)}
		if seen[k] {
			return fmt.Errorf("%w: committee for slot %d shard %d listed twice", ErrInvalidConfig, cm.Slot, cm.Shard)
		}
		seen[k] = true
	}
	return nil
}

// Domain returns the numeric tag configured under name.
func (c *Config) Domain(name string) (types.Domain, error) {
	d, ok := c.Domains[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownDomain, name)
	}
	return types.Domain(d), nil
}
