// Package config loads and validates the relay topology. Topology errors are
// fatal at startup: the relay must never run against a half-valid routing
// table.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dawsh2/AlphaPulse-sub008/internal/protocol"
)

var ErrInvalidTopology = errors.New("config: invalid topology")

// Delivery policy names accepted in [[subscriptions]].
const (
	PolicyDirect     = "direct"
	PolicyFanout     = "fanout"
	PolicyRoundRobin = "round_robin"
	PolicyFailover   = "failover"
)

// Backpressure policy names accepted per sink.
const (
	BackpressureDropOldest     = "drop_oldest"
	BackpressureDropNewest     = "drop_newest"
	BackpressureBlock          = "block"
	BackpressureFailoverOnFull = "failover_on_full"
)

// Sink kinds.
const (
	SinkKindLog   = "log"
	SinkKindTCP   = "tcp"
	SinkKindKafka = "kafka"
)

type Config struct {
	Relay         RelayConfig          `toml:"relay"`
	Nodes         []NodeConfig         `toml:"nodes"`
	Actors        []ActorConfig        `toml:"actors"`
	Topics        []TopicBinding       `toml:"topics"`
	Subscriptions []SubscriptionConfig `toml:"subscriptions"`
	Limits        []LimitConfig        `toml:"limits"`
}

type RelayConfig struct {
	ListenAddr        string `toml:"listen_addr"`
	OpsAddr           string `toml:"ops_addr"`
	ChecksumMode      string `toml:"checksum_mode"`
	MaxMessageSize    int    `toml:"max_message_size"`
	StrictDomainCheck bool   `toml:"strict_domain_check"`
	DrainTimeout      string `toml:"drain_timeout"`
}

// NodeConfig is one physical placement.
type NodeConfig struct {
	ID   string `toml:"id"`
	Host string `toml:"host"`
}

// ActorConfig is one logical producer or consumer placed on a node.
type ActorConfig struct {
	ID   string `toml:"id"`
	Kind string `toml:"kind"`
	Node string `toml:"node"`
}

// TopicBinding maps (domain, types...) onto one topic name.
type TopicBinding struct {
	Name   string `toml:"name"`
	Domain string `toml:"domain"`
	Types  []int  `toml:"types"`
}

type SubscriptionConfig struct {
	Topic  string       `toml:"topic"`
	Policy string       `toml:"policy"`
	Sinks  []SinkConfig `toml:"sinks"`
}

type SinkConfig struct {
	ID           string   `toml:"id"`
	Kind         string   `toml:"kind"`
	Addr         string   `toml:"addr"`
	Brokers      []string `toml:"brokers"`
	KafkaTopic   string   `toml:"kafka_topic"`
	Buffer       int      `toml:"buffer"`
	Backpressure string   `toml:"backpressure"`
	BlockTimeout string   `toml:"block_timeout"`
}

// LimitConfig overrides the validation size window for one (domain, type).
type LimitConfig struct {
	Domain string `toml:"domain"`
	Type   int    `toml:"type"`
	Min    int    `toml:"min"`
	Max    int    `toml:"max"`
}

// Load reads, defaults, and validates a topology file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Relay.ListenAddr == "" {
		c.Relay.ListenAddr = ":9300"
	}
	if c.Relay.OpsAddr == "" {
		c.Relay.OpsAddr = ":9301"
	}
	if c.Relay.ChecksumMode == "" {
		c.Relay.ChecksumMode = "strict"
	}
	if c.Relay.MaxMessageSize == 0 {
		c.Relay.MaxMessageSize = 4096
	}
	if c.Relay.DrainTimeout == "" {
		c.Relay.DrainTimeout = "5s"
	}
	for i := range c.Subscriptions {
		for j := range c.Subscriptions[i].Sinks {
			s := &c.Subscriptions[i].Sinks[j]
			if s.Buffer == 0 {
				s.Buffer = 256
			}
			if s.Backpressure == "" {
				s.Backpressure = BackpressureDropOldest
			}
			if s.BlockTimeout == "" {
				s.BlockTimeout = "250ms"
			}
		}
	}
}

// Validate checks the whole topology. Any error here must abort startup.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Relay.ListenAddr) == "" {
		return fmt.Errorf("%w: relay listen_addr is required", ErrInvalidTopology)
	}
	if _, ok := protocol.ChecksumModeByName(cfg.Relay.ChecksumMode); !ok {
		return fmt.Errorf("%w: unknown checksum_mode %q", ErrInvalidTopology, cfg.Relay.ChecksumMode)
	}
	if cfg.Relay.MaxMessageSize < 0 || cfg.Relay.MaxMessageSize > protocol.MaxPayloadLen {
		return fmt.Errorf("%w: max_message_size %d out of range", ErrInvalidTopology, cfg.Relay.MaxMessageSize)
	}
	if _, err := time.ParseDuration(cfg.Relay.DrainTimeout); err != nil {
		return fmt.Errorf("%w: bad drain_timeout: %v", ErrInvalidTopology, err)
	}

	nodeIDs := make(map[string]bool, len(cfg.Nodes))
	for i, n := range cfg.Nodes {
		id := strings.TrimSpace(n.ID)
		if id == "" {
			return fmt.Errorf("%w: node[%d] missing id", ErrInvalidTopology, i)
		}
		if nodeIDs[id] {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidTopology, id)
		}
		nodeIDs[id] = true
	}

	actorIDs := make(map[string]bool, len(cfg.Actors))
	for i, a := range cfg.Actors {
		id := strings.TrimSpace(a.ID)
		if id == "" {
			return fmt.Errorf("%w: actor[%d] missing id", ErrInvalidTopology, i)
		}
		if actorIDs[id] {
			return fmt.Errorf("%w: duplicate actor id %q", ErrInvalidTopology, id)
		}
		actorIDs[id] = true
		switch a.Kind {
		case "producer", "consumer":
		default:
			return fmt.Errorf("%w: actor %q has unknown kind %q", ErrInvalidTopology, id, a.Kind)
		}
		if a.Node != "" && !nodeIDs[a.Node] {
			return fmt.Errorf("%w: actor %q placed on unknown node %q", ErrInvalidTopology, id, a.Node)
		}
	}

	topicNames := make(map[string]bool, len(cfg.Topics))
	type domainType struct {
		d protocol.Domain
		t protocol.MsgType
	}
	bound := make(map[domainType]string)
	for i, tb := range cfg.Topics {
		name := strings.TrimSpace(tb.Name)
		if name == "" {
			return fmt.Errorf("%w: topic[%d] missing name", ErrInvalidTopology, i)
		}
		if topicNames[name] {
			return fmt.Errorf("%w: duplicate topic %q", ErrInvalidTopology, name)
		}
		topicNames[name] = true
		domain, ok := protocol.DomainByName(tb.Domain)
		if !ok {
			return fmt.Errorf("%w: topic %q has unknown domain %q", ErrInvalidTopology, name, tb.Domain)
		}
		if len(tb.Types) == 0 {
			return fmt.Errorf("%w: topic %q binds no types", ErrInvalidTopology, name)
		}
		for _, raw := range tb.Types {
			if raw < 0 || raw > int(^uint16(0)) {
				return fmt.Errorf("%w: topic %q type %d out of range", ErrInvalidTopology, name, raw)
			}
			mt := protocol.MsgType(raw)
			if !domain.Contains(mt) {
				return fmt.Errorf("%w: topic %q type %d outside %s range", ErrInvalidTopology, name, raw, domain)
			}
			key := domainType{domain, mt}
			if prev, dup := bound[key]; dup {
				return fmt.Errorf("%w: (%s,%d) bound to both %q and %q", ErrInvalidTopology, domain, raw, prev, name)
			}
			bound[key] = name
		}
	}

	sinkIDs := make(map[string]bool)
	for i, sub := range cfg.Subscriptions {
		if !topicNames[sub.Topic] {
			return fmt.Errorf("%w: subscription[%d] references unknown topic %q", ErrInvalidTopology, i, sub.Topic)
		}
		switch sub.Policy {
		case PolicyDirect, PolicyFanout, PolicyRoundRobin, PolicyFailover:
		default:
			return fmt.Errorf("%w: subscription %q has unknown policy %q", ErrInvalidTopology, sub.Topic, sub.Policy)
		}
		if len(sub.Sinks) == 0 {
			return fmt.Errorf("%w: subscription %q has no sinks", ErrInvalidTopology, sub.Topic)
		}
		if sub.Policy == PolicyDirect && len(sub.Sinks) != 1 {
			return fmt.Errorf("%w: direct subscription %q needs exactly one sink", ErrInvalidTopology, sub.Topic)
		}
		if sub.Policy == PolicyFailover && len(sub.Sinks) < 2 {
			return fmt.Errorf("%w: failover subscription %q needs a fallback sink", ErrInvalidTopology, sub.Topic)
		}
		for _, s := range sub.Sinks {
			if err := validateSink(s); err != nil {
				return err
			}
			if sinkIDs[s.ID] {
				return fmt.Errorf("%w: duplicate sink id %q", ErrInvalidTopology, s.ID)
			}
			sinkIDs[s.ID] = true
		}
	}

	for i, lim := range cfg.Limits {
		domain, ok := protocol.DomainByName(lim.Domain)
		if !ok {
			return fmt.Errorf("%w: limit[%d] has unknown domain %q", ErrInvalidTopology, i, lim.Domain)
		}
		if !domain.Contains(protocol.MsgType(lim.Type)) {
			return fmt.Errorf("%w: limit[%d] type %d outside %s range", ErrInvalidTopology, i, lim.Type, domain)
		}
		if lim.Min < 0 || lim.Max < lim.Min {
			return fmt.Errorf("%w: limit[%d] window [%d,%d] invalid", ErrInvalidTopology, i, lim.Min, lim.Max)
		}
	}
	return nil
}

func validateSink(s SinkConfig) error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: sink missing id", ErrInvalidTopology)
	}
	switch s.Kind {
	case SinkKindLog:
	case SinkKindTCP:
		if strings.TrimSpace(s.Addr) == "" {
			return fmt.Errorf("%w: tcp sink %q missing addr", ErrInvalidTopology, s.ID)
		}
	case SinkKindKafka:
		if len(s.Brokers) == 0 {
			return fmt.Errorf("%w: kafka sink %q missing brokers", ErrInvalidTopology, s.ID)
		}
		if strings.TrimSpace(s.KafkaTopic) == "" {
			return fmt.Errorf("%w: kafka sink %q missing kafka_topic", ErrInvalidTopology, s.ID)
		}
	default:
		return fmt.Errorf("%w: sink %q has unknown kind %q", ErrInvalidTopology, s.ID, s.Kind)
	}
	switch s.Backpressure {
	case BackpressureDropOldest, BackpressureDropNewest, BackpressureBlock, BackpressureFailoverOnFull:
	default:
		return fmt.Errorf("%w: sink %q has unknown backpressure %q", ErrInvalidTopology, s.ID, s.Backpressure)
	}
	if s.Buffer <= 0 {
		return fmt.Errorf("%w: sink %q buffer must be positive", ErrInvalidTopology, s.ID)
	}
	if _, err := time.ParseDuration(s.BlockTimeout); err != nil {
		return fmt.Errorf("%w: sink %q bad block_timeout: %v", ErrInvalidTopology, s.ID, err)
	}
	return nil
}

// ParsedDrainTimeout returns the drain deadline; Validate guarantees it parses.
func (c Config) ParsedDrainTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Relay.DrainTimeout)
	return d
}

// ParsedChecksumMode returns the checksum mode; Validate guarantees it parses.
func (c Config) ParsedChecksumMode() protocol.ChecksumMode {
	m, _ := protocol.ChecksumModeByName(c.Relay.ChecksumMode)
	return m
}

// ParsedBlockTimeout returns the sink's block deadline; Validate guarantees it parses.
func (s SinkConfig) ParsedBlockTimeout() time.Duration {
	d, _ := time.ParseDuration(s.BlockTimeout)
	return d
}
