package relay

import (
	"sort"

	"github.com/dawsh2/AlphaPulse-sub008/internal/config"
	"github.com/dawsh2/AlphaPulse-sub008/internal/protocol"
)

type topicKey struct {
	Domain protocol.Domain
	Type   protocol.MsgType
}

// Table maps (domain, type) to a topic name. Tables are immutable once
// built; the router swaps whole snapshots atomically so no in-flight message
// is ever routed against a half-updated table.
type Table struct {
	byType map[topicKey]string
}

func NewTable() *Table {
	return &Table{byType: make(map[topicKey]string)}
}

// Bind adds one (domain, type) -> topic mapping.
func (t *Table) Bind(d protocol.Domain, mt protocol.MsgType, topic string) {
	t.byType[topicKey{d, mt}] = topic
}

// Resolve is a deterministic, side-effect-free lookup.
func (t *Table) Resolve(d protocol.Domain, mt protocol.MsgType) (string, bool) {
	topic, ok := t.byType[topicKey{d, mt}]
	return topic, ok
}

// Topics returns the distinct topic names, sorted.
func (t *Table) Topics() []string {
	seen := make(map[string]bool)
	for _, topic := range t.byType {
		seen[topic] = true
	}
	out := make([]string, 0, len(seen))
	for topic := range seen {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

// TableFromConfig builds the routing snapshot from a validated topology.
func TableFromConfig(cfg config.Config) *Table {
	t := NewTable()
	for _, tb := range cfg.Topics {
		domain, _ := protocol.DomainByName(tb.Domain)
		for _, raw := range tb.Types {
			t.Bind(domain, protocol.MsgType(raw), tb.Name)
		}
	}
	return t
}
