package relay

import (
	"sync/atomic"

	"github.com/dawsh2/AlphaPulse-sub008/internal/config"
	"github.com/dawsh2/AlphaPulse-sub008/internal/protocol"
)

// DeliveryPolicy decides which of a subscription's sinks receive a message.
type DeliveryPolicy int

const (
	Direct DeliveryPolicy = iota
	Fanout
	RoundRobin
	Failover
)

func (p DeliveryPolicy) String() string {
	switch p {
	case Direct:
		return config.PolicyDirect
	case Fanout:
		return config.PolicyFanout
	case RoundRobin:
		return config.PolicyRoundRobin
	case Failover:
		return config.PolicyFailover
	default:
		return "unknown"
	}
}

func deliveryByName(name string) DeliveryPolicy {
	switch name {
	case config.PolicyDirect:
		return Direct
	case config.PolicyRoundRobin:
		return RoundRobin
	case config.PolicyFailover:
		return Failover
	default:
		return Fanout
	}
}

// subscription binds an ordered sink set to one topic under a delivery
// policy. The sink order from configuration is the failover preference order.
type subscription struct {
	topic   string
	policy  DeliveryPolicy
	workers []*sinkWorker
	rr      atomic.Uint64
}

// dispatch hands one message to the subscription's sinks. One sink's
// troubles never block delivery to the others: enqueue only ever fails with
// ErrQueueFull (failover_on_full policy), which reroutes within the set.
// Direct and fanout have no alternate sink to reroute to, so a full queue
// there is a counted drop.
func (s *subscription) dispatch(msg protocol.Message) {
	switch s.policy {
	case Direct:
		w := s.workers[0]
		if w.enqueue(msg) != nil {
			w.recordDrop(w.policy.String())
		}

	case Fanout:
		for _, w := range s.workers {
			if w.enqueue(msg) != nil {
				w.recordDrop(w.policy.String())
			}
		}

	case RoundRobin:
		n := len(s.workers)
		start := int(s.rr.Add(1)-1) % n
		for i := 0; i < n; i++ {
			w := s.workers[(start+i)%n]
			if w.enqueue(msg) == nil {
				return
			}
		}
		s.workers[start].recordDrop("all_queues_full")

	case Failover:
		// Primary first, then fallbacks in configured order; degraded sinks
		// are skipped until their probe recovers them.
		for _, w := range s.workers {
			if !w.healthy() {
				continue
			}
			if w.enqueue(msg) == nil {
				return
			}
		}
		s.workers[0].recordDrop("failover_exhausted")
	}
}
