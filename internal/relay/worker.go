package relay

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dawsh2/AlphaPulse-sub008/internal/breaker"
	"github.com/dawsh2/AlphaPulse-sub008/internal/config"
	"github.com/dawsh2/AlphaPulse-sub008/internal/observability"
	"github.com/dawsh2/AlphaPulse-sub008/internal/protocol"
)

// ConnState is a sink's connection lifecycle state. Written only by the
// sink's worker goroutine; read by dispatchers and the ops surface.
type ConnState int32

const (
	StateDisconnected ConnState = 0
	StateConnecting   ConnState = 1
	StateConnected    ConnState = 2
	StateDegraded     ConnState = 3
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// BackpressurePolicy decides what happens when a sink queue is full.
type BackpressurePolicy int

const (
	DropOldest BackpressurePolicy = iota
	DropNewest
	Block
	FailoverOnFull
)

func (p BackpressurePolicy) String() string {
	switch p {
	case DropOldest:
		return config.BackpressureDropOldest
	case DropNewest:
		return config.BackpressureDropNewest
	case Block:
		return config.BackpressureBlock
	case FailoverOnFull:
		return config.BackpressureFailoverOnFull
	default:
		return "unknown"
	}
}

func backpressureByName(name string) BackpressurePolicy {
	switch name {
	case config.BackpressureDropNewest:
		return DropNewest
	case config.BackpressureBlock:
		return Block
	case config.BackpressureFailoverOnFull:
		return FailoverOnFull
	default:
		return DropOldest
	}
}

// sinkWorker owns one sink: its queue, connection state and circuit breaker
// are touched by no other goroutine, so no cross-worker locking exists.
type sinkWorker struct {
	sink          Sink
	queue         chan protocol.Message
	policy        BackpressurePolicy
	blockTimeout  time.Duration
	probeInterval time.Duration

	brk   *breaker.Breaker
	state atomic.Int32
	drops atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	log    zerolog.Logger
}

func newSinkWorker(sink Sink, cfg config.SinkConfig, brkCfg breaker.Config, probeInterval time.Duration, logger zerolog.Logger) *sinkWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &sinkWorker{
		sink:          sink,
		queue:         make(chan protocol.Message, cfg.Buffer),
		policy:        backpressureByName(cfg.Backpressure),
		blockTimeout:  cfg.ParsedBlockTimeout(),
		probeInterval: probeInterval,
		brk:           breaker.New(brkCfg),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		log:           logger.With().Str("sink", sink.ID()).Logger(),
	}
}

func (w *sinkWorker) id() string { return w.sink.ID() }

func (w *sinkWorker) connState() ConnState {
	return ConnState(w.state.Load())
}

// healthy reports whether dispatchers should route to this sink.
func (w *sinkWorker) healthy() bool {
	return w.connState() != StateDegraded
}

func (w *sinkWorker) setState(s ConnState) {
	prev := ConnState(w.state.Swap(int32(s)))
	if prev != s {
		observability.RecordSinkState(w.id(), int(s))
		w.log.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("sink_state")
	}
}

// recordDrop counts one message lost at this sink, both locally for the ops
// surface and in the metric family.
func (w *sinkWorker) recordDrop(policy string) {
	w.drops.Add(1)
	observability.RecordSinkDrop(w.id(), policy)
}

// enqueue applies the sink's backpressure policy. Only FailoverOnFull
// surfaces an error; every other policy resolves locally and counts drops.
func (w *sinkWorker) enqueue(msg protocol.Message) error {
	switch w.policy {
	case DropNewest:
		select {
		case w.queue <- msg:
		default:
			w.recordDrop(w.policy.String())
		}
		return nil

	case Block:
		select {
		case w.queue <- msg:
			return nil
		case <-time.After(w.blockTimeout):
			w.recordDrop(w.policy.String())
			return nil
		}

	case FailoverOnFull:
		select {
		case w.queue <- msg:
			return nil
		default:
			return ErrQueueFull
		}

	default: // DropOldest
		for {
			select {
			case w.queue <- msg:
				return nil
			default:
			}
			select {
			case <-w.queue:
				w.recordDrop(w.policy.String())
			default:
			}
		}
	}
}

func (w *sinkWorker) start() {
	go w.run()
}

func (w *sinkWorker) run() {
	defer func() {
		_ = w.sink.Close()
		w.setState(StateDisconnected)
		close(w.done)
	}()

	w.setState(StateConnecting)
	ticker := time.NewTicker(w.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.maybeProbe()
		case msg, ok := <-w.queue:
			if !ok {
				return
			}
			w.deliver(msg)
		}
	}
}

// deliver pushes one message through the sink, driving the connection state
// machine. A degraded sink rejects fast until the breaker permits a probe.
func (w *sinkWorker) deliver(msg protocol.Message) {
	if !w.brk.Allow() {
		w.setState(StateDegraded)
		observability.RecordSinkDrop(w.id(), "circuit_open")
		return
	}

	if w.connState() != StateConnected {
		w.setState(StateConnecting)
		if err := w.sink.Connect(w.ctx); err != nil {
			w.onFailure(err)
			observability.RecordSinkSend(w.id(), 0, false)
			return
		}
	}

	start := time.Now()
	err := w.sink.Send(w.ctx, msg)
	observability.RecordSinkSend(w.id(), time.Since(start), err == nil)
	if err != nil {
		w.onFailure(err)
		return
	}
	w.brk.Success()
	w.setState(StateConnected)
}

// maybeProbe retries the connection of a degraded sink once the breaker
// cooldown has elapsed (half-open probe). The visible state stays Degraded
// while the probe runs so dispatchers keep skipping the sink until it is
// actually back.
func (w *sinkWorker) maybeProbe() {
	if w.connState() != StateDegraded || !w.brk.Allow() {
		return
	}
	w.log.Debug().Msg("sink_probe")
	if err := w.sink.Connect(w.ctx); err != nil {
		w.onFailure(err)
		return
	}
	w.brk.Success()
	w.setState(StateConnected)
	observability.RecordBreakerTransition(w.id(), breaker.Closed.String())
	w.log.Info().Msg("sink_probe_recovered")
}

func (w *sinkWorker) onFailure(err error) {
	w.log.Warn().Err(err).Msg("sink_send_failed")
	if st := w.brk.Failure(); st == breaker.Open {
		w.setState(StateDegraded)
		observability.RecordBreakerTransition(w.id(), st.String())
	}
}

// closeQueue stops intake; the worker drains buffered messages then exits.
func (w *sinkWorker) closeQueue() {
	close(w.queue)
}

// forceStop abandons any remaining queue contents.
func (w *sinkWorker) forceStop() {
	w.cancel()
}
