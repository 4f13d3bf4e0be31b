package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dawsh2/AlphaPulse-sub008/internal/breaker"
	"github.com/dawsh2/AlphaPulse-sub008/internal/config"
	"github.com/dawsh2/AlphaPulse-sub008/internal/observability"
	"github.com/dawsh2/AlphaPulse-sub008/internal/protocol"
)

// Options tunes router internals. The zero value selects production defaults.
type Options struct {
	SinkFactory   SinkFactory
	Breaker       breaker.Config
	ProbeInterval time.Duration
}

// Router consumes frames from producer connections, validates them once, and
// dispatches each to every subscription of its resolved topic.
type Router struct {
	log       zerolog.Logger
	validator *protocol.Validator

	table atomic.Pointer[Table]
	subs  map[string][]*subscription
	all   []*sinkWorker

	drainTimeout time.Duration
	closed       atomic.Bool
	connMu       sync.Mutex
	conns        sync.WaitGroup
}

// New wires a router from a validated topology. Any wiring error here is a
// startup failure: the relay must not run in an inconsistent state.
func New(cfg config.Config, logger zerolog.Logger, opts Options) (*Router, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if opts.SinkFactory == nil {
		opts.SinkFactory = DefaultSinkFactory
	}
	if opts.Breaker.FailureThreshold == 0 && opts.Breaker.Cooldown == 0 {
		opts.Breaker = breaker.DefaultConfig()
	}
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = 250 * time.Millisecond
	}

	policy := protocol.Policy{
		Checksum:       cfg.ParsedChecksumMode(),
		MaxMessageSize: cfg.Relay.MaxMessageSize,
		StrictDomain:   cfg.Relay.StrictDomainCheck,
	}
	validator := protocol.NewValidator(policy)
	for _, lim := range cfg.Limits {
		domain, _ := protocol.DomainByName(lim.Domain)
		validator.SetBounds(domain, protocol.MsgType(lim.Type), protocol.Bounds{Min: lim.Min, Max: lim.Max})
	}

	r := &Router{
		log:          logger.With().Str("component", "relay").Logger(),
		validator:    validator,
		subs:         make(map[string][]*subscription),
		drainTimeout: cfg.ParsedDrainTimeout(),
	}
	r.table.Store(TableFromConfig(cfg))

	for _, subCfg := range cfg.Subscriptions {
		sub := &subscription{
			topic:  subCfg.Topic,
			policy: deliveryByName(subCfg.Policy),
		}
		for _, sinkCfg := range subCfg.Sinks {
			sink, err := opts.SinkFactory(sinkCfg, logger)
			if err != nil {
				return nil, fmt.Errorf("sink %s: %w", sinkCfg.ID, err)
			}
			w := newSinkWorker(sink, sinkCfg, opts.Breaker, opts.ProbeInterval, logger)
			sub.workers = append(sub.workers, w)
			r.all = append(r.all, w)
		}
		r.subs[subCfg.Topic] = append(r.subs[subCfg.Topic], sub)
	}

	// A topic with no subscription is legal (producers may pre-announce), but
	// a subscription without a topic binding was already rejected by Validate.
	return r, nil
}

// Start launches the sink workers.
func (r *Router) Start() {
	for _, w := range r.all {
		w.start()
	}
	r.log.Info().Int("sinks", len(r.all)).Int("topics", len(r.table.Load().Topics())).Msg("relay_started")
}

// HandleConn reads length-prefixed frames from one producer connection until
// EOF, shutdown, or a framing error. Per-message validation failures drop the
// message and continue; framing errors end the connection because byte-stream
// sync is unrecoverable. Neither aborts the relay.
func (r *Router) HandleConn(ctx context.Context, connID string, src io.Reader) error {
	if connID == "" {
		connID = uuid.NewString()
	}
	if err := r.register(); err != nil {
		return err
	}
	defer r.conns.Done()

	log := r.log.With().Str("conn", connID).Logger()
	log.Info().Msg("producer_connected")

	for {
		if r.closed.Load() {
			return ErrShuttingDown
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := protocol.Read(src)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Info().Msg("producer_disconnected")
				return nil
			}
			reason := rejectReason(err)
			observability.RecordReject(reason)
			log.Warn().Err(err).Str("reason", reason).Msg("frame_error")
			return err
		}
		observability.RecordFrame(msg.Header.Domain.String())

		if err := r.validator.Validate(msg); err != nil {
			reason := rejectReason(err)
			observability.RecordReject(reason)
			log.Warn().Err(err).Str("reason", reason).Msg("message_rejected")
			continue
		}

		r.dispatch(msg, log)
	}
}

// register joins the connection intake group. The mutex orders registration
// against Shutdown's close-then-wait, so conns.Add never races conns.Wait.
func (r *Router) register() error {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.closed.Load() {
		return ErrShuttingDown
	}
	r.conns.Add(1)
	return nil
}

func (r *Router) dispatch(msg protocol.Message, log zerolog.Logger) {
	topic, ok := r.table.Load().Resolve(msg.Header.Domain, msg.Header.Type)
	if !ok {
		observability.RecordUnroutable(msg.Header.Domain.String())
		log.Debug().
			Err(ErrTopicNotFound).
			Str("domain", msg.Header.Domain.String()).
			Uint16("type", uint16(msg.Header.Type)).
			Msg("no_topic_binding")
		return
	}
	observability.RecordDispatch(topic)
	for _, sub := range r.subs[topic] {
		sub.dispatch(msg)
	}
}

// SwapTable atomically installs a new topic table; in-flight messages route
// against whichever snapshot they loaded.
func (r *Router) SwapTable(t *Table) {
	r.table.Store(t)
	r.log.Info().Int("topics", len(t.Topics())).Msg("topic_table_swapped")
}

// Reload rebuilds the topic table from a validated topology. Sink set changes
// require a restart; only bindings swap live.
func (r *Router) Reload(cfg config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	r.SwapTable(TableFromConfig(cfg))
	return nil
}

// Shutdown stops intake, drains sink queues up to the configured deadline,
// then force-closes whatever remains.
func (r *Router) Shutdown(ctx context.Context) error {
	r.connMu.Lock()
	first := r.closed.CompareAndSwap(false, true)
	r.connMu.Unlock()
	if !first {
		return nil
	}
	r.conns.Wait()

	for _, w := range r.all {
		w.closeQueue()
	}

	deadline := time.NewTimer(r.drainTimeout)
	defer deadline.Stop()
	drained := make(chan struct{})
	go func() {
		for _, w := range r.all {
			<-w.done
		}
		close(drained)
	}()

	select {
	case <-drained:
		r.log.Info().Msg("relay_drained")
		return nil
	case <-deadline.C:
	case <-ctx.Done():
	}

	for _, w := range r.all {
		w.forceStop()
	}
	<-drained
	r.log.Warn().Msg("relay_force_closed")
	return nil
}

// SinkStatus is one sink's live state for the ops surface.
type SinkStatus struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Drops uint64 `json:"drops"`
}

// SubscriptionStatus describes one subscription for the ops surface.
type SubscriptionStatus struct {
	Topic  string       `json:"topic"`
	Policy string       `json:"policy"`
	Sinks  []SinkStatus `json:"sinks"`
}

// Status snapshots every subscription and sink state.
func (r *Router) Status() []SubscriptionStatus {
	out := make([]SubscriptionStatus, 0, len(r.subs))
	for _, subs := range r.subs {
		for _, sub := range subs {
			st := SubscriptionStatus{Topic: sub.topic, Policy: sub.policy.String()}
			for _, w := range sub.workers {
				st.Sinks = append(st.Sinks, SinkStatus{ID: w.id(), State: w.connState().String(), Drops: w.drops.Load()})
			}
			out = append(out, st)
		}
	}
	return out
}

// Topics returns the current routing table's topic names.
func (r *Router) Topics() []string {
	return r.table.Load().Topics()
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrBadMagic):
		return "bad_magic"
	case errors.Is(err, protocol.ErrTruncated):
		return "truncated"
	case errors.Is(err, protocol.ErrLengthMismatch):
		return "length_mismatch"
	case errors.Is(err, protocol.ErrChecksumMismatch):
		return "checksum_mismatch"
	case errors.Is(err, protocol.ErrSizeConstraint):
		return "size_constraint"
	case errors.Is(err, protocol.ErrUnknownDomain):
		return "unknown_domain"
	case errors.Is(err, protocol.ErrTypeOutOfRange):
		return "type_out_of_range"
	default:
		return "other"
	}
}
