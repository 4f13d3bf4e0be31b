package relay

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dawsh2/AlphaPulse-sub008/internal/breaker"
	"github.com/dawsh2/AlphaPulse-sub008/internal/config"
	"github.com/dawsh2/AlphaPulse-sub008/internal/protocol"
)

// memSink collects delivered messages in memory; failures are switchable to
// drive the circuit breaker.
type memSink struct {
	id          string
	failSend    atomic.Bool
	failConnect atomic.Bool

	mu   sync.Mutex
	msgs []protocol.Message
}

func (s *memSink) ID() string { return s.id }

func (s *memSink) Connect(context.Context) error {
	if s.failConnect.Load() {
		return errors.New("connect refused")
	}
	return nil
}

func (s *memSink) Send(_ context.Context, msg protocol.Message) error {
	if s.failSend.Load() {
		return errors.New("send refused")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *memSink) Close() error { return nil }

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func (s *memSink) sequence() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint64, len(s.msgs))
	for i, m := range s.msgs {
		out[i] = binary.BigEndian.Uint64(m.Payload[0:8])
	}
	return out
}

func memFactory(sinks map[string]*memSink) SinkFactory {
	return func(cfg config.SinkConfig, _ zerolog.Logger) (Sink, error) {
		s := &memSink{id: cfg.ID}
		sinks[cfg.ID] = s
		return s, nil
	}
}

// heartbeatTopology binds system heartbeats to one topic with the given
// subscription policy and sink ids.
func heartbeatTopology(policy string, sinkIDs ...string) config.Config {
	cfg := config.Config{
		Relay: config.RelayConfig{
			ListenAddr:        ":0",
			OpsAddr:           ":0",
			ChecksumMode:      "strict",
			MaxMessageSize:    4096,
			StrictDomainCheck: true,
			DrainTimeout:      "2s",
		},
		Topics: []config.TopicBinding{
			{Name: "system.heartbeat", Domain: "system", Types: []int{100}},
		},
	}
	sub := config.SubscriptionConfig{Topic: "system.heartbeat", Policy: policy}
	for _, id := range sinkIDs {
		sub.Sinks = append(sub.Sinks, config.SinkConfig{
			ID: id, Kind: config.SinkKindLog,
			Buffer: 64, Backpressure: config.BackpressureDropOldest, BlockTimeout: "50ms",
		})
	}
	cfg.Subscriptions = []config.SubscriptionConfig{sub}
	return cfg
}

func heartbeatFrame(t *testing.T, seq uint64) []byte {
	t.Helper()
	payload := make([]byte, protocol.HeartbeatLen)
	binary.BigEndian.PutUint64(payload[0:8], seq)
	b, err := protocol.Encode(protocol.DomainSystem, protocol.TypeHeartbeat, payload)
	if err != nil {
		t.Fatalf("encode heartbeat: %v", err)
	}
	return b
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestRouter(t *testing.T, cfg config.Config, opts Options) (*Router, map[string]*memSink) {
	t.Helper()
	sinks := make(map[string]*memSink)
	if opts.SinkFactory == nil {
		opts.SinkFactory = memFactory(sinks)
	}
	if opts.ProbeInterval == 0 {
		opts.ProbeInterval = 10 * time.Millisecond
	}
	r, err := New(cfg, zerolog.Nop(), opts)
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	r.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = r.Shutdown(ctx)
	})
	return r, sinks
}

func TestFanoutCompletenessAndOrdering(t *testing.T) {
	r, sinks := newTestRouter(t, heartbeatTopology("fanout", "a", "b"), Options{})

	var stream bytes.Buffer
	const n = 25
	for seq := uint64(1); seq <= n; seq++ {
		stream.Write(heartbeatFrame(t, seq))
	}
	if err := r.HandleConn(context.Background(), "conn-1", &stream); err != nil {
		t.Fatalf("handle conn: %v", err)
	}

	for _, id := range []string{"a", "b"} {
		sink := sinks[id]
		waitFor(t, "sink "+id+" to receive all messages", func() bool { return sink.count() == n })
		seqs := sink.sequence()
		for i, got := range seqs {
			if got != uint64(i+1) {
				t.Fatalf("sink %s out of order at %d: got seq %d", id, i, got)
			}
		}
	}
}

func TestValidationRejectIsLocalToMessage(t *testing.T) {
	r, sinks := newTestRouter(t, heartbeatTopology("direct", "only"), Options{})

	var stream bytes.Buffer
	stream.Write(heartbeatFrame(t, 1))
	// In-range type with an illegal payload size for its registered bounds.
	bad, err := protocol.Encode(protocol.DomainSystem, protocol.TypeHeartbeat, make([]byte, protocol.HeartbeatLen+3))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	stream.Write(bad)
	stream.Write(heartbeatFrame(t, 2))

	if err := r.HandleConn(context.Background(), "conn-1", &stream); err != nil {
		t.Fatalf("handle conn: %v", err)
	}
	waitFor(t, "valid messages to pass", func() bool { return sinks["only"].count() == 2 })
	if got := sinks["only"].sequence(); got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected sequence: %v", got)
	}
}

func TestCorruptedFrameEndsConnectionNotRelay(t *testing.T) {
	r, sinks := newTestRouter(t, heartbeatTopology("direct", "only"), Options{})

	var stream bytes.Buffer
	stream.Write(heartbeatFrame(t, 1))
	garbage := heartbeatFrame(t, 2)
	garbage[0] ^= 0xFF // destroys magic, stream sync is gone
	stream.Write(garbage)

	if err := r.HandleConn(context.Background(), "conn-1", &stream); !errors.Is(err, protocol.ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}

	// The relay keeps serving fresh connections.
	var next bytes.Buffer
	next.Write(heartbeatFrame(t, 3))
	if err := r.HandleConn(context.Background(), "conn-2", &next); err != nil {
		t.Fatalf("relay stopped accepting connections: %v", err)
	}
	waitFor(t, "messages from both connections", func() bool { return sinks["only"].count() == 2 })
}

func TestRoundRobinDistributesAcrossSinks(t *testing.T) {
	r, sinks := newTestRouter(t, heartbeatTopology("round_robin", "a", "b"), Options{})

	var stream bytes.Buffer
	const n = 10
	for seq := uint64(1); seq <= n; seq++ {
		stream.Write(heartbeatFrame(t, seq))
	}
	if err := r.HandleConn(context.Background(), "conn-1", &stream); err != nil {
		t.Fatalf("handle conn: %v", err)
	}

	waitFor(t, "all messages to land", func() bool {
		return sinks["a"].count()+sinks["b"].count() == n
	})
	if sinks["a"].count() != n/2 || sinks["b"].count() != n/2 {
		t.Fatalf("uneven rotation: a=%d b=%d", sinks["a"].count(), sinks["b"].count())
	}
}

func TestFailoverTransitionAndRecovery(t *testing.T) {
	opts := Options{
		Breaker:       breaker.Config{FailureThreshold: 2, Cooldown: 30 * time.Millisecond},
		ProbeInterval: 10 * time.Millisecond,
	}
	sinks := make(map[string]*memSink)
	opts.SinkFactory = memFactory(sinks)
	r, _ := newTestRouter(t, heartbeatTopology("failover", "primary", "fallback"), opts)

	primary, fallback := sinks["primary"], sinks["fallback"]
	primary.failSend.Store(true)
	primary.failConnect.Store(true)

	// Two consecutive failures open the primary's circuit.
	var warmup bytes.Buffer
	warmup.Write(heartbeatFrame(t, 1))
	warmup.Write(heartbeatFrame(t, 2))
	if err := r.HandleConn(context.Background(), "conn-1", &warmup); err != nil {
		t.Fatalf("handle conn: %v", err)
	}
	waitFor(t, "primary to degrade", func() bool {
		for _, st := range r.Status() {
			for _, s := range st.Sinks {
				if s.ID == "primary" && s.State == StateDegraded.String() {
					return true
				}
			}
		}
		return false
	})

	// Subsequent traffic lands on the fallback, nothing lost.
	var next bytes.Buffer
	next.Write(heartbeatFrame(t, 3))
	next.Write(heartbeatFrame(t, 4))
	if err := r.HandleConn(context.Background(), "conn-2", &next); err != nil {
		t.Fatalf("handle conn: %v", err)
	}
	waitFor(t, "fallback to take over", func() bool { return fallback.count() == 2 })

	// Primary recovers; the half-open probe reconnects and routing reverts.
	primary.failSend.Store(false)
	primary.failConnect.Store(false)
	waitFor(t, "primary probe to recover", func() bool {
		for _, st := range r.Status() {
			for _, s := range st.Sinks {
				if s.ID == "primary" && s.State == StateConnected.String() {
					return true
				}
			}
		}
		return false
	})

	var after bytes.Buffer
	after.Write(heartbeatFrame(t, 5))
	if err := r.HandleConn(context.Background(), "conn-3", &after); err != nil {
		t.Fatalf("handle conn: %v", err)
	}
	waitFor(t, "routing to revert to primary", func() bool { return primary.count() == 1 })
	if fallback.count() != 2 {
		t.Fatalf("fallback received post-recovery traffic: %d", fallback.count())
	}
}

func TestSwapTableReroutesAtomically(t *testing.T) {
	r, sinks := newTestRouter(t, heartbeatTopology("direct", "only"), Options{})

	// New snapshot binds nothing: heartbeats become unroutable, no crash.
	r.SwapTable(NewTable())
	var stream bytes.Buffer
	stream.Write(heartbeatFrame(t, 1))
	if err := r.HandleConn(context.Background(), "conn-1", &stream); err != nil {
		t.Fatalf("handle conn: %v", err)
	}

	// Swap back and confirm routing resumes.
	tbl := NewTable()
	tbl.Bind(protocol.DomainSystem, protocol.TypeHeartbeat, "system.heartbeat")
	r.SwapTable(tbl)
	var again bytes.Buffer
	again.Write(heartbeatFrame(t, 2))
	if err := r.HandleConn(context.Background(), "conn-2", &again); err != nil {
		t.Fatalf("handle conn: %v", err)
	}
	waitFor(t, "rebound topic to deliver", func() bool { return sinks["only"].count() == 1 })
	if got := sinks["only"].sequence()[0]; got != 2 {
		t.Fatalf("wrong message delivered: seq=%d", got)
	}
}

func TestShutdownDrainsQueuedMessages(t *testing.T) {
	sinks := make(map[string]*memSink)
	opts := Options{SinkFactory: memFactory(sinks), ProbeInterval: 10 * time.Millisecond}
	r, err := New(heartbeatTopology("direct", "only"), zerolog.Nop(), opts)
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	// Workers not started yet: everything queues.
	var stream bytes.Buffer
	const n = 20
	for seq := uint64(1); seq <= n; seq++ {
		stream.Write(heartbeatFrame(t, seq))
	}
	if err := r.HandleConn(context.Background(), "conn-1", &stream); err != nil {
		t.Fatalf("handle conn: %v", err)
	}

	r.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if got := sinks["only"].count(); got != n {
		t.Fatalf("drain lost messages: got=%d want=%d", got, n)
	}
}

func TestHandleConnRefusesAfterShutdown(t *testing.T) {
	r, _ := newTestRouter(t, heartbeatTopology("direct", "only"), Options{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	var stream bytes.Buffer
	stream.Write(heartbeatFrame(t, 1))
	if err := r.HandleConn(context.Background(), "late", &stream); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("expected ErrShuttingDown, got %v", err)
	}
}

func TestHandleConnRacingShutdownNeverBypassesIntakeStop(t *testing.T) {
	r, _ := newTestRouter(t, heartbeatTopology("direct", "only"), Options{})

	// Hammer intake from many goroutines while Shutdown runs. Every call
	// must either deliver normally or be refused; none may register after
	// the drain wait has begun.
	frame := heartbeatFrame(t, 1)
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if err := r.HandleConn(context.Background(), "", bytes.NewReader(frame)); err != nil && !errors.Is(err, ErrShuttingDown) {
					t.Errorf("handle conn: %v", err)
					return
				}
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	wg.Wait()

	var late bytes.Buffer
	late.Write(heartbeatFrame(t, 1))
	if err := r.HandleConn(context.Background(), "late", &late); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("expected ErrShuttingDown, got %v", err)
	}
}

func TestNewRejectsInvalidTopology(t *testing.T) {
	cfg := heartbeatTopology("failover", "only") // failover needs a fallback
	if _, err := New(cfg, zerolog.Nop(), Options{}); !errors.Is(err, config.ErrInvalidTopology) {
		t.Fatalf("expected ErrInvalidTopology, got %v", err)
	}
}
