package relay

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dawsh2/AlphaPulse-sub008/internal/breaker"
	"github.com/dawsh2/AlphaPulse-sub008/internal/config"
	"github.com/dawsh2/AlphaPulse-sub008/internal/protocol"
)

func newIdleWorker(t *testing.T, backpressure string, buffer int) *sinkWorker {
	t.Helper()
	cfg := config.SinkConfig{
		ID: "w", Kind: config.SinkKindLog,
		Buffer: buffer, Backpressure: backpressure, BlockTimeout: "20ms",
	}
	// Worker is never started: enqueue behavior is observable on the queue.
	return newSinkWorker(&memSink{id: "w"}, cfg, breaker.DefaultConfig(), time.Second, zerolog.Nop())
}

func seqMsg(t *testing.T, seq uint64) protocol.Message {
	t.Helper()
	payload := make([]byte, protocol.HeartbeatLen)
	binary.BigEndian.PutUint64(payload[0:8], seq)
	b, err := protocol.Encode(protocol.DomainSystem, protocol.TypeHeartbeat, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	msg, err := protocol.Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

func drainSeqs(w *sinkWorker) []uint64 {
	var out []uint64
	for {
		select {
		case m := <-w.queue:
			out = append(out, binary.BigEndian.Uint64(m.Payload[0:8]))
		default:
			return out
		}
	}
}

func TestEnqueueDropOldestEvictsHead(t *testing.T) {
	w := newIdleWorker(t, config.BackpressureDropOldest, 2)
	for seq := uint64(1); seq <= 3; seq++ {
		if err := w.enqueue(seqMsg(t, seq)); err != nil {
			t.Fatalf("enqueue %d: %v", seq, err)
		}
	}
	got := drainSeqs(w)
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("drop_oldest queue: %v", got)
	}
}

func TestEnqueueDropNewestKeepsHead(t *testing.T) {
	w := newIdleWorker(t, config.BackpressureDropNewest, 2)
	for seq := uint64(1); seq <= 3; seq++ {
		if err := w.enqueue(seqMsg(t, seq)); err != nil {
			t.Fatalf("enqueue %d: %v", seq, err)
		}
	}
	got := drainSeqs(w)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("drop_newest queue: %v", got)
	}
}

func TestEnqueueBlockTimesOutAndDrops(t *testing.T) {
	w := newIdleWorker(t, config.BackpressureBlock, 1)
	if err := w.enqueue(seqMsg(t, 1)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	start := time.Now()
	if err := w.enqueue(seqMsg(t, 2)); err != nil {
		t.Fatalf("blocked enqueue should drop, not error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("enqueue returned before block timeout: %v", elapsed)
	}
	got := drainSeqs(w)
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("block queue: %v", got)
	}
}

func TestDirectDispatchCountsQueueFullDrops(t *testing.T) {
	w := newIdleWorker(t, config.BackpressureFailoverOnFull, 1)
	sub := &subscription{topic: "system.heartbeat", policy: Direct, workers: []*sinkWorker{w}}

	for seq := uint64(1); seq <= 3; seq++ {
		sub.dispatch(seqMsg(t, seq))
	}

	if got := drainSeqs(w); len(got) != 1 || got[0] != 1 {
		t.Fatalf("direct queue: %v", got)
	}
	if got := w.drops.Load(); got != 2 {
		t.Fatalf("direct drops = %d, want 2", got)
	}
}

func TestFanoutDispatchCountsQueueFullDrops(t *testing.T) {
	full := newIdleWorker(t, config.BackpressureFailoverOnFull, 1)
	roomy := newIdleWorker(t, config.BackpressureDropNewest, 8)
	sub := &subscription{topic: "system.heartbeat", policy: Fanout, workers: []*sinkWorker{full, roomy}}

	for seq := uint64(1); seq <= 3; seq++ {
		sub.dispatch(seqMsg(t, seq))
	}

	if got := drainSeqs(full); len(got) != 1 || got[0] != 1 {
		t.Fatalf("full sink queue: %v", got)
	}
	if got := full.drops.Load(); got != 2 {
		t.Fatalf("full sink drops = %d, want 2", got)
	}
	// The sibling sink had room; fanout never charges it for the other's loss.
	if got := drainSeqs(roomy); len(got) != 3 {
		t.Fatalf("roomy sink queue: %v", got)
	}
	if got := roomy.drops.Load(); got != 0 {
		t.Fatalf("roomy sink drops = %d, want 0", got)
	}
}

func TestEnqueueFailoverOnFullSurfacesError(t *testing.T) {
	w := newIdleWorker(t, config.BackpressureFailoverOnFull, 1)
	if err := w.enqueue(seqMsg(t, 1)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := w.enqueue(seqMsg(t, 2)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}
