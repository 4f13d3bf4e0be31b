package relay

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dawsh2/AlphaPulse-sub008/internal/config"
	"github.com/dawsh2/AlphaPulse-sub008/internal/protocol"
)

// Sink is one delivery destination. Connect and Send are called only from
// the sink's own worker goroutine.
type Sink interface {
	ID() string
	Connect(ctx context.Context) error
	Send(ctx context.Context, msg protocol.Message) error
	Close() error
}

// SinkFactory constructs a Sink from topology configuration. Tests inject
// their own factory.
type SinkFactory func(cfg config.SinkConfig, logger zerolog.Logger) (Sink, error)

// DefaultSinkFactory builds the production sink kinds.
func DefaultSinkFactory(cfg config.SinkConfig, logger zerolog.Logger) (Sink, error) {
	switch cfg.Kind {
	case config.SinkKindLog:
		return newLogSink(cfg.ID, logger), nil
	case config.SinkKindTCP:
		return newTCPSink(cfg.ID, cfg.Addr), nil
	case config.SinkKindKafka:
		return newKafkaSink(cfg.ID, cfg.Brokers, cfg.KafkaTopic), nil
	default:
		return nil, fmt.Errorf("%w: unknown sink kind %q", config.ErrInvalidTopology, cfg.Kind)
	}
}

// logSink emits message summaries to the structured log. It stands in for a
// local dashboard feed and never fails.
type logSink struct {
	id  string
	log zerolog.Logger
}

func newLogSink(id string, logger zerolog.Logger) *logSink {
	return &logSink{id: id, log: logger.With().Str("sink", id).Logger()}
}

func (s *logSink) ID() string { return s.id }

func (s *logSink) Connect(context.Context) error { return nil }

func (s *logSink) Send(_ context.Context, msg protocol.Message) error {
	s.log.Info().
		Str("domain", msg.Header.Domain.String()).
		Uint16("type", uint16(msg.Header.Type)).
		Uint16("length", msg.Header.Length).
		Msg("sink_deliver")
	return nil
}

func (s *logSink) Close() error { return nil }

// tcpSink writes raw frames to a remote consumer, reconnecting on demand.
type tcpSink struct {
	id   string
	addr string

	mu   sync.Mutex
	conn net.Conn
}

const (
	tcpDialTimeout  = 5 * time.Second
	tcpWriteTimeout = 5 * time.Second
)

func newTCPSink(id, addr string) *tcpSink {
	return &tcpSink{id: id, addr: addr}
}

func (s *tcpSink) ID() string { return s.id }

func (s *tcpSink) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}
	d := net.Dialer{Timeout: tcpDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("sink %s dial %s: %w", s.id, s.addr, err)
	}
	s.conn = conn
	return nil
}

func (s *tcpSink) Send(_ context.Context, msg protocol.Message) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("sink %s: %w", s.id, ErrSinkUnavailable)
	}
	if err := conn.SetWriteDeadline(time.Now().Add(tcpWriteTimeout)); err != nil {
		s.dropConn()
		return err
	}
	if _, err := conn.Write(msg.Bytes()); err != nil {
		s.dropConn()
		return err
	}
	return nil
}

func (s *tcpSink) dropConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *tcpSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
