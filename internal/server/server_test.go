package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dawsh2/AlphaPulse-sub008/internal/config"
	"github.com/dawsh2/AlphaPulse-sub008/internal/relay"
)

func testOps(t *testing.T) *Ops {
	t.Helper()
	cfg := config.Config{
		Relay: config.RelayConfig{
			ListenAddr: ":0", OpsAddr: ":0",
			ChecksumMode: "strict", MaxMessageSize: 4096, DrainTimeout: "1s",
		},
		Topics: []config.TopicBinding{
			{Name: "system.heartbeat", Domain: "system", Types: []int{100}},
		},
		Subscriptions: []config.SubscriptionConfig{{
			Topic: "system.heartbeat", Policy: config.PolicyDirect,
			Sinks: []config.SinkConfig{{
				ID: "hb-log", Kind: config.SinkKindLog,
				Buffer: 8, Backpressure: config.BackpressureDropNewest, BlockTimeout: "50ms",
			}},
		}},
	}
	r, err := relay.New(cfg, zerolog.Nop(), relay.Options{})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	r.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = r.Shutdown(ctx)
	})
	return New("test-node", ":0", r, nil, zerolog.Nop())
}

func TestHealthEndpoint(t *testing.T) {
	ops := testOps(t)
	rec := httptest.NewRecorder()
	ops.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["status"] != "ok" || body["node"] != "test-node" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestTopicsEndpoint(t *testing.T) {
	ops := testOps(t)
	rec := httptest.NewRecorder()
	ops.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/topics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var body struct {
		Topics        []string                   `json:"topics"`
		Subscriptions []relay.SubscriptionStatus `json:"subscriptions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(body.Topics) != 1 || body.Topics[0] != "system.heartbeat" {
		t.Fatalf("topics: %v", body.Topics)
	}
	if len(body.Subscriptions) != 1 || body.Subscriptions[0].Sinks[0].ID != "hb-log" {
		t.Fatalf("subscriptions: %+v", body.Subscriptions)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ops := testOps(t)
	rec := httptest.NewRecorder()
	ops.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
}
