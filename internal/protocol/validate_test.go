package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func mustMessage(t *testing.T, domain Domain, msgType MsgType, payload []byte) Message {
	t.Helper()
	b, err := Encode(domain, msgType, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	msg, err := Read(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestValidateAcceptsRegisteredPayload(t *testing.T) {
	v := NewValidator(DefaultPolicy())
	msg := mustMessage(t, DomainSystem, TypeHeartbeat, make([]byte, HeartbeatLen))
	if err := v.Validate(msg); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateBoundsRejection(t *testing.T) {
	v := NewValidator(DefaultPolicy())
	for _, n := range []int{TradeLen - 1, TradeLen + 1} {
		msg := mustMessage(t, DomainMarketData, TypeTrade, make([]byte, n))
		if err := v.Validate(msg); !errors.Is(err, ErrSizeConstraint) {
			t.Fatalf("size=%d: expected ErrSizeConstraint, got %v", n, err)
		}
	}
}

func TestValidateVariableBounds(t *testing.T) {
	v := NewValidator(DefaultPolicy())
	ok := mustMessage(t, DomainMarketData, TypeInstrumentMeta, make([]byte, InstrumentMetaMin+8))
	if err := v.Validate(ok); err != nil {
		t.Fatalf("in-bounds meta rejected: %v", err)
	}
	over := mustMessage(t, DomainMarketData, TypeInstrumentMeta, make([]byte, InstrumentMetaMin+MaxSymbolLen+1))
	if err := v.Validate(over); !errors.Is(err, ErrSizeConstraint) {
		t.Fatalf("expected ErrSizeConstraint, got %v", err)
	}
}

func TestValidateMaxMessageSize(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxMessageSize = 64
	v := NewValidator(policy)
	msg := mustMessage(t, DomainMarketData, TypeOrderBook, make([]byte, 65))
	if err := v.Validate(msg); !errors.Is(err, ErrSizeConstraint) {
		t.Fatalf("expected ErrSizeConstraint, got %v", err)
	}
}

func TestValidateTypeOutOfRange(t *testing.T) {
	v := NewValidator(DefaultPolicy())
	msg := mustMessage(t, DomainMarketData, MsgType(50), nil)
	if err := v.Validate(msg); !errors.Is(err, ErrTypeOutOfRange) {
		t.Fatalf("expected ErrTypeOutOfRange, got %v", err)
	}
}

func TestValidateUnknownDomain(t *testing.T) {
	strict := NewValidator(DefaultPolicy())
	msg := mustMessage(t, Domain(9), MsgType(1), nil)
	if err := strict.Validate(msg); !errors.Is(err, ErrUnknownDomain) {
		t.Fatalf("expected ErrUnknownDomain, got %v", err)
	}

	// Forward-compatible mode passes unknown domains through.
	lenient := DefaultPolicy()
	lenient.StrictDomain = false
	if err := NewValidator(lenient).Validate(msg); err != nil {
		t.Fatalf("lenient validator rejected unknown domain: %v", err)
	}
}

func TestValidateChecksumModes(t *testing.T) {
	msg := mustMessage(t, DomainSystem, TypeHeartbeat, make([]byte, HeartbeatLen))
	msg.Payload[0] ^= 0xFF // corrupt after framing

	strict := DefaultPolicy()
	if err := NewValidator(strict).Validate(msg); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("strict: expected ErrChecksumMismatch, got %v", err)
	}

	fast := DefaultPolicy()
	fast.Checksum = ChecksumFast
	if err := NewValidator(fast).Validate(msg); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("fast mode must verify small payloads, got %v", err)
	}

	off := DefaultPolicy()
	off.Checksum = ChecksumDisabled
	if err := NewValidator(off).Validate(msg); err != nil {
		t.Fatalf("disabled mode verified checksum: %v", err)
	}
}

func TestValidateFastModeSkipsLargePayloads(t *testing.T) {
	policy := DefaultPolicy()
	policy.Checksum = ChecksumFast
	v := NewValidator(policy)
	msg := mustMessage(t, DomainMarketData, TypeOrderBook, make([]byte, FastChecksumLimit+1))
	msg.Payload[0] ^= 0xFF
	if err := v.Validate(msg); err != nil {
		t.Fatalf("fast mode should trust large payloads: %v", err)
	}
}

func TestChecksumModeByName(t *testing.T) {
	cases := map[string]ChecksumMode{
		"disabled": ChecksumDisabled,
		"off":      ChecksumDisabled,
		"fast":     ChecksumFast,
		"strict":   ChecksumStrict,
		"":         ChecksumStrict,
	}
	for name, want := range cases {
		got, ok := ChecksumModeByName(name)
		if !ok || got != want {
			t.Fatalf("mode %q: got=%v ok=%v", name, got, ok)
		}
	}
	if _, ok := ChecksumModeByName("bogus"); ok {
		t.Fatal("bogus mode accepted")
	}
}
