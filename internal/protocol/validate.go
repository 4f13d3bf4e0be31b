package protocol

import (
	"fmt"
	"strings"
)

// ChecksumMode selects how much integrity checking the validation boundary
// performs. Trusted same-process paths may disable or bound the work;
// cross-process and network paths run Strict.
type ChecksumMode int

const (
	ChecksumDisabled ChecksumMode = iota
	ChecksumFast
	ChecksumStrict
)

// FastChecksumLimit bounds the per-message work in Fast mode: payloads up to
// this size are fully verified, larger ones are trusted.
const FastChecksumLimit = 512

func (m ChecksumMode) String() string {
	switch m {
	case ChecksumDisabled:
		return "disabled"
	case ChecksumFast:
		return "fast"
	case ChecksumStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// ChecksumModeByName resolves a mode from its configuration name.
func ChecksumModeByName(name string) (ChecksumMode, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "disabled", "off", "none":
		return ChecksumDisabled, true
	case "fast":
		return ChecksumFast, true
	case "strict", "":
		return ChecksumStrict, true
	default:
		return ChecksumStrict, false
	}
}

// Policy configures the validation boundary.
type Policy struct {
	Checksum ChecksumMode
	// MaxMessageSize caps payload bytes regardless of per-type bounds.
	MaxMessageSize int
	// StrictDomain rejects unknown domains outright; when false they pass
	// through unvalidated for forward compatibility.
	StrictDomain bool
}

// DefaultPolicy is the network-facing default.
func DefaultPolicy() Policy {
	return Policy{Checksum: ChecksumStrict, MaxMessageSize: 4096, StrictDomain: true}
}

// Bounds is the legal payload size window for one (domain, type).
type Bounds struct {
	Min, Max int
}

type boundsKey struct {
	Domain Domain
	Type   MsgType
}

// Validator enforces per-type size bounds and checksum integrity. It runs
// exactly once per message, at the boundary where bytes first become a
// structured message.
type Validator struct {
	policy Policy
	bounds map[boundsKey]Bounds
}

// NewValidator builds a validator seeded with the platform payload bounds.
func NewValidator(policy Policy) *Validator {
	v := &Validator{policy: policy, bounds: make(map[boundsKey]Bounds)}
	v.SetBounds(DomainMarketData, TypeTrade, Bounds{TradeLen, TradeLen})
	v.SetBounds(DomainMarketData, TypeQuote, Bounds{QuoteLen, QuoteLen})
	v.SetBounds(DomainMarketData, TypeInstrumentMeta, Bounds{InstrumentMetaMin, InstrumentMetaMin + MaxSymbolLen})
	v.SetBounds(DomainSignal, TypeArbSignal, Bounds{ArbSignalLen, ArbSignalLen})
	v.SetBounds(DomainSystem, TypeHeartbeat, Bounds{HeartbeatLen, HeartbeatLen})
	return v
}

// SetBounds registers or overrides the size window for one (domain, type).
func (v *Validator) SetBounds(d Domain, t MsgType, b Bounds) {
	v.bounds[boundsKey{d, t}] = b
}

// Policy returns the active policy.
func (v *Validator) Policy() Policy {
	return v.policy
}

// Validate checks one decoded message against the active policy.
func (v *Validator) Validate(msg Message) error {
	n := len(msg.Payload)
	if v.policy.MaxMessageSize > 0 && n > v.policy.MaxMessageSize {
		return fmt.Errorf("%w: %d > max %d", ErrSizeConstraint, n, v.policy.MaxMessageSize)
	}

	if !msg.Header.Domain.Valid() {
		if v.policy.StrictDomain {
			return fmt.Errorf("%w: %d", ErrUnknownDomain, msg.Header.Domain)
		}
	} else {
		if !msg.Header.Domain.Contains(msg.Header.Type) {
			return fmt.Errorf("%w: domain=%s type=%d", ErrTypeOutOfRange, msg.Header.Domain, msg.Header.Type)
		}
		if b, ok := v.bounds[boundsKey{msg.Header.Domain, msg.Header.Type}]; ok {
			if n < b.Min || n > b.Max {
				return fmt.Errorf("%w: domain=%s type=%d size=%d bounds=[%d,%d]",
					ErrSizeConstraint, msg.Header.Domain, msg.Header.Type, n, b.Min, b.Max)
			}
		}
	}

	switch v.policy.Checksum {
	case ChecksumDisabled:
	case ChecksumFast:
		if n <= FastChecksumLimit {
			if Checksum(msg.Header, msg.Payload) != msg.Header.Checksum {
				return ErrChecksumMismatch
			}
		}
	case ChecksumStrict:
		if Checksum(msg.Header, msg.Payload) != msg.Header.Checksum {
			return ErrChecksumMismatch
		}
	}
	return nil
}
