package protocol

import "strings"

// Domain partitions the message type space so independently evolving
// producers never collide on type numbers.
type Domain uint8

const (
	DomainUnknown    Domain = 0
	DomainMarketData Domain = 1
	DomainSignal     Domain = 2
	DomainExecution  Domain = 3
	DomainSystem     Domain = 4
)

// MsgType is meaningful only within its domain.
type MsgType uint16

// Market data types (1..19).
const (
	TypeTrade          MsgType = 1
	TypeQuote          MsgType = 2
	TypeOrderBook      MsgType = 3
	TypeInstrumentMeta MsgType = 4
)

// Signal types (20..39).
const (
	TypeArbSignal MsgType = 20
	TypeMEVSignal MsgType = 21
)

// Execution types (40..59).
const (
	TypeOrderRequest MsgType = 40
	TypeFill         MsgType = 41
)

// System types (100..119).
const (
	TypeHeartbeat    MsgType = 100
	TypeConfigUpdate MsgType = 101
)

type typeRange struct {
	Lo, Hi MsgType
}

var domainRanges = map[Domain]typeRange{
	DomainMarketData: {1, 19},
	DomainSignal:     {20, 39},
	DomainExecution:  {40, 59},
	DomainSystem:     {100, 119},
}

// Valid reports whether the domain is registered.
func (d Domain) Valid() bool {
	_, ok := domainRanges[d]
	return ok
}

// Contains reports whether t falls inside the domain's reserved type range.
func (d Domain) Contains(t MsgType) bool {
	r, ok := domainRanges[d]
	return ok && t >= r.Lo && t <= r.Hi
}

func (d Domain) String() string {
	switch d {
	case DomainMarketData:
		return "market_data"
	case DomainSignal:
		return "signal"
	case DomainExecution:
		return "execution"
	case DomainSystem:
		return "system"
	default:
		return "unknown"
	}
}

// DomainByName resolves a domain from its configuration name.
func DomainByName(name string) (Domain, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "market_data", "marketdata":
		return DomainMarketData, true
	case "signal", "signals":
		return DomainSignal, true
	case "execution":
		return DomainExecution, true
	case "system":
		return DomainSystem, true
	default:
		return DomainUnknown, false
	}
}
