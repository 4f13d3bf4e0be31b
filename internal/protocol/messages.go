package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/dawsh2/AlphaPulse-sub008/internal/instrument"
)

// Prices and quantities travel as fixed-point integers scaled by 1e8.
const FixedPointScale = 100_000_000

// Trade sides.
const (
	SideUnknown uint8 = 0
	SideBuy     uint8 = 1
	SideSell    uint8 = 2
)

// Fixed payload sizes. InstrumentMeta carries a variable-length symbol and
// has bounds instead of one size.
const (
	TradeLen          = instrument.KeyLen + 8 + 8 + 8 + 1
	QuoteLen          = instrument.KeyLen + 8 + 8 + 8 + 8 + 8
	InstrumentMetaMin = instrument.KeyLen + 2
	MaxSymbolLen      = 64
	ArbSignalLen      = instrument.PairKeyLen + 8 + 2 + 8
	HeartbeatLen      = 8 + 8
)

// Trade is one executed trade: instrument | price | quantity | timestamp | side.
type Trade struct {
	Instrument instrument.ID
	Price      int64
	Quantity   int64
	Timestamp  uint64
	Side       uint8
}

func (t Trade) AppendBinary(b []byte) []byte {
	b = t.Instrument.AppendBinary(b)
	b = binary.BigEndian.AppendUint64(b, uint64(t.Price))
	b = binary.BigEndian.AppendUint64(b, uint64(t.Quantity))
	b = binary.BigEndian.AppendUint64(b, t.Timestamp)
	return append(b, t.Side)
}

func DecodeTrade(b []byte) (Trade, error) {
	if len(b) < TradeLen {
		return Trade{}, fmt.Errorf("%w: trade needs %d bytes, have %d", ErrShortPayload, TradeLen, len(b))
	}
	id, err := instrument.DecodeID(b)
	if err != nil {
		return Trade{}, err
	}
	o := instrument.KeyLen
	return Trade{
		Instrument: id,
		Price:      int64(binary.BigEndian.Uint64(b[o : o+8])),
		Quantity:   int64(binary.BigEndian.Uint64(b[o+8 : o+16])),
		Timestamp:  binary.BigEndian.Uint64(b[o+16 : o+24]),
		Side:       b[o+24],
	}, nil
}

// Quote is a top-of-book snapshot.
type Quote struct {
	Instrument instrument.ID
	BidPrice   int64
	BidQty     int64
	AskPrice   int64
	AskQty     int64
	Timestamp  uint64
}

func (q Quote) AppendBinary(b []byte) []byte {
	b = q.Instrument.AppendBinary(b)
	b = binary.BigEndian.AppendUint64(b, uint64(q.BidPrice))
	b = binary.BigEndian.AppendUint64(b, uint64(q.BidQty))
	b = binary.BigEndian.AppendUint64(b, uint64(q.AskPrice))
	b = binary.BigEndian.AppendUint64(b, uint64(q.AskQty))
	return binary.BigEndian.AppendUint64(b, q.Timestamp)
}

func DecodeQuote(b []byte) (Quote, error) {
	if len(b) < QuoteLen {
		return Quote{}, fmt.Errorf("%w: quote needs %d bytes, have %d", ErrShortPayload, QuoteLen, len(b))
	}
	id, err := instrument.DecodeID(b)
	if err != nil {
		return Quote{}, err
	}
	o := instrument.KeyLen
	return Quote{
		Instrument: id,
		BidPrice:   int64(binary.BigEndian.Uint64(b[o : o+8])),
		BidQty:     int64(binary.BigEndian.Uint64(b[o+8 : o+16])),
		AskPrice:   int64(binary.BigEndian.Uint64(b[o+16 : o+24])),
		AskQty:     int64(binary.BigEndian.Uint64(b[o+24 : o+32])),
		Timestamp:  binary.BigEndian.Uint64(b[o+32 : o+40]),
	}, nil
}

// InstrumentMeta announces a discovered instrument with its display symbol.
type InstrumentMeta struct {
	Instrument instrument.ID
	Symbol     string
}

func (m InstrumentMeta) AppendBinary(b []byte) ([]byte, error) {
	if len(m.Symbol) > MaxSymbolLen {
		return nil, fmt.Errorf("%w: symbol %d bytes", ErrPayloadTooLarge, len(m.Symbol))
	}
	b = m.Instrument.AppendBinary(b)
	b = binary.BigEndian.AppendUint16(b, uint16(len(m.Symbol)))
	return append(b, m.Symbol...), nil
}

func DecodeInstrumentMeta(b []byte) (InstrumentMeta, error) {
	if len(b) < InstrumentMetaMin {
		return InstrumentMeta{}, fmt.Errorf("%w: meta needs %d bytes, have %d", ErrShortPayload, InstrumentMetaMin, len(b))
	}
	id, err := instrument.DecodeID(b)
	if err != nil {
		return InstrumentMeta{}, err
	}
	symLen := int(binary.BigEndian.Uint16(b[instrument.KeyLen : instrument.KeyLen+2]))
	if symLen > MaxSymbolLen {
		return InstrumentMeta{}, fmt.Errorf("%w: symbol %d bytes", ErrPayloadTooLarge, symLen)
	}
	if len(b) < InstrumentMetaMin+symLen {
		return InstrumentMeta{}, fmt.Errorf("%w: symbol truncated", ErrShortPayload)
	}
	if len(b) > InstrumentMetaMin+symLen {
		return InstrumentMeta{}, fmt.Errorf("%w: %d trailing bytes after symbol", ErrLengthMismatch, len(b)-InstrumentMetaMin-symLen)
	}
	return InstrumentMeta{
		Instrument: id,
		Symbol:     string(b[InstrumentMetaMin : InstrumentMetaMin+symLen]),
	}, nil
}

// ArbSignal flags a spread between the two legs of a pair. Confidence is in
// basis points of certainty, 0..10000.
type ArbSignal struct {
	Pair       instrument.PairID
	Spread     int64
	Confidence uint16
	Timestamp  uint64
}

func (s ArbSignal) AppendBinary(b []byte) []byte {
	b = s.Pair.AppendBinary(b)
	b = binary.BigEndian.AppendUint64(b, uint64(s.Spread))
	b = binary.BigEndian.AppendUint16(b, s.Confidence)
	return binary.BigEndian.AppendUint64(b, s.Timestamp)
}

func DecodeArbSignal(b []byte) (ArbSignal, error) {
	if len(b) < ArbSignalLen {
		return ArbSignal{}, fmt.Errorf("%w: signal needs %d bytes, have %d", ErrShortPayload, ArbSignalLen, len(b))
	}
	pair, err := instrument.DecodePair(b)
	if err != nil {
		return ArbSignal{}, err
	}
	o := instrument.PairKeyLen
	return ArbSignal{
		Pair:       pair,
		Spread:     int64(binary.BigEndian.Uint64(b[o : o+8])),
		Confidence: binary.BigEndian.Uint16(b[o+8 : o+10]),
		Timestamp:  binary.BigEndian.Uint64(b[o+10 : o+18]),
	}, nil
}

// Heartbeat is a producer liveness beacon.
type Heartbeat struct {
	Producer  uint64
	Timestamp uint64
}

func (h Heartbeat) AppendBinary(b []byte) []byte {
	b = binary.BigEndian.AppendUint64(b, h.Producer)
	return binary.BigEndian.AppendUint64(b, h.Timestamp)
}

func DecodeHeartbeat(b []byte) (Heartbeat, error) {
	if len(b) < HeartbeatLen {
		return Heartbeat{}, fmt.Errorf("%w: heartbeat needs %d bytes, have %d", ErrShortPayload, HeartbeatLen, len(b))
	}
	return Heartbeat{
		Producer:  binary.BigEndian.Uint64(b[0:8]),
		Timestamp: binary.BigEndian.Uint64(b[8:16]),
	}, nil
}
