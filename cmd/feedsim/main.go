// feedsim is a synthetic producer: it dials a relay, announces a handful of
// instruments, then streams trades, quotes and heartbeats at a fixed rate.
// Useful for soak-testing topologies without a live collector.
package main

import (
	"context"
	"flag"
	"math/rand"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dawsh2/AlphaPulse-sub008/internal/instrument"
	"github.com/dawsh2/AlphaPulse-sub008/internal/observability"
	"github.com/dawsh2/AlphaPulse-sub008/internal/protocol"
)

func main() {
	addr := flag.String("addr", "localhost:9300", "relay address")
	rate := flag.Duration("rate", 100*time.Millisecond, "interval between messages")
	count := flag.Int("count", 0, "messages to send (0 = until interrupted)")
	producer := flag.Uint64("producer", 1, "producer id for heartbeats")
	flag.Parse()

	logger := observability.InitLogger("feedsim")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", *addr).Msg("dial relay")
	}
	defer conn.Close()

	instruments := discoverInstruments(logger)
	for _, meta := range instruments {
		payload, err := meta.AppendBinary(nil)
		if err != nil {
			logger.Fatal().Err(err).Msg("encode meta")
		}
		if err := protocol.EncodeTo(conn, protocol.DomainMarketData, protocol.TypeInstrumentMeta, payload); err != nil {
			logger.Fatal().Err(err).Msg("announce instrument")
		}
	}
	logger.Info().Int("instruments", len(instruments)).Str("addr", *addr).Msg("streaming")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(*rate)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info().Int("sent", sent).Msg("interrupted")
			return
		case <-ticker.C:
		}

		var err error
		switch sent % 10 {
		case 9:
			hb := protocol.Heartbeat{Producer: *producer, Timestamp: now()}
			err = protocol.EncodeTo(conn, protocol.DomainSystem, protocol.TypeHeartbeat, hb.AppendBinary(nil))
		case 4:
			q := randomQuote(rng, instruments)
			err = protocol.EncodeTo(conn, protocol.DomainMarketData, protocol.TypeQuote, q.AppendBinary(nil))
		default:
			tr := randomTrade(rng, instruments)
			err = protocol.EncodeTo(conn, protocol.DomainMarketData, protocol.TypeTrade, tr.AppendBinary(nil))
		}
		if err != nil {
			logger.Fatal().Err(err).Int("sent", sent).Msg("write")
		}

		sent++
		if *count > 0 && sent >= *count {
			logger.Info().Int("sent", sent).Msg("done")
			return
		}
	}
}

func discoverInstruments(logger zerolog.Logger) []protocol.InstrumentMeta {
	specs := []struct {
		venue  instrument.Venue
		kind   instrument.AssetType
		id     uint64
		symbol string
	}{
		{instrument.VenueCoinbase, instrument.AssetSpot, 1, "BTC-USD"},
		{instrument.VenueCoinbase, instrument.AssetSpot, 2, "ETH-USD"},
		{instrument.VenueKraken, instrument.AssetSpot, 7, "ETH/USD"},
		{instrument.VenueUniswapV3, instrument.AssetPool, 0x88E6A0C2, "WETH/USDC 0.05%"},
	}
	out := make([]protocol.InstrumentMeta, 0, len(specs))
	for _, s := range specs {
		id, err := instrument.New(s.venue, s.kind, s.id, 0)
		if err != nil {
			logger.Fatal().Err(err).Str("symbol", s.symbol).Msg("instrument")
		}
		out = append(out, protocol.InstrumentMeta{Instrument: id, Symbol: s.symbol})
	}
	return out
}

func randomTrade(rng *rand.Rand, instruments []protocol.InstrumentMeta) protocol.Trade {
	side := protocol.SideBuy
	if rng.Intn(2) == 1 {
		side = protocol.SideSell
	}
	return protocol.Trade{
		Instrument: instruments[rng.Intn(len(instruments))].Instrument,
		Price:      int64(3000+rng.Intn(1000)) * protocol.FixedPointScale,
		Quantity:   int64(rng.Intn(5)+1) * protocol.FixedPointScale / 10,
		Timestamp:  now(),
		Side:       side,
	}
}

func randomQuote(rng *rand.Rand, instruments []protocol.InstrumentMeta) protocol.Quote {
	mid := int64(3000+rng.Intn(1000)) * protocol.FixedPointScale
	spread := int64(rng.Intn(50)+1) * protocol.FixedPointScale / 100
	return protocol.Quote{
		Instrument: instruments[rng.Intn(len(instruments))].Instrument,
		BidPrice:   mid - spread,
		BidQty:     int64(rng.Intn(20)+1) * protocol.FixedPointScale,
		AskPrice:   mid + spread,
		AskQty:     int64(rng.Intn(20)+1) * protocol.FixedPointScale,
		Timestamp:  now(),
	}
}

func now() uint64 {
	return uint64(time.Now().UnixNano())
}
