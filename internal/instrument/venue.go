package instrument

import "strings"

// Venue is the numeric identifier for a trading venue.
type Venue uint16

// Centralized exchanges occupy the low range, DEX protocols start at 200.
const (
	VenueUnknown  Venue = 0
	VenueCoinbase Venue = 1
	VenueKraken   Venue = 2
	VenueBinance  Venue = 3
	VenueGemini   Venue = 4

	VenueUniswapV2 Venue = 200
	VenueUniswapV3 Venue = 201
	VenueSushiSwap Venue = 202
	VenueQuickSwap Venue = 203
)

// AssetType is the numeric identifier for an asset class within a venue.
type AssetType uint8

const (
	AssetUnknown AssetType = 0
	AssetSpot    AssetType = 1
	AssetToken   AssetType = 2
	AssetPool    AssetType = 3
	AssetOption  AssetType = 4
)

// venueInfo is one registry entry. AssetIDBits is the width of the
// venue-scoped id namespace; ids at or above 1<<AssetIDBits are rejected so
// every (venue, asset_type) namespace stays collision-free by construction.
type venueInfo struct {
	Name        string
	AssetIDBits uint8
	AssetTypes  []AssetType
}

// CEX venues enumerate symbols and fit in 32 bits; DEX venues derive ids from
// on-chain addresses and use the full 64-bit field.
var venues = map[Venue]venueInfo{
	VenueCoinbase: {Name: "coinbase", AssetIDBits: 32, AssetTypes: []AssetType{AssetSpot, AssetOption}},
	VenueKraken:   {Name: "kraken", AssetIDBits: 32, AssetTypes: []AssetType{AssetSpot, AssetOption}},
	VenueBinance:  {Name: "binance", AssetIDBits: 32, AssetTypes: []AssetType{AssetSpot, AssetOption}},
	VenueGemini:   {Name: "gemini", AssetIDBits: 32, AssetTypes: []AssetType{AssetSpot}},

	VenueUniswapV2: {Name: "uniswap_v2", AssetIDBits: 64, AssetTypes: []AssetType{AssetToken, AssetPool}},
	VenueUniswapV3: {Name: "uniswap_v3", AssetIDBits: 64, AssetTypes: []AssetType{AssetToken, AssetPool}},
	VenueSushiSwap: {Name: "sushiswap", AssetIDBits: 64, AssetTypes: []AssetType{AssetToken, AssetPool}},
	VenueQuickSwap: {Name: "quickswap", AssetIDBits: 64, AssetTypes: []AssetType{AssetToken, AssetPool}},
}

var venuesByName = func() map[string]Venue {
	m := make(map[string]Venue, len(venues))
	for v, info := range venues {
		m[info.Name] = v
	}
	return m
}()

// Valid reports whether the venue is registered.
func (v Venue) Valid() bool {
	_, ok := venues[v]
	return ok
}

// Name returns the registered venue name, or "unknown".
func (v Venue) Name() string {
	info, ok := venues[v]
	if !ok {
		return "unknown"
	}
	return info.Name
}

// Allows reports whether the asset type is legal for the venue.
func (v Venue) Allows(t AssetType) bool {
	info, ok := venues[v]
	if !ok {
		return false
	}
	for _, at := range info.AssetTypes {
		if at == t {
			return true
		}
	}
	return false
}

// IDBits returns the asset-id namespace width for the venue, 0 if unknown.
func (v Venue) IDBits() uint8 {
	info, ok := venues[v]
	if !ok {
		return 0
	}
	return info.AssetIDBits
}

// VenueByName resolves a registered venue by its configuration name.
func VenueByName(name string) (Venue, bool) {
	v, ok := venuesByName[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

func (t AssetType) String() string {
	switch t {
	case AssetSpot:
		return "spot"
	case AssetToken:
		return "token"
	case AssetPool:
		return "pool"
	case AssetOption:
		return "option"
	default:
		return "unknown"
	}
}
