package instrument

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// KeyLen is the packed size of one instrument id on the wire.
const KeyLen = 12

var (
	ErrInvalidVenue     = errors.New("instrument: invalid venue")
	ErrInvalidAssetType = errors.New("instrument: asset type not legal for venue")
	ErrIDOverflow       = errors.New("instrument: asset id exceeds venue namespace")
	ErrShortKey         = errors.New("instrument: short id bytes")
)

// ID identifies one instrument on one venue. The zero value is not a valid
// instrument. IDs are constructed once at discovery time and used as
// immutable map keys thereafter.
type ID struct {
	AssetID   uint64
	Venue     Venue
	AssetType AssetType
	Reserved  uint8
}

// Key is the packed 12-byte form of an ID, laid out widest-first:
// asset_id(8) | venue(2) | asset_type(1) | reserved(1), big-endian.
// Comparable, so usable directly as a cache/hash key.
type Key [KeyLen]byte

// New validates the tuple against the venue registry and returns the id.
func New(venue Venue, assetType AssetType, assetID uint64, reserved uint8) (ID, error) {
	if !venue.Valid() {
		return ID{}, fmt.Errorf("%w: %d", ErrInvalidVenue, venue)
	}
	if !venue.Allows(assetType) {
		return ID{}, fmt.Errorf("%w: venue=%s type=%s", ErrInvalidAssetType, venue.Name(), assetType)
	}
	if bits := venue.IDBits(); bits < 64 && assetID >= 1<<bits {
		return ID{}, fmt.Errorf("%w: venue=%s id=%d width=%d", ErrIDOverflow, venue.Name(), assetID, bits)
	}
	return ID{AssetID: assetID, Venue: venue, AssetType: assetType, Reserved: reserved}, nil
}

// Key packs the id into its fixed 12-byte word.
func (id ID) Key() Key {
	var k Key
	binary.BigEndian.PutUint64(k[0:8], id.AssetID)
	binary.BigEndian.PutUint16(k[8:10], uint16(id.Venue))
	k[10] = uint8(id.AssetType)
	k[11] = id.Reserved
	return k
}

// FromKey unpacks a 12-byte word. Total over all key values; it does not
// revalidate against the registry.
func FromKey(k Key) ID {
	return ID{
		AssetID:   binary.BigEndian.Uint64(k[0:8]),
		Venue:     Venue(binary.BigEndian.Uint16(k[8:10])),
		AssetType: AssetType(k[10]),
		Reserved:  k[11],
	}
}

// AppendBinary appends the packed id to b.
func (id ID) AppendBinary(b []byte) []byte {
	k := id.Key()
	return append(b, k[:]...)
}

// DecodeID reads one packed id from the front of b.
func DecodeID(b []byte) (ID, error) {
	if len(b) < KeyLen {
		return ID{}, ErrShortKey
	}
	var k Key
	copy(k[:], b[:KeyLen])
	return FromKey(k), nil
}

func (id ID) String() string {
	return fmt.Sprintf("%s/%s/%d", id.Venue.Name(), id.AssetType, id.AssetID)
}
