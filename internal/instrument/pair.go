package instrument

import (
	"bytes"
	"fmt"
)

// PairKeyLen is the packed size of one pair id: two instrument words.
const PairKeyLen = 2 * KeyLen

// PairID combines two instrument ids. Pairing is directed: Base/Quote order
// is semantic, so Pair(a,b) != Pair(b,a). Pool adapters that model an
// undirected pool use CanonicalPair instead, which fixes the order by packed
// key; either way identical semantic pairs always produce identical PairIDs.
type PairID struct {
	Base  ID
	Quote ID
}

// PairKey is the packed 24-byte form of a PairID, base word first.
type PairKey [PairKeyLen]byte

// Pair builds a directed pair (base, quote).
func Pair(base, quote ID) PairID {
	return PairID{Base: base, Quote: quote}
}

// CanonicalPair builds an undirected pair: the instrument with the smaller
// packed key always lands in Base, so CanonicalPair(a,b) == CanonicalPair(b,a).
func CanonicalPair(a, b ID) PairID {
	ka, kb := a.Key(), b.Key()
	if bytes.Compare(ka[:], kb[:]) <= 0 {
		return PairID{Base: a, Quote: b}
	}
	return PairID{Base: b, Quote: a}
}

// Key packs the pair into its fixed 24-byte word.
func (p PairID) Key() PairKey {
	var k PairKey
	kb, kq := p.Base.Key(), p.Quote.Key()
	copy(k[0:KeyLen], kb[:])
	copy(k[KeyLen:], kq[:])
	return k
}

// PairFromKey unpacks a 24-byte pair word.
func PairFromKey(k PairKey) PairID {
	var kb, kq Key
	copy(kb[:], k[0:KeyLen])
	copy(kq[:], k[KeyLen:])
	return PairID{Base: FromKey(kb), Quote: FromKey(kq)}
}

// AppendBinary appends the packed pair to b.
func (p PairID) AppendBinary(b []byte) []byte {
	k := p.Key()
	return append(b, k[:]...)
}

// DecodePair reads one packed pair from the front of b.
func DecodePair(b []byte) (PairID, error) {
	if len(b) < PairKeyLen {
		return PairID{}, ErrShortKey
	}
	var k PairKey
	copy(k[:], b[:PairKeyLen])
	return PairFromKey(k), nil
}

func (p PairID) String() string {
	return fmt.Sprintf("%s<>%s", p.Base, p.Quote)
}
