package protocol

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

const (
	// Magic is the fixed protocol-version constant at the front of every frame.
	Magic uint32 = 0xDEADBEEF

	// HeaderLen is the fixed wire header size:
	// magic:4 | domain:1 | type:2 | length:2 | checksum:4.
	HeaderLen = 13

	// checksumOffset is where the checksum field starts; the checksum covers
	// header bytes [0,checksumOffset) plus the payload.
	checksumOffset = 9

	// MaxPayloadLen is the hard framing limit imposed by the 16-bit length.
	MaxPayloadLen = int(^uint16(0))
)

// The checksum is CRC-32C (Castagnoli). CRC-32 detects every single-bit
// error, which the integrity contract requires.
var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Header is the fixed wire header.
type Header struct {
	Magic    uint32
	Domain   Domain
	Type     MsgType
	Length   uint16
	Checksum uint32
}

// Message is one complete wire message. Validated exactly once at the
// boundary, then treated as immutable while routed.
type Message struct {
	Header  Header
	Payload []byte
}

// Checksum computes the integrity code for a header/payload combination.
func Checksum(h Header, payload []byte) uint32 {
	var head [checksumOffset]byte
	binary.BigEndian.PutUint32(head[0:4], h.Magic)
	head[4] = uint8(h.Domain)
	binary.BigEndian.PutUint16(head[5:7], uint16(h.Type))
	binary.BigEndian.PutUint16(head[7:9], h.Length)
	crc := crc32.Update(0, crcTable, head[:])
	return crc32.Update(crc, crcTable, payload)
}

// EncodeHeader emits the 13 header bytes.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = uint8(h.Domain)
	binary.BigEndian.PutUint16(buf[5:7], uint16(h.Type))
	binary.BigEndian.PutUint16(buf[7:9], h.Length)
	binary.BigEndian.PutUint32(buf[9:13], h.Checksum)
	return buf
}

// DecodeHeader parses the fixed header and verifies the magic.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, ErrTruncated
	}
	h := Header{
		Magic:    binary.BigEndian.Uint32(b[0:4]),
		Domain:   Domain(b[4]),
		Type:     MsgType(binary.BigEndian.Uint16(b[5:7])),
		Length:   binary.BigEndian.Uint16(b[7:9]),
		Checksum: binary.BigEndian.Uint32(b[9:13]),
	}
	if h.Magic != Magic {
		return Header{}, fmt.Errorf("%w: 0x%08X", ErrBadMagic, h.Magic)
	}
	return h, nil
}

// Encode frames one message: computes length and checksum, emits
// header+payload.
func Encode(domain Domain, msgType MsgType, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	h := Header{
		Magic:  Magic,
		Domain: domain,
		Type:   msgType,
		Length: uint16(len(payload)),
	}
	h.Checksum = Checksum(h, payload)
	out := make([]byte, 0, HeaderLen+len(payload))
	out = append(out, EncodeHeader(h)...)
	out = append(out, payload...)
	return out, nil
}

// EncodeTo frames one message directly onto a writer.
func EncodeTo(w io.Writer, domain Domain, msgType MsgType, payload []byte) error {
	b, err := Encode(domain, msgType, payload)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Decode parses one complete message from b. The buffer must contain exactly
// one frame; trailing bytes are a length mismatch. The checksum is always
// verified here; streaming readers that defer integrity to the validation
// policy use Read instead.
func Decode(b []byte) (Message, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return Message{}, err
	}
	want := HeaderLen + int(h.Length)
	if len(b) < want {
		return Message{}, fmt.Errorf("%w: have %d want %d", ErrTruncated, len(b), want)
	}
	if len(b) > want {
		return Message{}, fmt.Errorf("%w: %d trailing bytes", ErrLengthMismatch, len(b)-want)
	}
	payload := make([]byte, h.Length)
	copy(payload, b[HeaderLen:want])
	if Checksum(h, payload) != h.Checksum {
		return Message{}, ErrChecksumMismatch
	}
	return Message{Header: h, Payload: payload}, nil
}

// Read parses one message from a stream: the fixed header first, then
// exactly Length payload bytes, so a multiplexed reader never over-consumes.
// Integrity is not checked here; the validation boundary applies the active
// checksum policy exactly once.
func Read(r io.Reader) (Message, error) {
	var fixed [HeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if err == io.EOF {
			return Message{}, io.EOF
		}
		return Message{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	h, err := DecodeHeader(fixed[:])
	if err != nil {
		return Message{}, err
	}
	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return Message{Header: h, Payload: payload}, nil
}

// Bytes re-frames a decoded message. Round-trips exactly with Decode.
func (m Message) Bytes() []byte {
	out := make([]byte, 0, HeaderLen+len(m.Payload))
	out = append(out, EncodeHeader(m.Header)...)
	return append(out, m.Payload...)
}
