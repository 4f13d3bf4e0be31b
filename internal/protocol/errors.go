package protocol

import "errors"

// Codec errors: raised while turning bytes into a Message.
var (
	ErrBadMagic         = errors.New("protocol: bad magic")
	ErrTruncated        = errors.New("protocol: truncated data")
	ErrLengthMismatch   = errors.New("protocol: declared length inconsistent with data")
	ErrChecksumMismatch = errors.New("protocol: checksum mismatch")
	ErrPayloadTooLarge  = errors.New("protocol: payload too large")
)

// Validation errors: raised at the validation boundary on decoded messages.
var (
	ErrSizeConstraint = errors.New("protocol: payload size outside registered bounds")
	ErrUnknownDomain  = errors.New("protocol: unknown domain")
	ErrTypeOutOfRange = errors.New("protocol: type outside domain range")
)

// Payload errors: raised by fixed-layout payload decoders.
var ErrShortPayload = errors.New("protocol: short payload")
