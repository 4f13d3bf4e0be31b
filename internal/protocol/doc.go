// Package protocol owns the wire contract shared by every producer and
// consumer on the platform.
//
// Ownership boundary:
// - fixed 13-byte message header and framing codec
// - domain-partitioned type space
// - fixed-layout payload structures
// - the validation boundary (size bounds, checksum policy)
package protocol
