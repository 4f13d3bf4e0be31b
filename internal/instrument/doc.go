// Package instrument owns the instrument identity contract.
//
// Ownership boundary:
// - fixed-width instrument id packing/unpacking
// - venue/asset registry and namespacing rules
// - pair id construction
package instrument
