// Package relay routes validated protocol messages from producer connections
// to topic subscribers.
//
// Ownership boundary:
// - topic resolution table (atomic snapshot, swap on reconfigure)
// - subscriptions and delivery policies (direct/fanout/round-robin/failover)
// - sink workers: queueing, backpressure, connection state, circuit breaking
package relay
