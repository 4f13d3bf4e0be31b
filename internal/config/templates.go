package config

import (
	"fmt"
	"os"
)

func Template() string {
	return topologyTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(topologyTemplate), 0o600)
}

const topologyTemplate = `[relay]
listen_addr = ":9300"
ops_addr = ":9301"
checksum_mode = "strict"
max_message_size = 4096
strict_domain_check = true
drain_timeout = "5s"

[[nodes]]
id = "edge-1"
host = "10.0.0.4"

[[actors]]
id = "coinbase-collector"
kind = "producer"
node = "edge-1"

[[actors]]
id = "arb-strategy"
kind = "consumer"
node = "edge-1"

[[topics]]
name = "market_data.trades"
domain = "market_data"
types = [1]

[[topics]]
name = "market_data.quotes"
domain = "market_data"
types = [2]

[[topics]]
name = "signals.arbitrage"
domain = "signal"
types = [20, 21]

[[topics]]
name = "system.heartbeat"
domain = "system"
types = [100]

[[subscriptions]]
topic = "market_data.trades"
policy = "fanout"

  [[subscriptions.sinks]]
  id = "strategy-feed"
  kind = "tcp"
  addr = "10.0.0.9:9400"
  buffer = 1024
  backpressure = "drop_oldest"

  [[subscriptions.sinks]]
  id = "trade-archive"
  kind = "kafka"
  brokers = ["localhost:9092"]
  kafka_topic = "alphapulse.trades"
  backpressure = "block"
  block_timeout = "250ms"

[[subscriptions]]
topic = "system.heartbeat"
policy = "direct"

  [[subscriptions.sinks]]
  id = "heartbeat-log"
  kind = "log"
  backpressure = "drop_newest"
`
