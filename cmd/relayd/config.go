package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// runtimeConfig carries node-local knobs that live outside the shared
// topology file.
type runtimeConfig struct {
	NodeID      string
	ListenAddr  string
	OpsAddr     string
	LogLevel    string
	CorsOrigins []string
}

type runtimeFile struct {
	NodeID      string   `toml:"node_id"`
	ListenAddr  string   `toml:"listen_addr"`
	OpsAddr     string   `toml:"ops_addr"`
	LogLevel    string   `toml:"log_level"`
	CorsOrigins []string `toml:"cors_origins"`
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		NodeID:   "relayd",
		LogLevel: "info",
	}
}

func loadRuntimeConfig(path string) (runtimeConfig, error) {
	cfg := defaultRuntimeConfig()

	var raw runtimeFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runtimeConfig{}, fmt.Errorf("load runtime config: %w", err)
	}

	if meta.IsDefined("node_id") {
		if id := strings.TrimSpace(raw.NodeID); id != "" {
			cfg.NodeID = id
		}
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("ops_addr") {
		cfg.OpsAddr = strings.TrimSpace(raw.OpsAddr)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}
	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
