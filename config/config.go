// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package config loads the recognised configuration keys of the pipeline
// into a single Config value, populated once via viper and then passed by
// reference into every operator constructor (no process-global settings).
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries every tunable of the pipeline. All durations are derived
// from the recognised keys' natural units (minutes, seconds) at load time so
// operator code never repeats the conversion.
type Config struct {
	Topic                string        // TOPIC
	NumPartitions        int           // NUM_PARTITIONS
	SpeedupFactor        int           // SPEEDUP_FACTOR
	MaxDelay             time.Duration // MAX_DELAY_SEC
	WatermarkInterval    time.Duration // WATERMARK_INTERVAL_MIN
	DelayProb            float64       // DELAY_PROB
	RecommendationClients []uint64     // RECOMMENDATION_CLIENTS

	// Weights and thresholds (Design Notes §9: all configuration inputs).
	WeightLike          uint64
	WeightComment       uint64
	WeightReply         uint64
	WeightTag           uint64
	WeightForum         uint64
	WeightActive        uint64
	WeightCommonFriends uint64
	WeightWork          uint64
	WeightStudy         uint64

	TopK              int           // K, recommendation top-K size (5)
	RecWindowCount    int           // N, number of rolling recommendation buckets (4)
	RecWindowSize     time.Duration // W, recommendation bucket width (1h)
	ActiveWindow      time.Duration // active-post window (12h)
	ActivePostsWindow time.Duration // active-posts notification cadence (30min)

	BurstWindow  time.Duration // frequency detector sliding window (60s)
	BurstBucket  time.Duration // frequency detector bucket width (10s)
	MaxFreq      uint64        // MAX_FREQ normalisation constant

	PercentileBuckets    int     // B, number of histogram buckets
	PercentileLowerBound float64
	PercentileUpperBound float64
	PercentileTarget     float64 // e.g. 5th percentile

	// Broker / storage connection settings, out of the core's scope as
	// implementations but required to wire C2/C7 to real infrastructure.
	BrokerAddrs []string // Kafka broker addresses
	DatabaseDSN string   // relational store connection string
	PresenceURL string   // DDA communication service URL; empty disables presence
}

// Load populates a Config from environment variables (and an optional
// settings file if DSPA_CONFIG_FILE is set), applying the same defaults the
// pipeline has always shipped with.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("dspa")
	v.AutomaticEnv()

	v.SetDefault("topic", "events")
	v.SetDefault("num_partitions", 8)
	v.SetDefault("speedup_factor", 1)
	v.SetDefault("max_delay_sec", 3600)
	v.SetDefault("watermark_interval_min", 10)
	v.SetDefault("delay_prob", 0.0)
	v.SetDefault("recommendation_clients", "")

	v.SetDefault("weight_like", 3)
	v.SetDefault("weight_comment", 5)
	v.SetDefault("weight_reply", 5)
	v.SetDefault("weight_tag", 2)
	v.SetDefault("weight_forum", 2)
	v.SetDefault("weight_active", 1)
	v.SetDefault("weight_common_friends", 4)
	v.SetDefault("weight_work", 3)
	v.SetDefault("weight_study", 3)

	v.SetDefault("top_k", 5)
	v.SetDefault("rec_window_count", 4)
	v.SetDefault("rec_window_size_min", 60)
	v.SetDefault("active_window_hours", 12)
	v.SetDefault("active_posts_notify_min", 30)

	v.SetDefault("burst_window_sec", 60)
	v.SetDefault("burst_bucket_sec", 10)
	v.SetDefault("max_freq", 100)

	v.SetDefault("percentile_buckets", 100)
	v.SetDefault("percentile_lower_bound", 0.0)
	v.SetDefault("percentile_upper_bound", 1.0)
	v.SetDefault("percentile_target", 5.0)

	v.SetDefault("broker_addrs", "localhost:9092")
	v.SetDefault("database_dsn", "")
	v.SetDefault("presence_url", "")

	if cfgFile := v.GetString("config_file"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	ids, err := parseUintList(v.GetString("recommendation_clients"))
	if err != nil {
		return nil, fmt.Errorf("config: invalid RECOMMENDATION_CLIENTS: %w", err)
	}

	return &Config{
		Topic:                  v.GetString("topic"),
		NumPartitions:          v.GetInt("num_partitions"),
		SpeedupFactor:          v.GetInt("speedup_factor"),
		MaxDelay:               time.Duration(v.GetInt("max_delay_sec")) * time.Second,
		WatermarkInterval:      time.Duration(v.GetInt("watermark_interval_min")) * time.Minute,
		DelayProb:              v.GetFloat64("delay_prob"),
		RecommendationClients:  ids,

		WeightLike:          uint64(v.GetInt64("weight_like")),
		WeightComment:       uint64(v.GetInt64("weight_comment")),
		WeightReply:         uint64(v.GetInt64("weight_reply")),
		WeightTag:           uint64(v.GetInt64("weight_tag")),
		WeightForum:         uint64(v.GetInt64("weight_forum")),
		WeightActive:        uint64(v.GetInt64("weight_active")),
		WeightCommonFriends: uint64(v.GetInt64("weight_common_friends")),
		WeightWork:          uint64(v.GetInt64("weight_work")),
		WeightStudy:         uint64(v.GetInt64("weight_study")),

		TopK:              v.GetInt("top_k"),
		RecWindowCount:    v.GetInt("rec_window_count"),
		RecWindowSize:     time.Duration(v.GetInt("rec_window_size_min")) * time.Minute,
		ActiveWindow:      time.Duration(v.GetInt("active_window_hours")) * time.Hour,
		ActivePostsWindow: time.Duration(v.GetInt("active_posts_notify_min")) * time.Minute,

		BurstWindow: time.Duration(v.GetInt("burst_window_sec")) * time.Second,
		BurstBucket: time.Duration(v.GetInt("burst_bucket_sec")) * time.Second,
		MaxFreq:     uint64(v.GetInt64("max_freq")),

		PercentileBuckets:    v.GetInt("percentile_buckets"),
		PercentileLowerBound: v.GetFloat64("percentile_lower_bound"),
		PercentileUpperBound: v.GetFloat64("percentile_upper_bound"),
		PercentileTarget:     v.GetFloat64("percentile_target"),

		BrokerAddrs: parseStringList(v.GetString("broker_addrs")),
		DatabaseDSN: v.GetString("database_dsn"),
		PresenceURL: v.GetString("presence_url"),
	}, nil
}

// parseStringList splits a comma-separated configuration value into its
// trimmed, non-empty elements. Comma lists are read as plain strings and
// split explicitly rather than via viper's slice casting, whose behaviour
// for env-sourced values depends on the underlying cast library's string
// heuristics; an explicit split keeps the recognised "comma list" format
// (spec.md §6) unambiguous regardless of source (env var or config file).
func parseStringList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseUintList parses a comma-separated list of decimal person ids, as
// used by RECOMMENDATION_CLIENTS (spec.md §6).
func parseUintList(s string) ([]uint64, error) {
	var ids []uint64
	for _, part := range parseStringList(s) {
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
