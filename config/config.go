//
// Tencent is pleased to support the open source community by making trpc-dialogue-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dialogue-go is licensed under the Apache License Version 2.0.
//
//

// Package config loads the analytics configuration. The configuration is an
// explicit struct constructed once and passed by reference into component
// constructors; there is no global loader state.
//
// Precedence: environment variables > YAML file > defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"trpc.group/trpc-go/trpc-dialogue-go/log"
)

// Environment overrides.
const (
	envMemoryEnabled  = "MEMORY_ENABLED"
	envMemoryBackend  = "MEMORY_BACKEND"
	envRetrievalMode  = "MEMORY_RETRIEVAL_MODE"
	envMemoryMaxTurns = "MEMORY_MAX_TURNS"
)

// StrategyConfig controls memory retrieval.
type StrategyConfig struct {
	RetrievalMode        string  `yaml:"retrieval_mode"` // "recent" or "similarity"
	MaxRecentTurns       int     `yaml:"max_recent_turns"`
	MaxSimilarityResults int     `yaml:"max_similarity_results"`
	SimilarityThreshold  float64 `yaml:"similarity_threshold"`
}

// SummaryConfig controls summary generation.
type SummaryConfig struct {
	Trigger             string `yaml:"trigger"` // "always", "threshold", "manual"
	TurnsThreshold      int    `yaml:"turns_threshold"`
	TextLengthThreshold int    `yaml:"text_length_threshold"`
	MaxSummaryLength    int    `yaml:"max_summary_length"`
}

// SessionConfig controls session management.
type SessionConfig struct {
	DefaultSessionPrefix string `yaml:"default_session_prefix"`
	TimeoutSeconds       int    `yaml:"timeout"` // 0 means no timeout
	AutoCleanup          bool   `yaml:"auto_cleanup"`
}

// PerformanceConfig controls best-effort persistence and caching.
type PerformanceConfig struct {
	EnableCache bool `yaml:"enable_cache"`
	CacheSize   int  `yaml:"cache_size"`
	BatchSize   int  `yaml:"batch_size"`
}

// MemoryConfig is the conversation memory configuration.
type MemoryConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Backend     string            `yaml:"backend"` // "basic" or "vector"
	Strategy    StrategyConfig    `yaml:"strategy"`
	Summary     SummaryConfig     `yaml:"summary"`
	Session     SessionConfig     `yaml:"session"`
	Performance PerformanceConfig `yaml:"performance"`
}

// Config is the full analytics configuration.
type Config struct {
	Memory MemoryConfig `yaml:"memory"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Memory: MemoryConfig{
			Enabled: true,
			Backend: "basic",
			Strategy: StrategyConfig{
				RetrievalMode:        "recent",
				MaxRecentTurns:       10,
				MaxSimilarityResults: 5,
				SimilarityThreshold:  0.5,
			},
			Summary: SummaryConfig{
				Trigger:             "threshold",
				TurnsThreshold:      5,
				TextLengthThreshold: 500,
				MaxSummaryLength:    200,
			},
			Session: SessionConfig{
				DefaultSessionPrefix: "session",
			},
			Performance: PerformanceConfig{
				EnableCache: true,
				CacheSize:   100,
				BatchSize:   10,
			},
		},
	}
}

// Load builds the configuration from an optional YAML file and environment
// overrides. A missing file is not an error; a malformed file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("decode config file %s: %w", path, err)
			}
			log.Infof("config loaded from yaml: %s", path)
		case os.IsNotExist(err):
			log.Debugf("config file not found, using defaults: %s", path)
		default:
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	log.Infof("config ready: backend=%s, mode=%s",
		cfg.Memory.Backend, cfg.Memory.Strategy.RetrievalMode)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envMemoryEnabled); v != "" {
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			cfg.Memory.Enabled = true
		default:
			cfg.Memory.Enabled = false
		}
	}
	if v := os.Getenv(envMemoryBackend); v != "" {
		cfg.Memory.Backend = v
	}
	if v := os.Getenv(envRetrievalMode); v != "" {
		cfg.Memory.Strategy.RetrievalMode = v
	}
	if v := os.Getenv(envMemoryMaxTurns); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Memory.Strategy.MaxRecentTurns = n
		}
	}
}

// MaxResults returns the retrieval fan-out implied by the strategy.
func (c *Config) MaxResults() int {
	if c.Memory.Strategy.RetrievalMode == "recent" {
		return c.Memory.Strategy.MaxRecentTurns
	}
	return c.Memory.Strategy.MaxSimilarityResults
}
