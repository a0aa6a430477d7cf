// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config holds the pipeline orchestrator's configuration
// surface (spec §6), loaded from YAML the same way the engine's own
// cmd/cie config does it.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects the trade-off between completeness and latency (spec §6):
// fast gates SemanticIR off, balanced runs it with limits, deep runs it
// unbounded. No mode produces LLM summaries: the RepoMap carries the
// template-generated chunk summaries in every mode.
type Mode string

const (
	ModeFast     Mode = "fast"
	ModeBalanced Mode = "balanced"
	ModeDeep     Mode = "deep"
)

// StageTimeouts bounds wall-clock time per pipeline stage (spec §5/§6).
// Defaults follow spec §5: "pipeline 600s, IR build 30s/file, chunk
// build 10s/file, vector indexing 60s batch, lexical indexing 30s batch".
type StageTimeouts struct {
	Pipeline   time.Duration `yaml:"pipeline"`
	Discovery  time.Duration `yaml:"discovery"`
	Parsing    time.Duration `yaml:"parsing"`
	IR         time.Duration `yaml:"ir"`
	SemanticIR time.Duration `yaml:"semantic_ir"`
	Graph      time.Duration `yaml:"graph"`
	Chunk      time.Duration `yaml:"chunk"`
	RepoMap    time.Duration `yaml:"repo_map"`
	Indexing   time.Duration `yaml:"indexing"`
}

// Config is the full set of knobs spec §6 lists for the pipeline
// orchestrator and its collaborators.
type Config struct {
	ParallelWorkers     int           `yaml:"parallel_workers"`
	Mode                Mode          `yaml:"mode"`
	MaxFileBytes        int64         `yaml:"max_file_bytes"`
	IncludePatterns     []string      `yaml:"include_patterns"`
	ExcludePatterns     []string      `yaml:"exclude_patterns"`
	SupportedExtensions []string      `yaml:"supported_extensions"`
	PagerankDamping     float64       `yaml:"pagerank_damping"`
	StageTimeouts       StageTimeouts `yaml:"stage_timeouts"`
}

// Default returns the configuration the orchestrator falls back to when
// no file is supplied, mirroring the defaults named throughout spec §4-§6.
func Default() Config {
	return Config{
		ParallelWorkers: 4,
		Mode:            ModeBalanced,
		MaxFileBytes:    2 << 20, // 2 MiB
		ExcludePatterns: []string{".git/**", "node_modules/**", "vendor/**", "**/*.min.js"},
		SupportedExtensions: []string{
			".go", ".py", ".js", ".jsx", ".mjs", ".ts", ".tsx",
			".java", ".rs", ".c", ".h", ".cc", ".cpp", ".hpp", ".kt",
		},
		PagerankDamping: 0.85,
		StageTimeouts: StageTimeouts{
			Pipeline:   600 * time.Second,
			Discovery:  30 * time.Second,
			Parsing:    10 * time.Second,
			IR:         30 * time.Second,
			SemanticIR: 10 * time.Second,
			Graph:      60 * time.Second,
			Chunk:      10 * time.Second,
			RepoMap:    30 * time.Second,
			Indexing:   60 * time.Second,
		},
	}
}

// Load parses a YAML document into Config, applying Default for any
// zero-valued field the document leaves unset.
func Load(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the orchestrator cannot run with.
func (c Config) Validate() error {
	if c.ParallelWorkers <= 0 {
		return fmt.Errorf("parallel_workers must be positive, got %d", c.ParallelWorkers)
	}
	if c.MaxFileBytes <= 0 {
		return fmt.Errorf("max_file_bytes must be positive, got %d", c.MaxFileBytes)
	}
	switch c.Mode {
	case ModeFast, ModeBalanced, ModeDeep:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if c.PagerankDamping <= 0 || c.PagerankDamping >= 1 {
		return fmt.Errorf("pagerank_damping must be in (0,1), got %v", c.PagerankDamping)
	}
	return nil
}
