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

package pipeline

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kraklabs/semindex/pkg/config"
)

// DiscoveredFile is one file Discovery selected for the rest of the
// pipeline (spec §4.6 Discovery stage).
type DiscoveredFile struct {
	Path        string // relative to root, slash-separated
	ContentHash string
}

// discover walks root, applying config's include/exclude patterns,
// extension allowlist, and max file size, skipping symlinks and binary
// files the same way the teacher's FilterDelta/checkFileEligible does
// (spec §4.6 "Discovery enumerates files under a root and assigns each
// a content hash").
func discover(root string, cfg config.Config) ([]DiscoveredFile, error) {
	supported := make(map[string]bool, len(cfg.SupportedExtensions))
	for _, ext := range cfg.SupportedExtensions {
		supported[ext] = true
	}

	var out []DiscoveredFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && matchesAny(rel+"/", cfg.ExcludePatterns) {
				return filepath.SkipDir
			}
			return nil
		}
		if !supported[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if matchesAny(rel, cfg.ExcludePatterns) {
			return nil
		}
		if len(cfg.IncludePatterns) > 0 && !matchesAny(rel, cfg.IncludePatterns) {
			return nil
		}

		info, statErr := d.Info()
		if statErr != nil {
			return nil //nolint:nilerr // unreadable entries are skipped, not fatal to Discovery
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		if cfg.MaxFileBytes > 0 && info.Size() > cfg.MaxFileBytes {
			return nil
		}
		if isBinary(path) {
			return nil
		}

		hash, hashErr := hashFile(path)
		if hashErr != nil {
			return nil //nolint:nilerr // hashing failure skips the file rather than aborting discovery
		}
		out = append(out, DiscoveredFile{Path: rel, ContentHash: hash})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// matchesAny reports whether path matches any of patterns, supporting a
// leading/trailing "**" segment the stdlib's filepath.Match can't
// express. No pack dependency ships a doublestar-glob matcher, so this
// is hand-rolled (see DESIGN.md).
func matchesAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if globMatch(path, p) {
			return true
		}
	}
	return false
}

func globMatch(path, pattern string) bool {
	if !strings.Contains(pattern, "**") {
		ok, _ := filepath.Match(pattern, path)
		if ok {
			return true
		}
		// Fall back to a segment-count-agnostic suffix/prefix check so a
		// pattern like "vendor/*" still matches nested files, matching the
		// looseness the teacher's own exclude-glob table expects.
		return strings.HasPrefix(path, strings.TrimSuffix(pattern, "*"))
	}
	parts := strings.SplitN(pattern, "**", 2)
	prefix, suffix := parts[0], strings.TrimPrefix(parts[1], "/")
	if prefix != "" && !strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")) {
		return false
	}
	if suffix == "" {
		return true
	}
	ok, _ := filepath.Match(suffix, filepath.Base(path))
	return ok || strings.HasSuffix(path, strings.TrimPrefix(suffix, "*"))
}

func isBinary(path string) bool {
	f, err := os.Open(path) //nolint:gosec // path comes from a WalkDir over a caller-supplied root
	if err != nil {
		return false
	}
	defer f.Close()
	const sniff = 8192
	buf := make([]byte, sniff)
	n, _ := io.ReadFull(f, buf)
	if n <= 0 {
		return false
	}
	return bytes.IndexByte(buf[:n], 0x00) >= 0
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from a WalkDir over a caller-supplied root
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
