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

package main

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// headCommit returns the current commit hash of the git repository at
// repoPath, which is the core's snapshot_id (spec §3 "Snapshot.snapshot_id
// equals the commit hash"). Git itself is the excluded version-control
// collaborator (spec.md §1 Non-goals); this is just enough shell-out to
// identify the commit being indexed.
func headCommit(repoPath string) (string, error) {
	out, err := exec.Command("git", "-C", repoPath, "rev-parse", "HEAD").Output()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD commit (is %s a git repository?): %w", repoPath, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// repoID derives a stable logical identifier from the repo's absolute
// path (spec §3 "repo_id... caller-supplied"). A real deployment would
// source this from its own repository registry; the CLI has none.
func repoID(repoPath string) (string, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return "", err
	}
	return filepath.Base(abs), nil
}

func defaultDataDir(repoPath, override string) string {
	if override != "" {
		return override
	}
	return filepath.Join(repoPath, ".semindex")
}
