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

package graph

import (
	"strings"

	"github.com/kraklabs/semindex/pkg/ir"
)

// IsEntryPoint reports whether n looks like a program entry point: a Go
// "main" function in package main, a Python "if __name__ == '__main__'"
// guarded module (approximated here via a main() function with no
// incoming CALLS edges), a JS/TS function with no incoming CALLS edges in
// an index.js, index.ts, main.js or main.ts file, or a Java/Kotlin
// function or method named main.
func IsEntryPoint(n *ir.Node, incomingCalls int) bool {
	javaLikeMethod := n.Kind == ir.KindMethod && (n.Language == "java" || n.Language == "kotlin")
	if n.Kind != ir.KindFunction && !javaLikeMethod {
		return false
	}
	switch n.Language {
	case "go":
		return n.Name == "main" && strings.HasSuffix(n.ModulePath, "main")
	case "python":
		return n.Name == "main" && incomingCalls == 0
	case "javascript", "typescript":
		return incomingCalls == 0 && (strings.HasSuffix(n.FilePath, "index.js") ||
			strings.HasSuffix(n.FilePath, "index.ts") || strings.HasSuffix(n.FilePath, "main.ts") ||
			strings.HasSuffix(n.FilePath, "main.js"))
	case "java", "kotlin":
		return n.Name == "main"
	}
	return false
}

// MarkEntryPoints sets IsEntryPoint on every node IsEntryPoint's per-
// language patterns match (spec §4.4 "entry-point detection"), using the
// resolved CALLS edges to count how often each function is called from
// inside the repository.
func MarkEntryPoints(docs []*ir.IRDocument) {
	incoming := make(map[string]int)
	for _, doc := range docs {
		for _, e := range doc.Edges {
			if e.Kind == ir.EdgeCalls && e.TargetID != "" {
				incoming[e.TargetID]++
			}
		}
	}
	for _, doc := range docs {
		for i := range doc.Nodes {
			n := &doc.Nodes[i]
			if IsEntryPoint(n, incoming[n.ID]) {
				n.IsEntryPoint = true
			}
		}
	}
}

// Role heuristics (spec §4.4): a node is tagged by matching its name and
// file path against the conventional vocabulary used across the pack's
// example services, not by type analysis.
var (
	controllerSuffixes = []string{"Controller", "Handler", "Resource", "Endpoint"}
	serviceSuffixes    = []string{"Service", "UseCase", "Interactor"}
	repoSuffixes       = []string{"Repository", "Repo", "DAO", "Store"}
	utilNameHints      = []string{"util", "helper", "common"}
)

// AssignRole computes a best-effort role tag for a Class/Interface/File
// node, used later by the chunk and repo-map builders to group and
// summarize related code.
func AssignRole(n *ir.Node) string {
	if n.IsTestFile {
		return "test"
	}
	name := n.Name
	for _, s := range controllerSuffixes {
		if strings.HasSuffix(name, s) {
			return "controller"
		}
	}
	for _, s := range serviceSuffixes {
		if strings.HasSuffix(name, s) {
			return "service"
		}
	}
	for _, s := range repoSuffixes {
		if strings.HasSuffix(name, s) {
			return "repo"
		}
	}
	lowerPath := strings.ToLower(n.FilePath)
	for _, hint := range utilNameHints {
		if strings.Contains(lowerPath, hint) {
			return "util"
		}
	}
	return ""
}
