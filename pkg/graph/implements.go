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
	"regexp"
	"strings"

	"github.com/kraklabs/semindex/pkg/ir"
)

// interfaceMethodPattern matches method signatures inside a Go interface
// body's source text: any identifier, exported or not, that starts a line
// and is followed by "(".
var interfaceMethodPattern = regexp.MustCompile(`(?m)^\s*([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// StructuralImplementsEdges infers Go-style structural interface
// satisfaction across the whole repository: a concrete type implicitly
// implements an interface whose method set it fully covers, with no
// explicit "implements" syntax to resolve. This only applies to
// languages without an explicit implements clause (Go); JS/TS/Java/Kotlin
// interface satisfaction is already captured as an explicit IMPLEMENTS
// edge by their walkers and resolved by ResolveDocument instead. source
// maps file_path to raw bytes, needed to read interface bodies (Go
// interfaces declare method signatures as body text, not Method nodes).
func StructuralImplementsEdges(docs []*ir.IRDocument, source map[string][]byte) []ir.Edge {
	interfaces := collectInterfaces(docs, source)
	typeMethods := collectTypeMethodSets(docs)

	ifaceNames := make(map[string]bool, len(interfaces))
	for name := range interfaces {
		ifaceNames[name] = true
	}

	var edges []ir.Edge
	for _, iface := range interfaces {
		if len(iface.methods) == 0 {
			continue
		}
		for typeName, methods := range typeMethods {
			if ifaceNames[typeName] {
				continue
			}
			if hasAllMethods(methods.methods, iface.methods) {
				e := ir.Edge{
					Kind:     ir.EdgeImplements,
					SourceID: typeMethods[typeName].ownerID,
					TargetID: iface.ownerID,
				}
				e.ID = ir.EdgeID(e.Kind, e.SourceID, e.TargetID, e.Span)
				edges = append(edges, e)
			}
		}
	}
	return edges
}

type interfaceInfo struct {
	ownerID string
	methods []string
}

type methodSet struct {
	ownerID string
	methods map[string]bool
}

func collectInterfaces(docs []*ir.IRDocument, source map[string][]byte) map[string]interfaceInfo {
	result := make(map[string]interfaceInfo)
	for _, doc := range docs {
		for _, n := range doc.Nodes {
			if n.Kind != ir.KindInterface || n.Language != "go" {
				continue
			}
			// The Go walker emits no Method nodes under an interface (Go
			// interfaces declare method signatures, not bodies), so the
			// method set comes from the interface's source text. Fall back
			// to the full span when no body span was recorded.
			span := n.Span
			if n.BodySpan != nil {
				span = *n.BodySpan
			}
			body := string(sliceSafe(source[n.FilePath], span.StartByte, span.EndByte))
			matches := interfaceMethodPattern.FindAllStringSubmatch(body, -1)
			methods := make([]string, 0, len(matches))
			for _, m := range matches {
				methods = append(methods, m[1])
			}
			result[n.Name] = interfaceInfo{ownerID: n.ID, methods: methods}
		}
	}
	return result
}

func sliceSafe(b []byte, start, end int) []byte {
	if b == nil || start < 0 || end > len(b) || start > end {
		return nil
	}
	return b[start:end]
}

func collectTypeMethodSets(docs []*ir.IRDocument) map[string]methodSet {
	result := make(map[string]methodSet)
	for _, doc := range docs {
		for _, n := range doc.Nodes {
			if n.Kind != ir.KindMethod || n.Language != "go" {
				continue
			}
			if !strings.Contains(n.Name, ".") {
				continue
			}
			parts := strings.SplitN(n.Name, ".", 2)
			typeName, methodName := parts[0], parts[1]
			ms, ok := result[typeName]
			if !ok {
				ms = methodSet{methods: make(map[string]bool)}
			}
			ms.methods[methodName] = true
			// use the type declaration node id, if we can find one, as owner
			if ownerID := findTypeNodeID(docs, typeName); ownerID != "" {
				ms.ownerID = ownerID
			}
			result[typeName] = ms
		}
	}
	return result
}

func findTypeNodeID(docs []*ir.IRDocument, typeName string) string {
	for _, doc := range docs {
		for _, n := range doc.Nodes {
			if (n.Kind == ir.KindClass || n.Kind == ir.KindInterface) && n.Name == typeName {
				return n.ID
			}
		}
	}
	return ""
}

func hasAllMethods(methods map[string]bool, required []string) bool {
	for _, m := range required {
		if !methods[m] {
			return false
		}
	}
	return true
}
