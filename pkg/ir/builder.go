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

package ir

// Builder accumulates Nodes/Edges/TypeEntities/SignatureEntities for one
// file into an IRDocument, providing the deterministic id computation and
// TypeEntity de-duplication that every language walker needs. One Builder
// is used per file; it carries no global state (spec §9).
type Builder struct {
	doc       IRDocument
	typesByID map[string]int // TypeEntity id -> index, for reuse
}

// NewBuilder starts a Builder for one file.
func NewBuilder(repoID, snapshotID, filePath string) *Builder {
	return &Builder{
		doc: IRDocument{
			RepoID:        repoID,
			SnapshotID:    snapshotID,
			SchemaVersion: SchemaVersion,
		},
		typesByID: make(map[string]int),
	}
}

// RepoID returns the repository id this builder was constructed with, so
// callers don't need to round-trip through Document() just to pass it
// back into AddNode.
func (b *Builder) RepoID() string { return b.doc.RepoID }

// AddNode computes the node's id from its identity fields, appends it,
// and returns the assigned id.
func (b *Builder) AddNode(n Node, repoID string) string {
	n.ID = NodeID(repoID, n.FilePath, n.Kind, n.FQN, n.Span, n.ContentHash)
	b.doc.Nodes = append(b.doc.Nodes, n)
	return n.ID
}

// AddContainsEdge records the CONTAINS edge from parentID to childID; a
// no-op (returns "") if parentID is empty, which happens only for a
// malformed walk (every non-root node must have a parent per spec §3).
func (b *Builder) AddContainsEdge(parentID, childID string, span Span) string {
	if parentID == "" {
		return ""
	}
	e := Edge{Kind: EdgeContains, SourceID: parentID, TargetID: childID, Span: span}
	e.ID = EdgeID(e.Kind, e.SourceID, e.TargetID, e.Span)
	b.doc.Edges = append(b.doc.Edges, e)
	return e.ID
}

// AddEdge records a resolved or unresolved edge (spec §4.2 step 4). When
// targetID is empty, unresolvedName is recorded on Attrs["unresolved_name"]
// so cross-file linkage (C4) can later repair it.
func (b *Builder) AddEdge(kind EdgeKind, sourceID, targetID string, span Span, unresolvedName string, attrs map[string]string) string {
	e := Edge{Kind: kind, SourceID: sourceID, TargetID: targetID, Span: span}
	if targetID == "" && unresolvedName != "" {
		if attrs == nil {
			attrs = make(map[string]string, 1)
		}
		attrs["unresolved_name"] = unresolvedName
	}
	e.Attrs = attrs
	e.ID = EdgeID(e.Kind, e.SourceID, e.TargetID, e.Span)
	b.doc.Edges = append(b.doc.Edges, e)
	return e.ID
}

// InternType reuses an existing TypeEntity with the same (raw,
// resolvedTarget, flavor) or creates a new one, returning its id.
func (b *Builder) InternType(raw, resolvedTarget string, flavor TypeFlavor, isNullable bool, genericParamIDs []string) string {
	id := TypeEntityID(raw, resolvedTarget, flavor)
	if _, ok := b.typesByID[id]; ok {
		return id
	}
	t := TypeEntity{
		ID:              id,
		Raw:             raw,
		ResolvedTarget:  resolvedTarget,
		Flavor:          flavor,
		IsNullable:      isNullable,
		GenericParamIDs: genericParamIDs,
	}
	b.typesByID[id] = len(b.doc.Types)
	b.doc.Types = append(b.doc.Types, t)
	return id
}

// AddSignature computes the signature's id and signature_hash, appends
// it, and returns the assigned id.
func (b *Builder) AddSignature(sig SignatureEntity) string {
	sig.ID = SignatureEntityID(sig.OwnerNodeID, sig.Raw)
	sig.SignatureHash = SignatureHash(&sig)
	b.doc.Signatures = append(b.doc.Signatures, sig)
	return sig.ID
}

// SetSignatureID attaches a previously-added signature to the node it
// describes. Callers add the owner Node first, then the SignatureEntity
// (which needs the owner's id), then wire them together with this.
func (b *Builder) SetSignatureID(nodeID, signatureID string) {
	for i := range b.doc.Nodes {
		if b.doc.Nodes[i].ID == nodeID {
			b.doc.Nodes[i].SignatureID = signatureID
			return
		}
	}
}

// Diagnostic appends a diagnostic message to the File node (spec §4.2
// failure semantics: a single-node exception is caught and logged on the
// File node, not fatal to the rest of the file).
func (b *Builder) Diagnostic(msg string) {
	for i := range b.doc.Nodes {
		if b.doc.Nodes[i].Kind == KindFile {
			b.doc.Nodes[i].Diagnostics = append(b.doc.Nodes[i].Diagnostics, msg)
			return
		}
	}
}

// Document returns the accumulated IRDocument. Call once walking is done.
func (b *Builder) Document() IRDocument { return b.doc }
