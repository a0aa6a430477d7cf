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

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// digest hashes its parts joined with "|" and returns the lower-case hex
// SHA-256, truncated to 32 hex characters — long enough that collisions
// within one repository are not a practical concern, short enough to keep
// ids cheap to store and compare.
func digest(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{'|'})
		}
		h.Write([]byte(p))
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:32]
}

// NodeID computes a Node's identity per spec §3: the same logical entity
// gets the same id across re-indexings of identical content, and a new id
// when the content changes. file_path participates, so a move produces a
// new id even though ContentHash is unchanged (content_hash lets callers
// detect the move independently).
//
// kind is included deliberately: an IR node of a different kind at the
// same (repo_id, file_path, fqn, span) is a distinct logical entity. A
// prior revision of this engine passed kind's Go string value through a
// generic id helper shared with non-enum arguments and got the argument
// order wrong for a handful of node kinds; this function takes kind as
// its own typed parameter so that mistake cannot recur.
func NodeID(repoID, filePath string, kind NodeKind, fqn string, span Span, contentHash string) string {
	return fmt.Sprintf("node:%s", digest(
		repoID, filePath, string(kind), fqn, spanKey(span), contentHash,
	))
}

// EdgeID computes an Edge's identity from its endpoints, kind and span —
// stable across re-runs, distinct for two edges of the same kind between
// the same nodes if they occur at different source sites (e.g. two calls
// to the same callee from the same caller).
func EdgeID(kind EdgeKind, sourceID, targetID string, span Span) string {
	return fmt.Sprintf("edge:%s", digest(string(kind), sourceID, targetID, spanKey(span)))
}

// TypeEntityID computes a TypeEntity's identity from its raw textual form
// and resolution target, so identical annotations reuse one entity.
func TypeEntityID(raw, resolvedTarget string, flavor TypeFlavor) string {
	return fmt.Sprintf("type:%s", digest(raw, resolvedTarget, string(flavor)))
}

// SignatureEntityID computes a SignatureEntity's identity from its owner
// and raw formatted signature.
func SignatureEntityID(ownerNodeID, raw string) string {
	return fmt.Sprintf("sig:%s", digest(ownerNodeID, raw))
}

func spanKey(s Span) string {
	return fmt.Sprintf("%d:%d", s.StartByte, s.EndByte)
}

// ContentHash computes the stable content hash of a node's source text:
// SHA-256 over the UTF-8 bytes of span, trailing whitespace preserved so
// the chunk text stays byte-reconstructible from the hash's input.
func ContentHash(sourceBytes []byte) string {
	sum := sha256.Sum256(sourceBytes)
	return hex.EncodeToString(sum[:])
}

// SignatureHash computes the stable hash of a SignatureEntity's semantic
// fields (parameter types, return type, visibility, async/static, throws).
// Body-only changes never affect it; that is the contract that makes
// interface-change detection (spec §8) possible.
func SignatureHash(sig *SignatureEntity) string {
	h := sha256.New()
	h.Write([]byte(sig.Name))
	h.Write([]byte{'|'})
	for _, id := range sig.ParameterTypeIDs {
		h.Write([]byte(id))
		h.Write([]byte{','})
	}
	h.Write([]byte{'|'})
	h.Write([]byte(sig.ReturnTypeID))
	h.Write([]byte{'|'})
	h.Write([]byte(sig.Visibility))
	h.Write([]byte{'|'})
	if sig.IsAsync {
		h.Write([]byte{'A'})
	}
	if sig.IsStatic {
		h.Write([]byte{'S'})
	}
	h.Write([]byte{'|'})
	for _, id := range sig.ThrowsTypeIDs {
		h.Write([]byte(id))
		h.Write([]byte{','})
	}
	return hex.EncodeToString(h.Sum(nil))
}
