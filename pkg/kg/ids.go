package kg

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"
)

// Normalize reduces an entity name to its resolution key: lower-cased,
// punctuation-stripped, whitespace-collapsed. Two surface forms that
// normalize to the same key resolve to the same entity.
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// DeriveID builds a deterministic identifier from a prefix and the record's
// natural key. Identical inputs always produce identical IDs, which is what
// makes re-ingestion idempotent and the graph reconstructible from the
// evidence set alone.
func DeriveID(prefix string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return prefix + "_" + hex.EncodeToString(h.Sum(nil))[:20]
}

// EntityID derives the identifier for an entity from its type and
// normalized name.
func EntityID(typ EntityType, name string) string {
	return DeriveID("ent", string(typ), Normalize(name))
}

// EvidenceID derives the identifier for an evidence record from its source
// span. Re-ingesting the same document span is a no-op.
func EvidenceID(documentID string, startOffset, endOffset int) string {
	return DeriveID("ev", documentID, strconv.Itoa(startOffset), strconv.Itoa(endOffset))
}

// RelationshipID derives the identifier for a relationship assertion. The
// same (evidence, type, source, target) tuple always maps to the same ID,
// so a literal re-ingest cannot inflate assertion counts.
func RelationshipID(typ RelationType, sourceID, targetID, evidenceID string) string {
	return DeriveID("rel", string(typ), sourceID, targetID, evidenceID)
}

// SignalID derives the identifier for a quarterly signal.
func SignalID(typ SignalType, q Quarter) string {
	return DeriveID("sig", string(typ), q.String())
}
