// Package memory provides an in-memory GraphStore. It backs the test suite
// and small replay runs; the PostgreSQL store in pkg/store/pgx shares its
// exact filter and ordering semantics.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"wdkg/pkg/kg"
	"wdkg/pkg/store"
)

// Store is an append-only in-memory graph store. Relationships are kept in
// a slice sorted by (AssertedAt, ID) so that cutoff queries are binary-search
// range scans rather than full scans.
type Store struct {
	mu        sync.RWMutex
	entities  map[string]kg.Entity
	nameIndex map[string]string // type + "\x00" + normalized name -> entity ID
	evidence  map[string]kg.Evidence
	rels      []kg.Relationship // sorted by (AssertedAt, ID)
	relIndex  map[string]int    // relationship ID -> position in rels
}

// New returns an empty store.
func New() *Store {
	return &Store{
		entities:  make(map[string]kg.Entity),
		nameIndex: make(map[string]string),
		evidence:  make(map[string]kg.Evidence),
		relIndex:  make(map[string]int),
	}
}

func nameKey(typ kg.EntityType, name string) string {
	return string(typ) + "\x00" + kg.Normalize(name)
}

// AddEntity resolves or creates an entity by (type, normalized name). The
// check-then-insert runs under one lock, so concurrent callers cannot race
// a duplicate into the index.
func (s *Store) AddEntity(ctx context.Context, typ kg.EntityType, name string, opts store.EntityOpts) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := nameKey(typ, name)
	if id, ok := s.nameIndex[key]; ok {
		ent := s.entities[id]
		if !opts.FirstSeen.IsZero() && (ent.FirstSeenAt.IsZero() || opts.FirstSeen.Before(ent.FirstSeenAt)) {
			ent.FirstSeenAt = opts.FirstSeen
			s.entities[id] = ent
		}
		return id, nil
	}

	id := kg.EntityID(typ, name)
	s.entities[id] = kg.Entity{
		ID:          id,
		Type:        typ,
		Name:        name,
		NormName:    kg.Normalize(name),
		FirstSeenAt: opts.FirstSeen,
		DocType:     opts.DocType,
		PublishedAt: opts.PublishedAt,
	}
	s.nameIndex[key] = id
	return id, nil
}

// AddEvidence appends an evidence record, refusing dangling document
// references. Re-adding the same span is a no-op.
func (s *Store) AddEvidence(ctx context.Context, ev kg.Evidence) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nameIndex[nameKey(kg.EntityDocument, ev.DocumentID)]; !ok {
		return "", &kg.DanglingReferenceError{Kind: "document", ID: ev.DocumentID}
	}

	if ev.ID == "" {
		ev.ID = kg.EvidenceID(ev.DocumentID, ev.StartOffset, ev.EndOffset)
	}
	if _, ok := s.evidence[ev.ID]; ok {
		return ev.ID, nil
	}
	s.evidence[ev.ID] = ev
	return ev.ID, nil
}

// AddRelationship appends an assertion with AssertedAt taken from the
// backing evidence.
func (s *Store) AddRelationship(ctx context.Context, typ kg.RelationType, sourceID, targetID, evidenceID string, aiRelated bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.evidence[evidenceID]
	if !ok {
		return "", &kg.DanglingReferenceError{Kind: "evidence", ID: evidenceID}
	}
	if _, ok := s.entities[sourceID]; !ok {
		return "", &kg.DanglingReferenceError{Kind: "entity", ID: sourceID}
	}
	if _, ok := s.entities[targetID]; !ok {
		return "", &kg.DanglingReferenceError{Kind: "entity", ID: targetID}
	}

	rel := kg.Relationship{
		ID:         kg.RelationshipID(typ, sourceID, targetID, evidenceID),
		Type:       typ,
		SourceID:   sourceID,
		TargetID:   targetID,
		EvidenceID: evidenceID,
		AssertedAt: ev.PublishedAt,
		AIRelated:  aiRelated,
	}
	if _, ok := s.relIndex[rel.ID]; ok {
		return rel.ID, nil
	}

	pos := sort.Search(len(s.rels), func(i int) bool {
		return relAfter(s.rels[i], rel.AssertedAt, rel.ID)
	})
	s.rels = append(s.rels, kg.Relationship{})
	copy(s.rels[pos+1:], s.rels[pos:])
	s.rels[pos] = rel
	for i := pos + 1; i < len(s.rels); i++ {
		s.relIndex[s.rels[i].ID] = i
	}
	s.relIndex[rel.ID] = pos
	return rel.ID, nil
}

func relAfter(r kg.Relationship, at time.Time, id string) bool {
	if r.AssertedAt.After(at) {
		return true
	}
	return r.AssertedAt.Equal(at) && r.ID > id
}

func (s *Store) GetEntity(ctx context.Context, id string) (kg.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ent, ok := s.entities[id]
	if !ok {
		return kg.Entity{}, store.ErrNotFound
	}
	return ent, nil
}

func (s *Store) FindEntity(ctx context.Context, typ kg.EntityType, name string) (kg.Entity, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.nameIndex[nameKey(typ, name)]
	if !ok {
		return kg.Entity{}, false, nil
	}
	return s.entities[id], true, nil
}

func (s *Store) GetEvidence(ctx context.Context, id string) (kg.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.evidence[id]
	if !ok {
		return kg.Evidence{}, store.ErrNotFound
	}
	return ev, nil
}

func (s *Store) GetRelationship(ctx context.Context, id string) (kg.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.relIndex[id]
	if !ok {
		return kg.Relationship{}, store.ErrNotFound
	}
	return s.rels[pos], nil
}

// Relationships scans the sorted slice between the filter's time bounds and
// applies the remaining predicates. Results come back in (AssertedAt, ID)
// order by construction.
func (s *Store) Relationships(ctx context.Context, f store.Filter) ([]kg.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo := 0
	if f.From != nil {
		lo = sort.Search(len(s.rels), func(i int) bool {
			return !s.rels[i].AssertedAt.Before(*f.From)
		})
	}
	hi := len(s.rels)
	if f.Until != nil {
		hi = sort.Search(len(s.rels), func(i int) bool {
			return s.rels[i].AssertedAt.After(*f.Until)
		})
	}

	var out []kg.Relationship
	for i := lo; i < hi; i++ {
		rel := s.rels[i]
		if !s.matches(rel, f) {
			continue
		}
		out = append(out, rel)
	}
	return out, nil
}

func (s *Store) matches(rel kg.Relationship, f store.Filter) bool {
	if len(f.Types) > 0 && !containsRelType(f.Types, rel.Type) {
		return false
	}
	if f.EntityID != "" && rel.SourceID != f.EntityID && rel.TargetID != f.EntityID {
		return false
	}
	if f.AIRelated != nil && rel.AIRelated != *f.AIRelated {
		return false
	}
	if len(f.SourceTypes) > 0 && !containsEntityType(f.SourceTypes, s.entities[rel.SourceID].Type) {
		return false
	}
	if len(f.TargetTypes) > 0 && !containsEntityType(f.TargetTypes, s.entities[rel.TargetID].Type) {
		return false
	}
	if len(f.DocTypes) > 0 || len(f.ExcludeDocTypes) > 0 {
		docType := s.docTypeOf(rel.EvidenceID)
		if len(f.DocTypes) > 0 && !containsDocType(f.DocTypes, docType) {
			return false
		}
		if len(f.ExcludeDocTypes) > 0 && containsDocType(f.ExcludeDocTypes, docType) {
			return false
		}
	}
	return true
}

func (s *Store) docTypeOf(evidenceID string) kg.DocType {
	ev, ok := s.evidence[evidenceID]
	if !ok {
		return ""
	}
	id, ok := s.nameIndex[nameKey(kg.EntityDocument, ev.DocumentID)]
	if !ok {
		return ""
	}
	return s.entities[id].DocType
}

// CountDocuments counts document entities of the given types published
// within [from, until].
func (s *Store) CountDocuments(ctx context.Context, docTypes []kg.DocType, from, until *time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, ent := range s.entities {
		if ent.Type != kg.EntityDocument {
			continue
		}
		if len(docTypes) > 0 && !containsDocType(docTypes, ent.DocType) {
			continue
		}
		if from != nil && ent.PublishedAt.Before(*from) {
			continue
		}
		if until != nil && ent.PublishedAt.After(*until) {
			continue
		}
		count++
	}
	return count, nil
}

func containsRelType(types []kg.RelationType, t kg.RelationType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

func containsEntityType(types []kg.EntityType, t kg.EntityType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

func containsDocType(types []kg.DocType, t kg.DocType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}
