// Package store defines the persistence interface for the disclosure
// knowledge graph. The graph is append-only: implementations expose no
// update or delete operations, and every write is idempotent under the
// record's derived identifier.
package store

import (
	"context"
	"errors"
	"time"

	"wdkg/pkg/kg"
)

// ErrNotFound is returned by lookups for identifiers that do not exist.
var ErrNotFound = errors.New("store: not found")

// EntityOpts carries the optional attributes of an entity write.
type EntityOpts struct {
	// FirstSeen is the publication timestamp of the evidence introducing
	// the entity. An existing entity's FirstSeenAt only ever moves earlier.
	FirstSeen time.Time
	// DocType and PublishedAt apply to document entities only.
	DocType     kg.DocType
	PublishedAt time.Time
}

// Filter narrows a relationship scan. Time bounds are inclusive on both
// ends; nil means unbounded. Results are always totally ordered by
// (AssertedAt, ID) ascending so that repeated scans are reproducible.
type Filter struct {
	From        *time.Time
	Until       *time.Time
	Types       []kg.RelationType
	EntityID    string // matches either endpoint
	SourceTypes []kg.EntityType
	TargetTypes []kg.EntityType
	// DocTypes / ExcludeDocTypes constrain the document type of the
	// evidence backing the relationship.
	DocTypes        []kg.DocType
	ExcludeDocTypes []kg.DocType
	AIRelated       *bool
}

// GraphStore is the append-only persistence contract shared by the
// in-memory and PostgreSQL implementations. Check-then-insert operations
// (entity resolution by normalized name) are atomic in every
// implementation, so concurrent ingestion cannot create duplicate entities.
type GraphStore interface {
	// AddEntity resolves or creates an entity by (type, normalized name)
	// and returns its ID. Idempotent; repeated calls attach new evidence
	// timestamps to the existing record.
	AddEntity(ctx context.Context, typ kg.EntityType, name string, opts EntityOpts) (string, error)

	// AddEvidence appends an evidence record. Idempotent under the derived
	// evidence ID. Fails with kg.DanglingReferenceError when the document
	// entity is unknown.
	AddEvidence(ctx context.Context, ev kg.Evidence) (string, error)

	// AddRelationship appends a relationship assertion whose AssertedAt is
	// taken from the backing evidence. Fails with kg.DanglingReferenceError
	// when the evidence or either entity does not exist.
	AddRelationship(ctx context.Context, typ kg.RelationType, sourceID, targetID, evidenceID string, aiRelated bool) (string, error)

	GetEntity(ctx context.Context, id string) (kg.Entity, error)
	FindEntity(ctx context.Context, typ kg.EntityType, name string) (kg.Entity, bool, error)
	GetEvidence(ctx context.Context, id string) (kg.Evidence, error)
	GetRelationship(ctx context.Context, id string) (kg.Relationship, error)

	// Relationships scans assertions matching the filter in
	// (AssertedAt, ID) order. The time-bounded scan is a range scan over
	// the store's (asserted_at, id) index, not a full scan.
	Relationships(ctx context.Context, f Filter) ([]kg.Relationship, error)

	// CountDocuments counts document entities of the given types published
	// within [from, until]. Empty docTypes counts all documents.
	CountDocuments(ctx context.Context, docTypes []kg.DocType, from, until *time.Time) (int, error)
}
