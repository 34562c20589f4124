// Package asof answers "what was known as of T" queries against the graph
// store. A snapshot is a lightweight query handle carrying a cutoff
// timestamp; every read through it is filtered by AssertedAt <= cutoff at
// the store's index level, so no second copy of the graph is materialized.
//
// Snapshots are monotone: for cutoffs c1 < c2 the c1 snapshot's
// relationships are a subset of c2's. A cutoff earlier than the earliest
// evidence yields an empty snapshot, not an error.
package asof

import (
	"context"
	"time"

	"wdkg/pkg/kg"
	"wdkg/pkg/store"
)

// Engine produces as-of snapshots over a graph store.
type Engine struct {
	store store.GraphStore
}

// New returns an engine over the given store.
func New(s store.GraphStore) *Engine {
	return &Engine{store: s}
}

// Snapshot returns a query handle restricted to assertions with
// AssertedAt <= cutoff.
func (e *Engine) Snapshot(cutoff time.Time) *Snapshot {
	return &Snapshot{store: e.store, cutoff: cutoff}
}

// Snapshot is a cutoff-bound view of the graph. All reads clamp the
// caller's upper time bound to the snapshot cutoff, so future evidence is
// unreachable through the handle by construction.
type Snapshot struct {
	store  store.GraphStore
	cutoff time.Time
}

// Cutoff returns the snapshot's as-of boundary.
func (s *Snapshot) Cutoff() time.Time {
	return s.cutoff
}

// Relationships scans assertions matching the filter, never past the
// cutoff. Results are ordered by (AssertedAt, ID) with ties broken by ID
// ascending, giving a total order and reproducible output.
func (s *Snapshot) Relationships(ctx context.Context, f store.Filter) ([]kg.Relationship, error) {
	f.Until = s.clamp(f.Until)
	return s.store.Relationships(ctx, f)
}

// CountByType counts assertions of one relationship type within
// [from, until], clamped to the cutoff.
func (s *Snapshot) CountByType(ctx context.Context, typ kg.RelationType, from, until time.Time) (int, error) {
	rels, err := s.Relationships(ctx, store.Filter{
		From:  &from,
		Until: &until,
		Types: []kg.RelationType{typ},
	})
	if err != nil {
		return 0, err
	}
	return len(rels), nil
}

// LatestBefore returns the most recent assertion touching the entity at or
// before the cutoff, or (nil, nil) when none exists.
func (s *Snapshot) LatestBefore(ctx context.Context, entityID string) (*kg.Relationship, error) {
	rels, err := s.Relationships(ctx, store.Filter{EntityID: entityID})
	if err != nil {
		return nil, err
	}
	if len(rels) == 0 {
		return nil, nil
	}
	last := rels[len(rels)-1]
	return &last, nil
}

// CountDocuments counts document entities published within [from, until],
// clamped to the cutoff.
func (s *Snapshot) CountDocuments(ctx context.Context, docTypes []kg.DocType, from, until time.Time) (int, error) {
	clamped := s.clamp(&until)
	return s.store.CountDocuments(ctx, docTypes, &from, clamped)
}

func (s *Snapshot) clamp(until *time.Time) *time.Time {
	if until == nil || until.After(s.cutoff) {
		cutoff := s.cutoff
		return &cutoff
	}
	return until
}
