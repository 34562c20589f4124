package asof

import (
	"context"
	"testing"
	"time"

	"wdkg/pkg/kg"
	"wdkg/pkg/store"
	"wdkg/pkg/store/memory"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// seedStore builds a small graph with one MENTIONS assertion per date.
func seedStore(t *testing.T, dates []time.Time) (*memory.Store, []string) {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	prodID, err := s.AddEntity(ctx, kg.EntityProduct, "Skills Cloud", store.EntityOpts{})
	if err != nil {
		t.Fatalf("AddEntity() error = %v", err)
	}

	var relIDs []string
	for _, d := range dates {
		docID := "doc-" + d.Format("2006-01-02")
		if _, err := s.AddEntity(ctx, kg.EntityDocument, docID, store.EntityOpts{
			DocType:     kg.DocFiling,
			PublishedAt: d,
			FirstSeen:   d,
		}); err != nil {
			t.Fatalf("AddEntity(document) error = %v", err)
		}
		evID, err := s.AddEvidence(ctx, kg.Evidence{DocumentID: docID, EndOffset: 40, PublishedAt: d})
		if err != nil {
			t.Fatalf("AddEvidence() error = %v", err)
		}
		docEnt, _, _ := s.FindEntity(ctx, kg.EntityDocument, docID)
		relID, err := s.AddRelationship(ctx, kg.RelMentions, docEnt.ID, prodID, evID, false)
		if err != nil {
			t.Fatalf("AddRelationship() error = %v", err)
		}
		relIDs = append(relIDs, relID)
	}
	return s, relIDs
}

func TestSnapshotExcludesFutureEvidence(t *testing.T) {
	dates := []time.Time{date(2023, 8, 1), date(2023, 11, 2), date(2024, 2, 15)}
	s, _ := seedStore(t, dates)
	engine := New(s)

	// Cutoff at Q4 2023 end: the 2024-02-15 filing is not yet knowable.
	snap := engine.Snapshot(kg.Quarter{Year: 2023, Q: 4}.End())
	rels, err := snap.Relationships(context.Background(), store.Filter{})
	if err != nil {
		t.Fatalf("Relationships() error = %v", err)
	}
	if len(rels) != 2 {
		t.Fatalf("len(rels) = %d, want 2", len(rels))
	}
	for _, rel := range rels {
		if rel.AssertedAt.After(snap.Cutoff()) {
			t.Errorf("assertion %s at %v leaked past cutoff %v", rel.ID, rel.AssertedAt, snap.Cutoff())
		}
	}
}

func TestSnapshotMonotonicity(t *testing.T) {
	dates := []time.Time{date(2023, 8, 1), date(2023, 11, 2), date(2024, 2, 15), date(2024, 5, 1)}
	s, _ := seedStore(t, dates)
	engine := New(s)
	ctx := context.Background()

	cutoffs := []time.Time{date(2023, 9, 1), date(2024, 1, 1), date(2024, 6, 1)}
	var prev map[string]bool
	for _, cutoff := range cutoffs {
		rels, err := engine.Snapshot(cutoff).Relationships(ctx, store.Filter{})
		if err != nil {
			t.Fatalf("Relationships() error = %v", err)
		}
		cur := make(map[string]bool, len(rels))
		for _, rel := range rels {
			cur[rel.ID] = true
		}
		for id := range prev {
			if !cur[id] {
				t.Errorf("assertion %s visible at earlier cutoff but missing at %v", id, cutoff)
			}
		}
		prev = cur
	}
}

func TestSnapshotBeforeEarliestEvidenceIsEmpty(t *testing.T) {
	s, _ := seedStore(t, []time.Time{date(2023, 8, 1)})
	engine := New(s)

	rels, err := engine.Snapshot(date(2015, 1, 1)).Relationships(context.Background(), store.Filter{})
	if err != nil {
		t.Fatalf("empty snapshot must not error, got %v", err)
	}
	if len(rels) != 0 {
		t.Errorf("len(rels) = %d, want 0", len(rels))
	}
}

func TestSnapshotClampsCallerUntil(t *testing.T) {
	dates := []time.Time{date(2023, 8, 1), date(2024, 2, 15)}
	s, _ := seedStore(t, dates)
	engine := New(s)

	// Caller asks for a window past the cutoff; the cutoff wins.
	until := date(2025, 1, 1)
	rels, err := engine.Snapshot(date(2023, 12, 31)).Relationships(context.Background(), store.Filter{Until: &until})
	if err != nil {
		t.Fatalf("Relationships() error = %v", err)
	}
	if len(rels) != 1 {
		t.Errorf("len(rels) = %d, want 1 (cutoff must clamp caller window)", len(rels))
	}
}

func TestCountByType(t *testing.T) {
	dates := []time.Time{date(2024, 1, 10), date(2024, 2, 15), date(2024, 5, 1)}
	s, _ := seedStore(t, dates)
	engine := New(s)

	q1 := kg.Quarter{Year: 2024, Q: 1}
	snap := engine.Snapshot(q1.End())
	got, err := snap.CountByType(context.Background(), kg.RelMentions, q1.Start(), q1.End())
	if err != nil {
		t.Fatalf("CountByType() error = %v", err)
	}
	if got != 2 {
		t.Errorf("CountByType() = %d, want 2", got)
	}
}

func TestLatestBefore(t *testing.T) {
	dates := []time.Time{date(2023, 8, 1), date(2023, 11, 2), date(2024, 2, 15)}
	s, _ := seedStore(t, dates)
	engine := New(s)
	ctx := context.Background()

	prod, _, err := s.FindEntity(ctx, kg.EntityProduct, "Skills Cloud")
	if err != nil {
		t.Fatalf("FindEntity() error = %v", err)
	}

	rel, err := engine.Snapshot(date(2024, 1, 1)).LatestBefore(ctx, prod.ID)
	if err != nil {
		t.Fatalf("LatestBefore() error = %v", err)
	}
	if rel == nil {
		t.Fatal("LatestBefore() = nil, want the 2023-11-02 assertion")
	}
	if !rel.AssertedAt.Equal(date(2023, 11, 2)) {
		t.Errorf("LatestBefore().AssertedAt = %v, want %v", rel.AssertedAt, date(2023, 11, 2))
	}

	none, err := engine.Snapshot(date(2020, 1, 1)).LatestBefore(ctx, prod.ID)
	if err != nil {
		t.Fatalf("LatestBefore() error = %v", err)
	}
	if none != nil {
		t.Errorf("LatestBefore() before any evidence = %v, want nil", none)
	}
}

func TestCountDocumentsClamped(t *testing.T) {
	dates := []time.Time{date(2024, 1, 10), date(2024, 2, 15), date(2024, 5, 1)}
	s, _ := seedStore(t, dates)
	engine := New(s)

	q1 := kg.Quarter{Year: 2024, Q: 1}
	snap := engine.Snapshot(q1.End())
	got, err := snap.CountDocuments(context.Background(), []kg.DocType{kg.DocFiling}, q1.Start(), date(2025, 1, 1))
	if err != nil {
		t.Fatalf("CountDocuments() error = %v", err)
	}
	if got != 2 {
		t.Errorf("CountDocuments() = %d, want 2 (the May filing is past the cutoff)", got)
	}
}
