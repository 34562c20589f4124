package memory

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"wdkg/pkg/kg"
	"wdkg/pkg/store"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// addDocument registers a document entity and one evidence span on it.
func addDocument(t *testing.T, s *Store, docID string, docType kg.DocType, published time.Time) string {
	t.Helper()
	ctx := context.Background()
	_, err := s.AddEntity(ctx, kg.EntityDocument, docID, store.EntityOpts{
		FirstSeen:   published,
		DocType:     docType,
		PublishedAt: published,
	})
	if err != nil {
		t.Fatalf("AddEntity(document) error = %v", err)
	}
	evID, err := s.AddEvidence(ctx, kg.Evidence{
		DocumentID:       docID,
		StartOffset:      0,
		EndOffset:        50,
		PublishedAt:      published,
		ExtractionMethod: "rule",
		Confidence:       0.9,
	})
	if err != nil {
		t.Fatalf("AddEvidence() error = %v", err)
	}
	return evID
}

func TestAddEntityIdempotentByNormalizedName(t *testing.T) {
	ctx := context.Background()
	s := New()

	first, err := s.AddEntity(ctx, kg.EntityProduct, "Skills Cloud", store.EntityOpts{FirstSeen: date(2021, 3, 1)})
	if err != nil {
		t.Fatalf("AddEntity() error = %v", err)
	}
	second, err := s.AddEntity(ctx, kg.EntityProduct, "SKILLS CLOUD", store.EntityOpts{FirstSeen: date(2020, 6, 1)})
	if err != nil {
		t.Fatalf("AddEntity() error = %v", err)
	}

	if first != second {
		t.Fatalf("different casings resolved to different entities: %s != %s", first, second)
	}

	ent, err := s.GetEntity(ctx, first)
	if err != nil {
		t.Fatalf("GetEntity() error = %v", err)
	}
	if !ent.FirstSeenAt.Equal(date(2020, 6, 1)) {
		t.Errorf("FirstSeenAt = %v, want earlier evidence date %v", ent.FirstSeenAt, date(2020, 6, 1))
	}
	if ent.Name != "Skills Cloud" {
		t.Errorf("Name = %q, want first surface form retained", ent.Name)
	}
}

func TestAddEvidenceRejectsDanglingDocument(t *testing.T) {
	s := New()
	_, err := s.AddEvidence(context.Background(), kg.Evidence{
		DocumentID:  "never-registered",
		PublishedAt: date(2024, 2, 15),
	})

	var dangling *kg.DanglingReferenceError
	if !errors.As(err, &dangling) {
		t.Fatalf("error = %v, want DanglingReferenceError", err)
	}
	if dangling.Kind != "document" {
		t.Errorf("Kind = %q, want %q", dangling.Kind, "document")
	}
}

func TestAddRelationshipRejectsDanglingReferences(t *testing.T) {
	ctx := context.Background()
	s := New()
	evID := addDocument(t, s, "10-K-2023", kg.DocFiling, date(2024, 2, 15))
	docEnt, _, _ := s.FindEntity(ctx, kg.EntityDocument, "10-K-2023")

	tests := []struct {
		name       string
		source     string
		target     string
		evidence   string
		wantKind   string
		wantFailed bool
	}{
		{
			name:       "unknown evidence",
			source:     docEnt.ID,
			target:     docEnt.ID,
			evidence:   "ev_missing",
			wantKind:   "evidence",
			wantFailed: true,
		},
		{
			name:       "unknown source entity",
			source:     "ent_missing",
			target:     docEnt.ID,
			evidence:   evID,
			wantKind:   "entity",
			wantFailed: true,
		},
		{
			name:       "unknown target entity",
			source:     docEnt.ID,
			target:     "ent_missing",
			evidence:   evID,
			wantKind:   "entity",
			wantFailed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddRelationship(ctx, kg.RelMentions, tt.source, tt.target, tt.evidence, false)
			var dangling *kg.DanglingReferenceError
			if !errors.As(err, &dangling) {
				t.Fatalf("error = %v, want DanglingReferenceError", err)
			}
			if dangling.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", dangling.Kind, tt.wantKind)
			}
		})
	}
}

func TestRelationshipAssertedAtComesFromEvidence(t *testing.T) {
	ctx := context.Background()
	s := New()
	published := date(2024, 2, 15)
	evID := addDocument(t, s, "10-K-2023", kg.DocFiling, published)
	docEnt, _, _ := s.FindEntity(ctx, kg.EntityDocument, "10-K-2023")
	prodID, _ := s.AddEntity(ctx, kg.EntityProduct, "Skills Cloud", store.EntityOpts{FirstSeen: published})

	relID, err := s.AddRelationship(ctx, kg.RelMentions, docEnt.ID, prodID, evID, true)
	if err != nil {
		t.Fatalf("AddRelationship() error = %v", err)
	}

	rel, err := s.GetRelationship(ctx, relID)
	if err != nil {
		t.Fatalf("GetRelationship() error = %v", err)
	}
	if !rel.AssertedAt.Equal(published) {
		t.Errorf("AssertedAt = %v, want evidence publication date %v", rel.AssertedAt, published)
	}
	if !rel.AIRelated {
		t.Error("AIRelated flag lost")
	}
}

func TestAddRelationshipIdempotentUnderReIngest(t *testing.T) {
	ctx := context.Background()
	s := New()
	evID := addDocument(t, s, "pr-1", kg.DocPress, date(2023, 5, 2))
	docEnt, _, _ := s.FindEntity(ctx, kg.EntityDocument, "pr-1")
	prodID, _ := s.AddEntity(ctx, kg.EntityProduct, "Skills Cloud", store.EntityOpts{})

	a, err := s.AddRelationship(ctx, kg.RelMentions, docEnt.ID, prodID, evID, false)
	if err != nil {
		t.Fatalf("AddRelationship() error = %v", err)
	}
	b, err := s.AddRelationship(ctx, kg.RelMentions, docEnt.ID, prodID, evID, false)
	if err != nil {
		t.Fatalf("AddRelationship() error = %v", err)
	}
	if a != b {
		t.Errorf("re-ingest created a second assertion: %s != %s", a, b)
	}

	rels, err := s.Relationships(ctx, store.Filter{})
	if err != nil {
		t.Fatalf("Relationships() error = %v", err)
	}
	if len(rels) != 1 {
		t.Errorf("len(rels) = %d, want 1", len(rels))
	}
}

func TestRelationshipsOrderedAndRangeScanned(t *testing.T) {
	ctx := context.Background()
	s := New()

	// Three documents across quarters, one relationship each.
	dates := []time.Time{date(2023, 11, 1), date(2024, 2, 15), date(2024, 5, 3)}
	prodID, _ := s.AddEntity(ctx, kg.EntityProduct, "Skills Cloud", store.EntityOpts{})
	var ids []string
	for i, d := range dates {
		docID := "doc-" + d.Format("2006-01-02")
		evID := addDocument(t, s, docID, kg.DocFiling, d)
		docEnt, _, _ := s.FindEntity(ctx, kg.EntityDocument, docID)
		relID, err := s.AddRelationship(ctx, kg.RelMentions, docEnt.ID, prodID, evID, false)
		if err != nil {
			t.Fatalf("AddRelationship(%d) error = %v", i, err)
		}
		ids = append(ids, relID)
	}

	all, err := s.Relationships(ctx, store.Filter{})
	if err != nil {
		t.Fatalf("Relationships() error = %v", err)
	}
	var gotOrder []time.Time
	for _, rel := range all {
		gotOrder = append(gotOrder, rel.AssertedAt)
	}
	if !reflect.DeepEqual(gotOrder, dates) {
		t.Errorf("scan order = %v, want chronological %v", gotOrder, dates)
	}

	// Range scan limited to Q1 2024.
	from := date(2024, 1, 1)
	until := date(2024, 3, 31)
	q1, err := s.Relationships(ctx, store.Filter{From: &from, Until: &until})
	if err != nil {
		t.Fatalf("Relationships(range) error = %v", err)
	}
	if len(q1) != 1 || q1[0].ID != ids[1] {
		t.Errorf("range scan = %v, want only the 2024-02-15 assertion", q1)
	}
}

func TestRelationshipsTieBreakByID(t *testing.T) {
	ctx := context.Background()
	s := New()
	published := date(2024, 2, 15)
	evID := addDocument(t, s, "10-K-2023", kg.DocFiling, published)
	docEnt, _, _ := s.FindEntity(ctx, kg.EntityDocument, "10-K-2023")

	names := []string{"Skills Cloud", "Illuminate", "Extend", "Adaptive Planning"}
	for _, name := range names {
		prodID, _ := s.AddEntity(ctx, kg.EntityProduct, name, store.EntityOpts{})
		if _, err := s.AddRelationship(ctx, kg.RelMentions, docEnt.ID, prodID, evID, false); err != nil {
			t.Fatalf("AddRelationship(%s) error = %v", name, err)
		}
	}

	rels, err := s.Relationships(ctx, store.Filter{})
	if err != nil {
		t.Fatalf("Relationships() error = %v", err)
	}
	for i := 1; i < len(rels); i++ {
		if rels[i-1].ID >= rels[i].ID {
			t.Errorf("equal timestamps must order by ID ascending: %s before %s", rels[i-1].ID, rels[i].ID)
		}
	}
}

func TestRelationshipsDocTypeFilter(t *testing.T) {
	ctx := context.Background()
	s := New()
	prodID, _ := s.AddEntity(ctx, kg.EntityProduct, "Skills Cloud", store.EntityOpts{})

	filingEv := addDocument(t, s, "10-Q-2024", kg.DocFiling, date(2024, 6, 1))
	pressEv := addDocument(t, s, "pr-ai-launch", kg.DocPress, date(2024, 6, 2))
	filingEnt, _, _ := s.FindEntity(ctx, kg.EntityDocument, "10-Q-2024")
	pressEnt, _, _ := s.FindEntity(ctx, kg.EntityDocument, "pr-ai-launch")

	filingRel, _ := s.AddRelationship(ctx, kg.RelMentions, filingEnt.ID, prodID, filingEv, false)
	pressRel, _ := s.AddRelationship(ctx, kg.RelMentions, pressEnt.ID, prodID, pressEv, false)

	filings, err := s.Relationships(ctx, store.Filter{DocTypes: []kg.DocType{kg.DocFiling}})
	if err != nil {
		t.Fatalf("Relationships() error = %v", err)
	}
	if len(filings) != 1 || filings[0].ID != filingRel {
		t.Errorf("DocTypes filter = %v, want only filing assertion", filings)
	}

	nonFilings, err := s.Relationships(ctx, store.Filter{ExcludeDocTypes: []kg.DocType{kg.DocFiling}})
	if err != nil {
		t.Fatalf("Relationships() error = %v", err)
	}
	if len(nonFilings) != 1 || nonFilings[0].ID != pressRel {
		t.Errorf("ExcludeDocTypes filter = %v, want only press assertion", nonFilings)
	}
}

func TestAppendOnlyAcrossWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	prodID, _ := s.AddEntity(ctx, kg.EntityProduct, "Skills Cloud", store.EntityOpts{})

	evA := addDocument(t, s, "doc-a", kg.DocPress, date(2023, 2, 1))
	entA, _, _ := s.FindEntity(ctx, kg.EntityDocument, "doc-a")
	if _, err := s.AddRelationship(ctx, kg.RelMentions, entA.ID, prodID, evA, false); err != nil {
		t.Fatalf("AddRelationship() error = %v", err)
	}

	before, _ := s.Relationships(ctx, store.Filter{})

	// Later writes must leave earlier assertions present and unchanged.
	evB := addDocument(t, s, "doc-b", kg.DocPress, date(2022, 8, 1))
	entB, _, _ := s.FindEntity(ctx, kg.EntityDocument, "doc-b")
	if _, err := s.AddRelationship(ctx, kg.RelAnnounces, entB.ID, prodID, evB, true); err != nil {
		t.Fatalf("AddRelationship() error = %v", err)
	}

	after, _ := s.Relationships(ctx, store.Filter{})
	for _, old := range before {
		found := false
		for _, cur := range after {
			if cur.ID == old.ID {
				found = true
				if !reflect.DeepEqual(cur, old) {
					t.Errorf("assertion %s changed across writes", old.ID)
				}
			}
		}
		if !found {
			t.Errorf("assertion %s disappeared", old.ID)
		}
	}
}

func TestCountDocuments(t *testing.T) {
	ctx := context.Background()
	s := New()
	addDocument(t, s, "10-K-2023", kg.DocFiling, date(2024, 2, 15))
	addDocument(t, s, "10-Q-2024", kg.DocFiling, date(2024, 5, 30))
	addDocument(t, s, "pr-1", kg.DocPress, date(2024, 2, 20))

	from := date(2024, 1, 1)
	until := date(2024, 3, 31)
	got, err := s.CountDocuments(ctx, []kg.DocType{kg.DocFiling}, &from, &until)
	if err != nil {
		t.Fatalf("CountDocuments() error = %v", err)
	}
	if got != 1 {
		t.Errorf("CountDocuments(filing, Q1) = %d, want 1", got)
	}

	all, err := s.CountDocuments(ctx, nil, nil, nil)
	if err != nil {
		t.Fatalf("CountDocuments() error = %v", err)
	}
	if all != 3 {
		t.Errorf("CountDocuments(all) = %d, want 3", all)
	}
}

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.GetEntity(ctx, "ent_missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetEntity error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetEvidence(ctx, "ev_missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetEvidence error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetRelationship(ctx, "rel_missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetRelationship error = %v, want ErrNotFound", err)
	}
}
