package pgx

import (
	"context"
	"errors"

	"wdkg/pkg/kg"
	"wdkg/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

// AddEvidence appends an evidence record, refusing dangling document
// references. Re-adding the same span is a no-op. The document entity ID is
// denormalized onto the row so filter joins need no name normalization in
// SQL.
func (s *Store) AddEvidence(ctx context.Context, ev kg.Evidence) (string, error) {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	docEntityID := kg.EntityID(kg.EntityDocument, ev.DocumentID)
	var exists bool
	err := s.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM entities WHERE id = $1)`, docEntityID).Scan(&exists)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", &kg.DanglingReferenceError{Kind: "document", ID: ev.DocumentID}
	}

	if ev.ID == "" {
		ev.ID = kg.EvidenceID(ev.DocumentID, ev.StartOffset, ev.EndOffset)
	}
	_, err = s.conn.Exec(ctx, `
		INSERT INTO evidence (id, document_id, document_entity_id, start_offset, end_offset, published_at, extraction_method, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, ev.ID, ev.DocumentID, docEntityID, ev.StartOffset, ev.EndOffset, ev.PublishedAt, ev.ExtractionMethod, ev.Confidence)
	if err != nil {
		return "", err
	}
	return ev.ID, nil
}

func (s *Store) GetEvidence(ctx context.Context, id string) (kg.Evidence, error) {
	var ev kg.Evidence
	err := s.conn.QueryRow(ctx, `
		SELECT id, document_id, start_offset, end_offset, published_at, extraction_method, confidence
		FROM evidence WHERE id = $1
	`, id).Scan(&ev.ID, &ev.DocumentID, &ev.StartOffset, &ev.EndOffset, &ev.PublishedAt, &ev.ExtractionMethod, &ev.Confidence)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return kg.Evidence{}, store.ErrNotFound
	}
	if err != nil {
		return kg.Evidence{}, err
	}
	ev.PublishedAt = ev.PublishedAt.UTC()
	return ev, nil
}
