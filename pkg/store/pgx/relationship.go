package pgx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"wdkg/pkg/kg"
	"wdkg/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

// AddRelationship appends an assertion with asserted_at taken from the
// backing evidence. The reference checks and the insert run in one
// transaction.
func (s *Store) AddRelationship(ctx context.Context, typ kg.RelationType, sourceID, targetID, evidenceID string, aiRelated bool) (string, error) {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var assertedAt time.Time
	err = tx.QueryRow(ctx, `SELECT published_at FROM evidence WHERE id = $1`, evidenceID).Scan(&assertedAt)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return "", &kg.DanglingReferenceError{Kind: "evidence", ID: evidenceID}
	}
	if err != nil {
		return "", err
	}

	for _, entityID := range []string{sourceID, targetID} {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM entities WHERE id = $1)`, entityID).Scan(&exists); err != nil {
			return "", err
		}
		if !exists {
			return "", &kg.DanglingReferenceError{Kind: "entity", ID: entityID}
		}
	}

	id := kg.RelationshipID(typ, sourceID, targetID, evidenceID)
	_, err = tx.Exec(ctx, `
		INSERT INTO relationships (id, type, source_id, target_id, evidence_id, asserted_at, ai_related)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, id, string(typ), sourceID, targetID, evidenceID, assertedAt, aiRelated)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetRelationship(ctx context.Context, id string) (kg.Relationship, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT id, type, source_id, target_id, evidence_id, asserted_at, ai_related
		FROM relationships WHERE id = $1
	`, id)
	rel, err := scanRelationship(row)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return kg.Relationship{}, store.ErrNotFound
	}
	return rel, err
}

// Relationships runs the filter as one query. The (asserted_at, id) index
// keeps cutoff scans a range read.
func (s *Store) Relationships(ctx context.Context, f store.Filter) ([]kg.Relationship, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.From != nil {
		where = append(where, "r.asserted_at >= "+arg(*f.From))
	}
	if f.Until != nil {
		where = append(where, "r.asserted_at <= "+arg(*f.Until))
	}
	if len(f.Types) > 0 {
		where = append(where, "r.type = ANY("+arg(relTypeStrings(f.Types))+")")
	}
	if f.EntityID != "" {
		p := arg(f.EntityID)
		where = append(where, fmt.Sprintf("(r.source_id = %s OR r.target_id = %s)", p, p))
	}
	if f.AIRelated != nil {
		where = append(where, "r.ai_related = "+arg(*f.AIRelated))
	}
	if len(f.SourceTypes) > 0 {
		where = append(where, "src.type = ANY("+arg(entityTypeStrings(f.SourceTypes))+")")
	}
	if len(f.TargetTypes) > 0 {
		where = append(where, "dst.type = ANY("+arg(entityTypeStrings(f.TargetTypes))+")")
	}
	if len(f.DocTypes) > 0 {
		where = append(where, "COALESCE(doc.doc_type, '') = ANY("+arg(docTypeStrings(f.DocTypes))+")")
	}
	if len(f.ExcludeDocTypes) > 0 {
		where = append(where, "NOT COALESCE(doc.doc_type, '') = ANY("+arg(docTypeStrings(f.ExcludeDocTypes))+")")
	}

	query := `
		SELECT r.id, r.type, r.source_id, r.target_id, r.evidence_id, r.asserted_at, r.ai_related
		FROM relationships r
		JOIN entities src ON src.id = r.source_id
		JOIN entities dst ON dst.id = r.target_id
		JOIN evidence ev ON ev.id = r.evidence_id
		LEFT JOIN entities doc ON doc.id = ev.document_entity_id
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.asserted_at, r.id"

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []kg.Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

func scanRelationship(row pgxv5.Row) (kg.Relationship, error) {
	var rel kg.Relationship
	var typ string
	err := row.Scan(&rel.ID, &typ, &rel.SourceID, &rel.TargetID, &rel.EvidenceID, &rel.AssertedAt, &rel.AIRelated)
	if err != nil {
		return kg.Relationship{}, err
	}
	rel.Type = kg.RelationType(typ)
	rel.AssertedAt = rel.AssertedAt.UTC()
	return rel, nil
}
