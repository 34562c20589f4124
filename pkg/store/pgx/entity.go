package pgx

import (
	"context"
	"errors"
	"time"

	"wdkg/internal/util"
	"wdkg/pkg/kg"
	"wdkg/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const entityColumns = `id, type, name, norm_name, first_seen_at, doc_type, published_at`

// AddEntity resolves or creates an entity by (type, normalized name). On
// conflict only first_seen_at moves, and only backwards in time.
func (s *Store) AddEntity(ctx context.Context, typ kg.EntityType, name string, opts store.EntityOpts) (string, error) {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	name = util.SanitizePostgresText(name)
	id := kg.EntityID(typ, name)

	var returnedID string
	err := s.conn.QueryRow(ctx, `
		INSERT INTO entities (id, type, name, norm_name, first_seen_at, doc_type, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (type, norm_name) DO UPDATE SET
			first_seen_at = LEAST(
				COALESCE(entities.first_seen_at, EXCLUDED.first_seen_at),
				COALESCE(EXCLUDED.first_seen_at, entities.first_seen_at)
			)
		RETURNING id
	`, id, string(typ), name, kg.Normalize(name), nullTime(opts.FirstSeen), string(opts.DocType), nullTime(opts.PublishedAt)).Scan(&returnedID)
	if err != nil {
		return "", err
	}
	return returnedID, nil
}

func (s *Store) GetEntity(ctx context.Context, id string) (kg.Entity, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = $1`, id)
	return scanEntity(row)
}

func (s *Store) FindEntity(ctx context.Context, typ kg.EntityType, name string) (kg.Entity, bool, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT `+entityColumns+` FROM entities WHERE type = $1 AND norm_name = $2
	`, string(typ), kg.Normalize(name))
	ent, err := scanEntity(row)
	if errors.Is(err, store.ErrNotFound) {
		return kg.Entity{}, false, nil
	}
	if err != nil {
		return kg.Entity{}, false, err
	}
	return ent, true, nil
}

// CountDocuments counts document entities of the given types published
// within [from, until].
func (s *Store) CountDocuments(ctx context.Context, docTypes []kg.DocType, from, until *time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM entities WHERE type = 'document'`
	var args []any
	if len(docTypes) > 0 {
		args = append(args, docTypeStrings(docTypes))
		query += ` AND doc_type = ANY($` + itoa(len(args)) + `)`
	}
	if from != nil {
		args = append(args, *from)
		query += ` AND published_at >= $` + itoa(len(args))
	}
	if until != nil {
		args = append(args, *until)
		query += ` AND published_at <= $` + itoa(len(args))
	}

	var count int
	if err := s.conn.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanEntity(row pgxv5.Row) (kg.Entity, error) {
	var ent kg.Entity
	var typ, docType string
	var firstSeen, published *time.Time
	err := row.Scan(&ent.ID, &typ, &ent.Name, &ent.NormName, &firstSeen, &docType, &published)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return kg.Entity{}, store.ErrNotFound
	}
	if err != nil {
		return kg.Entity{}, err
	}
	ent.Type = kg.EntityType(typ)
	ent.DocType = kg.DocType(docType)
	ent.FirstSeenAt = timeValue(firstSeen)
	ent.PublishedAt = timeValue(published)
	return ent, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
