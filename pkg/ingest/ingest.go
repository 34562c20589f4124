// Package ingest is the write path of the knowledge graph. It accepts
// classified-sentence batches from the upstream extraction layer, validates
// them, resolves entities by normalized name, and appends evidence-backed
// relationship assertions to the graph store.
//
// Malformed records are skipped, logged and counted in the run report —
// never fatal to the run. Documents are processed in parallel with bounded
// concurrency, but every store write goes through a single writer so the
// append-only ordering guarantees hold.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wdkg/pkg/kg"
	"wdkg/pkg/logger"
	"wdkg/pkg/store"

	"github.com/go-playground/validator"
	"golang.org/x/sync/errgroup"
)

// Mention is one candidate entity mention within a sentence, as produced by
// the upstream classifier.
type Mention struct {
	Type             kg.EntityType   `json:"type" validate:"required"`
	CanonicalName    string          `json:"canonical_name" validate:"required"`
	RelationshipType kg.RelationType `json:"relationship_type" validate:"required"`
}

// SentenceRecord is the exact shape the extraction layer supplies per
// sentence. PublishedAt must be the document's true disclosure date.
type SentenceRecord struct {
	DocumentID  string    `json:"document_id" validate:"required"`
	Text        string    `json:"text"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	PublishedAt time.Time `json:"published_at"`
	Mentions    []Mention `json:"candidate_entity_mentions" validate:"dive"`
	AIRelated   bool      `json:"ai_related"`
	Confidence  float64   `json:"confidence" validate:"gte=0,lte=1"`
}

// DocumentMeta registers a document entity ahead of its sentences. DocType
// distinguishes regulatory filings from press/blog/media sources, which the
// risk-density and media-proxy signals depend on.
type DocumentMeta struct {
	ID          string     `json:"document_id" validate:"required"`
	DocType     kg.DocType `json:"doc_type" validate:"required"`
	PublishedAt time.Time  `json:"published_at"`
}

// DocumentBatch is one document's worth of classified sentences.
type DocumentBatch struct {
	Document  DocumentMeta     `json:"document"`
	Sentences []SentenceRecord `json:"sentences"`
}

// DocumentResult summarizes one ingested document.
type DocumentResult struct {
	DocumentID    string
	Sentences     int
	Skipped       int
	Evidence      int
	Relationships int
}

// Params configures a Service.
type Params struct {
	// CompanyName is the organization under study; its company entity is
	// ensured once per run.
	CompanyName string
	// ParallelDocs bounds document-level parallelism. Defaults to 1.
	ParallelDocs int
	// ExtractionMethod stamps evidence records, e.g. "rule" or "llm".
	ExtractionMethod string
}

// Service ingests document batches into a graph store.
type Service struct {
	store            store.GraphStore
	validate         *validator.Validate
	companyName      string
	parallelDocs     int
	extractionMethod string

	// writeMu funnels all store writes through a single writer.
	writeMu sync.Mutex
}

// New creates an ingestion service over the given store.
func New(s store.GraphStore, params Params) *Service {
	parallel := params.ParallelDocs
	if parallel <= 0 {
		parallel = 1
	}
	method := params.ExtractionMethod
	if method == "" {
		method = "rule"
	}
	return &Service{
		store:            s,
		validate:         validator.New(),
		companyName:      params.CompanyName,
		parallelDocs:     parallel,
		extractionMethod: method,
	}
}

// IngestDocument validates and writes one document batch. Malformed
// sentence records are skipped and reported in the result; a malformed
// document header fails the whole batch.
func (s *Service) IngestDocument(ctx context.Context, batch DocumentBatch) (*DocumentResult, *RunReport, error) {
	report := NewRunReport()
	res, err := s.ingestDocument(ctx, batch, report)
	if err != nil {
		return nil, report, err
	}
	return res, report, nil
}

// IngestBatch ingests multiple documents with bounded parallelism. Record
// validation runs concurrently; writes are serialized by the single writer.
func (s *Service) IngestBatch(ctx context.Context, batches []DocumentBatch) (*RunReport, error) {
	report := NewRunReport()

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.parallelDocs)

	for _, batch := range batches {
		b := batch
		eg.Go(func() error {
			select {
			case <-gCtx.Done():
				return nil
			default:
				_, err := s.ingestDocument(gCtx, b, report)
				var malformed *kg.MalformedRecordError
				if errors.As(err, &malformed) {
					// Already accumulated in the report; not fatal.
					return nil
				}
				return err
			}
		})
	}

	if err := eg.Wait(); err != nil {
		return report, fmt.Errorf("failed to ingest batch: %w", err)
	}

	logger.Info("[Ingest] Batch complete",
		"documents", report.Documents(),
		"sentences", report.Sentences(),
		"skipped", report.Skipped(),
		"relationships", report.Relationships(),
	)
	return report, nil
}

func (s *Service) ingestDocument(ctx context.Context, batch DocumentBatch, report *RunReport) (*DocumentResult, error) {
	meta := batch.Document
	if err := s.validateDocument(meta); err != nil {
		report.AddError(err)
		return nil, err
	}

	// Per-sentence validation happens before any write so a document with
	// only malformed sentences still registers cleanly.
	valid := make([]SentenceRecord, 0, len(batch.Sentences))
	skipped := 0
	for i, rec := range batch.Sentences {
		if err := s.validateSentence(meta, i, rec); err != nil {
			logger.Warn("[Ingest] Skipping malformed record", "document", meta.ID, "index", i, "err", err)
			report.AddError(err)
			skipped++
			continue
		}
		valid = append(valid, rec)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	docEntityID, err := s.store.AddEntity(ctx, kg.EntityDocument, meta.ID, store.EntityOpts{
		FirstSeen:   meta.PublishedAt,
		DocType:     meta.DocType,
		PublishedAt: meta.PublishedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register document %s: %w", meta.ID, err)
	}

	if s.companyName != "" {
		if _, err := s.store.AddEntity(ctx, kg.EntityCompany, s.companyName, store.EntityOpts{FirstSeen: meta.PublishedAt}); err != nil {
			return nil, fmt.Errorf("failed to ensure company entity: %w", err)
		}
	}

	result := &DocumentResult{DocumentID: meta.ID, Skipped: skipped}
	for _, rec := range valid {
		if err := s.writeSentence(ctx, docEntityID, rec, result); err != nil {
			return nil, err
		}
		result.Sentences++
	}

	report.AddDocument(result)
	logger.Debug("[Ingest] Document stored",
		"document", meta.ID,
		"sentences", result.Sentences,
		"relationships", result.Relationships,
	)
	return result, nil
}

// writeSentence appends the sentence's evidence and one relationship per
// resolved mention. ASSOCIATED_WITH mentions are paired product-to-
// capability; a lone associated mention degrades to a document MENTIONS
// edge.
func (s *Service) writeSentence(ctx context.Context, docEntityID string, rec SentenceRecord, result *DocumentResult) error {
	evID, err := s.store.AddEvidence(ctx, kg.Evidence{
		DocumentID:       rec.DocumentID,
		StartOffset:      rec.StartOffset,
		EndOffset:        rec.EndOffset,
		PublishedAt:      rec.PublishedAt,
		ExtractionMethod: s.extractionMethod,
		Confidence:       rec.Confidence,
	})
	if err != nil {
		return fmt.Errorf("failed to store evidence for %s: %w", rec.DocumentID, err)
	}
	result.Evidence++

	var associated []string
	for _, mention := range rec.Mentions {
		entityID, err := s.store.AddEntity(ctx, mention.Type, mention.CanonicalName, store.EntityOpts{
			FirstSeen: rec.PublishedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to resolve entity %q: %w", mention.CanonicalName, err)
		}

		if mention.RelationshipType == kg.RelAssociatedWith {
			associated = append(associated, entityID)
			continue
		}

		if _, err := s.store.AddRelationship(ctx, mention.RelationshipType, docEntityID, entityID, evID, rec.AIRelated); err != nil {
			return fmt.Errorf("failed to store relationship for %q: %w", mention.CanonicalName, err)
		}
		result.Relationships++
	}

	if err := s.writeAssociations(ctx, docEntityID, associated, evID, rec.AIRelated, result); err != nil {
		return err
	}
	return nil
}

// writeAssociations links co-mentioned products and capabilities. With two
// or more associated mentions in a sentence, each product links to each
// capability; anything unpaired falls back to a document MENTIONS edge.
func (s *Service) writeAssociations(ctx context.Context, docEntityID string, entityIDs []string, evidenceID string, aiRelated bool, result *DocumentResult) error {
	if len(entityIDs) == 0 {
		return nil
	}

	var products, capabilities []string
	for _, id := range entityIDs {
		ent, err := s.store.GetEntity(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load associated entity %s: %w", id, err)
		}
		switch ent.Type {
		case kg.EntityProduct:
			products = append(products, id)
		case kg.EntityCapability:
			capabilities = append(capabilities, id)
		}
	}

	paired := make(map[string]bool)
	for _, product := range products {
		for _, capability := range capabilities {
			if _, err := s.store.AddRelationship(ctx, kg.RelAssociatedWith, product, capability, evidenceID, aiRelated); err != nil {
				return fmt.Errorf("failed to store association: %w", err)
			}
			result.Relationships++
			paired[product] = true
			paired[capability] = true
		}
	}

	for _, id := range entityIDs {
		if paired[id] {
			continue
		}
		if _, err := s.store.AddRelationship(ctx, kg.RelMentions, docEntityID, id, evidenceID, aiRelated); err != nil {
			return fmt.Errorf("failed to store fallback mention: %w", err)
		}
		result.Relationships++
	}
	return nil
}

func (s *Service) validateDocument(meta DocumentMeta) error {
	if err := s.validate.Struct(meta); err != nil {
		return &kg.MalformedRecordError{DocumentID: meta.ID, Index: -1, Reason: err.Error()}
	}
	if meta.PublishedAt.IsZero() {
		return &kg.MalformedRecordError{DocumentID: meta.ID, Index: -1, Reason: "published_at is required"}
	}
	return nil
}

func (s *Service) validateSentence(meta DocumentMeta, index int, rec SentenceRecord) error {
	if rec.Text == "" {
		return &kg.MalformedRecordError{DocumentID: meta.ID, Index: index, Reason: "text is empty"}
	}
	if rec.PublishedAt.IsZero() {
		return &kg.MalformedRecordError{DocumentID: meta.ID, Index: index, Reason: "published_at is required"}
	}
	if rec.DocumentID != meta.ID {
		return &kg.MalformedRecordError{DocumentID: meta.ID, Index: index, Reason: fmt.Sprintf("document_id %q does not match batch document", rec.DocumentID)}
	}
	if rec.EndOffset < rec.StartOffset {
		return &kg.MalformedRecordError{DocumentID: meta.ID, Index: index, Reason: "end_offset precedes start_offset"}
	}
	if err := s.validate.Struct(rec); err != nil {
		return &kg.MalformedRecordError{DocumentID: meta.ID, Index: index, Reason: err.Error()}
	}
	return nil
}
