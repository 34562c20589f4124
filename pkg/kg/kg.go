// Package kg defines the core data model of the disclosure knowledge graph:
// evidence-backed entities and relationships, quarterly signals, feature rows
// and the shared error taxonomy.
//
// Everything in the graph is append-only. An Evidence record binds an
// extracted fact to its source text span and the document's true disclosure
// date; a Relationship is a single timestamped assertion backed by exactly
// one Evidence record. Derived artifacts (signals, features) are pure
// functions of the graph and carry the as-of date they were computed under.
package kg

import "time"

// EntityType tags the fixed set of entity variants in the graph.
type EntityType string

const (
	EntityCompany    EntityType = "company"
	EntityDocument   EntityType = "document"
	EntityProduct    EntityType = "product"
	EntityCapability EntityType = "capability"
	EntityEvent      EntityType = "event"
	EntityRiskTopic  EntityType = "risk_topic"
)

// RelationType enumerates the relationship vocabulary.
type RelationType string

const (
	RelMentions       RelationType = "MENTIONS"
	RelDiscloses      RelationType = "DISCLOSES"
	RelAnnounces      RelationType = "ANNOUNCES"
	RelAssociatedWith RelationType = "ASSOCIATED_WITH"
)

// DocType classifies the source channel of a document entity. Filing-type
// documents are regulatory disclosures; everything else counts as the
// analyst/media side for signal purposes.
type DocType string

const (
	DocFiling     DocType = "filing"
	DocPress      DocType = "press"
	DocBlog       DocType = "blog"
	DocMedia      DocType = "media"
	DocTranscript DocType = "transcript"
)

// IsFiling reports whether the document type is a regulatory filing.
func (d DocType) IsFiling() bool {
	return d == DocFiling
}

// Evidence is an immutable record binding an extracted fact to its source
// text span. PublishedAt is the document's true disclosure date (the filing
// date, never the fiscal period it discusses) and is the single source of
// truth for when the fact became knowable.
type Evidence struct {
	ID               string    `json:"id"`
	DocumentID       string    `json:"document_id"`
	StartOffset      int       `json:"start_offset"`
	EndOffset        int       `json:"end_offset"`
	PublishedAt      time.Time `json:"published_at"`
	ExtractionMethod string    `json:"extraction_method"`
	Confidence       float64   `json:"confidence"`
}

// Entity is a node in the graph. Entities are append-only: a later document
// mentioning the same canonical name attaches new evidence to the existing
// entity instead of creating a duplicate. FirstSeenAt is the minimum
// PublishedAt over all evidence that introduced the entity.
//
// Document entities additionally carry the source DocType and their own
// disclosure date.
type Entity struct {
	ID          string     `json:"id"`
	Type        EntityType `json:"type"`
	Name        string     `json:"name"`
	NormName    string     `json:"norm_name"`
	FirstSeenAt time.Time  `json:"first_seen_at"`
	DocType     DocType    `json:"doc_type,omitempty"`
	PublishedAt time.Time  `json:"published_at,omitzero"`
}

// Relationship is a directed, typed edge between two entities. It is a
// single timestamped assertion, not a mutable fact: ten documents mentioning
// the same pair produce ten relationship records with distinct evidence.
// AssertedAt always equals the backing evidence's PublishedAt.
type Relationship struct {
	ID         string       `json:"id"`
	Type       RelationType `json:"type"`
	SourceID   string       `json:"source_entity_id"`
	TargetID   string       `json:"target_entity_id"`
	EvidenceID string       `json:"evidence_id"`
	AssertedAt time.Time    `json:"asserted_at"`
	AIRelated  bool         `json:"ai_related"`
}

// SignalType enumerates the quarterly signals derived from the graph.
type SignalType string

const (
	SignalAILanguageIntensity    SignalType = "ai_language_intensity"
	SignalCapabilityMentionTrend SignalType = "capability_mention_trend"
	SignalRiskDisclosureDensity  SignalType = "risk_disclosure_density"
	SignalMediaMentionProxy      SignalType = "media_mention_proxy"
	SignalEventFrequency         SignalType = "event_frequency"
)

// SignalTypes lists all signal types in a fixed, deterministic order.
var SignalTypes = []SignalType{
	SignalAILanguageIntensity,
	SignalCapabilityMentionTrend,
	SignalRiskDisclosureDensity,
	SignalMediaMentionProxy,
	SignalEventFrequency,
}

// Signal is one quarterly scalar derived from the as-of-restricted graph.
// AsOfDate is the quarter's end date; ComputedFrom lists the relationship
// IDs that contributed to the value, ordered by (AssertedAt, ID). Sparse
// marks quarters with zero qualifying relationships (the value is then 0,
// never null).
type Signal struct {
	ID           string     `json:"id"`
	Type         SignalType `json:"signal_type"`
	Quarter      Quarter    `json:"quarter_id"`
	Value        float64    `json:"value"`
	Sparse       bool       `json:"sparse"`
	ComputedFrom []string   `json:"computed_from"`
	AsOfDate     time.Time  `json:"as_of_date"`
}

// FeatureRow is one cell of the model-ready feature matrix. AsOfDate is the
// source signal's as-of date propagated unchanged: lagging shifts which
// quarter a value is attached to, never its underlying as-of date. Missing
// marks insufficient history; downstream modeling decides on imputation.
type FeatureRow struct {
	Quarter        Quarter   `json:"quarter_id"`
	Name           string    `json:"feature_name"`
	Value          float64   `json:"value"`
	Missing        bool      `json:"missing"`
	SourceSignalID string    `json:"source_signal_id,omitempty"`
	Lag            int       `json:"lag"`
	AsOfDate       time.Time `json:"as_of_date,omitzero"`
}

// Label is a supervised-learning target for one quarter. DecisionDate is
// the timestamp at which the underlying price observation becomes available;
// the leakage guard requires every feature's as-of date to precede it.
type Label struct {
	Quarter      Quarter   `json:"quarter_id"`
	Value        float64   `json:"value"`
	DecisionDate time.Time `json:"decision_date"`
}
