package ingest

import (
	"errors"
	"sync"
)

// RunReport accumulates the outcome of an ingestion run: per-record errors
// are isolated here instead of failing the run. Safe for concurrent use.
type RunReport struct {
	mu            sync.Mutex
	documents     int
	sentences     int
	skipped       int
	evidence      int
	relationships int
	errs          []error
}

// NewRunReport returns an empty report.
func NewRunReport() *RunReport {
	return &RunReport{}
}

// AddDocument folds one document result into the report.
func (r *RunReport) AddDocument(res *DocumentResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents++
	r.sentences += res.Sentences
	r.skipped += res.Skipped
	r.evidence += res.Evidence
	r.relationships += res.Relationships
}

// AddError records a skipped-record error.
func (r *RunReport) AddError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

// Documents returns the number of documents ingested.
func (r *RunReport) Documents() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.documents
}

// Sentences returns the number of sentences stored.
func (r *RunReport) Sentences() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sentences
}

// Skipped returns the number of records skipped as malformed.
func (r *RunReport) Skipped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skipped
}

// Evidence returns the number of evidence records stored.
func (r *RunReport) Evidence() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evidence
}

// Relationships returns the number of relationship assertions stored.
func (r *RunReport) Relationships() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.relationships
}

// Errors returns the accumulated per-record errors.
func (r *RunReport) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}

// Err joins the accumulated errors, or nil when the run was clean.
func (r *RunReport) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.errs...)
}
