package kg

import (
	"fmt"
	"strings"
	"time"
)

// DanglingReferenceError reports a graph write whose evidence or entity
// reference does not resolve to an existing record.
type DanglingReferenceError struct {
	Kind string // "entity", "evidence" or "document"
	ID   string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("dangling %s reference: %s", e.Kind, e.ID)
}

// MalformedRecordError reports a bad upstream sentence record. It is
// recoverable: the record is skipped and counted in the run report, the run
// continues.
type MalformedRecordError struct {
	DocumentID string
	Index      int // position of the sentence within the document batch, -1 for document-level faults
	Reason     string
}

func (e *MalformedRecordError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("malformed record in document %s: %s", e.DocumentID, e.Reason)
	}
	return fmt.Sprintf("malformed record %d in document %s: %s", e.Index, e.DocumentID, e.Reason)
}

// TemporalOrderingError reports a feature construction that would leak:
// the source signal's as-of date does not fall strictly before the target
// quarter's feature cutoff. Fatal to the feature row, not the run.
type TemporalOrderingError struct {
	Quarter  Quarter
	Feature  string
	AsOfDate time.Time
	Cutoff   time.Time
}

func (e *TemporalOrderingError) Error() string {
	return fmt.Sprintf("feature %s for %s would leak: as_of %s is not before cutoff %s",
		e.Feature, e.Quarter, e.AsOfDate.Format(time.RFC3339), e.Cutoff.Format(time.RFC3339))
}

// LeakageError reports a violation found by the pre-training gate. It is
// fatal: training must not proceed.
type LeakageError struct {
	Check string
	Rows  []string // offending row/relationship identifiers
}

func (e *LeakageError) Error() string {
	return fmt.Sprintf("leakage detected by %s check: %s", e.Check, strings.Join(e.Rows, ", "))
}
