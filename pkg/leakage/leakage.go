// Package leakage is the final gate before model training. It re-validates
// the assembled feature table against the label table and the graph itself:
// per-row as-of ordering, chronological split integrity, and a structural
// audit that re-fetches every relationship a signal claims to be computed
// from. Any violation raises kg.LeakageError and training must not proceed.
package leakage

import (
	"context"
	"fmt"

	"wdkg/pkg/features"
	"wdkg/pkg/kg"
	"wdkg/pkg/store"
)

// SplitSpec defines the chronological train/validation/test boundaries.
// Train covers quarters up to and including TrainEnd, validation up to and
// including ValidationEnd, test everything after.
type SplitSpec struct {
	TrainEnd      kg.Quarter
	ValidationEnd kg.Quarter
}

// Split partitions the labelled quarters per the spec.
func (s SplitSpec) Split(quarters []kg.Quarter) (train, validation, test []kg.Quarter) {
	for _, q := range quarters {
		switch {
		case !q.After(s.TrainEnd):
			train = append(train, q)
		case !q.After(s.ValidationEnd):
			validation = append(validation, q)
		default:
			test = append(test, q)
		}
	}
	return train, validation, test
}

// Report summarizes a clean validation pass.
type Report struct {
	RowsChecked          int          `json:"rows_checked"`
	SignalsAudited       int          `json:"signals_audited"`
	RelationshipsAudited int          `json:"relationships_audited"`
	Train                []kg.Quarter `json:"train"`
	Validation           []kg.Quarter `json:"validation"`
	Test                 []kg.Quarter `json:"test"`
}

// Guard validates feature/label pairings before training.
type Guard struct {
	store store.GraphStore
}

// New returns a guard auditing against the given store.
func New(s store.GraphStore) *Guard {
	return &Guard{store: s}
}

// Validate runs all checks and returns a report, or kg.LeakageError on the
// first failing check. Signals are the aggregator outputs the feature table
// was built from; they anchor the structural audit.
func (g *Guard) Validate(
	ctx context.Context,
	table *features.FeatureTable,
	labels []kg.Label,
	split SplitSpec,
	signals []kg.Signal,
) (*Report, error) {
	report := &Report{}

	if err := g.checkDecisionDates(table, labels, report); err != nil {
		return nil, err
	}
	if err := g.checkSplits(labels, split, report); err != nil {
		return nil, err
	}
	if err := g.auditSignals(ctx, signals, report); err != nil {
		return nil, err
	}
	return report, nil
}

// checkDecisionDates enforces feature.AsOfDate < label.DecisionDate for
// every labelled feature row.
func (g *Guard) checkDecisionDates(table *features.FeatureTable, labels []kg.Label, report *Report) error {
	byQuarter := make(map[kg.Quarter]kg.Label, len(labels))
	for _, label := range labels {
		byQuarter[label.Quarter] = label
	}

	var offending []string
	for _, row := range table.Rows {
		label, ok := byQuarter[row.Quarter]
		if !ok || row.Missing {
			continue
		}
		report.RowsChecked++
		if !row.AsOfDate.Before(label.DecisionDate) {
			offending = append(offending, fmt.Sprintf("%s/%s", row.Quarter, row.Name))
		}
	}
	if len(offending) > 0 {
		return &kg.LeakageError{Check: "decision_date", Rows: offending}
	}
	return nil
}

// checkSplits verifies chronological split integrity: every train quarter
// precedes every validation quarter, every validation quarter precedes
// every test quarter, and no quarter appears in two splits.
func (g *Guard) checkSplits(labels []kg.Label, split SplitSpec, report *Report) error {
	if !split.TrainEnd.Before(split.ValidationEnd) {
		return &kg.LeakageError{
			Check: "split_order",
			Rows:  []string{fmt.Sprintf("train_end=%s", split.TrainEnd), fmt.Sprintf("validation_end=%s", split.ValidationEnd)},
		}
	}

	quarters := make([]kg.Quarter, 0, len(labels))
	seen := make(map[kg.Quarter]bool, len(labels))
	var dupes []string
	for _, label := range labels {
		if seen[label.Quarter] {
			dupes = append(dupes, label.Quarter.String())
			continue
		}
		seen[label.Quarter] = true
		quarters = append(quarters, label.Quarter)
	}
	if len(dupes) > 0 {
		return &kg.LeakageError{Check: "split_disjoint", Rows: dupes}
	}

	train, validation, test := split.Split(quarters)
	if err := verifyOrdering(train, validation, "train", "validation"); err != nil {
		return err
	}
	if err := verifyOrdering(validation, test, "validation", "test"); err != nil {
		return err
	}

	report.Train = train
	report.Validation = validation
	report.Test = test
	return nil
}

func verifyOrdering(earlier, later []kg.Quarter, earlierName, laterName string) error {
	if len(earlier) == 0 || len(later) == 0 {
		return nil
	}
	maxEarlier := earlier[0]
	for _, q := range earlier {
		if q.After(maxEarlier) {
			maxEarlier = q
		}
	}
	minLater := later[0]
	for _, q := range later {
		if q.Before(minLater) {
			minLater = q
		}
	}
	if !maxEarlier.Before(minLater) {
		return &kg.LeakageError{
			Check: "split_order",
			Rows: []string{
				fmt.Sprintf("max(%s)=%s", earlierName, maxEarlier),
				fmt.Sprintf("min(%s)=%s", laterName, minLater),
			},
		}
	}
	return nil
}

// auditSignals is the structural audit: every relationship a signal claims
// to be computed from is re-fetched and its AssertedAt compared against the
// signal's as-of date, with the backing evidence cross-checked. This
// catches accounting bugs in the aggregator itself, beyond the AsOfDate
// field.
func (g *Guard) auditSignals(ctx context.Context, signals []kg.Signal, report *Report) error {
	var offending []string
	for _, sig := range signals {
		report.SignalsAudited++
		for _, relID := range sig.ComputedFrom {
			report.RelationshipsAudited++

			rel, err := g.store.GetRelationship(ctx, relID)
			if err != nil {
				return fmt.Errorf("structural audit of %s failed to fetch %s: %w", sig.ID, relID, err)
			}
			if rel.AssertedAt.After(sig.AsOfDate) {
				offending = append(offending, fmt.Sprintf("%s<-%s", sig.ID, relID))
				continue
			}

			ev, err := g.store.GetEvidence(ctx, rel.EvidenceID)
			if err != nil {
				return fmt.Errorf("structural audit of %s failed to fetch evidence %s: %w", sig.ID, rel.EvidenceID, err)
			}
			if !ev.PublishedAt.Equal(rel.AssertedAt) || ev.PublishedAt.After(sig.AsOfDate) {
				offending = append(offending, fmt.Sprintf("%s<-%s", sig.ID, rel.EvidenceID))
			}
		}
	}
	if len(offending) > 0 {
		return &kg.LeakageError{Check: "structural_audit", Rows: offending}
	}
	return nil
}
