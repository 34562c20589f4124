package leakage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"wdkg/pkg/asof"
	"wdkg/pkg/features"
	"wdkg/pkg/kg"
	"wdkg/pkg/signals"
	"wdkg/pkg/store"
	"wdkg/pkg/store/memory"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// buildGraph seeds two years of quarterly press mentions and returns the
// store plus computed signals and features.
func buildGraph(t *testing.T) (*memory.Store, []kg.Signal, *features.FeatureTable) {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	prodID, err := s.AddEntity(ctx, kg.EntityProduct, "Skills Cloud", store.EntityOpts{})
	if err != nil {
		t.Fatalf("AddEntity() error = %v", err)
	}

	for _, q := range kg.QuartersBetween(kg.Quarter{Year: 2019, Q: 1}, kg.Quarter{Year: 2020, Q: 4}) {
		published := q.Start().AddDate(0, 1, 10)
		docID := "pr-" + q.String()
		if _, err := s.AddEntity(ctx, kg.EntityDocument, docID, store.EntityOpts{
			FirstSeen:   published,
			DocType:     kg.DocPress,
			PublishedAt: published,
		}); err != nil {
			t.Fatalf("AddEntity(document) error = %v", err)
		}
		evID, err := s.AddEvidence(ctx, kg.Evidence{DocumentID: docID, EndOffset: 30, PublishedAt: published})
		if err != nil {
			t.Fatalf("AddEvidence() error = %v", err)
		}
		docEnt, _, _ := s.FindEntity(ctx, kg.EntityDocument, docID)
		if _, err := s.AddRelationship(ctx, kg.RelMentions, docEnt.ID, prodID, evID, true); err != nil {
			t.Fatalf("AddRelationship() error = %v", err)
		}
	}

	agg := signals.New(asof.New(s))
	sigs, err := agg.ComputeRange(ctx, kg.Quarter{Year: 2019, Q: 1}, kg.Quarter{Year: 2020, Q: 4})
	if err != nil {
		t.Fatalf("ComputeRange() error = %v", err)
	}

	table, err := features.New().Build(sigs, features.DefaultLagSpec())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return s, sigs, table
}

// labelsFor returns one label per quarter with DecisionDate one month into
// the following quarter (when the price observation becomes available).
func labelsFor(quarters []kg.Quarter) []kg.Label {
	var out []kg.Label
	for _, q := range quarters {
		out = append(out, kg.Label{
			Quarter:      q,
			Value:        1,
			DecisionDate: q.Next().Start().AddDate(0, 1, 0),
		})
	}
	return out
}

func defaultSplit() SplitSpec {
	return SplitSpec{
		TrainEnd:      kg.Quarter{Year: 2019, Q: 4},
		ValidationEnd: kg.Quarter{Year: 2020, Q: 2},
	}
}

func TestValidateCleanPass(t *testing.T) {
	s, sigs, table := buildGraph(t)
	labels := labelsFor(table.Quarters())

	report, err := New(s).Validate(context.Background(), table, labels, defaultSplit(), sigs)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if report.RowsChecked == 0 {
		t.Error("report.RowsChecked = 0, want labelled rows checked")
	}
	if report.RelationshipsAudited == 0 {
		t.Error("report.RelationshipsAudited = 0, want computed_from audited")
	}
	if len(report.Train) == 0 || len(report.Validation) == 0 || len(report.Test) == 0 {
		t.Errorf("empty split in report: %+v", report)
	}
}

func TestValidateRejectsEarlyDecisionDate(t *testing.T) {
	s, sigs, table := buildGraph(t)
	labels := labelsFor(table.Quarters())

	// A label whose price observation predates the features' as-of dates.
	labels[len(labels)-1].DecisionDate = date(2018, 1, 1)

	_, err := New(s).Validate(context.Background(), table, labels, defaultSplit(), sigs)
	var leak *kg.LeakageError
	if !errors.As(err, &leak) {
		t.Fatalf("error = %v, want LeakageError", err)
	}
	if leak.Check != "decision_date" {
		t.Errorf("Check = %q, want %q", leak.Check, "decision_date")
	}
	if len(leak.Rows) == 0 {
		t.Error("LeakageError must carry the offending row identifiers")
	}
}

func TestValidateRejectsInvertedSplit(t *testing.T) {
	s, sigs, table := buildGraph(t)
	labels := labelsFor(table.Quarters())

	split := SplitSpec{
		TrainEnd:      kg.Quarter{Year: 2020, Q: 4},
		ValidationEnd: kg.Quarter{Year: 2019, Q: 4},
	}

	_, err := New(s).Validate(context.Background(), table, labels, split, sigs)
	var leak *kg.LeakageError
	if !errors.As(err, &leak) {
		t.Fatalf("error = %v, want LeakageError", err)
	}
	if leak.Check != "split_order" {
		t.Errorf("Check = %q, want %q", leak.Check, "split_order")
	}
}

func TestValidateRejectsDuplicateLabelQuarter(t *testing.T) {
	s, sigs, table := buildGraph(t)
	labels := labelsFor(table.Quarters())
	labels = append(labels, labels[0])

	_, err := New(s).Validate(context.Background(), table, labels, defaultSplit(), sigs)
	var leak *kg.LeakageError
	if !errors.As(err, &leak) {
		t.Fatalf("error = %v, want LeakageError", err)
	}
	if leak.Check != "split_disjoint" {
		t.Errorf("Check = %q, want %q", leak.Check, "split_disjoint")
	}
}

func TestStructuralAuditCatchesFutureRelationship(t *testing.T) {
	s, sigs, table := buildGraph(t)
	labels := labelsFor(table.Quarters())

	// Corrupt a signal the way a buggy aggregator would: claim a
	// relationship asserted after the signal's as-of boundary.
	ctx := context.Background()
	all, err := s.Relationships(ctx, store.Filter{})
	if err != nil {
		t.Fatalf("Relationships() error = %v", err)
	}
	latest := all[len(all)-1]

	for i := range sigs {
		if sigs[i].Quarter == (kg.Quarter{Year: 2019, Q: 1}) && sigs[i].Type == kg.SignalMediaMentionProxy {
			sigs[i].ComputedFrom = append(sigs[i].ComputedFrom, latest.ID)
		}
	}

	_, err = New(s).Validate(ctx, table, labels, defaultSplit(), sigs)
	var leak *kg.LeakageError
	if !errors.As(err, &leak) {
		t.Fatalf("error = %v, want LeakageError", err)
	}
	if leak.Check != "structural_audit" {
		t.Errorf("Check = %q, want %q", leak.Check, "structural_audit")
	}
}

func TestSplitPartition(t *testing.T) {
	quarters := kg.QuartersBetween(kg.Quarter{Year: 2019, Q: 1}, kg.Quarter{Year: 2020, Q: 4})
	train, validation, test := defaultSplit().Split(quarters)

	wantTrain := kg.QuartersBetween(kg.Quarter{Year: 2019, Q: 1}, kg.Quarter{Year: 2019, Q: 4})
	wantValidation := kg.QuartersBetween(kg.Quarter{Year: 2020, Q: 1}, kg.Quarter{Year: 2020, Q: 2})
	wantTest := kg.QuartersBetween(kg.Quarter{Year: 2020, Q: 3}, kg.Quarter{Year: 2020, Q: 4})

	if !reflect.DeepEqual(train, wantTrain) {
		t.Errorf("train = %v, want %v", train, wantTrain)
	}
	if !reflect.DeepEqual(validation, wantValidation) {
		t.Errorf("validation = %v, want %v", validation, wantValidation)
	}
	if !reflect.DeepEqual(test, wantTest) {
		t.Errorf("test = %v, want %v", test, wantTest)
	}
}
