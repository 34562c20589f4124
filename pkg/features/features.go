// Package features turns per-quarter signals into a model-ready feature
// matrix. Lagging shifts which quarter a value is attached to, never its
// underlying as-of date: every emitted row keeps the source signal's
// AsOfDate, and a row whose as-of date does not fall strictly before the
// target quarter's start is refused with kg.TemporalOrderingError rather
// than silently dropped.
//
// Missing history (e.g. a t-4 lag in the series' first year) produces an
// explicit missing marker, never a zero fill; imputation is the modeling
// layer's decision.
package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"wdkg/pkg/kg"
)

// SignalLags describes which features to materialize for one signal type.
type SignalLags struct {
	// Lags are the raw lag depths, e.g. [1, 2, 3, 4] for t-1..t-4.
	Lags []int `json:"lags"`
	// RollingMean, when w > 0, adds the mean over t-w..t-1.
	RollingMean int `json:"rolling_mean"`
	// YoYDelta adds the year-over-year delta comparing t-1 against t-4.
	YoYDelta bool `json:"yoy_delta"`
}

// LagSpec maps each signal type to its lag policy.
type LagSpec map[kg.SignalType]SignalLags

// DefaultLagSpec mirrors the modeling plan: four raw lags, a rolling mean
// over the trailing year, and a year-over-year delta for every signal.
func DefaultLagSpec() LagSpec {
	spec := make(LagSpec, len(kg.SignalTypes))
	for _, typ := range kg.SignalTypes {
		spec[typ] = SignalLags{
			Lags:        []int{1, 2, 3, 4},
			RollingMean: 4,
			YoYDelta:    true,
		}
	}
	return spec
}

// FeatureTable is the assembler's output: one row per
// (target quarter, feature name), in deterministic order.
type FeatureTable struct {
	Rows []kg.FeatureRow `json:"rows"`
}

// Quarters returns the distinct target quarters in chronological order.
func (t *FeatureTable) Quarters() []kg.Quarter {
	seen := make(map[kg.Quarter]bool)
	var out []kg.Quarter
	for _, row := range t.Rows {
		if !seen[row.Quarter] {
			seen[row.Quarter] = true
			out = append(out, row.Quarter)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// RowsFor returns the rows attached to one target quarter.
func (t *FeatureTable) RowsFor(q kg.Quarter) []kg.FeatureRow {
	var out []kg.FeatureRow
	for _, row := range t.Rows {
		if row.Quarter == q {
			out = append(out, row)
		}
	}
	return out
}

// MarshalJSON exports the table for the external modeling layer.
func (t *FeatureTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Rows []kg.FeatureRow `json:"rows"`
	}{Rows: t.Rows})
}

// Assembler builds feature tables from signals.
type Assembler struct{}

// New returns an assembler.
func New() *Assembler {
	return &Assembler{}
}

// Build materializes the lag spec over the given signals. Target quarters
// are all quarters present in the input. The returned error, when non-nil,
// joins one kg.TemporalOrderingError per refused row; the table still
// contains every valid row, so a violation is fatal to the row and not to
// the run.
func (a *Assembler) Build(signals []kg.Signal, spec LagSpec) (*FeatureTable, error) {
	byKey := make(map[string]kg.Signal, len(signals))
	quarterSet := make(map[kg.Quarter]bool)
	for _, sig := range signals {
		byKey[signalKey(sig.Type, sig.Quarter)] = sig
		quarterSet[sig.Quarter] = true
	}
	quarters := make([]kg.Quarter, 0, len(quarterSet))
	for q := range quarterSet {
		quarters = append(quarters, q)
	}
	sort.Slice(quarters, func(i, j int) bool { return quarters[i].Before(quarters[j]) })

	table := &FeatureTable{}
	var violations []error

	for _, target := range quarters {
		for _, typ := range kg.SignalTypes {
			lags, ok := spec[typ]
			if !ok {
				continue
			}

			for _, lag := range lags.Lags {
				row, err := a.lagRow(byKey, target, typ, lag)
				if err != nil {
					violations = append(violations, err)
					continue
				}
				table.Rows = append(table.Rows, row)
			}

			if lags.RollingMean > 0 {
				row, err := a.rollingMeanRow(byKey, target, typ, lags.RollingMean)
				if err != nil {
					violations = append(violations, err)
					continue
				}
				table.Rows = append(table.Rows, row)
			}

			if lags.YoYDelta {
				row, err := a.yoyRow(byKey, target, typ)
				if err != nil {
					violations = append(violations, err)
					continue
				}
				table.Rows = append(table.Rows, row)
			}
		}
	}

	return table, errors.Join(violations...)
}

// lagRow materializes one raw lag. The source signal's as-of date must fall
// strictly before the target quarter's start.
func (a *Assembler) lagRow(byKey map[string]kg.Signal, target kg.Quarter, typ kg.SignalType, lag int) (kg.FeatureRow, error) {
	name := fmt.Sprintf("%s_lag%d", typ, lag)

	sig, ok := byKey[signalKey(typ, target.Sub(lag))]
	if !ok {
		return missingRow(target, name, lag), nil
	}
	if err := checkCutoff(sig, target, name); err != nil {
		return kg.FeatureRow{}, err
	}
	return kg.FeatureRow{
		Quarter:        target,
		Name:           name,
		Value:          sig.Value,
		SourceSignalID: sig.ID,
		Lag:            lag,
		AsOfDate:       sig.AsOfDate,
	}, nil
}

// rollingMeanRow averages t-w..t-1. Any missing lag makes the whole row
// missing; partial windows are never averaged.
func (a *Assembler) rollingMeanRow(byKey map[string]kg.Signal, target kg.Quarter, typ kg.SignalType, window int) (kg.FeatureRow, error) {
	name := fmt.Sprintf("%s_rmean%d", typ, window)

	sum := 0.0
	var newest kg.Signal
	for lag := 1; lag <= window; lag++ {
		sig, ok := byKey[signalKey(typ, target.Sub(lag))]
		if !ok {
			return missingRow(target, name, window), nil
		}
		if err := checkCutoff(sig, target, name); err != nil {
			return kg.FeatureRow{}, err
		}
		sum += sig.Value
		if lag == 1 {
			newest = sig
		}
	}
	return kg.FeatureRow{
		Quarter:        target,
		Name:           name,
		Value:          sum / float64(window),
		SourceSignalID: newest.ID,
		Lag:            1,
		AsOfDate:       newest.AsOfDate,
	}, nil
}

// yoyRow is the year-over-year delta comparing t-1 against t-4.
func (a *Assembler) yoyRow(byKey map[string]kg.Signal, target kg.Quarter, typ kg.SignalType) (kg.FeatureRow, error) {
	name := fmt.Sprintf("%s_yoy", typ)

	recent, okRecent := byKey[signalKey(typ, target.Sub(1))]
	yearAgo, okYearAgo := byKey[signalKey(typ, target.Sub(4))]
	if !okRecent || !okYearAgo {
		return missingRow(target, name, 1), nil
	}
	if err := checkCutoff(recent, target, name); err != nil {
		return kg.FeatureRow{}, err
	}
	if err := checkCutoff(yearAgo, target, name); err != nil {
		return kg.FeatureRow{}, err
	}
	return kg.FeatureRow{
		Quarter:        target,
		Name:           name,
		Value:          recent.Value - yearAgo.Value,
		SourceSignalID: recent.ID,
		Lag:            1,
		AsOfDate:       recent.AsOfDate,
	}, nil
}

// checkCutoff enforces the as-of rule: feature.AsOfDate < target quarter
// start.
func checkCutoff(sig kg.Signal, target kg.Quarter, name string) error {
	if sig.AsOfDate.Before(target.Start()) {
		return nil
	}
	return &kg.TemporalOrderingError{
		Quarter:  target,
		Feature:  name,
		AsOfDate: sig.AsOfDate,
		Cutoff:   target.Start(),
	}
}

func missingRow(target kg.Quarter, name string, lag int) kg.FeatureRow {
	return kg.FeatureRow{
		Quarter: target,
		Name:    name,
		Missing: true,
		Lag:     lag,
	}
}

func signalKey(typ kg.SignalType, q kg.Quarter) string {
	return string(typ) + "|" + q.String()
}
