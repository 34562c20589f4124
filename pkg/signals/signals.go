// Package signals computes quarterly scalar signals over the
// as-of-restricted graph. Every quarter is read exclusively through an
// asof.Snapshot at the quarter's end date, so a signal can never aggregate
// evidence published after its as-of boundary — even when the evidence
// discusses an earlier fiscal period.
//
// Aggregation is pure: recomputing a quarter against an unchanged snapshot
// yields bit-identical output.
package signals

import (
	"context"
	"fmt"

	"wdkg/pkg/asof"
	"wdkg/pkg/kg"
	"wdkg/pkg/store"
)

// Aggregator derives quarterly signals from an as-of engine.
type Aggregator struct {
	engine *asof.Engine
}

// New returns an aggregator over the given engine.
func New(engine *asof.Engine) *Aggregator {
	return &Aggregator{engine: engine}
}

// ComputeQuarter computes every signal type for one quarter. Quarters with
// zero qualifying relationships yield value 0 with Sparse set, never a
// missing signal.
func (a *Aggregator) ComputeQuarter(ctx context.Context, q kg.Quarter) ([]kg.Signal, error) {
	snap := a.engine.Snapshot(q.End())

	out := make([]kg.Signal, 0, len(kg.SignalTypes))
	for _, typ := range kg.SignalTypes {
		sig, err := a.compute(ctx, snap, typ, q)
		if err != nil {
			return nil, fmt.Errorf("failed to compute %s for %s: %w", typ, q, err)
		}
		out = append(out, sig)
	}
	return out, nil
}

// ComputeRange computes all signals for every quarter from a to b inclusive.
func (a *Aggregator) ComputeRange(ctx context.Context, from, to kg.Quarter) ([]kg.Signal, error) {
	var out []kg.Signal
	for _, q := range kg.QuartersBetween(from, to) {
		sigs, err := a.ComputeQuarter(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, sigs...)
	}
	return out, nil
}

func (a *Aggregator) compute(ctx context.Context, snap *asof.Snapshot, typ kg.SignalType, q kg.Quarter) (kg.Signal, error) {
	var (
		qualifying []kg.Relationship
		value      float64
		err        error
	)

	switch typ {
	case kg.SignalAILanguageIntensity:
		qualifying, value, err = a.aiLanguageIntensity(ctx, snap, q)
	case kg.SignalCapabilityMentionTrend:
		qualifying, err = a.quarterScan(ctx, snap, q, store.Filter{
			Types:       []kg.RelationType{kg.RelMentions, kg.RelAssociatedWith},
			TargetTypes: []kg.EntityType{kg.EntityCapability, kg.EntityProduct},
		})
		value = float64(len(qualifying))
	case kg.SignalRiskDisclosureDensity:
		qualifying, value, err = a.riskDisclosureDensity(ctx, snap, q)
	case kg.SignalMediaMentionProxy:
		qualifying, err = a.quarterScan(ctx, snap, q, store.Filter{
			ExcludeDocTypes: []kg.DocType{kg.DocFiling},
		})
		value = float64(len(qualifying))
	case kg.SignalEventFrequency:
		qualifying, err = a.quarterScan(ctx, snap, q, store.Filter{
			Types:       []kg.RelationType{kg.RelAnnounces},
			TargetTypes: []kg.EntityType{kg.EntityEvent},
		})
		value = float64(len(qualifying))
	default:
		return kg.Signal{}, fmt.Errorf("unknown signal type %q", typ)
	}
	if err != nil {
		return kg.Signal{}, err
	}

	computedFrom := make([]string, 0, len(qualifying))
	for _, rel := range qualifying {
		computedFrom = append(computedFrom, rel.ID)
	}

	return kg.Signal{
		ID:           kg.SignalID(typ, q),
		Type:         typ,
		Quarter:      q,
		Value:        value,
		Sparse:       len(qualifying) == 0,
		ComputedFrom: computedFrom,
		AsOfDate:     q.End(),
	}, nil
}

// aiLanguageIntensity is the count of AI-related MENTIONS/ANNOUNCES
// assertions normalized by the quarter's total assertion count.
func (a *Aggregator) aiLanguageIntensity(ctx context.Context, snap *asof.Snapshot, q kg.Quarter) ([]kg.Relationship, float64, error) {
	aiRelated := true
	qualifying, err := a.quarterScan(ctx, snap, q, store.Filter{
		Types:     []kg.RelationType{kg.RelMentions, kg.RelAnnounces},
		AIRelated: &aiRelated,
	})
	if err != nil {
		return nil, 0, err
	}

	total, err := a.quarterScan(ctx, snap, q, store.Filter{})
	if err != nil {
		return nil, 0, err
	}
	if len(total) == 0 {
		return qualifying, 0, nil
	}
	return qualifying, float64(len(qualifying)) / float64(len(total)), nil
}

// riskDisclosureDensity is the count of DISCLOSES assertions to risk topics
// from regulatory filings, divided by the quarter's filing count.
func (a *Aggregator) riskDisclosureDensity(ctx context.Context, snap *asof.Snapshot, q kg.Quarter) ([]kg.Relationship, float64, error) {
	qualifying, err := a.quarterScan(ctx, snap, q, store.Filter{
		Types:       []kg.RelationType{kg.RelDiscloses},
		TargetTypes: []kg.EntityType{kg.EntityRiskTopic},
		DocTypes:    []kg.DocType{kg.DocFiling},
	})
	if err != nil {
		return nil, 0, err
	}

	filings, err := snap.CountDocuments(ctx, []kg.DocType{kg.DocFiling}, q.Start(), q.End())
	if err != nil {
		return nil, 0, err
	}
	if filings == 0 {
		return qualifying, 0, nil
	}
	return qualifying, float64(len(qualifying)) / float64(filings), nil
}

func (a *Aggregator) quarterScan(ctx context.Context, snap *asof.Snapshot, q kg.Quarter, f store.Filter) ([]kg.Relationship, error) {
	from := q.Start()
	until := q.End()
	f.From = &from
	f.Until = &until
	return snap.Relationships(ctx, f)
}
