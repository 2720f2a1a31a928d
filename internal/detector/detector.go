package detector

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/internal/fees"
	"github.com/kalshi-arb/engine/pkg/types"
)

// Constants from §4.4.
const (
	minMagnitude    = 0.02 // ε
	softThreshold   = 0.08 // ε_soft for IMPLICATION
	defaultDepth    = 20.0
	depthNormalizer = 50.0
	implicationMinConfidence = 0.7
)

// MarketLookup resolves a ticker to its current Market, the snapshot the
// detector reads prices from (§5: an atomically-swapped cache).
type MarketLookup interface {
	Get(ticker string) (*types.Market, bool)
}

// RelationshipSource yields the currently active relationships (at least
// one participating market still open).
type RelationshipSource interface {
	ActiveRelationships(ctx context.Context) ([]types.Relationship, error)
}

// Config controls the detector's thresholds. Zero values fall back to
// the defaults from §4.4.
type Config struct {
	MinScoreThreshold float64
	SafetyMultiplier  float64
}

// Detector evaluates every active Relationship against live prices and
// emits scored Opportunities on each cycle (§4.4). It is stateless
// across cycles.
type Detector struct {
	markets       MarketLookup
	relationships RelationshipSource
	cfg           Config
	logger        *zap.Logger
}

// New constructs a Detector.
func New(markets MarketLookup, relationships RelationshipSource, cfg Config, logger *zap.Logger) *Detector {
	if cfg.MinScoreThreshold <= 0 {
		cfg.MinScoreThreshold = 0.05
	}
	if cfg.SafetyMultiplier <= 0 {
		cfg.SafetyMultiplier = fees.DefaultSafetyMultiplier
	}
	return &Detector{markets: markets, relationships: relationships, cfg: cfg, logger: logger}
}

// Detect runs one detection cycle: for every active relationship, it
// evaluates the variant-specific check, and returns opportunities sorted
// by descending score (§5 ordering guarantee).
func (d *Detector) Detect(ctx context.Context) ([]*Opportunity, error) {
	start := time.Now()
	defer func() {
		DetectionDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	rels, err := d.relationships.ActiveRelationships(ctx)
	if err != nil {
		return nil, types.NewError(types.KindTransient, "detector.ActiveRelationships", err)
	}

	var out []*Opportunity
	for i := range rels {
		rel := &rels[i]
		var opps []*Opportunity
		switch rel.Variant {
		case types.VariantSubset:
			opps = d.checkSubset(rel)
		case types.VariantThreshold:
			opps = d.checkThreshold(rel)
		case types.VariantPartition:
			opps = d.checkPartition(rel)
		case types.VariantImplication:
			opps = d.checkImplication(rel)
		default:
			continue
		}
		for _, o := range opps {
			if o.Score < d.cfg.MinScoreThreshold {
				OpportunitiesRejectedTotal.WithLabelValues("below_min_score").Inc()
				continue
			}
			OpportunitiesDetectedTotal.Inc()
			OpportunityScore.Observe(o.Score)
			out = append(out, o)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (d *Detector) lookup(ticker string) (*types.Market, bool) {
	return d.markets.Get(ticker)
}

func depthOf(ms ...*types.Market) float64 {
	depth := math.MaxFloat64
	for _, m := range ms {
		oi := m.OpenInterest
		if oi <= 0 {
			oi = defaultDepth
		}
		if oi < depth {
			depth = oi
		}
	}
	if depth == math.MaxFloat64 || depth <= 0 {
		return defaultDepth
	}
	return depth
}

func liquidityFactor(depth float64) float64 {
	f := depth / depthNormalizer
	if f > 1 {
		return 1
	}
	return f
}

func (d *Detector) score(magnitude, confidence, depth float64) float64 {
	return magnitude * confidence * liquidityFactor(depth)
}

func (d *Detector) profitable(magnitude float64, prices []float64) bool {
	return fees.IsProfitable(magnitude, 1, prices, d.cfg.SafetyMultiplier)
}

// checkSubset implements SUBSET: tickers = [subset, superset].
// Violation: sub.yes_ask - sup.yes_bid > ε. Legs: buy sup@bid, sell sub@ask.
func (d *Detector) checkSubset(rel *types.Relationship) []*Opportunity {
	if len(rel.Tickers) != 2 {
		return nil
	}
	sub, okSub := d.lookup(rel.Tickers[0])
	sup, okSup := d.lookup(rel.Tickers[1])
	if !okSub || !okSup {
		return nil
	}

	magnitude := sub.YesAsk - sup.YesBid
	if magnitude <= minMagnitude {
		return nil
	}
	if !d.profitable(magnitude, []float64{sub.YesAsk, sup.YesBid}) {
		return nil
	}

	depth := depthOf(sub, sup)
	o := NewOpportunity(rel.ID, SignalBuySupersetSellSubset, magnitude, rel.Confidence, []Leg{
		{Ticker: sup.Ticker, Action: "buy", TargetPrice: sup.YesBid, Depth: depth},
		{Ticker: sub.Ticker, Action: "sell", TargetPrice: sub.YesAsk, Depth: depth},
	})
	o.Score = d.score(magnitude, rel.Confidence, depth)
	return []*Opportunity{o}
}

// checkThreshold implements THRESHOLD: for each adjacent pair (ti, ti+1),
// violation ti+1.yes_ask - ti.yes_bid > ε. Legs: buy ti@bid, sell ti+1@ask.
func (d *Detector) checkThreshold(rel *types.Relationship) []*Opportunity {
	var out []*Opportunity
	for i := 0; i < len(rel.Tickers)-1; i++ {
		lower, okLower := d.lookup(rel.Tickers[i])
		higher, okHigher := d.lookup(rel.Tickers[i+1])
		if !okLower || !okHigher {
			continue
		}

		magnitude := higher.YesAsk - lower.YesBid
		if magnitude <= minMagnitude {
			continue
		}
		if !d.profitable(magnitude, []float64{lower.YesBid, higher.YesAsk}) {
			continue
		}

		depth := depthOf(lower, higher)
		o := NewOpportunity(rel.ID, ThresholdSignal(lower.Ticker, higher.Ticker), magnitude, rel.Confidence, []Leg{
			{Ticker: lower.Ticker, Action: "buy", TargetPrice: lower.YesBid, Depth: depth},
			{Ticker: higher.Ticker, Action: "sell", TargetPrice: higher.YesAsk, Depth: depth},
		})
		o.Score = d.score(magnitude, rel.Confidence, depth)
		out = append(out, o)
	}
	return out
}

// checkPartition implements PARTITION: an unordered set. Buy branch fires
// when 1 - Σasks > ε; sell branch fires when Σbids - 1 > ε. A partition
// missing any member is skipped entirely.
func (d *Detector) checkPartition(rel *types.Relationship) []*Opportunity {
	members := make([]*types.Market, 0, len(rel.Tickers))
	for _, t := range rel.Tickers {
		m, ok := d.lookup(t)
		if !ok {
			return nil
		}
		members = append(members, m)
	}
	if len(members) == 0 {
		return nil
	}

	var totalAsk, totalBid float64
	for _, m := range members {
		totalAsk += m.YesAsk
		totalBid += m.YesBid
	}

	var out []*Opportunity

	if buyMagnitude := 1.0 - totalAsk; buyMagnitude > minMagnitude {
		prices := make([]float64, len(members))
		legs := make([]Leg, len(members))
		depth := depthOf(members...)
		for i, m := range members {
			prices[i] = m.YesAsk
			legs[i] = Leg{Ticker: m.Ticker, Action: "buy", TargetPrice: m.YesAsk, Depth: depth}
		}
		if d.profitable(buyMagnitude, prices) {
			o := NewOpportunity(rel.ID, SignalBuyAllPartition, buyMagnitude, rel.Confidence, legs)
			o.Score = d.score(buyMagnitude, rel.Confidence, depth)
			out = append(out, o)
		}
	}

	if sellMagnitude := totalBid - 1.0; sellMagnitude > minMagnitude {
		prices := make([]float64, len(members))
		legs := make([]Leg, len(members))
		depth := depthOf(members...)
		for i, m := range members {
			prices[i] = m.YesBid
			legs[i] = Leg{Ticker: m.Ticker, Action: "sell", TargetPrice: m.YesBid, Depth: depth}
		}
		if d.profitable(sellMagnitude, prices) {
			o := NewOpportunity(rel.ID, SignalSellAllPartition, sellMagnitude, rel.Confidence, legs)
			o.Score = d.score(sellMagnitude, rel.Confidence, depth)
			out = append(out, o)
		}
	}

	return out
}

// checkImplication implements IMPLICATION: tickers = [if, then]. Fires
// only above the softer ε_soft threshold and only at high confidence.
// Legs: buy then@ask, sell if@bid.
func (d *Detector) checkImplication(rel *types.Relationship) []*Opportunity {
	if len(rel.Tickers) != 2 {
		return nil
	}
	ifMkt, okIf := d.lookup(rel.Tickers[0])
	thenMkt, okThen := d.lookup(rel.Tickers[1])
	if !okIf || !okThen {
		return nil
	}

	magnitude := ifMkt.YesBid - thenMkt.YesAsk
	if magnitude <= softThreshold {
		return nil
	}
	if rel.Confidence < implicationMinConfidence {
		return nil
	}
	if !d.profitable(magnitude, []float64{ifMkt.YesBid, thenMkt.YesAsk}) {
		return nil
	}

	depth := depthOf(ifMkt, thenMkt)
	o := NewOpportunity(rel.ID, SignalBuyThenSellIf, magnitude, rel.Confidence, []Leg{
		{Ticker: thenMkt.Ticker, Action: "buy", TargetPrice: thenMkt.YesAsk, Depth: depth},
		{Ticker: ifMkt.Ticker, Action: "sell", TargetPrice: ifMkt.YesBid, Depth: depth},
	})
	o.Score = d.score(magnitude, rel.Confidence, depth)
	return []*Opportunity{o}
}
