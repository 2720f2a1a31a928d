package relationship

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kalshi-arb/engine/pkg/types"
)

func asString(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

func asFloat(raw map[string]any, key string, def float64) float64 {
	if v, ok := raw[key].(float64); ok {
		return v
	}
	return def
}

func asStringSlice(raw map[string]any, key string) []string {
	v, ok := raw[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(v))
	for _, e := range v {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// NormalizeRelationship converts one raw oracle-reported relationship
// into a types.Relationship, or returns nil if the shape is invalid.
// Grounded on original_source/src/relationship.py's _normalise_relationship.
func NormalizeRelationship(raw map[string]any) *types.Relationship {
	variant := strings.ToUpper(asString(raw, "type"))
	confidence := asFloat(raw, "confidence", 0.5)
	reasoning := asString(raw, "reasoning")

	switch types.Variant(variant) {
	case types.VariantSubset:
		subset := asString(raw, "subset_ticker")
		superset := asString(raw, "superset_ticker")
		if subset == "" || superset == "" {
			return nil
		}
		formula := fmt.Sprintf("P(%s) <= P(%s)", subset, superset)
		return &types.Relationship{
			Variant:     types.VariantSubset,
			Tickers:     []string{subset, superset},
			Description: formula,
			Formula:     formula,
			Confidence:  confidence,
			Reasoning:   reasoning,
		}

	case types.VariantThreshold:
		tickers := asStringSlice(raw, "tickers_ascending")
		if len(tickers) < 2 {
			return nil
		}
		parts := make([]string, len(tickers))
		for i, t := range tickers {
			parts[i] = fmt.Sprintf("P(%s)", t)
		}
		formula := strings.Join(parts, " >= ")
		return &types.Relationship{
			Variant:     types.VariantThreshold,
			Tickers:     tickers,
			Description: formula,
			Formula:     formula,
			Confidence:  confidence,
			Reasoning:   reasoning,
		}

	case types.VariantPartition:
		tickers := asStringSlice(raw, "tickers")
		if len(tickers) < 2 {
			return nil
		}
		formula := fmt.Sprintf("SUM(P(%s)) ~= 1.00", strings.Join(tickers, ", "))
		return &types.Relationship{
			Variant:     types.VariantPartition,
			Tickers:     tickers,
			Description: formula,
			Formula:     "SUM_EQUALS_1",
			Confidence:  confidence,
			Reasoning:   reasoning,
		}

	case types.VariantImplication:
		ifTicker := asString(raw, "if_ticker")
		thenTicker := asString(raw, "then_ticker")
		if ifTicker == "" || thenTicker == "" {
			return nil
		}
		condProb := asFloat(raw, "estimated_conditional_prob", 0.8)
		return &types.Relationship{
			Variant:     types.VariantImplication,
			Tickers:     []string{ifTicker, thenTicker},
			Description: fmt.Sprintf("P(%s) implies P(%s) with prob ~%.2f", ifTicker, thenTicker, condProb),
			Formula:     fmt.Sprintf("IMPLIES(%s,%s,%.2f)", ifTicker, thenTicker, condProb),
			Confidence:  confidence,
			Reasoning:   reasoning,
		}

	default:
		return nil
	}
}

// sortedTickers returns a sorted copy, used so dedup keys are stable
// regardless of the order the oracle reported tickers in.
func sortedTickers(tickers []string) []string {
	out := append([]string(nil), tickers...)
	sort.Strings(out)
	return out
}
