package types

import (
	"sort"
	"strings"
	"time"
)

// Variant tags the four constraint shapes the relationship mapper
// discovers (§4.3).
type Variant string

const (
	VariantSubset      Variant = "SUBSET"
	VariantThreshold   Variant = "THRESHOLD"
	VariantPartition   Variant = "PARTITION"
	VariantImplication Variant = "IMPLICATION"
)

// Relationship is a durable logical constraint between an ordered
// sequence of market tickers. The sequence's semantics depend on Variant:
//
//	SUBSET:      [subset, superset]
//	THRESHOLD:   [t1, ..., tn] ascending thresholds
//	PARTITION:   unordered set, mutually exclusive and exhaustive
//	IMPLICATION: [if, then]
type Relationship struct {
	ID            string    `json:"id"`
	Variant       Variant   `json:"variant"`
	Tickers       []string  `json:"tickers"`
	Description   string    `json:"description"`
	Formula       string    `json:"formula"`
	Confidence    float64   `json:"confidence"`
	Reasoning     string    `json:"reasoning"`
	CreatedAt     time.Time `json:"created_at"`
	LastValidated time.Time `json:"last_validated"`
}

// DedupKey returns the (variant, sorted tickers) key used to identify
// duplicate relationships (§3).
func (r *Relationship) DedupKey() string {
	return DedupKey(r.Variant, r.Tickers)
}

// DedupKey builds the dedup key for a variant/ticker-sequence pair
// without requiring a constructed Relationship.
func DedupKey(variant Variant, tickers []string) string {
	sorted := append([]string(nil), tickers...)
	sort.Strings(sorted)
	return string(variant) + "|" + strings.Join(sorted, ",")
}
