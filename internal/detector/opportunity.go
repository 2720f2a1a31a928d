// Package detector evaluates Relationships against live prices and emits
// scored Opportunities (§4.4).
package detector

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the Opportunity state machine (§3): DETECTED -> EXECUTING ->
// {FILLED | FAILED | EXPIRED}.
type Status string

const (
	StatusDetected  Status = "DETECTED"
	StatusExecuting Status = "EXECUTING"
	StatusFilled    Status = "FILLED"
	StatusFailed    Status = "FAILED"
	StatusExpired   Status = "EXPIRED"
)

// Signal names the discovered violation shape, matching the seed
// scenarios in §8.
type Signal string

const (
	SignalBuySupersetSellSubset Signal = "BUY_SUPERSET_SELL_SUBSET"
	SignalBuyAllPartition       Signal = "BUY_ALL_PARTITION"
	SignalSellAllPartition      Signal = "SELL_ALL_PARTITION"
	SignalBuyThenSellIf         Signal = "BUY_THEN_SELL_IF"
)

// ThresholdSignal builds the per-pair THRESHOLD signal name: the pair
// itself names the signal since each adjacent pair is its own violation.
func ThresholdSignal(lowerTicker, higherTicker string) Signal {
	return Signal("BUY_" + lowerTicker + "_SELL_" + higherTicker)
}

// Leg is one order-to-be-placed within an Opportunity.
type Leg struct {
	Ticker      string
	Action      string // "buy" or "sell"
	TargetPrice float64
	Depth       float64
}

// Opportunity is a detected, scored constraint violation (§3, §4.4).
type Opportunity struct {
	ID             string
	RelationshipID string
	Signal         Signal
	Magnitude      float64
	Confidence     float64
	Score          float64
	Legs           []Leg
	Status         Status
	DetectedAt     time.Time
	ExpiresAt      time.Time
}

// expiryWindow is the fixed five-minute expiry every opportunity carries
// (§4.4).
const expiryWindow = 5 * time.Minute

// NewOpportunity constructs an Opportunity with the standard expiry and a
// fresh id.
func NewOpportunity(relationshipID string, signal Signal, magnitude, confidence float64, legs []Leg) *Opportunity {
	now := time.Now()
	return &Opportunity{
		ID:             uuid.New().String(),
		RelationshipID: relationshipID,
		Signal:         signal,
		Magnitude:      magnitude,
		Confidence:     confidence,
		Legs:           legs,
		Status:         StatusDetected,
		DetectedAt:     now,
		ExpiresAt:      now.Add(expiryWindow),
	}
}

// IsExpired reports whether the opportunity's expiry window has elapsed
// as of now.
func (o *Opportunity) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

func (o *Opportunity) String() string {
	return fmt.Sprintf(
		"Opportunity[%s] signal=%s magnitude=%.4f confidence=%.2f score=%.4f legs=%d status=%s",
		o.ID[:8], o.Signal, o.Magnitude, o.Confidence, o.Score, len(o.Legs), o.Status,
	)
}
