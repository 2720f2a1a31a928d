// Package storage is the exclusive owner of every persisted entity from
// §3: every other component holds transient copies. Market/Event rows
// are upserted by ingestion, Relationships by the mapper, Opportunities
// by the detector, Trades and PortfolioState by the executor and
// portfolio guard.
package storage

import (
	"context"

	"github.com/kalshi-arb/engine/internal/detector"
	"github.com/kalshi-arb/engine/pkg/types"
)

// Storage is the full persistence contract for the engine.
type Storage interface {
	// UpsertMarkets upserts a batch of markets, internally chunked into
	// 1,000-record transactional batches (§4.2). Idempotent.
	UpsertMarkets(ctx context.Context, markets []types.Market) error

	// UpsertEvents upserts a batch of events.
	UpsertEvents(ctx context.Context, events []types.Event) error

	// InsertPriceSnapshot appends one audit-log row (§3: append-only).
	InsertPriceSnapshot(ctx context.Context, snap types.PriceSnapshot) error

	// UpsertRelationship inserts a new relationship or, on a dedup-key
	// collision (variant, sorted tickers), refreshes last_validated and
	// confidence in place without creating a new row.
	UpsertRelationship(ctx context.Context, rel *types.Relationship) error

	// ActiveRelationships returns every relationship with at least one
	// open participating market.
	ActiveRelationships(ctx context.Context) ([]types.Relationship, error)

	// AllRelationships returns every stored relationship, used by the
	// revalidation pass to decide what needs revalidating.
	AllRelationships(ctx context.Context) ([]types.Relationship, error)

	// DeleteStaleRelationships removes every relationship none of whose
	// markets remain open, returning the count deleted.
	DeleteStaleRelationships(ctx context.Context) (int, error)

	// CreateOpportunity persists a newly detected opportunity.
	CreateOpportunity(ctx context.Context, opp *detector.Opportunity) error

	// UpdateOpportunityStatus transitions an opportunity's status
	// in place (§7: idempotent transitions).
	UpdateOpportunityStatus(ctx context.Context, id string, status detector.Status) error

	// InsertTrade writes a new trade row (pending status, before the
	// exchange call returns, per §4.5).
	InsertTrade(ctx context.Context, trade *types.Trade) error

	// UpdateTrade updates a trade's mutable fields (status,
	// exchange_order_id, filled_count, fees, updated_at) in place.
	UpdateTrade(ctx context.Context, trade *types.Trade) error

	// TradesForOpportunity returns every trade row belonging to an
	// opportunity.
	TradesForOpportunity(ctx context.Context, opportunityID string) ([]types.Trade, error)

	// GetPortfolioState loads the singleton portfolio record, or an empty
	// record (zero balance and P&L, kill switch off) if none has ever been
	// persisted.
	GetPortfolioState(ctx context.Context) (*types.PortfolioState, error)

	// SavePortfolioState persists the singleton portfolio record.
	SavePortfolioState(ctx context.Context, state *types.PortfolioState) error

	// Close releases any held resources.
	Close() error
}
