package relationship

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/internal/markets"
	"github.com/kalshi-arb/engine/pkg/types"
)

// BatchCache deduplicates oracle calls for an identical batch of
// tickers within a TTL window (internal/markets.OracleCache). Optional:
// a nil cache just means every batch is a miss.
type BatchCache interface {
	Get(key string) ([]map[string]any, bool)
	Put(key string, raw []map[string]any)
}

// Pass names the three (plus one supplemented) scheduling passes (§4.3).
type Pass string

const (
	PassWithinEvent    Pass = "event"
	PassWithinCategory Pass = "category"
	PassCrossCategory  Pass = "cross"
)

// MarketSource supplies the open markets the mapper scans.
type MarketSource interface {
	AllOpenMarkets(ctx context.Context) ([]types.Market, error)
}

// Store is the subset of storage.Storage the mapper depends on.
type Store interface {
	UpsertRelationship(ctx context.Context, rel *types.Relationship) error
	AllRelationships(ctx context.Context) ([]types.Relationship, error)
	DeleteStaleRelationships(ctx context.Context) (int, error)
}

// Service runs the batched oracle-driven relationship discovery passes.
type Service struct {
	oracle        Oracle
	markets       MarketSource
	store         Store
	batchCache    BatchCache
	scanModel     string
	validateModel string
	highValue     map[string]bool
	logger        *zap.Logger
}

// Config holds relationship-mapper configuration.
type Config struct {
	Oracle  Oracle
	Markets MarketSource
	Store   Store
	// BatchCache, when set, lets repeated batches of the same tickers
	// reuse a recent oracle response instead of re-querying (§9 ambient
	// stack). Optional.
	BatchCache BatchCache
	// ScanModel is the oracle model used for the bulk scanning passes.
	ScanModel string
	// ValidateModel is the oracle model used for single-relationship
	// revalidation, expected to be the stronger/slower tier.
	ValidateModel string
	// HighValueCategories is the data-driven category allow-list (§9
	// open question: resolved data-driven rather than compiled-in).
	HighValueCategories []string
	Logger              *zap.Logger
}

// New constructs a mapper Service.
func New(cfg Config) *Service {
	hv := make(map[string]bool, len(cfg.HighValueCategories))
	for _, c := range cfg.HighValueCategories {
		hv[c] = true
	}
	return &Service{
		oracle:        cfg.Oracle,
		markets:       cfg.Markets,
		store:         cfg.Store,
		batchCache:    cfg.BatchCache,
		scanModel:     cfg.ScanModel,
		validateModel: cfg.ValidateModel,
		highValue:     hv,
		logger:        cfg.Logger,
	}
}

// Discover runs one scheduling pass and stores any newly found
// relationships, refreshing last_validated on existing ones (§4.3).
// Grounded on original_source/src/relationship.py's discover_relationships.
func (s *Service) Discover(ctx context.Context, pass Pass) (int, error) {
	start := time.Now()
	defer func() {
		DiscoveryDurationSeconds.WithLabelValues(string(pass)).Observe(time.Since(start).Seconds())
	}()

	markets, err := s.markets.AllOpenMarkets(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open markets: %w", err)
	}
	if len(markets) == 0 {
		s.logger.Info("no-open-markets-skip-discovery", zap.String("pass", string(pass)))
		return 0, nil
	}

	filtered := s.filterHighValue(markets)
	if len(filtered) == 0 {
		s.logger.Info("no-high-value-markets-after-filter", zap.String("pass", string(pass)))
		return 0, nil
	}

	var batches [][]types.Market
	switch pass {
	case PassWithinEvent:
		batches = batchByEvent(filtered)
	case PassWithinCategory:
		batches = batchByCategory(filtered)
	default:
		batches = batchCrossCategory(filtered)
	}

	s.logger.Info("running-discovery-pass", zap.String("pass", string(pass)), zap.Int("batches", len(batches)))

	total := 0
	for i, batch := range batches {
		s.logger.Debug("processing-batch", zap.Int("index", i+1), zap.Int("total", len(batches)), zap.Int("markets", len(batch)))

		raw, err := s.callOracle(ctx, batch, s.scanModel)
		if err != nil {
			s.logger.Warn("oracle-call-failed", zap.Error(err))
			OracleErrorsTotal.Inc()
			continue
		}

		for _, r := range raw {
			rel := NormalizeRelationship(r)
			if rel == nil {
				continue
			}
			rel.Tickers = sortedTickers(rel.Tickers)
			rel.CreatedAt = time.Now()
			rel.LastValidated = time.Now()
			if err := s.store.UpsertRelationship(ctx, rel); err != nil {
				s.logger.Warn("upsert-relationship-failed", zap.Error(err))
				continue
			}
			total++
			RelationshipsDiscoveredTotal.WithLabelValues(string(rel.Variant)).Inc()
		}
	}

	s.logger.Info("discovery-pass-complete", zap.String("pass", string(pass)), zap.Int("relationships", total))
	return total, nil
}

// Validate re-checks a single relationship against the stronger model,
// refreshing confidence/last_validated if it still holds.
func (s *Service) Validate(ctx context.Context, relationshipID string) (bool, error) {
	all, err := s.store.AllRelationships(ctx)
	if err != nil {
		return false, fmt.Errorf("load relationships: %w", err)
	}

	var target *types.Relationship
	for i := range all {
		if all[i].ID == relationshipID {
			target = &all[i]
			break
		}
	}
	if target == nil {
		return false, nil
	}

	markets, err := s.markets.AllOpenMarkets(ctx)
	if err != nil {
		return false, fmt.Errorf("list open markets: %w", err)
	}
	byTicker := make(map[string]types.Market, len(markets))
	for _, m := range markets {
		byTicker[m.Ticker] = m
	}

	var participants []types.Market
	for _, t := range target.Tickers {
		if m, ok := byTicker[t]; ok {
			participants = append(participants, m)
		}
	}
	if len(participants) < 2 {
		s.logger.Warn("relationship-missing-active-markets", zap.String("id", relationshipID))
		return false, nil
	}

	raw, err := s.callOracle(ctx, participants, s.validateModel)
	if err != nil {
		return false, fmt.Errorf("oracle call: %w", err)
	}

	wantTickers := make(map[string]bool, len(target.Tickers))
	for _, t := range target.Tickers {
		wantTickers[t] = true
	}

	for _, r := range raw {
		candidate := NormalizeRelationship(r)
		if candidate == nil || candidate.Variant != target.Variant {
			continue
		}
		if len(candidate.Tickers) != len(target.Tickers) {
			continue
		}
		match := true
		for _, t := range candidate.Tickers {
			if !wantTickers[t] {
				match = false
				break
			}
		}
		if !match {
			continue
		}

		candidate.ID = target.ID
		candidate.Tickers = sortedTickers(candidate.Tickers)
		candidate.LastValidated = time.Now()
		if err := s.store.UpsertRelationship(ctx, candidate); err != nil {
			return false, fmt.Errorf("upsert revalidated relationship: %w", err)
		}
		s.logger.Info("relationship-revalidated", zap.String("id", relationshipID))
		return true, nil
	}

	s.logger.Warn("relationship-could-not-be-revalidated", zap.String("id", relationshipID))
	return false, nil
}

// CleanupStale removes relationships with no remaining open market.
func (s *Service) CleanupStale(ctx context.Context) (int, error) {
	n, err := s.store.DeleteStaleRelationships(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete stale relationships: %w", err)
	}
	s.logger.Info("cleaned-up-stale-relationships", zap.Int("count", n))
	return n, nil
}

func (s *Service) filterHighValue(markets []types.Market) []types.Market {
	if len(s.highValue) == 0 {
		return markets
	}
	var out []types.Market
	for _, m := range markets {
		if s.highValue[m.Category] {
			out = append(out, m)
		}
	}
	return out
}

func (s *Service) callOracle(ctx context.Context, batch []types.Market, model string) ([]map[string]any, error) {
	tickers := make([]string, len(batch))
	for i, m := range batch {
		tickers[i] = m.Ticker
	}
	var cacheKey string
	if s.batchCache != nil {
		cacheKey = markets.BatchKey(model, tickers)
		if cached, ok := s.batchCache.Get(cacheKey); ok {
			return cached, nil
		}
	}

	userPrompt := buildUserPrompt(batch)
	text, err := s.oracle.Complete(ctx, model, systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}
	result := ExtractJSONArray(text)
	if result == nil {
		s.logger.Warn("oracle-response-not-parseable", zap.Int("response-len", len(text)))
		return nil, nil
	}

	if s.batchCache != nil {
		s.batchCache.Put(cacheKey, result)
	}
	return result, nil
}
