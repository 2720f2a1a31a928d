package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/internal/detector"
	"github.com/kalshi-arb/engine/pkg/types"
)

// batchSize is the transactional upsert chunk size from §4.2.
const batchSize = 1000

// PostgresStorage implements Storage using PostgreSQL via lib/pq.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
	MaxOpenConn int // bounded pool, §5: min 1, max 5-10
	MaxIdleConn int
	Logger      *zap.Logger
}

// NewPostgresStorage opens a connection pool and verifies connectivity.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConn
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle := cfg.MaxIdleConn
	if maxIdle <= 0 {
		maxIdle = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{db: db, logger: cfg.Logger}, nil
}

func tickersJSON(tickers []string) (string, error) {
	b, err := json.Marshal(tickers)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UpsertMarkets upserts markets in transactional batches of batchSize.
func (p *PostgresStorage) UpsertMarkets(ctx context.Context, markets []types.Market) error {
	for start := 0; start < len(markets); start += batchSize {
		end := start + batchSize
		if end > len(markets) {
			end = len(markets)
		}
		if err := p.upsertMarketBatch(ctx, markets[start:end]); err != nil {
			return fmt.Errorf("upsert market batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (p *PostgresStorage) upsertMarketBatch(ctx context.Context, batch []types.Market) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO markets (
			ticker, event_ticker, title, category, status,
			yes_ask, yes_bid, no_ask, no_bid, volume, open_interest,
			close_time, settlement_rules, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
		ON CONFLICT (ticker) DO UPDATE SET
			event_ticker = EXCLUDED.event_ticker,
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			status = EXCLUDED.status,
			yes_ask = EXCLUDED.yes_ask,
			yes_bid = EXCLUDED.yes_bid,
			no_ask = EXCLUDED.no_ask,
			no_bid = EXCLUDED.no_bid,
			volume = EXCLUDED.volume,
			open_interest = EXCLUDED.open_interest,
			close_time = EXCLUDED.close_time,
			settlement_rules = EXCLUDED.settlement_rules,
			last_updated = now()
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, m := range batch {
		if _, err := stmt.ExecContext(ctx,
			m.Ticker, m.EventTicker, m.Title, m.Category, string(m.Status),
			m.YesAsk, m.YesBid, m.NoAsk, m.NoBid, m.Volume, m.OpenInterest,
			m.CloseTime, m.SettlementRules,
		); err != nil {
			return fmt.Errorf("exec upsert for %s: %w", m.Ticker, err)
		}
	}

	return tx.Commit()
}

// UpsertEvents upserts events in transactional batches.
func (p *PostgresStorage) UpsertEvents(ctx context.Context, events []types.Event) error {
	for start := 0; start < len(events); start += batchSize {
		end := start + batchSize
		if end > len(events) {
			end = len(events)
		}
		if err := p.upsertEventBatch(ctx, events[start:end]); err != nil {
			return fmt.Errorf("upsert event batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (p *PostgresStorage) upsertEventBatch(ctx context.Context, batch []types.Event) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (event_ticker, title, category, market_tickers, last_updated)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (event_ticker) DO UPDATE SET
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			market_tickers = EXCLUDED.market_tickers,
			last_updated = now()
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range batch {
		tickers, err := tickersJSON(e.MarketTickers)
		if err != nil {
			return fmt.Errorf("marshal tickers for %s: %w", e.EventTicker, err)
		}
		if _, err := stmt.ExecContext(ctx, e.EventTicker, e.Title, e.Category, tickers); err != nil {
			return fmt.Errorf("exec upsert for %s: %w", e.EventTicker, err)
		}
	}

	return tx.Commit()
}

// InsertPriceSnapshot appends an audit row.
func (p *PostgresStorage) InsertPriceSnapshot(ctx context.Context, snap types.PriceSnapshot) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO price_snapshots (market_ticker, yes_ask, yes_bid, snapshot_time)
		VALUES ($1, $2, $3, $4)
	`, snap.MarketTicker, snap.YesAsk, snap.YesBid, snap.Timestamp)
	if err != nil {
		return fmt.Errorf("insert price snapshot: %w", err)
	}
	return nil
}

// UpsertRelationship inserts or, on dedup-key collision, refreshes
// last_validated and confidence in place (§4.3).
func (p *PostgresStorage) UpsertRelationship(ctx context.Context, rel *types.Relationship) error {
	tickers, err := tickersJSON(rel.Tickers)
	if err != nil {
		return fmt.Errorf("marshal tickers: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO relationships (
			id, variant, tickers, dedup_key, description, formula,
			confidence, reasoning, created_at, last_validated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (dedup_key) DO UPDATE SET
			confidence = EXCLUDED.confidence,
			reasoning = EXCLUDED.reasoning,
			last_validated = now()
	`, rel.ID, string(rel.Variant), tickers, rel.DedupKey(), rel.Description, rel.Formula, rel.Confidence, rel.Reasoning)
	if err != nil {
		return fmt.Errorf("upsert relationship: %w", err)
	}
	return nil
}

// ActiveRelationships returns relationships with at least one open
// participating market.
func (p *PostgresStorage) ActiveRelationships(ctx context.Context) ([]types.Relationship, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT r.id, r.variant, r.tickers, r.description, r.formula,
		       r.confidence, r.reasoning, r.created_at, r.last_validated
		FROM relationships r
		WHERE EXISTS (
			SELECT 1 FROM markets m
			WHERE m.ticker = ANY (
				SELECT json_array_elements_text(r.tickers::json)
			)
			AND m.status IN ('open', 'active')
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("query active relationships: %w", err)
	}
	defer rows.Close()
	return scanRelationships(rows)
}

// AllRelationships returns every stored relationship.
func (p *PostgresStorage) AllRelationships(ctx context.Context) ([]types.Relationship, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, variant, tickers, description, formula,
		       confidence, reasoning, created_at, last_validated
		FROM relationships
	`)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer rows.Close()
	return scanRelationships(rows)
}

func scanRelationships(rows *sql.Rows) ([]types.Relationship, error) {
	var out []types.Relationship
	for rows.Next() {
		var r types.Relationship
		var tickersRaw string
		var variant string
		if err := rows.Scan(&r.ID, &variant, &tickersRaw, &r.Description, &r.Formula,
			&r.Confidence, &r.Reasoning, &r.CreatedAt, &r.LastValidated); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		r.Variant = types.Variant(variant)
		if err := json.Unmarshal([]byte(tickersRaw), &r.Tickers); err != nil {
			return nil, fmt.Errorf("unmarshal tickers: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteStaleRelationships removes relationships with no open market.
func (p *PostgresStorage) DeleteStaleRelationships(ctx context.Context) (int, error) {
	res, err := p.db.ExecContext(ctx, `
		DELETE FROM relationships r
		WHERE NOT EXISTS (
			SELECT 1 FROM markets m
			WHERE m.ticker = ANY (
				SELECT json_array_elements_text(r.tickers::json)
			)
			AND m.status IN ('open', 'active')
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("delete stale relationships: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// CreateOpportunity persists a newly detected opportunity and its legs.
func (p *PostgresStorage) CreateOpportunity(ctx context.Context, opp *detector.Opportunity) error {
	legsJSON, err := json.Marshal(opp.Legs)
	if err != nil {
		return fmt.Errorf("marshal legs: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO opportunities (
			id, relationship_id, signal, magnitude, confidence, score,
			legs, status, detected_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, opp.ID, opp.RelationshipID, string(opp.Signal), opp.Magnitude, opp.Confidence,
		opp.Score, string(legsJSON), string(opp.Status), opp.DetectedAt, opp.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}
	return nil
}

// UpdateOpportunityStatus transitions an opportunity's status in place.
func (p *PostgresStorage) UpdateOpportunityStatus(ctx context.Context, id string, status detector.Status) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE opportunities SET status = $2 WHERE id = $1
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("update opportunity status: %w", err)
	}
	return nil
}

// InsertTrade writes a new trade row.
func (p *PostgresStorage) InsertTrade(ctx context.Context, trade *types.Trade) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO trades (
			id, opportunity_id, ticker, side, action, price, count,
			exchange_order_id, status, filled_count, fees, placed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, trade.ID, trade.OpportunityID, trade.Ticker, string(trade.Side), string(trade.Action),
		trade.Price, trade.Count, trade.ExchangeOrder, string(trade.Status),
		trade.FilledCount, trade.Fees, trade.PlacedAt, trade.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// UpdateTrade updates a trade's mutable fields in place.
func (p *PostgresStorage) UpdateTrade(ctx context.Context, trade *types.Trade) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE trades SET status = $2, filled_count = $3, fees = $4, updated_at = $5,
			exchange_order_id = $6
		WHERE id = $1
	`, trade.ID, string(trade.Status), trade.FilledCount, trade.Fees, trade.UpdatedAt, trade.ExchangeOrder)
	if err != nil {
		return fmt.Errorf("update trade: %w", err)
	}
	return nil
}

// TradesForOpportunity returns every trade row for an opportunity.
func (p *PostgresStorage) TradesForOpportunity(ctx context.Context, opportunityID string) ([]types.Trade, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, opportunity_id, ticker, side, action, price, count,
		       exchange_order_id, status, filled_count, fees, placed_at, updated_at
		FROM trades WHERE opportunity_id = $1
	`, opportunityID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []types.Trade
	for rows.Next() {
		var t types.Trade
		var side, action, status string
		if err := rows.Scan(&t.ID, &t.OpportunityID, &t.Ticker, &side, &action, &t.Price, &t.Count,
			&t.ExchangeOrder, &status, &t.FilledCount, &t.Fees, &t.PlacedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Side = types.Side(side)
		t.Action = types.Action(action)
		t.Status = types.OrderStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetPortfolioState loads the singleton portfolio record.
func (p *PostgresStorage) GetPortfolioState(ctx context.Context) (*types.PortfolioState, error) {
	var s types.PortfolioState
	err := p.db.QueryRowContext(ctx, `
		SELECT balance, daily_pnl, open_positions, kill_switch, last_updated
		FROM portfolio_state WHERE id = 1
	`).Scan(&s.Balance, &s.DailyPnL, &s.OpenPositions, &s.KillSwitch, &s.LastUpdated)
	if err == sql.ErrNoRows {
		return &types.PortfolioState{LastUpdated: time.Now()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query portfolio state: %w", err)
	}
	return &s, nil
}

// SavePortfolioState persists the singleton portfolio record.
func (p *PostgresStorage) SavePortfolioState(ctx context.Context, state *types.PortfolioState) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO portfolio_state (id, balance, daily_pnl, open_positions, kill_switch, last_updated)
		VALUES (1, $1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			balance = EXCLUDED.balance,
			daily_pnl = EXCLUDED.daily_pnl,
			open_positions = EXCLUDED.open_positions,
			kill_switch = EXCLUDED.kill_switch,
			last_updated = now()
	`, state.Balance, state.DailyPnL, state.OpenPositions, state.KillSwitch)
	if err != nil {
		return fmt.Errorf("save portfolio state: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
