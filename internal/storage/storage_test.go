package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/internal/detector"
	"github.com/kalshi-arb/engine/pkg/types"
)

func testMarket(ticker string) types.Market {
	return types.Market{
		Ticker:      ticker,
		EventTicker: "EVT-1",
		Title:       "Will X happen?",
		Category:    "politics",
		Status:      types.MarketStatusOpen,
		YesAsk:      0.52,
		YesBid:      0.48,
		NoAsk:       0.53,
		NoBid:       0.47,
		CloseTime:   time.Now().Add(24 * time.Hour),
	}
}

func testOpportunity() *detector.Opportunity {
	return detector.NewOpportunity("rel-1", detector.SignalBuySupersetSellSubset, 0.13, 1.0, []detector.Leg{
		{Ticker: "SUP", Action: "buy", TargetPrice: 0.50, Depth: 20},
		{Ticker: "SUB", Action: "sell", TargetPrice: 0.65, Depth: 20},
	})
}

func testTrade(opportunityID string) *types.Trade {
	return &types.Trade{
		ID:            "trade-1",
		OpportunityID: opportunityID,
		Ticker:        "SUP",
		Side:          types.SideYes,
		Action:        types.ActionBuy,
		Price:         0.50,
		Count:         20,
		ExchangeOrder: "ORD-1",
		Status:        types.OrderStatusResting,
		PlacedAt:      time.Now(),
		UpdatedAt:     time.Now(),
	}
}

func TestConsoleStorage_UpsertAndActiveRelationships(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	s := NewConsoleStorage(logger)
	ctx := context.Background()

	if err := s.UpsertMarkets(ctx, []types.Market{testMarket("SUP"), testMarket("SUB")}); err != nil {
		t.Fatalf("upsert markets: %v", err)
	}

	rel := &types.Relationship{
		ID:      "rel-1",
		Variant: types.VariantSubset,
		Tickers: []string{"SUB", "SUP"},
	}
	if err := s.UpsertRelationship(ctx, rel); err != nil {
		t.Fatalf("upsert relationship: %v", err)
	}

	active, err := s.ActiveRelationships(ctx)
	if err != nil {
		t.Fatalf("active relationships: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active relationship, got %d", len(active))
	}
}

func TestConsoleStorage_UpsertRelationshipRefreshesInPlace(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	s := NewConsoleStorage(logger)
	ctx := context.Background()

	rel := &types.Relationship{ID: "rel-1", Variant: types.VariantSubset, Tickers: []string{"A", "B"}, Confidence: 0.8}
	if err := s.UpsertRelationship(ctx, rel); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	rel2 := &types.Relationship{ID: "rel-2", Variant: types.VariantSubset, Tickers: []string{"B", "A"}, Confidence: 0.95}
	if err := s.UpsertRelationship(ctx, rel2); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	all, err := s.AllRelationships(ctx)
	if err != nil {
		t.Fatalf("all relationships: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected dedup collapse to 1 row, got %d", len(all))
	}
	if all[0].Confidence != 0.95 {
		t.Fatalf("expected refreshed confidence 0.95, got %v", all[0].Confidence)
	}
}

func TestConsoleStorage_DeleteStaleRelationships(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	s := NewConsoleStorage(logger)
	ctx := context.Background()

	closed := testMarket("CLOSED")
	closed.Status = types.MarketStatusClosed
	if err := s.UpsertMarkets(ctx, []types.Market{closed}); err != nil {
		t.Fatalf("upsert markets: %v", err)
	}
	rel := &types.Relationship{ID: "rel-1", Variant: types.VariantSubset, Tickers: []string{"CLOSED", "ALSO-MISSING"}}
	if err := s.UpsertRelationship(ctx, rel); err != nil {
		t.Fatalf("upsert relationship: %v", err)
	}

	n, err := s.DeleteStaleRelationships(ctx)
	if err != nil {
		t.Fatalf("delete stale: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
}

func TestConsoleStorage_OpportunityAndTradeLifecycle(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	s := NewConsoleStorage(logger)
	ctx := context.Background()

	opp := testOpportunity()
	if err := s.CreateOpportunity(ctx, opp); err != nil {
		t.Fatalf("create opportunity: %v", err)
	}
	if err := s.UpdateOpportunityStatus(ctx, opp.ID, detector.StatusExecuting); err != nil {
		t.Fatalf("update status: %v", err)
	}

	trade := testTrade(opp.ID)
	if err := s.InsertTrade(ctx, trade); err != nil {
		t.Fatalf("insert trade: %v", err)
	}
	trade.Status = types.OrderStatusFilled
	trade.FilledCount = 20
	if err := s.UpdateTrade(ctx, trade); err != nil {
		t.Fatalf("update trade: %v", err)
	}

	trades, err := s.TradesForOpportunity(ctx, opp.ID)
	if err != nil {
		t.Fatalf("trades for opportunity: %v", err)
	}
	if len(trades) != 1 || trades[0].Status != types.OrderStatusFilled {
		t.Fatalf("unexpected trades: %+v", trades)
	}
}

func TestConsoleStorage_PortfolioStateRoundTrip(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	s := NewConsoleStorage(logger)
	ctx := context.Background()

	state, err := s.GetPortfolioState(ctx)
	if err != nil {
		t.Fatalf("get initial state: %v", err)
	}
	if state.Balance != 0 {
		t.Fatalf("expected zero-value initial balance, got %v", state.Balance)
	}

	state.Balance = 1000
	state.DailyPnL = -25
	state.KillSwitch = true
	if err := s.SavePortfolioState(ctx, state); err != nil {
		t.Fatalf("save state: %v", err)
	}

	reloaded, err := s.GetPortfolioState(ctx)
	if err != nil {
		t.Fatalf("reload state: %v", err)
	}
	if reloaded.Balance != 1000 || !reloaded.KillSwitch {
		t.Fatalf("unexpected reloaded state: %+v", reloaded)
	}
}

func TestConsoleStorage_Close(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	s := NewConsoleStorage(logger)
	if err := s.Close(); err != nil {
		t.Errorf("expected no error on close, got %v", err)
	}
}

func TestPostgresStorage_UpsertMarkets(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	storage := &PostgresStorage{db: db, logger: logger}
	m := testMarket("SUP")

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO markets")
	mock.ExpectExec("INSERT INTO markets").
		WithArgs(m.Ticker, m.EventTicker, m.Title, m.Category, string(m.Status),
			m.YesAsk, m.YesBid, m.NoAsk, m.NoBid, m.Volume, m.OpenInterest,
			m.CloseTime, m.SettlementRules).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := storage.UpsertMarkets(context.Background(), []types.Market{m}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_UpsertMarkets_RollsBackOnError(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	storage := &PostgresStorage{db: db, logger: logger}
	m := testMarket("SUP")

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO markets")
	mock.ExpectExec("INSERT INTO markets").WillReturnError(sqlmock.ErrCancelled)
	mock.ExpectRollback()

	if err := storage.UpsertMarkets(context.Background(), []types.Market{m}); err == nil {
		t.Error("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_InsertTrade(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	storage := &PostgresStorage{db: db, logger: logger}
	trade := testTrade("opp-1")

	mock.ExpectExec("INSERT INTO trades").WillReturnResult(sqlmock.NewResult(1, 1))

	if err := storage.InsertTrade(context.Background(), trade); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_GetPortfolioState_NoRowsReturnsZeroValue(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	storage := &PostgresStorage{db: db, logger: logger}

	mock.ExpectQuery("SELECT balance").WillReturnError(sql.ErrNoRows)

	state, err := storage.GetPortfolioState(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if state.Balance != 0 {
		t.Fatalf("expected zero-value state, got %+v", state)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_SavePortfolioState(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	storage := &PostgresStorage{db: db, logger: logger}
	state := &types.PortfolioState{Balance: 500, DailyPnL: -10, OpenPositions: 2}

	mock.ExpectExec("INSERT INTO portfolio_state").
		WithArgs(state.Balance, state.DailyPnL, state.OpenPositions, state.KillSwitch).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := storage.SavePortfolioState(context.Background(), state); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_DeleteStaleRelationships(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	storage := &PostgresStorage{db: db, logger: logger}

	mock.ExpectExec("DELETE FROM relationships").WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := storage.DeleteStaleRelationships(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 deleted, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_Close(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}
	mock.ExpectClose()

	if err := storage.Close(); err != nil {
		t.Errorf("expected no error on close, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestNewPostgresStorage_ConnectionSuccess(t *testing.T) {
	t.Skip("requires a real PostgreSQL instance")
}

func TestStorage_Interface(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	var _ Storage = NewConsoleStorage(logger)

	db, _, _ := sqlmock.New()
	defer db.Close()

	var _ Storage = &PostgresStorage{db: db, logger: logger}
}
