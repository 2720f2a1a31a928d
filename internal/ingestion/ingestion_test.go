package ingestion

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/internal/marketcache"
	"github.com/kalshi-arb/engine/pkg/types"
)

type fakeClient struct {
	marketPages []types.MarketPage
	eventPages  []types.EventPage
	marketCalls int
	eventCalls  int
}

func (f *fakeClient) GetMarkets(ctx context.Context, status, cursor string) (types.MarketPage, error) {
	page := f.marketPages[f.marketCalls]
	f.marketCalls++
	return page, nil
}

func (f *fakeClient) GetEvents(ctx context.Context, status, cursor string) (types.EventPage, error) {
	page := f.eventPages[f.eventCalls]
	f.eventCalls++
	return page, nil
}

type fakeStore struct {
	markets   []types.Market
	events    []types.Event
	snapshots []types.PriceSnapshot
}

func (f *fakeStore) UpsertMarkets(ctx context.Context, markets []types.Market) error {
	f.markets = append(f.markets, markets...)
	return nil
}

func (f *fakeStore) UpsertEvents(ctx context.Context, events []types.Event) error {
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeStore) InsertPriceSnapshot(ctx context.Context, snap types.PriceSnapshot) error {
	f.snapshots = append(f.snapshots, snap)
	return nil
}

func newTestService(client *fakeClient, store *fakeStore) *Service {
	logger, _ := zap.NewDevelopment()
	return New(Config{
		Client: client,
		Store:  store,
		Cache:  marketcache.New(),
		Logger: logger,
	})
}

func TestIngestAll_PagesUntilCursorEmpty(t *testing.T) {
	client := &fakeClient{
		marketPages: []types.MarketPage{
			{Markets: []types.Market{{Ticker: "A", YesAsk: 0.4, YesBid: 0.35}}, Cursor: "next"},
			{Markets: []types.Market{{Ticker: "B", YesAsk: 0.6, YesBid: 0.55}}, Cursor: ""},
		},
		eventPages: []types.EventPage{
			{Events: []types.Event{{EventTicker: "E1"}}, Cursor: ""},
		},
	}
	store := &fakeStore{}
	svc := newTestService(client, store)

	summary, err := svc.IngestAll(context.Background())
	if err != nil {
		t.Fatalf("ingest all: %v", err)
	}
	if summary.Markets != 2 {
		t.Fatalf("expected 2 markets across pages, got %d", summary.Markets)
	}
	if summary.Events != 1 {
		t.Fatalf("expected 1 event, got %d", summary.Events)
	}
	if len(store.markets) != 2 || len(store.events) != 1 {
		t.Fatalf("unexpected store contents: %+v %+v", store.markets, store.events)
	}
}

func TestIngestAll_PublishesMarketCacheSnapshot(t *testing.T) {
	client := &fakeClient{
		marketPages: []types.MarketPage{
			{Markets: []types.Market{{Ticker: "A", YesAsk: 0.4, YesBid: 0.35}}, Cursor: ""},
		},
		eventPages: []types.EventPage{
			{Events: nil, Cursor: ""},
		},
	}
	store := &fakeStore{}
	svc := newTestService(client, store)

	if _, err := svc.IngestAll(context.Background()); err != nil {
		t.Fatalf("ingest all: %v", err)
	}

	m, ok := svc.cache.Get("A")
	if !ok || m.YesAsk != 0.4 {
		t.Fatalf("expected cache to carry ticker A, got %+v ok=%v", m, ok)
	}
}

func TestIngestAll_SkipsSnapshotWhenQuoteIncomplete(t *testing.T) {
	client := &fakeClient{
		marketPages: []types.MarketPage{
			{Markets: []types.Market{
				{Ticker: "A", YesAsk: 0.4, YesBid: 0.35},
				{Ticker: "NOQUOTE", YesAsk: 0, YesBid: 0},
			}, Cursor: ""},
		},
		eventPages: []types.EventPage{{Events: nil, Cursor: ""}},
	}
	store := &fakeStore{}
	svc := newTestService(client, store)

	if _, err := svc.IngestAll(context.Background()); err != nil {
		t.Fatalf("ingest all: %v", err)
	}
	if len(store.snapshots) != 1 || store.snapshots[0].MarketTicker != "A" {
		t.Fatalf("expected exactly one snapshot for A, got %+v", store.snapshots)
	}
}
