package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okquant/costsim/internal/domain"
	"github.com/okquant/costsim/internal/sim"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// stubBooks serves a fixed book per instrument.
type stubBooks struct {
	books map[string]domain.OrderBookSnapshot
}

func (s stubBooks) GetSnapshot(_ context.Context, instID string) (domain.OrderBookSnapshot, error) {
	snap, ok := s.books[instID]
	if !ok {
		return domain.OrderBookSnapshot{}, domain.ErrNoBook
	}
	return snap, nil
}

// memStore is an in-memory ResultStore for handler tests.
type memStore struct {
	recs []domain.SimulationRecord
}

func (s *memStore) Insert(_ context.Context, rec domain.SimulationRecord) error {
	s.recs = append(s.recs, rec)
	return nil
}

func (s *memStore) InsertBatch(_ context.Context, recs []domain.SimulationRecord) error {
	s.recs = append(s.recs, recs...)
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (domain.SimulationRecord, error) {
	for _, rec := range s.recs {
		if rec.ID == id {
			return rec, nil
		}
	}
	return domain.SimulationRecord{}, domain.ErrNotFound
}

func (s *memStore) List(_ context.Context, symbol string, _ domain.ListOpts) ([]domain.SimulationRecord, error) {
	var out []domain.SimulationRecord
	for _, rec := range s.recs {
		if symbol == "" || rec.Order.Symbol == symbol {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memStore) Count(_ context.Context) (int64, error) {
	return int64(len(s.recs)), nil
}

func (s *memStore) ListBefore(_ context.Context, before time.Time) ([]domain.SimulationRecord, error) {
	var out []domain.SimulationRecord
	for _, rec := range s.recs {
		if rec.CreatedAt.Before(before) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	kept := s.recs[:0]
	var n int64
	for _, rec := range s.recs {
		if rec.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, rec)
	}
	s.recs = kept
	return n, nil
}

func testBook() domain.OrderBookSnapshot {
	return domain.OrderBookSnapshot{
		InstID: "BTC-USDT",
		Bids: []domain.PriceLevel{
			{Price: 27350.5, Size: 1.5},
			{Price: 27345, Size: 2},
			{Price: 27340, Size: 1.8},
		},
		Asks: []domain.PriceLevel{
			{Price: 27355, Size: 1},
			{Price: 27360, Size: 2.2},
			{Price: 27365, Size: 1.7},
		},
		Timestamp: time.Now().UTC(),
	}
}

func newSimDeps(t *testing.T) (*sim.Engine, *sim.Estimator, *sim.ImpactModel) {
	t.Helper()
	logger := testLogger()
	impact := sim.NewImpactModel(logger)
	fees := sim.NewFeeModel(logger)
	engine := sim.NewEngine(impact, fees, logger)
	estimator := sim.NewEstimator(sim.NewBookWalkSlippage(), impact, fees, logger)
	return engine, estimator, impact
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(testLogger(), time.Now().Add(-90*time.Second))
	rr := httptest.NewRecorder()
	h.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["service"] != "costsim" {
		t.Errorf("service field = %v", body["service"])
	}
	if up, ok := body["uptime_seconds"].(float64); !ok || up < 90 {
		t.Errorf("uptime_seconds = %v, want >= 90", body["uptime_seconds"])
	}
}

func TestSimulatePersistsAndResponds(t *testing.T) {
	engine, _, _ := newSimDeps(t)
	books := stubBooks{books: map[string]domain.OrderBookSnapshot{"BTC-USDT": testBook()}}
	store := &memStore{}
	h := NewSimulateHandler(engine, books, store, nil, testLogger())

	body := `{"symbol":"BTC-USDT","side":"buy","type":"market","quantity":300}`
	rr := httptest.NewRecorder()
	h.Simulate(rr, httptest.NewRequest(http.MethodPost, "/api/simulate", strings.NewReader(body)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var rec domain.SimulationRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if rec.Result.Type != domain.ExecutionTaker {
		t.Errorf("execution type = %s, want taker", rec.Result.Type)
	}
	if rec.ID == "" {
		t.Error("record must carry an id")
	}
	if rec.MidPrice != testBook().MidPrice() {
		t.Errorf("mid = %v, want book mid", rec.MidPrice)
	}
	if len(store.recs) != 1 || store.recs[0].ID != rec.ID {
		t.Errorf("store = %+v, want the returned record persisted", store.recs)
	}
}

func TestSimulateUnknownInstrument(t *testing.T) {
	engine, _, _ := newSimDeps(t)
	h := NewSimulateHandler(engine, stubBooks{}, nil, nil, testLogger())

	body := `{"symbol":"DOGE-USDT","side":"buy","type":"market","quantity":100}`
	rr := httptest.NewRecorder()
	h.Simulate(rr, httptest.NewRequest(http.MethodPost, "/api/simulate", strings.NewReader(body)))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestSimulateRejectsBadBody(t *testing.T) {
	engine, _, _ := newSimDeps(t)
	h := NewSimulateHandler(engine, stubBooks{}, nil, nil, testLogger())

	rr := httptest.NewRecorder()
	h.Simulate(rr, httptest.NewRequest(http.MethodPost, "/api/simulate", strings.NewReader("{not json")))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestEstimateReturnsBreakdown(t *testing.T) {
	_, estimator, _ := newSimDeps(t)
	books := stubBooks{books: map[string]domain.OrderBookSnapshot{"BTC-USDT": testBook()}}
	h := NewEstimateHandler(estimator, books, testLogger())

	body := `{"symbol":"BTC-USDT","side":"buy","type":"market","quantity":300}`
	rr := httptest.NewRecorder()
	h.Estimate(rr, httptest.NewRequest(http.MethodPost, "/api/estimate", strings.NewReader(body)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var est domain.CostEstimate
	if err := json.Unmarshal(rr.Body.Bytes(), &est); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if est.Symbol != "BTC-USDT" || est.MidPrice <= 0 {
		t.Errorf("estimate = %+v", est)
	}
	if est.TakerProb <= 0 || est.TakerProb >= 1 {
		t.Errorf("taker prob = %v, want in (0,1)", est.TakerProb)
	}
}

func TestEstimateInvalidOrder(t *testing.T) {
	_, estimator, _ := newSimDeps(t)
	books := stubBooks{books: map[string]domain.OrderBookSnapshot{"BTC-USDT": testBook()}}
	h := NewEstimateHandler(estimator, books, testLogger())

	body := `{"symbol":"BTC-USDT","side":"buy","type":"market","quantity":-5}`
	rr := httptest.NewRecorder()
	h.Estimate(rr, httptest.NewRequest(http.MethodPost, "/api/estimate", strings.NewReader(body)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestUpdateADVRoundTrip(t *testing.T) {
	_, _, impact := newSimDeps(t)
	h := NewADVHandler(impact, testLogger())

	req := httptest.NewRequest(http.MethodPut, "/api/adv/SOL-USDT", strings.NewReader(`{"adv":5e8}`))
	req.SetPathValue("symbol", "SOL-USDT")
	rr := httptest.NewRecorder()
	h.UpdateADV(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if got := impact.ADV("SOL-USDT"); got != 5e8 {
		t.Errorf("adv = %v, want 5e8", got)
	}
}

func TestUpdateADVRejectsNonPositive(t *testing.T) {
	_, _, impact := newSimDeps(t)
	h := NewADVHandler(impact, testLogger())
	before := impact.ADV("BTC-USDT")

	req := httptest.NewRequest(http.MethodPut, "/api/adv/BTC-USDT", strings.NewReader(`{"adv":0}`))
	req.SetPathValue("symbol", "BTC-USDT")
	rr := httptest.NewRecorder()
	h.UpdateADV(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
	if impact.ADV("BTC-USDT") != before {
		t.Error("rejected update must leave the table unchanged")
	}
}

func TestResultsGetNotFound(t *testing.T) {
	h := NewResultsHandler(&memStore{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/results/nope", nil)
	req.SetPathValue("id", "nope")
	rr := httptest.NewRecorder()
	h.Get(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestResultsListFiltersBySymbol(t *testing.T) {
	store := &memStore{recs: []domain.SimulationRecord{
		{ID: "a", Order: domain.OrderSpec{Symbol: "BTC-USDT"}},
		{ID: "b", Order: domain.OrderSpec{Symbol: "ETH-USDT"}},
	}}
	h := NewResultsHandler(store, testLogger())

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/results?symbol=BTC-USDT", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Results []domain.SimulationRecord `json:"results"`
		Count   int                       `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Count != 1 || body.Results[0].ID != "a" {
		t.Errorf("body = %+v, want only the BTC record", body)
	}
}

func TestBookGet(t *testing.T) {
	books := stubBooks{books: map[string]domain.OrderBookSnapshot{"BTC-USDT": testBook()}}
	h := NewBookHandler(books, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/book/BTC-USDT", nil)
	req.SetPathValue("instId", "BTC-USDT")
	rr := httptest.NewRecorder()
	h.Get(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var snap domain.OrderBookSnapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if snap.InstID != "BTC-USDT" || len(snap.Asks) != 3 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestBookGetMissing(t *testing.T) {
	h := NewBookHandler(stubBooks{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/book/NOPE", nil)
	req.SetPathValue("instId", "NOPE")
	rr := httptest.NewRecorder()
	h.Get(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestStatusSignals(t *testing.T) {
	status := func() domain.ServiceStatus {
		return domain.ServiceStatus{Mode: "serve", Instruments: []string{"BTC-USDT"}}
	}
	h := NewStatusHandler(status, nil, testLogger())

	rr := httptest.NewRecorder()
	h.Status(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Signals(rr, httptest.NewRequest(http.MethodGet, "/api/signals", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("signals status = %d", rr.Code)
	}
	var body struct {
		Signals []domain.TradeSignal `json:"signals"`
		Count   int                  `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Count != 0 || body.Signals == nil {
		t.Errorf("body = %+v, want empty non-nil signal list", body)
	}
}
