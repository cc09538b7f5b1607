package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mstolarski/folio/internal/app"
	"github.com/mstolarski/folio/internal/common"
	"github.com/mstolarski/folio/internal/interfaces"
	"github.com/mstolarski/folio/internal/models"
	"github.com/mstolarski/folio/internal/services/ledger"
	"github.com/mstolarski/folio/internal/services/marketdata"
	"github.com/mstolarski/folio/internal/services/rebuild"
	"github.com/mstolarski/folio/internal/services/snapshot"
	"github.com/mstolarski/folio/internal/services/valuation"
)

// memManager is an in-memory StorageManager for handler tests.
type memManager struct {
	users     *memUserStore
	txs       *memTxStore
	anchors   *memAnchorStore
	snapshots *memSnapshotStore
	states    *memStateStore
	market    *memMarketStore
}

func newMemManager() *memManager {
	return &memManager{
		users:     &memUserStore{users: map[string]models.User{}},
		txs:       &memTxStore{txs: map[string]models.Transaction{}},
		anchors:   &memAnchorStore{anchors: map[string]models.CustomInstrumentAnchor{}},
		snapshots: &memSnapshotStore{rows: map[string]models.SnapshotRow{}},
		states:    &memStateStore{states: map[string]models.RebuildState{}},
		market:    &memMarketStore{},
	}
}

func (m *memManager) UserStore() interfaces.UserStore                 { return m.users }
func (m *memManager) TransactionStore() interfaces.TransactionStore   { return m.txs }
func (m *memManager) AnchorStore() interfaces.AnchorStore             { return m.anchors }
func (m *memManager) SnapshotStore() interfaces.SnapshotStore         { return m.snapshots }
func (m *memManager) RebuildStateStore() interfaces.RebuildStateStore { return m.states }
func (m *memManager) MarketStore() interfaces.MarketStore             { return m.market }
func (m *memManager) Close() error                                    { return nil }

type memUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func (s *memUserStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	return &u, nil
}

func (s *memUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user not found")
}

func (s *memUserStore) SaveUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = *user
	return nil
}

func (s *memUserStore) DeleteUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	return nil
}

type memTxStore struct {
	mu      sync.Mutex
	txs     map[string]models.Transaction
	nextSeq int64
}

func (s *memTxStore) Add(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[tx.ID] = *tx
	return nil
}

func (s *memTxStore) Get(ctx context.Context, userID, id string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok || tx.UserID != userID {
		return nil, fmt.Errorf("transaction not found")
	}
	return &tx, nil
}

func (s *memTxStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok || tx.UserID != userID {
		return fmt.Errorf("transaction not found")
	}
	delete(s.txs, id)
	return nil
}

func (s *memTxStore) List(ctx context.Context, userID string, scope models.Scope, portfolioID string, until models.Day) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, tx := range s.txs {
		if tx.UserID != userID {
			continue
		}
		if scope == models.ScopePortfolio && tx.PortfolioID != portfolioID {
			continue
		}
		if !until.IsZero() && tx.TradeDate.After(until) {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TradeDate != out[j].TradeDate {
			return out[i].TradeDate.Before(out[j].TradeDate)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

func (s *memTxStore) NextSeq(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	return s.nextSeq, nil
}

type memAnchorStore struct {
	mu      sync.Mutex
	anchors map[string]models.CustomInstrumentAnchor
}

func (s *memAnchorStore) GetAnchor(ctx context.Context, userID, instrumentID string) (*models.CustomInstrumentAnchor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.anchors[instrumentID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *memAnchorStore) SaveAnchor(ctx context.Context, anchor *models.CustomInstrumentAnchor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchors[anchor.InstrumentID] = *anchor
	return nil
}

func (s *memAnchorStore) ListAnchors(ctx context.Context, userID string) ([]models.CustomInstrumentAnchor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CustomInstrumentAnchor
	for _, a := range s.anchors {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memSnapshotStore struct {
	mu   sync.Mutex
	rows map[string]models.SnapshotRow
}

func snapKey(userID string, scope models.Scope, portfolioID string, date models.Day) string {
	return models.SeriesKey(userID, scope, portfolioID) + ":" + string(date)
}

func (s *memSnapshotStore) ReplaceRange(ctx context.Context, userID string, scope models.Scope, portfolioID string, from, to models.Day, rows []models.SnapshotRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for d := from; !d.After(to); d = d.Add(1) {
		delete(s.rows, snapKey(userID, scope, portfolioID, d))
	}
	for _, row := range rows {
		s.rows[snapKey(userID, scope, portfolioID, row.BucketDate)] = row
	}
	return nil
}

func (s *memSnapshotStore) List(ctx context.Context, userID string, scope models.Scope, portfolioID string, limit int) ([]models.SnapshotRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SnapshotRow
	for _, row := range s.rows {
		if row.UserID == userID && row.Scope == scope && row.PortfolioID == portfolioID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BucketDate.Before(out[j].BucketDate) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type memStateStore struct {
	mu     sync.Mutex
	states map[string]models.RebuildState
}

func (s *memStateStore) Get(ctx context.Context, userID string, scope models.Scope, portfolioID string) (*models.RebuildState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[models.SeriesKey(userID, scope, portfolioID)]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *memStateStore) Save(ctx context.Context, state *models.RebuildState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state.ID == "" {
		state.ID = state.Key()
	}
	state.UpdatedAt = time.Now().UTC()
	s.states[state.Key()] = *state
	return nil
}

type memMarketStore struct {
	mu     sync.Mutex
	quotes []models.Quote
	fx     []models.FxRate
}

func (s *memMarketStore) GetQuotes(ctx context.Context, instrumentIDs []string) ([]models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Quote
	for _, q := range s.quotes {
		for _, id := range instrumentIDs {
			if q.InstrumentID == id {
				out = append(out, q)
			}
		}
	}
	return out, nil
}

func (s *memMarketStore) SaveQuotes(ctx context.Context, quotes []models.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes = append(s.quotes, quotes...)
	return nil
}

func (s *memMarketStore) GetFxRates(ctx context.Context, pairs []models.CurrencyPair) ([]models.FxRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FxRate
	for _, r := range s.fx {
		for _, p := range pairs {
			if r.Pair() == p {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (s *memMarketStore) SaveFxRates(ctx context.Context, rates []models.FxRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fx = append(s.fx, rates...)
	return nil
}

func (s *memMarketStore) GetDailyPrices(ctx context.Context, instrumentID string, from, to models.Day) ([]models.DailyPrice, error) {
	return nil, nil
}

func (s *memMarketStore) SaveDailyPrices(ctx context.Context, prices []models.DailyPrice) error {
	return nil
}

func (s *memMarketStore) GetDailyFxRates(ctx context.Context, pair models.CurrencyPair, from, to models.Day) ([]models.DailyFxRate, error) {
	return nil, nil
}

func (s *memMarketStore) SaveDailyFxRates(ctx context.Context, rates []models.DailyFxRate) error {
	return nil
}

// stubProvider never resolves anything; cache-only market data.
type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) FetchQuotes(ctx context.Context, symbols []string) ([]models.Quote, error) {
	return nil, nil
}

func (stubProvider) FetchFxRates(ctx context.Context, pairs []models.CurrencyPair) ([]models.FxRate, error) {
	return nil, nil
}

func (stubProvider) FetchDailyPrices(ctx context.Context, symbol string, from, to models.Day) ([]models.DailyPrice, error) {
	return nil, nil
}

func (stubProvider) FetchDailyFxRates(ctx context.Context, pair models.CurrencyPair, from, to models.Day) ([]models.DailyFxRate, error) {
	return nil, nil
}

const testPassword = "correct-horse"

// newTestServer builds a server over in-memory storage with one seeded user.
func newTestServer(t *testing.T) (*Server, *memManager) {
	t.Helper()

	config := common.NewDefaultConfig()
	config.Auth.JWTSecret = "test-secret"
	logger := common.NewSilentLogger()
	mgr := newMemManager()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, mgr.users.SaveUser(context.Background(), &models.User{
		ID:           "u1",
		Email:        "jo@example.com",
		PasswordHash: string(hash),
		Role:         "user",
		BaseCurrency: models.CurrencyPLN,
	}))

	marketData := marketdata.NewService(mgr.market, stubProvider{}, logger)
	rebuildSvc := rebuild.NewService(mgr.states, mgr.snapshots, mgr.txs, mgr.anchors, marketData, &config.Rebuild, logger)
	ledgerSvc := ledger.NewService(mgr.txs, mgr.anchors, rebuildSvc, logger)
	snapshotSvc := snapshot.NewService(mgr.snapshots, logger)
	valuationSvc := valuation.NewService(mgr.txs, mgr.anchors, marketData, logger)

	a := &app.App{
		Config:            config,
		Logger:            logger,
		Storage:           mgr,
		MarketDataService: marketData,
		LedgerService:     ledgerSvc,
		RebuildService:    rebuildSvc,
		SnapshotService:   snapshotSvc,
		ValuationService:  valuationSvc,
		StartupTime:       time.Now(),
	}

	return NewServer(a), mgr
}

// login returns a bearer token for the seeded user.
func login(t *testing.T, s *Server) string {
	t.Helper()

	body, _ := json.Marshal(map[string]string{
		"email":    "jo@example.com",
		"password": testPassword,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

// doJSON performs an authenticated request and decodes the JSON response.
func doJSON(t *testing.T, s *Server, token, method, path string, body interface{}, out interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
