// Package eodhd provides a client for the EODHD API
package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/mstolarski/folio/internal/common"
	"github.com/mstolarski/folio/internal/interfaces"
	"github.com/mstolarski/folio/internal/models"
)

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" || s == "NA" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	ProviderName     = "eodhd"
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// exchangeCurrencies maps an EODHD exchange suffix to the currency its
// instruments quote in. Symbols on exchanges outside this map are skipped.
var exchangeCurrencies = map[string]models.Currency{
	"WAR":   models.CurrencyPLN,
	"US":    models.CurrencyUSD,
	"XETRA": models.CurrencyEUR,
	"F":     models.CurrencyEUR,
	"PA":    models.CurrencyEUR,
	"AS":    models.CurrencyEUR,
	"MI":    models.CurrencyEUR,
	"MC":    models.CurrencyEUR,
}

// Client implements the MarketProvider interface against EODHD.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

var _ interfaces.MarketProvider = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name identifies the provider on persisted rows.
func (c *Client) Name() string {
	return ProviderName
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	// Add API key
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// realTimeResponse represents one entry of the real-time endpoint. The API
// returns "NA" strings for fields it has no data for.
type realTimeResponse struct {
	Code      string      `json:"code"`
	Timestamp int64       `json:"timestamp"`
	Close     flexFloat64 `json:"close"`
	Change    flexFloat64 `json:"change"`
	ChangePct flexFloat64 `json:"change_p"`
}

// getRealTime fetches the real-time endpoint for a batch of tickers. One
// ticker yields a bare object, several yield an array; both shapes decode
// into the same slice.
func (c *Client) getRealTime(ctx context.Context, tickers []string) ([]realTimeResponse, error) {
	if len(tickers) == 0 {
		return nil, nil
	}

	params := url.Values{}
	if len(tickers) > 1 {
		params.Set("s", strings.Join(tickers[1:], ","))
	}
	path := fmt.Sprintf("/real-time/%s", tickers[0])

	var raw json.RawMessage
	if err := c.get(ctx, path, params, &raw); err != nil {
		return nil, err
	}

	var entries []realTimeResponse
	if err := json.Unmarshal(raw, &entries); err != nil {
		var single realTimeResponse
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("failed to decode real-time response: %w", err)
		}
		entries = []realTimeResponse{single}
	}

	return entries, nil
}

// FetchQuotes returns live quotes for the given symbols in one batched
// real-time call. Entries with no usable price, and symbols on exchanges
// with an unknown quote currency, are dropped rather than failing the batch.
func (c *Client) FetchQuotes(ctx context.Context, symbols []string) ([]models.Quote, error) {
	entries, err := c.getRealTime(ctx, symbols)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	quotes := make([]models.Quote, 0, len(entries))
	for _, e := range entries {
		currency, ok := currencyForSymbol(e.Code)
		if !ok {
			c.logger.Debug().Str("symbol", e.Code).Msg("Skipping quote with unknown exchange currency")
			continue
		}
		price := decimal.NewFromFloat(float64(e.Close))
		if price.Sign() <= 0 {
			continue
		}
		q := models.Quote{
			Symbol:   e.Code,
			Currency: currency,
			Price:    price,
			AsOf:     now,
		}
		if e.Timestamp > 0 {
			q.AsOf = time.Unix(e.Timestamp, 0).UTC()
		}
		if e.Change != 0 {
			chg := decimal.NewFromFloat(float64(e.Change))
			q.DayChange = &chg
		}
		if e.ChangePct != 0 {
			pct := decimal.NewFromFloat(float64(e.ChangePct))
			q.DayChangePct = &pct
		}
		quotes = append(quotes, q)
	}

	return quotes, nil
}

// FetchFxRates returns live rates for the given pairs via the forex
// real-time tickers ("USDPLN.FOREX"). Pairs the API has no rate for are
// absent from the result.
func (c *Client) FetchFxRates(ctx context.Context, pairs []models.CurrencyPair) ([]models.FxRate, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	tickers := make([]string, len(pairs))
	byTicker := make(map[string]models.CurrencyPair, len(pairs))
	for i, p := range pairs {
		t := forexTicker(p)
		tickers[i] = t
		byTicker[t] = p
	}

	entries, err := c.getRealTime(ctx, tickers)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rates := make([]models.FxRate, 0, len(entries))
	for _, e := range entries {
		pair, ok := byTicker[e.Code]
		if !ok {
			continue
		}
		value := decimal.NewFromFloat(float64(e.Close))
		if value.Sign() <= 0 {
			continue
		}
		r := models.FxRate{
			From:   pair.From,
			To:     pair.To,
			Rate:   value,
			AsOf:   now,
			Source: models.RateSourceDirect,
		}
		if e.Timestamp > 0 {
			r.AsOf = time.Unix(e.Timestamp, 0).UTC()
		}
		rates = append(rates, r)
	}

	return rates, nil
}

// eodBarResponse represents one row of the EOD endpoint.
type eodBarResponse struct {
	Date          string      `json:"date"`
	Close         flexFloat64 `json:"close"`
	AdjustedClose flexFloat64 `json:"adjusted_close"`
}

// getEOD fetches the daily close series for a ticker, oldest first.
func (c *Client) getEOD(ctx context.Context, ticker string, from, to models.Day) ([]eodBarResponse, error) {
	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "a")
	if !from.IsZero() {
		params.Set("from", from.String())
	}
	if !to.IsZero() {
		params.Set("to", to.String())
	}

	path := fmt.Sprintf("/eod/%s", ticker)

	var bars []eodBarResponse
	if err := c.get(ctx, path, params, &bars); err != nil {
		return nil, err
	}

	return bars, nil
}

// FetchDailyPrices returns the daily close series for a symbol over
// [from, to], ordered by date ascending. Rows with a malformed date or a
// non-positive close are dropped.
func (c *Client) FetchDailyPrices(ctx context.Context, symbol string, from, to models.Day) ([]models.DailyPrice, error) {
	currency, ok := currencyForSymbol(symbol)
	if !ok {
		c.logger.Debug().Str("symbol", symbol).Msg("Skipping price history for unknown exchange currency")
		return nil, nil
	}

	bars, err := c.getEOD(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}

	prices := make([]models.DailyPrice, 0, len(bars))
	for _, bar := range bars {
		date, err := models.ParseDay(bar.Date)
		if err != nil {
			continue
		}
		px := decimal.NewFromFloat(float64(bar.Close))
		if px.Sign() <= 0 {
			continue
		}
		prices = append(prices, models.DailyPrice{
			Symbol:   symbol,
			Date:     date,
			Price:    px,
			Currency: currency,
		})
	}

	return prices, nil
}

// FetchDailyFxRates returns the daily rate series for a pair over [from, to],
// ordered by date ascending.
func (c *Client) FetchDailyFxRates(ctx context.Context, pair models.CurrencyPair, from, to models.Day) ([]models.DailyFxRate, error) {
	bars, err := c.getEOD(ctx, forexTicker(pair), from, to)
	if err != nil {
		return nil, err
	}

	rates := make([]models.DailyFxRate, 0, len(bars))
	for _, bar := range bars {
		date, err := models.ParseDay(bar.Date)
		if err != nil {
			continue
		}
		value := decimal.NewFromFloat(float64(bar.Close))
		if value.Sign() <= 0 {
			continue
		}
		rates = append(rates, models.DailyFxRate{
			From:   pair.From,
			To:     pair.To,
			Date:   date,
			Rate:   value,
			Source: models.RateSourceDirect,
		})
	}

	return rates, nil
}

// forexTicker builds the EODHD forex symbol for a pair, e.g. "USDPLN.FOREX".
func forexTicker(pair models.CurrencyPair) string {
	return pair.Key() + ".FOREX"
}

// currencyForSymbol resolves the quote currency from the symbol's exchange
// suffix ("CDR.WAR" trades in PLN).
func currencyForSymbol(symbol string) (models.Currency, bool) {
	idx := strings.LastIndex(symbol, ".")
	if idx < 0 || idx == len(symbol)-1 {
		return "", false
	}
	currency, ok := exchangeCurrencies[strings.ToUpper(symbol[idx+1:])]
	return currency, ok
}
