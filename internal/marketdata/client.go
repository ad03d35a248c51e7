package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"algo_engine/internal/config"
	"algo_engine/internal/models"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// HealthSink receives feed liveness signals. The health module's State
// satisfies it.
type HealthSink interface {
	SetWSConnected(v bool)
	TouchTick(t time.Time)
}

// Client is the OKX-flavoured Provider: REST for history/ticks/books, WS for
// the live bar stream. Closed bars land in the cache; HistoricalBars serves
// from the cache when it is deep enough and falls back to REST.
type Client struct {
	cfg      *config.Config
	http     *http.Client
	wsDialer *websocket.Dialer
	cache    *BarCache
	health   HealthSink
}

func NewClient(cfg *config.Config, cache *BarCache, health HealthSink) *Client {
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: 10 * time.Second},
		wsDialer: &websocket.Dialer{},
		cache:    cache,
		health:   health,
	}
}

func (c *Client) baseURL() string {
	if c.cfg.MarketData.RESTBaseURL != "" {
		return strings.TrimRight(c.cfg.MarketData.RESTBaseURL, "/")
	}
	return "https://www.okx.com"
}

func (c *Client) Cache() *BarCache { return c.cache }

// HistoricalBars returns up to limit bars ascending. The cache answers when
// it has enough depth; otherwise one REST call refills it.
func (c *Client) HistoricalBars(ctx context.Context, symbol, timeframe string, limit int) ([]models.OHLCBar, error) {
	if limit <= 0 {
		limit = 100
	}
	if cached := c.cache.Last(symbol, timeframe, limit); len(cached) >= limit {
		return cached, nil
	}

	bars, err := c.fetchCandles(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}
	for _, b := range bars {
		c.cache.Append(b)
	}
	return bars, nil
}

// fetchCandles: venue row format [ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm],
// newest-first, reversed here so warmup runs forward in time.
func (c *Client) fetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.OHLCBar, error) {
	bar, err := venueBar(timeframe)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/api/v5/market/candles?instId=%s&bar=%s&limit=%d",
		c.baseURL(), url.QueryEscape(symbol), url.QueryEscape(bar), limit,
	)

	body, err := c.getJSON(ctx, u)
	if err != nil {
		return nil, errors.Wrap(err, "candles")
	}

	var r struct {
		Code string     `json:"code"`
		Msg  string     `json:"msg"`
		Data [][]string `json:"data"`
	}
	if err := sonic.Unmarshal(body, &r); err != nil {
		return nil, errors.Wrap(err, "candles decode")
	}
	if r.Code != "0" {
		return nil, errors.Errorf("candles error: code=%s msg=%s", r.Code, r.Msg)
	}

	out := make([]models.OHLCBar, 0, len(r.Data))
	for i := len(r.Data) - 1; i >= 0; i-- {
		row := r.Data[i]
		if len(row) < 5 {
			continue
		}
		tsMs, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		closep, _ := strconv.ParseFloat(row[4], 64)
		if closep <= 0 {
			continue
		}
		var vol float64
		if len(row) >= 6 {
			vol, _ = strconv.ParseFloat(row[5], 64)
		}
		out = append(out, models.OHLCBar{
			Symbol:    symbol,
			Timestamp: time.UnixMilli(tsMs),
			Timeframe: timeframe,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closep,
			Volume:    vol,
		})
	}
	return out, nil
}

func (c *Client) PriceTick(ctx context.Context, symbol string) (models.Tick, error) {
	u := fmt.Sprintf("%s/api/v5/market/ticker?instId=%s", c.baseURL(), url.QueryEscape(symbol))
	body, err := c.getJSON(ctx, u)
	if err != nil {
		return models.Tick{}, errors.Wrap(err, "ticker")
	}

	var r struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			Last   string `json:"last"`
			BidPx  string `json:"bidPx"`
			AskPx  string `json:"askPx"`
			TsMill string `json:"ts"`
		} `json:"data"`
	}
	if err := sonic.Unmarshal(body, &r); err != nil {
		return models.Tick{}, errors.Wrap(err, "ticker decode")
	}
	if r.Code != "0" || len(r.Data) == 0 {
		return models.Tick{}, errors.Errorf("ticker error: code=%s msg=%s", r.Code, r.Msg)
	}

	d := r.Data[0]
	tick := models.Tick{Symbol: symbol, Timestamp: time.Now()}
	tick.Last, _ = strconv.ParseFloat(d.Last, 64)
	tick.Bid, _ = strconv.ParseFloat(d.BidPx, 64)
	tick.Ask, _ = strconv.ParseFloat(d.AskPx, 64)
	if ms, err := strconv.ParseInt(d.TsMill, 10, 64); err == nil {
		tick.Timestamp = time.UnixMilli(ms)
	}
	if tick.Last <= 0 {
		return models.Tick{}, errors.Errorf("ticker %s: empty last price", symbol)
	}
	return tick, nil
}

func (c *Client) MarketDepth(ctx context.Context, symbol string) (models.MarketDepth, error) {
	u := fmt.Sprintf("%s/api/v5/market/books?instId=%s&sz=10", c.baseURL(), url.QueryEscape(symbol))
	body, err := c.getJSON(ctx, u)
	if err != nil {
		return c.syntheticDepth(ctx, symbol)
	}

	var r struct {
		Code string `json:"code"`
		Data []struct {
			Bids [][]string `json:"bids"`
			Asks [][]string `json:"asks"`
		} `json:"data"`
	}
	if err := sonic.Unmarshal(body, &r); err != nil || r.Code != "0" || len(r.Data) == 0 {
		return c.syntheticDepth(ctx, symbol)
	}

	depth := models.MarketDepth{Symbol: symbol}
	for _, row := range r.Data[0].Bids {
		if lvl, ok := parseLevel(row); ok {
			depth.Bids = append(depth.Bids, lvl)
		}
	}
	for _, row := range r.Data[0].Asks {
		if lvl, ok := parseLevel(row); ok {
			depth.Asks = append(depth.Asks, lvl)
		}
	}
	if len(depth.Bids) == 0 && len(depth.Asks) == 0 {
		return c.syntheticDepth(ctx, symbol)
	}
	return depth, nil
}

// syntheticDepth builds a flat 5-level book around the last trade for venues
// (or test fixtures) that publish no order book.
func (c *Client) syntheticDepth(ctx context.Context, symbol string) (models.MarketDepth, error) {
	tick, err := c.PriceTick(ctx, symbol)
	if err != nil {
		return models.MarketDepth{}, err
	}
	mid := tick.Mid()
	step := mid * 0.0001
	depth := models.MarketDepth{Symbol: symbol}
	for i := 1; i <= 5; i++ {
		depth.Bids = append(depth.Bids, models.BookLevel{Price: mid - float64(i)*step, Volume: 1})
		depth.Asks = append(depth.Asks, models.BookLevel{Price: mid + float64(i)*step, Volume: 1})
	}
	return depth, nil
}

func parseLevel(row []string) (models.BookLevel, bool) {
	if len(row) < 2 {
		return models.BookLevel{}, false
	}
	price, err1 := strconv.ParseFloat(row[0], 64)
	vol, err2 := strconv.ParseFloat(row[1], 64)
	if err1 != nil || err2 != nil || price <= 0 {
		return models.BookLevel{}, false
	}
	return models.BookLevel{Price: price, Volume: vol}, true
}

// TopVolatile ranks USDT perpetuals by 24h range over last price.
func (c *Client) TopVolatile(ctx context.Context, n int) []string {
	if n <= 0 {
		return nil
	}
	u := fmt.Sprintf("%s/api/v5/market/tickers?instType=SWAP", c.baseURL())
	body, err := c.getJSON(ctx, u)
	if err != nil {
		return nil
	}

	var r struct {
		Code string `json:"code"`
		Data []struct {
			InstID  string `json:"instId"`
			Last    string `json:"last"`
			High24h string `json:"high24h"`
			Low24h  string `json:"low24h"`
		} `json:"data"`
	}
	if err := sonic.Unmarshal(body, &r); err != nil || r.Code != "0" {
		return nil
	}

	type rec struct {
		sym   string
		score float64
	}
	arr := make([]rec, 0, len(r.Data))
	for _, t := range r.Data {
		if !strings.HasSuffix(t.InstID, "-USDT-SWAP") {
			continue
		}
		last, err1 := strconv.ParseFloat(t.Last, 64)
		high, err2 := strconv.ParseFloat(t.High24h, 64)
		low, err3 := strconv.ParseFloat(t.Low24h, 64)
		if err1 != nil || err2 != nil || err3 != nil || last <= 0 {
			continue
		}
		range24 := high - low
		if range24 <= 0 {
			continue
		}
		arr = append(arr, rec{sym: t.InstID, score: range24 / last})
	}

	sort.Slice(arr, func(i, j int) bool { return arr[i].score > arr[j].score })
	if n > len(arr) {
		n = len(arr)
	}
	out := make([]string, 0, n)
	for _, rec := range arr[:n] {
		out = append(out, rec.sym)
	}
	return out
}

func (c *Client) getJSON(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, errors.Errorf("http %d: %s", resp.StatusCode, string(b))
	}
	return b, nil
}

func venueBar(tf string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(tf)) {
	case "1m", "3m", "5m", "15m", "30m":
		return strings.ToLower(tf), nil
	case "1h", "60m":
		return "1H", nil
	case "2h":
		return "2H", nil
	case "4h":
		return "4H", nil
	case "1d":
		return "1D", nil
	}
	return "", errors.Errorf("unsupported timeframe %q", tf)
}

func timeframeToDuration(tf string) time.Duration {
	switch strings.ToLower(tf) {
	case "1m":
		return time.Minute
	case "3m":
		return 3 * time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h", "60m":
		return time.Hour
	case "2h":
		return 2 * time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return 0
	}
}
