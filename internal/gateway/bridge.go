package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"algo_engine/internal/models"

	"github.com/bytedance/sonic"
)

// Bridge talks to an external execution service over signed REST. Every
// failure comes back as *models.ExecutionGatewayError so callers can treat
// the gateway as one fault domain.
type Bridge struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
}

func NewBridge(baseURL, apiKey, apiSecret string) *Bridge {
	return &Bridge{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *Bridge) sign(ts, method, path, body string) string {
	mac := hmac.New(sha256.New, []byte(b.apiSecret))
	mac.Write([]byte(ts + method + path + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (b *Bridge) do(ctx context.Context, op, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = sonic.Marshal(payload)
		if err != nil {
			return &models.ExecutionGatewayError{Op: op, Err: fmt.Errorf("marshal: %w", err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &models.ExecutionGatewayError{Op: op, Err: err}
	}

	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	req.Header.Set("X-API-KEY", b.apiKey)
	req.Header.Set("X-API-SIGN", b.sign(ts, method, path, string(body)))
	req.Header.Set("X-API-TIMESTAMP", ts)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return &models.ExecutionGatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return &models.ExecutionGatewayError{Op: op, Err: fmt.Errorf("http %d: %s", resp.StatusCode, string(data))}
	}

	var wrap struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := sonic.Unmarshal(data, &wrap); err == nil && wrap.Code != "" && wrap.Code != "0" {
		return &models.ExecutionGatewayError{Op: op, Err: fmt.Errorf("rejected: code=%s msg=%s", wrap.Code, wrap.Msg)}
	}
	if out != nil {
		if err := sonic.Unmarshal(data, out); err != nil {
			return &models.ExecutionGatewayError{Op: op, Err: fmt.Errorf("decode: %w; body=%s", err, string(data))}
		}
	}
	return nil
}

func (b *Bridge) PlaceOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error) {
	var out struct {
		Data models.OrderResult `json:"data"`
	}
	if err := b.do(ctx, "place", http.MethodPost, "/api/v1/orders", req, &out); err != nil {
		return models.OrderResult{}, err
	}
	return out.Data, nil
}

func (b *Bridge) ClosePosition(ctx context.Context, ticket int64) (models.CloseResult, error) {
	var out struct {
		Data models.CloseResult `json:"data"`
	}
	path := fmt.Sprintf("/api/v1/positions/%d/close", ticket)
	if err := b.do(ctx, "close", http.MethodPost, path, nil, &out); err != nil {
		return models.CloseResult{}, err
	}
	return out.Data, nil
}

func (b *Bridge) ModifyPosition(ctx context.Context, ticket int64, stopLoss, takeProfit float64) error {
	payload := map[string]float64{}
	if stopLoss > 0 {
		payload["stop_loss"] = stopLoss
	}
	if takeProfit > 0 {
		payload["take_profit"] = takeProfit
	}
	path := fmt.Sprintf("/api/v1/positions/%d", ticket)
	return b.do(ctx, "modify", http.MethodPatch, path, payload, nil)
}

func (b *Bridge) Positions(ctx context.Context) ([]models.Position, error) {
	var out struct {
		Data []models.Position `json:"data"`
	}
	if err := b.do(ctx, "positions", http.MethodGet, "/api/v1/positions", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (b *Bridge) AccountInfo(ctx context.Context) (models.AccountInfo, error) {
	var out struct {
		Data models.AccountInfo `json:"data"`
	}
	if err := b.do(ctx, "account", http.MethodGet, "/api/v1/account", nil, &out); err != nil {
		return models.AccountInfo{}, err
	}
	return out.Data, nil
}
