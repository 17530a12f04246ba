package exchange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"

	"condor/pkg/ratelimit"
	"condor/pkg/retry"
)

const (
	deribitProdURL   = "https://www.deribit.com/api/v2"
	deribitProdWSURL = "wss://www.deribit.com/ws/api/v2"
	deribitTestURL   = "https://test.deribit.com/api/v2"
	deribitTestWSURL = "wss://test.deribit.com/ws/api/v2"

	// Запас времени до истечения токена, после которого он считается протухшим
	tokenRefreshMargin = 60 * time.Second
)

// fastJSON - jsoniter конфигурация, совместимая со стандартной библиотекой
var fastJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Deribit реализует интерфейс Exchange для биржи Deribit (JSON-RPC v2 over HTTP)
type Deribit struct {
	name    string
	baseURL string
	wsURL   string

	apiKey string
	secret string

	httpClient *http.Client
	limiter    *ratelimit.RateLimiter

	// OAuth токен (client_credentials), обновляется с запасом tokenRefreshMargin
	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time

	// WebSocket индексных цен
	wsManager *WSReconnectManager
	wsSubs    map[string]func(string, float64)
	wsSubsMu  sync.RWMutex

	reqID     int64 // atomic, счётчик JSON-RPC id
	connected bool
}

// NewDeribit создает новый экземпляр Deribit (production)
// Использует глобальный HTTP клиент с connection pooling
func NewDeribit() *Deribit {
	return newDeribit("deribit", deribitProdURL, deribitProdWSURL)
}

// NewDeribitTestnet создает новый экземпляр Deribit testnet
func NewDeribitTestnet() *Deribit {
	return newDeribit("deribit-testnet", deribitTestURL, deribitTestWSURL)
}

func newDeribit(name, baseURL, wsURL string) *Deribit {
	return &Deribit{
		name:       name,
		baseURL:    baseURL,
		wsURL:      wsURL,
		httpClient: GetGlobalHTTPClient().GetClient(),
		// Лимиты публичного API Deribit: 20 req/s с burst 50 достаточно консервативно
		limiter: ratelimit.NewRateLimiter(20, 50),
		wsSubs:  make(map[string]func(string, float64)),
	}
}

// Connect сохраняет учётные данные и проверяет их, запросив OAuth токен
func (d *Deribit) Connect(apiKey, secret string) error {
	d.apiKey = apiKey
	d.secret = secret

	if apiKey != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := d.ensureToken(ctx); err != nil {
			return fmt.Errorf("deribit auth: %w", err)
		}
	}

	d.connected = true
	return nil
}

// GetName возвращает имя биржи
func (d *Deribit) GetName() string {
	return d.name
}

// ============================================================
// JSON-RPC транспорт
// ============================================================

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      int64               `json:"id"`
	Result  jsoniter.RawMessage `json:"result"`
	Error   *rpcError           `json:"error"`
}

// isTimeoutErr проверяет, является ли ошибка таймаутом сети
// Только такие ошибки безопасно повторять: биржа не получила запрос
// или ответ не успел дойти, но идемпотентные методы можно вызвать снова
func isTimeoutErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// call выполняет JSON-RPC запрос к Deribit API
// Таймауты повторяются с exponential backoff, остальные ошибки возвращаются сразу
func (d *Deribit) call(ctx context.Context, method string, params interface{}, private bool, result interface{}) error {
	cfg := retry.Config{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     4 * time.Second,
		Multiplier:   2.0,
		RetryIf:      isTimeoutErr,
	}

	return retry.Do(ctx, func() error {
		return d.callOnce(ctx, method, params, private, result)
	}, cfg)
}

func (d *Deribit) callOnce(ctx context.Context, method string, params interface{}, private bool, result interface{}) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      atomic.AddInt64(&d.reqID, 1),
		Method:  method,
		Params:  params,
	}

	body, err := fastJSON.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if private {
		if err := d.ensureToken(ctx); err != nil {
			return err
		}
		d.tokenMu.Lock()
		httpReq.Header.Set("Authorization", "Bearer "+d.accessToken)
		d.tokenMu.Unlock()
	}

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var rpcResp rpcResponse
	if err := fastJSON.Unmarshal(respBody, &rpcResp); err != nil {
		return &ExchangeError{
			Exchange: d.name,
			Message:  fmt.Sprintf("invalid response (http %d): %v", resp.StatusCode, err),
			Original: err,
		}
	}

	if rpcResp.Error != nil {
		return &ExchangeError{
			Exchange: d.name,
			Code:     rpcResp.Error.Code,
			Message:  rpcResp.Error.Message,
		}
	}

	if result != nil {
		if err := fastJSON.Unmarshal(rpcResp.Result, result); err != nil {
			return &ExchangeError{
				Exchange: d.name,
				Message:  "failed to decode result: " + err.Error(),
				Original: err,
			}
		}
	}

	return nil
}

// ensureToken запрашивает OAuth токен (client_credentials) при отсутствии
// или если до истечения осталось меньше tokenRefreshMargin
func (d *Deribit) ensureToken(ctx context.Context) error {
	d.tokenMu.Lock()
	defer d.tokenMu.Unlock()

	if d.accessToken != "" && time.Now().Before(d.tokenExpiry.Add(-tokenRefreshMargin)) {
		return nil
	}

	params := map[string]interface{}{
		"grant_type":    "client_credentials",
		"client_id":     d.apiKey,
		"client_secret": d.secret,
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}

	// public/auth вызывается напрямую, минуя ensureToken
	if err := d.callOnce(ctx, "public/auth", params, false, &result); err != nil {
		return err
	}

	if result.AccessToken == "" {
		return &ExchangeError{Exchange: d.name, Message: "auth returned empty access token"}
	}

	d.accessToken = result.AccessToken
	d.tokenExpiry = time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
	return nil
}

// ============================================================
// Публичные методы
// ============================================================

// GetIndexPrice получает индексную цену базового актива (например btc_usd)
func (d *Deribit) GetIndexPrice(ctx context.Context, currency string) (float64, error) {
	params := map[string]interface{}{
		"index_name": strings.ToLower(currency) + "_usd",
	}

	var result struct {
		IndexPrice float64 `json:"index_price"`
	}
	if err := d.call(ctx, "public/get_index_price", params, false, &result); err != nil {
		return 0, err
	}
	if result.IndexPrice <= 0 {
		return 0, &ExchangeError{Exchange: d.name, Message: "index price is not positive"}
	}
	return result.IndexPrice, nil
}

type deribitInstrument struct {
	InstrumentName      string  `json:"instrument_name"`
	BaseCurrency        string  `json:"base_currency"`
	OptionType          string  `json:"option_type"` // "call" / "put"
	Strike              float64 `json:"strike"`
	ExpirationTimestamp int64   `json:"expiration_timestamp"` // unix millis
	TickSize            float64 `json:"tick_size"`
	MinTradeAmount      float64 `json:"min_trade_amount"`
	IsActive            bool    `json:"is_active"`
}

// GetInstruments получает активные опционные инструменты по валюте
func (d *Deribit) GetInstruments(ctx context.Context, currency string) ([]*Instrument, error) {
	params := map[string]interface{}{
		"currency": strings.ToUpper(currency),
		"kind":     "option",
		"expired":  false,
	}

	var raw []deribitInstrument
	if err := d.call(ctx, "public/get_instruments", params, false, &raw); err != nil {
		return nil, err
	}

	instruments := make([]*Instrument, 0, len(raw))
	for _, in := range raw {
		instruments = append(instruments, &Instrument{
			Name:           in.InstrumentName,
			Currency:       in.BaseCurrency,
			Kind:           in.OptionType,
			Strike:         in.Strike,
			Expiration:     time.UnixMilli(in.ExpirationTimestamp).UTC(),
			TickSize:       in.TickSize,
			MinTradeAmount: in.MinTradeAmount,
			IsActive:       in.IsActive,
		})
	}
	return instruments, nil
}

// GetQuote получает котировку опциона через public/ticker
func (d *Deribit) GetQuote(ctx context.Context, instrument string) (*Quote, error) {
	params := map[string]interface{}{
		"instrument_name": instrument,
	}

	var result struct {
		InstrumentName string  `json:"instrument_name"`
		BestBidPrice   float64 `json:"best_bid_price"`
		BestAskPrice   float64 `json:"best_ask_price"`
		MarkPrice      float64 `json:"mark_price"`
		MarkIV         float64 `json:"mark_iv"`
		IndexPrice     float64 `json:"index_price"`
		Timestamp      int64   `json:"timestamp"`
		Greeks         struct {
			Delta float64 `json:"delta"`
		} `json:"greeks"`
	}
	if err := d.call(ctx, "public/ticker", params, false, &result); err != nil {
		return nil, err
	}

	return &Quote{
		Instrument: result.InstrumentName,
		BidPrice:   result.BestBidPrice,
		AskPrice:   result.BestAskPrice,
		MarkPrice:  result.MarkPrice,
		MarkIV:     result.MarkIV,
		Delta:      result.Greeks.Delta,
		IndexPrice: result.IndexPrice,
		Timestamp:  time.UnixMilli(result.Timestamp).UTC(),
	}, nil
}

// ============================================================
// Приватные методы
// ============================================================

// GetAccountSummary получает сводку по счёту в базовой валюте
func (d *Deribit) GetAccountSummary(ctx context.Context, currency string) (*AccountSummary, error) {
	params := map[string]interface{}{
		"currency": strings.ToUpper(currency),
	}

	var result struct {
		Currency       string  `json:"currency"`
		Equity         float64 `json:"equity"`
		AvailableFunds float64 `json:"available_funds"`
		MarginBalance  float64 `json:"margin_balance"`
		SessionUPnl    float64 `json:"session_upl"`
	}
	if err := d.call(ctx, "private/get_account_summary", params, true, &result); err != nil {
		return nil, err
	}

	return &AccountSummary{
		Currency:       result.Currency,
		Equity:         result.Equity,
		AvailableFunds: result.AvailableFunds,
		MarginBalance:  result.MarginBalance,
		SessionUPnl:    result.SessionUPnl,
	}, nil
}

type deribitPosition struct {
	InstrumentName string  `json:"instrument_name"`
	Kind           string  `json:"kind"`
	Direction      string  `json:"direction"`
	Size           float64 `json:"size"`
	AveragePrice   float64 `json:"average_price"`
	MarkPrice      float64 `json:"mark_price"`
	FloatingPnl    float64 `json:"floating_profit_loss"`
}

// GetPositions получает открытые опционные позиции по валюте
func (d *Deribit) GetPositions(ctx context.Context, currency string) ([]*Position, error) {
	params := map[string]interface{}{
		"currency": strings.ToUpper(currency),
		"kind":     "option",
	}

	var raw []deribitPosition
	if err := d.call(ctx, "private/get_positions", params, true, &raw); err != nil {
		return nil, err
	}

	positions := make([]*Position, 0, len(raw))
	for _, p := range raw {
		if p.Size == 0 {
			continue
		}
		positions = append(positions, &Position{
			Instrument:   p.InstrumentName,
			Kind:         p.Kind,
			Direction:    p.Direction,
			Size:         p.Size,
			AveragePrice: p.AveragePrice,
			MarkPrice:    p.MarkPrice,
			FloatingPnl:  p.FloatingPnl,
		})
	}
	return positions, nil
}

// deribitOrder - ордер в формате Deribit
// Price декодируется как RawMessage: для рыночных ордеров биржа
// возвращает строку "market_price" вместо числа
type deribitOrder struct {
	OrderID      string              `json:"order_id"`
	Instrument   string              `json:"instrument_name"`
	Direction    string              `json:"direction"`
	OrderType    string              `json:"order_type"`
	Amount       float64             `json:"amount"`
	FilledAmount float64             `json:"filled_amount"`
	AveragePrice float64             `json:"average_price"`
	Price        jsoniter.RawMessage `json:"price"`
	OrderState   string              `json:"order_state"`
	CreationTime int64               `json:"creation_timestamp"`
}

func (o *deribitOrder) toOrder() *Order {
	order := &Order{
		ID:           o.OrderID,
		Instrument:   o.Instrument,
		Side:         o.Direction,
		Type:         o.OrderType,
		Amount:       o.Amount,
		FilledAmount: o.FilledAmount,
		AveragePrice: o.AveragePrice,
		State:        o.OrderState,
		CreatedAt:    time.UnixMilli(o.CreationTime).UTC(),
	}
	if p, err := strconv.ParseFloat(string(o.Price), 64); err == nil {
		order.Price = &p
	}
	return order
}

// PlaceOrder размещает ордер через private/buy или private/sell
// price != nil - лимитный ордер, price == nil - рыночный
func (d *Deribit) PlaceOrder(ctx context.Context, instrument, side string, amount float64, price *float64) (*Order, error) {
	var method string
	switch side {
	case SideBuy:
		method = "private/buy"
	case SideSell:
		method = "private/sell"
	default:
		return nil, &ExchangeError{Exchange: d.name, Message: "invalid order side: " + side}
	}

	params := map[string]interface{}{
		"instrument_name": instrument,
		"amount":          amount,
	}
	if price != nil {
		params["type"] = "limit"
		params["price"] = *price
	} else {
		params["type"] = "market"
	}

	var result struct {
		Order deribitOrder `json:"order"`
	}
	if err := d.call(ctx, method, params, true, &result); err != nil {
		return nil, err
	}

	return result.Order.toOrder(), nil
}

// GetOrderState получает состояние ордера по ID
func (d *Deribit) GetOrderState(ctx context.Context, orderID string) (*Order, error) {
	params := map[string]interface{}{
		"order_id": orderID,
	}

	var result deribitOrder
	if err := d.call(ctx, "private/get_order_state", params, true, &result); err != nil {
		return nil, err
	}
	return result.toOrder(), nil
}

// CancelOrder отменяет неисполненный ордер
func (d *Deribit) CancelOrder(ctx context.Context, orderID string) error {
	params := map[string]interface{}{
		"order_id": orderID,
	}
	return d.call(ctx, "private/cancel", params, true, nil)
}

// ClosePosition закрывает позицию рыночным ордером
func (d *Deribit) ClosePosition(ctx context.Context, instrument string) (*Order, error) {
	params := map[string]interface{}{
		"instrument_name": instrument,
		"type":            "market",
	}

	var result struct {
		Order deribitOrder `json:"order"`
	}
	if err := d.call(ctx, "private/close_position", params, true, &result); err != nil {
		return nil, err
	}
	return result.Order.toOrder(), nil
}

// CancelAll отменяет все активные опционные ордера по валюте
func (d *Deribit) CancelAll(ctx context.Context, currency string) error {
	params := map[string]interface{}{
		"currency": strings.ToUpper(currency),
		"kind":     "option",
	}
	return d.call(ctx, "private/cancel_all_by_currency", params, true, nil)
}

// Close закрывает соединения с биржей
func (d *Deribit) Close() error {
	d.connected = false
	if d.wsManager != nil {
		return d.wsManager.Close()
	}
	return nil
}
