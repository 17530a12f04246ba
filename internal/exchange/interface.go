package exchange

import (
	"context"
	"time"
)

// Exchange определяет унифицированный интерфейс для работы с биржей опционов
type Exchange interface {
	// Connect устанавливает соединение с биржей и проходит аутентификацию
	Connect(apiKey, secret string) error

	// GetName возвращает имя биржи
	GetName() string

	// GetIndexPrice получает текущую индексную цену базового актива (spot)
	GetIndexPrice(ctx context.Context, currency string) (float64, error)

	// GetInstruments получает список активных опционных инструментов по валюте
	GetInstruments(ctx context.Context, currency string) ([]*Instrument, error)

	// GetQuote получает текущую котировку опциона (bid/ask/mark, греки)
	GetQuote(ctx context.Context, instrument string) (*Quote, error)

	// GetAccountSummary получает сводку по счёту (equity в базовой валюте)
	GetAccountSummary(ctx context.Context, currency string) (*AccountSummary, error)

	// GetPositions получает список открытых опционных позиций по валюте
	GetPositions(ctx context.Context, currency string) ([]*Position, error)

	// PlaceOrder размещает лимитный ордер (price != nil) или рыночный (price == nil)
	PlaceOrder(ctx context.Context, instrument, side string, amount float64, price *float64) (*Order, error)

	// GetOrderState получает текущее состояние ордера по его ID
	GetOrderState(ctx context.Context, orderID string) (*Order, error)

	// CancelOrder отменяет неисполненный ордер
	CancelOrder(ctx context.Context, orderID string) error

	// ClosePosition закрывает позицию рыночным ордером (аварийное закрытие)
	ClosePosition(ctx context.Context, instrument string) (*Order, error)

	// CancelAll отменяет все активные ордера по валюте
	CancelAll(ctx context.Context, currency string) error

	// SubscribeIndexPrice подписывается на обновления индексной цены через WebSocket
	SubscribeIndexPrice(currency string, callback func(currency string, price float64)) error

	// Close закрывает соединения с биржей
	Close() error
}

// Instrument описывает опционный инструмент
type Instrument struct {
	Name           string    `json:"name"`            // например BTC-27MAR26-45000-P
	Currency       string    `json:"currency"`        // базовая валюта (BTC, ETH)
	Kind           string    `json:"kind"`            // "call" или "put"
	Strike         float64   `json:"strike"`          // цена страйка
	Expiration     time.Time `json:"expiration"`      // момент экспирации (08:00 UTC)
	TickSize       float64   `json:"tick_size"`       // шаг цены
	MinTradeAmount float64   `json:"min_trade_amount"` // минимальный размер ордера
	IsActive       bool      `json:"is_active"`
}

// Quote содержит текущую котировку опциона
// Цены опционов котируются в базовой валюте (долях актива)
type Quote struct {
	Instrument string    `json:"instrument"`
	BidPrice   float64   `json:"bid_price"`  // лучшая цена покупки (0 если стакан пуст)
	AskPrice   float64   `json:"ask_price"`  // лучшая цена продажи (0 если стакан пуст)
	MarkPrice  float64   `json:"mark_price"` // справедливая цена по модели биржи
	MarkIV     float64   `json:"mark_iv"`    // implied volatility, %
	Delta      float64   `json:"delta"`      // чувствительность к цене базового актива
	IndexPrice float64   `json:"index_price"`
	Timestamp  time.Time `json:"timestamp"`
}

// AccountSummary содержит сводку по счёту в базовой валюте
type AccountSummary struct {
	Currency        string  `json:"currency"`
	Equity          float64 `json:"equity"`           // полная стоимость счёта в базовой валюте
	AvailableFunds  float64 `json:"available_funds"`
	MarginBalance   float64 `json:"margin_balance"`
	SessionUPnl     float64 `json:"session_upl"`
}

// Position представляет открытую опционную позицию
type Position struct {
	Instrument   string  `json:"instrument"`
	Kind         string  `json:"kind"`          // "option"
	Direction    string  `json:"direction"`     // "buy" или "sell"
	Size         float64 `json:"size"`          // размер позиции в базовом активе
	AveragePrice float64 `json:"average_price"` // средняя цена входа
	MarkPrice    float64 `json:"mark_price"`
	FloatingPnl  float64 `json:"floating_pnl"`  // нереализованный PnL в базовой валюте
}

// Order представляет ордер на бирже
type Order struct {
	ID           string    `json:"id"`
	Instrument   string    `json:"instrument"`
	Side         string    `json:"side"` // "buy" или "sell"
	Type         string    `json:"type"` // "limit" или "market"
	Amount       float64   `json:"amount"`
	FilledAmount float64   `json:"filled_amount"`
	AveragePrice float64   `json:"average_price"`
	Price        *float64  `json:"price,omitempty"` // nil для рыночных ордеров
	State        string    `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsFilled проверяет, полностью ли исполнен ордер
func (o *Order) IsFilled() bool {
	return o.State == OrderStateFilled
}

// IsTerminal проверяет, находится ли ордер в конечном состоянии
func (o *Order) IsTerminal() bool {
	switch o.State {
	case OrderStateFilled, OrderStateCancelled, OrderStateRejected:
		return true
	default:
		return false
	}
}

// ExchangeError представляет ошибку от биржи
type ExchangeError struct {
	Exchange string
	Code     int
	Message  string
	Original error
}

func (e *ExchangeError) Error() string {
	return e.Exchange + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *ExchangeError) Unwrap() error {
	return e.Original
}

// Side constants for orders
const (
	SideBuy  = "buy"  // покупка опциона (long нога)
	SideSell = "sell" // продажа опциона (short нога)
)

// Order state constants (состояния ордера на бирже)
const (
	OrderStateOpen      = "open"
	OrderStateFilled    = "filled"
	OrderStateCancelled = "cancelled"
	OrderStateRejected  = "rejected"
)

// Option kind constants
const (
	KindCall = "call"
	KindPut  = "put"
)
