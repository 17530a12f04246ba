package bot

import (
	"context"
	"fmt"
	"sync"

	"condor/internal/exchange"
)

// mockExchange - управляемая заглушка биржи для тестов ядра
type mockExchange struct {
	mu sync.Mutex

	indexPrice    map[string]float64
	indexErr      error
	instruments   map[string][]*exchange.Instrument
	quotes        map[string]*exchange.Quote
	quoteErr      map[string]error
	accounts      map[string]*exchange.AccountSummary
	accountErr    error
	positions     map[string][]*exchange.Position
	positionsErr  error
	closePosErr   map[string]error
	cancelAllErr  error

	// Управление исполнением ордеров
	rejectInstruments map[string]bool // ордер на инструмент сразу rejected
	placeErr          map[string]error

	orders      map[string]*exchange.Order
	nextOrderID int

	placedOrders []placedOrder
	closedLegs   []string // инструменты в порядке закрытия

	// Подписки на индексные цены
	indexSubs     []string
	indexCallback func(string, float64)
	subscribeErr  error
}

type placedOrder struct {
	Instrument string
	Side       string
	Amount     float64
	Price      *float64
}

func newMockExchange() *mockExchange {
	return &mockExchange{
		indexPrice:        make(map[string]float64),
		instruments:       make(map[string][]*exchange.Instrument),
		quotes:            make(map[string]*exchange.Quote),
		quoteErr:          make(map[string]error),
		accounts:          make(map[string]*exchange.AccountSummary),
		positions:         make(map[string][]*exchange.Position),
		closePosErr:       make(map[string]error),
		rejectInstruments: make(map[string]bool),
		placeErr:          make(map[string]error),
		orders:            make(map[string]*exchange.Order),
	}
}

func (m *mockExchange) Connect(apiKey, secret string) error { return nil }
func (m *mockExchange) GetName() string                     { return "mock" }
func (m *mockExchange) Close() error                        { return nil }

func (m *mockExchange) SubscribeIndexPrice(currency string, callback func(string, float64)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.indexSubs = append(m.indexSubs, currency)
	m.indexCallback = callback
	return nil
}

func (m *mockExchange) GetIndexPrice(ctx context.Context, currency string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexErr != nil {
		return 0, m.indexErr
	}
	price, ok := m.indexPrice[currency]
	if !ok {
		return 0, fmt.Errorf("no index for %s", currency)
	}
	return price, nil
}

func (m *mockExchange) GetInstruments(ctx context.Context, currency string) ([]*exchange.Instrument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instruments[currency], nil
}

func (m *mockExchange) GetQuote(ctx context.Context, instrument string) (*exchange.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.quoteErr[instrument]; err != nil {
		return nil, err
	}
	q, ok := m.quotes[instrument]
	if !ok {
		return nil, fmt.Errorf("no quote for %s", instrument)
	}
	return q, nil
}

func (m *mockExchange) GetAccountSummary(ctx context.Context, currency string) (*exchange.AccountSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.accountErr != nil {
		return nil, m.accountErr
	}
	acc, ok := m.accounts[currency]
	if !ok {
		return nil, fmt.Errorf("no account for %s", currency)
	}
	return acc, nil
}

func (m *mockExchange) GetPositions(ctx context.Context, currency string) ([]*exchange.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.positionsErr != nil {
		return nil, m.positionsErr
	}
	return m.positions[currency], nil
}

func (m *mockExchange) PlaceOrder(ctx context.Context, instrument, side string, amount float64, price *float64) (*exchange.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.placeErr[instrument]; err != nil {
		return nil, err
	}

	m.nextOrderID++
	order := &exchange.Order{
		ID:         fmt.Sprintf("ORD-%d", m.nextOrderID),
		Instrument: instrument,
		Side:       side,
		Amount:     amount,
		Price:      price,
	}

	if m.rejectInstruments[instrument] {
		order.State = exchange.OrderStateRejected
	} else {
		order.State = exchange.OrderStateFilled
		order.FilledAmount = amount
		if price != nil {
			order.AveragePrice = *price
		}
	}

	m.orders[order.ID] = order
	m.placedOrders = append(m.placedOrders, placedOrder{
		Instrument: instrument,
		Side:       side,
		Amount:     amount,
		Price:      price,
	})
	return order, nil
}

func (m *mockExchange) GetOrderState(ctx context.Context, orderID string) (*exchange.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("unknown order %s", orderID)
	}
	return order, nil
}

func (m *mockExchange) CancelOrder(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order, ok := m.orders[orderID]; ok && !order.IsTerminal() {
		order.State = exchange.OrderStateCancelled
	}
	return nil
}

func (m *mockExchange) ClosePosition(ctx context.Context, instrument string) (*exchange.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.closePosErr[instrument]; err != nil {
		return nil, err
	}

	m.nextOrderID++
	order := &exchange.Order{
		ID:         fmt.Sprintf("CLS-%d", m.nextOrderID),
		Instrument: instrument,
		Type:       "market",
		State:      exchange.OrderStateFilled,
	}
	m.orders[order.ID] = order
	m.closedLegs = append(m.closedLegs, instrument)
	return order, nil
}

func (m *mockExchange) CancelAll(ctx context.Context, currency string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelAllErr
}

func (m *mockExchange) placed() []placedOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]placedOrder, len(m.placedOrders))
	copy(out, m.placedOrders)
	return out
}

func (m *mockExchange) closed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.closedLegs))
	copy(out, m.closedLegs)
	return out
}

func (m *mockExchange) subscribedIndexes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.indexSubs))
	copy(out, m.indexSubs)
	return out
}

// pushIndexPrice имитирует push-обновление индексной цены от биржи
func (m *mockExchange) pushIndexPrice(currency string, price float64) {
	m.mu.Lock()
	cb := m.indexCallback
	m.mu.Unlock()
	if cb != nil {
		cb(currency, price)
	}
}
