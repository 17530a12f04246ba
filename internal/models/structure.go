package models

import (
	"fmt"
	"time"
)

// OptionQuote представляет котировку опциона на момент сканирования цепочки.
// Снимок неизменяем и живёт только в рамках одного скана.
type OptionQuote struct {
	Instrument string  `json:"instrument"` // BTC-28MAR25-45000-P
	Strike     float64 `json:"strike"`
	Kind       string  `json:"kind"`       // call, put
	Delta      float64 `json:"delta"`      // [-1, 1]
	MarkPrice  float64 `json:"mark_price"` // в базовом активе
	MarkIV     float64 `json:"mark_iv"`
}

// Типы опционов
const (
	KindCall = "call"
	KindPut  = "put"
)

// Направления ордеров
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Leg представляет одну ногу структуры.
// Принадлежит ровно одной структуре и не шарится между ними.
type Leg struct {
	Instrument string  `json:"instrument" db:"instrument"`
	Strike     float64 `json:"strike" db:"strike"`
	Kind       string  `json:"kind" db:"kind"`
	Side       string  `json:"side" db:"side"` // buy, sell
	Delta      float64 `json:"delta" db:"delta"`
	EntryMark  float64 `json:"entry_mark" db:"entry_mark"` // марка на момент выбора, в базовом активе
}

// Роли ног в структуре (порядок соответствует порядку открытия)
const (
	RoleLongPut   = "long_put"
	RoleShortPut  = "short_put"
	RoleShortCall = "short_call"
	RoleLongCall  = "long_call"
)

// Condor представляет четырёхногую риск-ограниченную структуру.
// Создаётся билдером; статус и поля закрытия мутирует только монитор позиций.
type Condor struct {
	ID         string    `json:"id" db:"id"`
	Currency   string    `json:"currency" db:"currency"` // BTC, ETH
	Expiration time.Time `json:"expiration" db:"expiration"`

	LongPut   Leg `json:"long_put" db:"-"`
	ShortPut  Leg `json:"short_put" db:"-"`
	ShortCall Leg `json:"short_call" db:"-"`
	LongCall  Leg `json:"long_call" db:"-"`

	EntrySpot float64   `json:"entry_spot" db:"entry_spot"` // цена индекса при входе
	EnteredAt time.Time `json:"entered_at" db:"entered_at"`

	Credit    float64 `json:"credit" db:"credit"`       // полученный кредит в USD (с учётом size)
	MaxLoss   float64 `json:"max_loss" db:"max_loss"`   // максимальный убыток в USD (с учётом size)
	MaxProfit float64 `json:"max_profit" db:"max_profit"`
	Size      float64 `json:"size" db:"size"` // размер в контрактах

	TakeProfitTarget float64 `json:"take_profit_target" db:"take_profit_target"` // > 0
	StopLossTarget   float64 `json:"stop_loss_target" db:"stop_loss_target"`     // < 0

	Status      string     `json:"status" db:"status"`
	ClosedAt    *time.Time `json:"closed_at,omitempty" db:"closed_at"`
	CloseReason string     `json:"close_reason,omitempty" db:"close_reason"`
	RealizedPnl float64    `json:"realized_pnl" db:"realized_pnl"`
}

// Статусы структуры
const (
	StatusPending         = "pending"          // ноги размещаются, монитору не видна
	StatusOpen            = "open"             // все ноги исполнены, отслеживается
	StatusClosing         = "closing"          // закрытие в процессе
	StatusClosed          = "closed"           // все ноги закрыты
	StatusPartiallyClosed = "partially_closed" // часть ног не закрылась, требуется оператор
	StatusRolledBack      = "rolled_back"      // откат после частичного открытия
)

// Причины закрытия
const (
	CloseReasonTakeProfit = "take_profit"
	CloseReasonStopLoss   = "stop_loss"
	CloseReasonExpiry     = "expiry"
	CloseReasonEmergency  = "emergency"
	CloseReasonManual     = "manual"
)

// NewCondorID генерирует идентификатор структуры
func NewCondorID(currency string, t time.Time) string {
	return fmt.Sprintf("IC-%s-%d", currency, t.UnixNano())
}

// Legs возвращает ноги в фиксированном порядке открытия:
// длинный пут, короткий пут, короткий колл, длинный колл.
func (c *Condor) Legs() []*Leg {
	return []*Leg{&c.LongPut, &c.ShortPut, &c.ShortCall, &c.LongCall}
}

// LegRoles возвращает роли ног в порядке открытия
func LegRoles() []string {
	return []string{RoleLongPut, RoleShortPut, RoleShortCall, RoleLongCall}
}

// LegByRole возвращает ногу по её роли
func (c *Condor) LegByRole(role string) *Leg {
	switch role {
	case RoleLongPut:
		return &c.LongPut
	case RoleShortPut:
		return &c.ShortPut
	case RoleShortCall:
		return &c.ShortCall
	case RoleLongCall:
		return &c.LongCall
	default:
		return nil
	}
}

// PutSpreadWidth возвращает ширину путового спреда
func (c *Condor) PutSpreadWidth() float64 {
	return c.ShortPut.Strike - c.LongPut.Strike
}

// CallSpreadWidth возвращает ширину колового спреда
func (c *Condor) CallSpreadWidth() float64 {
	return c.LongCall.Strike - c.ShortCall.Strike
}

// ValidateStrikes проверяет инвариант страйков:
// long_put < short_put <= spot <= short_call < long_call
func (c *Condor) ValidateStrikes() error {
	if c.LongPut.Strike >= c.ShortPut.Strike {
		return fmt.Errorf("long put strike %v must be below short put strike %v", c.LongPut.Strike, c.ShortPut.Strike)
	}
	if c.ShortPut.Strike > c.EntrySpot {
		return fmt.Errorf("short put strike %v must not exceed spot %v", c.ShortPut.Strike, c.EntrySpot)
	}
	if c.ShortCall.Strike < c.EntrySpot {
		return fmt.Errorf("short call strike %v must not be below spot %v", c.ShortCall.Strike, c.EntrySpot)
	}
	if c.LongCall.Strike <= c.ShortCall.Strike {
		return fmt.Errorf("long call strike %v must be above short call strike %v", c.LongCall.Strike, c.ShortCall.Strike)
	}
	return nil
}

// IsOpen возвращает true, если структура отслеживается монитором
func (c *Condor) IsOpen() bool {
	return c.Status == StatusOpen || c.Status == StatusClosing
}

// IsTerminal возвращает true для конечных статусов
func (c *Condor) IsTerminal() bool {
	return c.Status == StatusClosed || c.Status == StatusPartiallyClosed || c.Status == StatusRolledBack
}

// CloseSide возвращает направление закрывающего ордера для ноги
func (l *Leg) CloseSide() string {
	if l.Side == SideBuy {
		return SideSell
	}
	return SideBuy
}
