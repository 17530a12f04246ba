package models

import "time"

// LegOrderRecord представляет запись об ордере ноги структуры
type LegOrderRecord struct {
	ID           int        `json:"id" db:"id"`
	StructureID  string     `json:"structure_id" db:"structure_id"`
	Instrument   string     `json:"instrument" db:"instrument"`
	Role         string     `json:"role" db:"role"`   // long_put, short_put, short_call, long_call
	Side         string     `json:"side" db:"side"`   // buy, sell
	Phase        string     `json:"phase" db:"phase"` // open, close, rollback
	Amount       float64    `json:"amount" db:"amount"`
	Price        *float64   `json:"price,omitempty" db:"price"` // null = market
	PriceAvg     float64    `json:"price_avg" db:"price_avg"`   // средняя цена исполнения
	ExchangeID   string     `json:"exchange_id" db:"exchange_id"`
	Status       string     `json:"status" db:"status"` // filled, cancelled, rejected, unfilled
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	FilledAt     *time.Time `json:"filled_at,omitempty" db:"filled_at"`
}

// Фазы ордера
const (
	OrderPhaseOpen     = "open"
	OrderPhaseClose    = "close"
	OrderPhaseRollback = "rollback"
)

// Статусы ордера
const (
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
	OrderStatusRejected  = "rejected"
	OrderStatusUnfilled  = "unfilled" // не исполнился за отведённые опросы
)
