package models

import "time"

// Stats представляет агрегированную статистику торговли
type Stats struct {
	TotalStructures int     `json:"total_structures"`
	TotalPnl        float64 `json:"total_pnl"`
	TodayStructures int     `json:"today_structures"`
	TodayPnl        float64 `json:"today_pnl"`
	WeekStructures  int     `json:"week_structures"`
	WeekPnl         float64 `json:"week_pnl"`
	MonthStructures int     `json:"month_structures"`
	MonthPnl        float64 `json:"month_pnl"`

	ClosedByTakeProfit int `json:"closed_by_take_profit"`
	ClosedByStopLoss   int `json:"closed_by_stop_loss"`
	ClosedByExpiry     int `json:"closed_by_expiry"`
	RolledBack         int `json:"rolled_back"`
	PartiallyClosed    int `json:"partially_closed"`

	StopLossEvents []StopLossEvent `json:"stop_loss_events"`

	TopCurrenciesByPnl []CurrencyStat `json:"top_currencies_by_pnl"`
}

// StopLossEvent представляет событие срабатывания SL
type StopLossEvent struct {
	StructureID string    `json:"structure_id"`
	Currency    string    `json:"currency"`
	Pnl         float64   `json:"pnl"`
	Timestamp   time.Time `json:"timestamp"`
}

// CurrencyStat представляет статистику по валюте
type CurrencyStat struct {
	Currency string  `json:"currency"`
	Value    float64 `json:"value"` // количество структур или PnL
}

// MonitorStats - агрегат одного цикла мониторинга.
// Отдаётся вызывающему для наблюдаемости; ошибки по одной структуре
// не прерывают обработку остальных.
type MonitorStats struct {
	TotalMonitored int     `json:"total_monitored"`
	ClosedTP       int     `json:"closed_tp"`
	ClosedSL       int     `json:"closed_sl"`
	ClosedExpiry   int     `json:"closed_expiry"`
	TotalPnl       float64 `json:"total_pnl"`
	Errors         int     `json:"errors"`
}

// RiskSummary - текущее состояние риск-бюджета.
// Все значения выводятся из живых данных при каждом запросе.
type RiskSummary struct {
	Equity             float64 `json:"equity"`
	RiskPerStructure   float64 `json:"risk_per_structure"`   // в USD
	MaxPortfolioRisk   float64 `json:"max_portfolio_risk"`   // в USD
	CurrentExposure    float64 `json:"current_exposure"`     // в USD
	RiskUtilizationPct float64 `json:"risk_utilization_pct"` // exposure / max * 100
	OpenStructures     int     `json:"open_structures"`
	CanOpenNew         bool    `json:"can_open_new"`
	Reason             string  `json:"reason,omitempty"`
}
