package models

import "time"

// Settings представляет глобальные настройки бота
type Settings struct {
	ID                int                     `json:"id" db:"id"`
	Exchange          string                  `json:"exchange" db:"exchange"` // deribit, deribit-testnet
	APIKey            string                  `json:"-" db:"api_key"`         // зашифрован, не возвращается в JSON
	APISecret         string                  `json:"-" db:"api_secret"`      // зашифрован
	ScanPaused        bool                    `json:"scan_paused" db:"scan_paused"`
	MaxOpenStructures *int                    `json:"max_open_structures" db:"max_open_structures"` // null = ограничение только риском
	NotificationPrefs NotificationPreferences `json:"notification_prefs" db:"notification_prefs"`   // JSON в БД
	UpdatedAt         time.Time               `json:"updated_at" db:"updated_at"`
}

// NotificationPreferences представляет настройки уведомлений
type NotificationPreferences struct {
	Open         bool `json:"open"`
	Close        bool `json:"close"`
	TakeProfit   bool `json:"take_profit"`
	StopLoss     bool `json:"stop_loss"`
	Expiry       bool `json:"expiry"`
	Rollback     bool `json:"rollback"`
	PartialClose bool `json:"partial_close"`
	RiskDenied   bool `json:"risk_denied"`
	Emergency    bool `json:"emergency"`
	APIError     bool `json:"api_error"`
}
