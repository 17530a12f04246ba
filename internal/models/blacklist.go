package models

import (
	"strings"
	"time"
)

// BlacklistEntry представляет запись в черном списке экспираций.
// Занесённые экспирации пропускаются сканером (например, экспирации
// в даты макро-событий).
type BlacklistEntry struct {
	ID         int       `json:"id" db:"id"`
	Currency   string    `json:"currency" db:"currency"`     // BTC, ETH
	Expiration string    `json:"expiration" db:"expiration"` // 28MAR25
	Reason     string    `json:"reason" db:"reason"`         // пользовательская заметка
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ExpirationLabel форматирует время экспирации в метку вида "28MAR25".
// Формат совпадает с меткой экспирации в именах инструментов Deribit
func ExpirationLabel(t time.Time) string {
	return strings.ToUpper(t.Format("2Jan06"))
}
