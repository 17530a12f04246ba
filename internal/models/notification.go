package models

import "time"

// Notification представляет уведомление о событии
type Notification struct {
	ID          int                    `json:"id" db:"id"`
	Timestamp   time.Time              `json:"timestamp" db:"timestamp"`
	Type        string                 `json:"type" db:"type"`
	Severity    string                 `json:"severity" db:"severity"` // info, warn, error
	StructureID string                 `json:"structure_id,omitempty" db:"structure_id"`
	Message     string                 `json:"message" db:"message"`
	Meta        map[string]interface{} `json:"meta,omitempty" db:"meta"` // дополнительные данные (JSON в БД)
}

// Типы уведомлений
const (
	NotificationTypeOpen         = "OPEN"          // структура открыта
	NotificationTypeClose        = "CLOSE"         // структура закрыта
	NotificationTypeTP           = "TP"            // закрытие по take profit
	NotificationTypeSL           = "SL"            // закрытие по stop loss
	NotificationTypeExpiry       = "EXPIRY"        // закрытие перед экспирацией
	NotificationTypeRollback     = "ROLLBACK"      // откат частично открытой структуры
	NotificationTypePartialClose = "PARTIAL_CLOSE" // часть ног не закрылась
	NotificationTypeRiskDenied   = "RISK_DENIED"   // отказ риск-менеджера
	NotificationTypeEmergency    = "EMERGENCY"     // аварийная остановка
	NotificationTypeError        = "ERROR"         // ошибка API/ордера
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)
