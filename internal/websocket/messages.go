package websocket

import (
	"time"

	"condor/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeStructureUpdate - обновление состояния структуры
	// Отправляется при изменении статуса (открытие, закрытие, откат)
	MessageTypeStructureUpdate MessageType = "structureUpdate"

	// MessageTypeNotification - новое уведомление
	// Отправляется при событиях: открытие, TP, SL, экспирация, ошибки
	MessageTypeNotification MessageType = "notification"

	// MessageTypeEquityUpdate - обновление капитала аккаунта
	// Отправляется после каждого цикла мониторинга
	MessageTypeEquityUpdate MessageType = "equityUpdate"

	// MessageTypeStatsUpdate - обновление статистики торговли
	// Отправляется после закрытия структуры
	MessageTypeStatsUpdate MessageType = "statsUpdate"

	// MessageTypeIndexPrice - живое обновление индексной цены валюты
	// Поступает из WebSocket подписки биржи, не из polling
	MessageTypeIndexPrice MessageType = "indexPrice"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// StructureUpdateMessage - сообщение об обновлении структуры
//
// Содержит полное состояние структуры: ноги, кредит, цели TP/SL,
// статус и реализованный PnL. Дашборд замещает локальную копию целиком,
// без дельта-обновлений.
type StructureUpdateMessage struct {
	BaseMessage
	StructureID string         `json:"structure_id"`
	Data        *models.Condor `json:"data"`
}

// NotificationMessage - сообщение о новом уведомлении
type NotificationMessage struct {
	BaseMessage
	Data *NotificationData `json:"data"`
}

// NotificationData - данные уведомления
type NotificationData struct {
	// ID уведомления в БД
	ID int `json:"id"`

	// Тип уведомления (OPEN, CLOSE, TP, SL, EXPIRY, ROLLBACK, ...)
	Type string `json:"type"`

	// Уровень важности (info, warn, error)
	Severity string `json:"severity"`

	// ID связанной структуры (если применимо)
	StructureID string `json:"structure_id,omitempty"`

	// Текст сообщения
	Message string `json:"message"`

	// Дополнительные метаданные (цены, PnL и т.д.)
	Meta map[string]interface{} `json:"meta,omitempty"`

	// Время создания уведомления
	Timestamp time.Time `json:"timestamp"`
}

// EquityUpdateMessage - сообщение об обновлении капитала
//
// Отправляется после каждого цикла мониторинга.
// Позволяет дашборду отображать кривую капитала в реальном времени.
type EquityUpdateMessage struct {
	BaseMessage
	EquityUSD float64 `json:"equity_usd"`
}

// StatsUpdateMessage - сообщение об обновлении статистики
//
// Отправляется после закрытия каждой структуры.
// Содержит актуальную агрегированную статистику.
type StatsUpdateMessage struct {
	BaseMessage
	Data *models.Stats `json:"data"`
}

// IndexPriceMessage - сообщение с живой индексной ценой валюты
type IndexPriceMessage struct {
	BaseMessage
	Currency string  `json:"currency"`
	Price    float64 `json:"price"`
}

// ============ Фабричные функции для создания сообщений ============

// NewStructureUpdateMessage создает сообщение обновления структуры
func NewStructureUpdateMessage(condor *models.Condor) *StructureUpdateMessage {
	return &StructureUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeStructureUpdate,
			Timestamp: time.Now(),
		},
		StructureID: condor.ID,
		Data:        condor,
	}
}

// NewNotificationMessage создает сообщение уведомления
func NewNotificationMessage(notif *models.Notification) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeNotification,
			Timestamp: time.Now(),
		},
		Data: &NotificationData{
			ID:          notif.ID,
			Type:        notif.Type,
			Severity:    notif.Severity,
			StructureID: notif.StructureID,
			Message:     notif.Message,
			Meta:        notif.Meta,
			Timestamp:   notif.Timestamp,
		},
	}
}

// NewEquityUpdateMessage создает сообщение обновления капитала
func NewEquityUpdateMessage(equityUSD float64) *EquityUpdateMessage {
	return &EquityUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeEquityUpdate,
			Timestamp: time.Now(),
		},
		EquityUSD: equityUSD,
	}
}

// NewStatsUpdateMessage создает сообщение обновления статистики
func NewStatsUpdateMessage(stats *models.Stats) *StatsUpdateMessage {
	return &StatsUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeStatsUpdate,
			Timestamp: time.Now(),
		},
		Data: stats,
	}
}

// NewIndexPriceMessage создает сообщение с индексной ценой
func NewIndexPriceMessage(currency string, price float64) *IndexPriceMessage {
	return &IndexPriceMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeIndexPrice,
			Timestamp: time.Now(),
		},
		Currency: currency,
		Price:    price,
	}
}
