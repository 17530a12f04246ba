package bot

import (
	"context"

	"condor/internal/models"
)

// Strategy - общий контракт торговой стратегии
//
// Одна реализация на стратегию, выбирается конфигурацией при старте.
// Общие коллабораторы (риск-менеджер, исполнитель, монитор) передаются
// через конструктор - никакого наследования и глобального состояния
type Strategy interface {
	// Name возвращает имя стратегии
	Name() string

	// Scan ищет кандидатов на вход по всем валютам.
	// Отказ одной валюты не прерывает сканирование остальных
	Scan(ctx context.Context) ([]*models.Condor, error)

	// ExecuteEntry открывает структуру-кандидата на бирже
	ExecuteEntry(ctx context.Context, condor *models.Condor) error

	// ManagePositions выполняет один цикл управления открытыми позициями
	ManagePositions(ctx context.Context) (*models.MonitorStats, error)
}
