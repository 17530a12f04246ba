package service

import (
	"context"
	"errors"

	"condor/internal/models"
)

// Ошибки сервиса рисков
var (
	ErrEngineUnavailable = errors.New("trading engine is not available")
)

// RiskService - тонкий фасад над риск-менеджером торгового ядра.
//
// Сама логика рисков живёт в internal/bot (risk.go): ей нужен прямой
// доступ к живому состоянию позиций и бирже без похода в БД.
// Сервис лишь пробрасывает операторские команды:
// - сводка риск-бюджета
// - аварийная остановка / возобновление торговли
// - пауза / возобновление сканирования
type RiskService struct {
	engine TradingEngine
}

// NewRiskService создает новый экземпляр RiskService
func NewRiskService(engine TradingEngine) *RiskService {
	return &RiskService{engine: engine}
}

// GetRiskSummary возвращает текущее состояние риск-бюджета
func (s *RiskService) GetRiskSummary(ctx context.Context) (*models.RiskSummary, error) {
	if s.engine == nil {
		return nil, ErrEngineUnavailable
	}
	return s.engine.RiskSummary(ctx), nil
}

// EmergencyStop останавливает торговлю и закрывает все позиции.
//
// Идемпотентна: повторный вызов на остановленной системе безопасен
func (s *RiskService) EmergencyStop(ctx context.Context) error {
	if s.engine == nil {
		return ErrEngineUnavailable
	}
	return s.engine.EmergencyStop(ctx)
}

// ResumeTrading возобновляет торговлю после аварийной остановки
func (s *RiskService) ResumeTrading() error {
	if s.engine == nil {
		return ErrEngineUnavailable
	}
	s.engine.ResumeTrading()
	return nil
}

// IsStopped сообщает, находится ли система в аварийной остановке
func (s *RiskService) IsStopped() (bool, error) {
	if s.engine == nil {
		return false, ErrEngineUnavailable
	}
	return s.engine.IsStopped(), nil
}

// PauseScan приостанавливает поиск новых структур.
// Открытые позиции продолжают отслеживаться
func (s *RiskService) PauseScan() error {
	if s.engine == nil {
		return ErrEngineUnavailable
	}
	s.engine.PauseScan()
	return nil
}

// ResumeScan возобновляет поиск новых структур
func (s *RiskService) ResumeScan() error {
	if s.engine == nil {
		return ErrEngineUnavailable
	}
	s.engine.ResumeScan()
	return nil
}

// IsScanPaused сообщает, приостановлено ли сканирование
func (s *RiskService) IsScanPaused() (bool, error) {
	if s.engine == nil {
		return false, ErrEngineUnavailable
	}
	return s.engine.IsScanPaused(), nil
}

// ScanNow запускает внеочередной цикл сканирования
func (s *RiskService) ScanNow(ctx context.Context) error {
	if s.engine == nil {
		return ErrEngineUnavailable
	}
	s.engine.ScanNow(ctx)
	return nil
}
