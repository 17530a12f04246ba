package service

import (
	"condor/internal/models"
)

// StatsService предоставляет бизнес-логику для статистики торговли.
//
// Отвечает за:
// - Агрегированную статистику (за день/неделю/месяц/всё время)
// - Разбивку закрытий по причинам (TP/SL/экспирация/откаты)
// - Журнал срабатываний Stop Loss
// - Топ валют по PnL
//
// Вся статистика выводится из таблицы structures при каждом запросе,
// отдельных счетчиков нет: закрытая структура - единица учёта
type StatsService struct {
	statsRepo StatsRepositoryInterface
}

// NewStatsService создает новый экземпляр StatsService
func NewStatsService(statsRepo StatsRepositoryInterface) *StatsService {
	return &StatsService{
		statsRepo: statsRepo,
	}
}

// GetStats возвращает сводную статистику торговли
func (s *StatsService) GetStats() (*models.Stats, error) {
	stats, err := s.statsRepo.GetStats()
	if err != nil {
		return nil, err
	}

	// Гарантируем пустые массивы вместо nil в JSON-ответе
	if stats.StopLossEvents == nil {
		stats.StopLossEvents = []models.StopLossEvent{}
	}
	if stats.TopCurrenciesByPnl == nil {
		stats.TopCurrenciesByPnl = []models.CurrencyStat{}
	}

	return stats, nil
}

// GetPartiallyClosedCount возвращает количество структур,
// требующих внимания оператора (часть ног не закрылась)
func (s *StatsService) GetPartiallyClosedCount() (int, error) {
	return s.statsRepo.CountPartiallyClosed()
}
