package handlers

import (
	"encoding/json"
	"net/http"

	"condor/internal/models"
	"condor/internal/service"
)

// StatsHandler обрабатывает HTTP запросы для статистики торговли.
//
// Endpoints:
// - GET /api/v1/stats - получить агрегированную статистику
//
// Статистика включает:
// - Количество закрытых структур и PnL (день/неделя/месяц/всего)
// - Разбивку закрытий по причинам (TP/SL/экспирация)
// - Количество откатов и частичных закрытий
// - Последние срабатывания Stop Loss с деталями
// - Топ-5 валют по PnL
type StatsHandler struct {
	statsService service.StatsServiceInterface
}

// NewStatsHandler создает новый StatsHandler с внедрением зависимостей.
func NewStatsHandler(statsService service.StatsServiceInterface) *StatsHandler {
	return &StatsHandler{
		statsService: statsService,
	}
}

// GetStats возвращает агрегированную статистику торговли.
//
// GET /api/v1/stats
//
// Response 200 OK:
//
//	{
//	  "total_structures": 40,
//	  "total_pnl": 312.5,
//	  "today_structures": 2,
//	  "today_pnl": 11.0,
//	  "week_structures": 7,
//	  "week_pnl": 48.2,
//	  "month_structures": 15,
//	  "month_pnl": 120.9,
//	  "closed_by_take_profit": 25,
//	  "closed_by_stop_loss": 6,
//	  "closed_by_expiry": 4,
//	  "rolled_back": 2,
//	  "partially_closed": 1,
//	  "stop_loss_events": [
//	    {
//	      "structure_id": "IC-BTC-1700000000000000000",
//	      "currency": "BTC",
//	      "pnl": -30.0,
//	      "timestamp": "2026-03-01T14:32:00Z"
//	    }
//	  ],
//	  "top_currencies_by_pnl": [
//	    {"currency": "BTC", "value": 210.0},
//	    {"currency": "ETH", "value": 102.5}
//	  ]
//	}
//
// Response 500 Internal Server Error:
//
//	{"error": "failed to get stats", "details": "..."}
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Проверяем, что сервис инициализирован
	if h.statsService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "stats service not initialized",
		})
		return
	}

	stats, err := h.statsService.GetStats()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "failed to get stats",
			"details": err.Error(),
		})
		return
	}

	// Убеждаемся, что пустые массивы возвращаются как [], а не null
	if stats.StopLossEvents == nil {
		stats.StopLossEvents = []models.StopLossEvent{}
	}
	if stats.TopCurrenciesByPnl == nil {
		stats.TopCurrenciesByPnl = []models.CurrencyStat{}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(stats)
}
