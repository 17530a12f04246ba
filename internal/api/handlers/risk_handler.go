package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"condor/internal/service"
)

// RiskHandler обрабатывает HTTP запросы управления риском и сканером
//
// Endpoints:
// - GET /api/v1/risk - текущее состояние риск-бюджета
// - GET /api/v1/risk/status - флаги аварийной остановки и паузы сканера
// - POST /api/v1/risk/emergency-stop - аварийная остановка (закрыть всё)
// - POST /api/v1/risk/resume - возобновить торговлю после остановки
// - POST /api/v1/scan/pause - приостановить сканер (позиции отслеживаются)
// - POST /api/v1/scan/resume - возобновить сканер
// - POST /api/v1/scan/now - внеочередной цикл сканирования
//
// Назначение:
// Операторский контроль над торговым ядром. Все операции делегируются
// ядру напрямую: риск-состояние живет в памяти ядра, а не в БД.
type RiskHandler struct {
	riskService service.RiskServiceInterface
}

// NewRiskHandler создает новый RiskHandler с внедрением зависимости
func NewRiskHandler(riskService service.RiskServiceInterface) *RiskHandler {
	return &RiskHandler{
		riskService: riskService,
	}
}

// GetRiskSummary возвращает текущее состояние риск-бюджета
//
// GET /api/v1/risk
//
// Response 200 OK:
//
//	{
//	  "equity": 12500.0,
//	  "risk_per_structure": 125.0,
//	  "max_portfolio_risk": 1250.0,
//	  "current_exposure": 430.0,
//	  "risk_utilization_pct": 34.4,
//	  "open_structures": 4,
//	  "can_open_new": true
//	}
//
// HTTP коды:
// - 200 OK: успешно
// - 503 Service Unavailable: ядро не запущено
// - 500 Internal Server Error: ошибка запроса капитала
func (h *RiskHandler) GetRiskSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.riskService.GetRiskSummary(r.Context())
	if err != nil {
		h.respondEngineError(w, "Failed to get risk summary", err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, summary)
}

// RiskStatusResponse представляет флаги состояния ядра
type RiskStatusResponse struct {
	Stopped    bool `json:"stopped"`     // аварийная остановка активна
	ScanPaused bool `json:"scan_paused"` // сканер на паузе
}

// GetStatus возвращает флаги аварийной остановки и паузы сканера
//
// GET /api/v1/risk/status
//
// HTTP коды:
// - 200 OK: успешно
// - 503 Service Unavailable: ядро не запущено
func (h *RiskHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	stopped, err := h.riskService.IsStopped()
	if err != nil {
		h.respondEngineError(w, "Failed to get engine status", err)
		return
	}

	scanPaused, err := h.riskService.IsScanPaused()
	if err != nil {
		h.respondEngineError(w, "Failed to get engine status", err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, RiskStatusResponse{
		Stopped:    stopped,
		ScanPaused: scanPaused,
	})
}

// EmergencyStop выполняет аварийную остановку торговли
//
// POST /api/v1/risk/emergency-stop
//
// Останавливает сканер и закрывает все отслеживаемые структуры
// рыночными ордерами. Структуры с незакрывшимися ногами помечаются
// partially_closed и требуют ручного вмешательства.
// Операция идемпотентна: повторный вызов ничего не делает.
//
// HTTP коды:
// - 200 OK: остановка выполнена
// - 503 Service Unavailable: ядро не запущено
// - 500 Internal Server Error: часть структур не закрылась
func (h *RiskHandler) EmergencyStop(w http.ResponseWriter, r *http.Request) {
	if err := h.riskService.EmergencyStop(r.Context()); err != nil {
		h.respondEngineError(w, "Emergency stop failed", err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Emergency stop executed, all structures closed",
	})
}

// ResumeTrading возобновляет торговлю после аварийной остановки
//
// POST /api/v1/risk/resume
//
// Снимает флаг аварийной остановки. Требует явного действия оператора:
// автоматического возобновления после emergency stop нет.
//
// HTTP коды:
// - 200 OK: торговля возобновлена
// - 503 Service Unavailable: ядро не запущено
func (h *RiskHandler) ResumeTrading(w http.ResponseWriter, r *http.Request) {
	if err := h.riskService.ResumeTrading(); err != nil {
		h.respondEngineError(w, "Failed to resume trading", err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Trading resumed",
	})
}

// PauseScan приостанавливает сканер новых входов
//
// POST /api/v1/scan/pause
//
// Мониторинг открытых позиций продолжается: TP/SL/экспирация
// отрабатывают как обычно, пауза влияет только на новые входы.
//
// HTTP коды:
// - 200 OK: сканер приостановлен
// - 503 Service Unavailable: ядро не запущено
func (h *RiskHandler) PauseScan(w http.ResponseWriter, r *http.Request) {
	if err := h.riskService.PauseScan(); err != nil {
		h.respondEngineError(w, "Failed to pause scan", err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Scan paused",
	})
}

// ResumeScan возобновляет сканер новых входов
//
// POST /api/v1/scan/resume
//
// HTTP коды:
// - 200 OK: сканер возобновлен
// - 503 Service Unavailable: ядро не запущено
func (h *RiskHandler) ResumeScan(w http.ResponseWriter, r *http.Request) {
	if err := h.riskService.ResumeScan(); err != nil {
		h.respondEngineError(w, "Failed to resume scan", err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Scan resumed",
	})
}

// ScanNow запускает внеочередной цикл сканирования
//
// POST /api/v1/scan/now
//
// Выполняет полный цикл сканирования немедленно, не дожидаясь таймера.
// Пауза сканера и аварийная остановка учитываются как обычно.
//
// HTTP коды:
// - 200 OK: цикл выполнен
// - 503 Service Unavailable: ядро не запущено
// - 500 Internal Server Error: ошибка цикла сканирования
func (h *RiskHandler) ScanNow(w http.ResponseWriter, r *http.Request) {
	if err := h.riskService.ScanNow(r.Context()); err != nil {
		h.respondEngineError(w, "Scan failed", err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Scan cycle completed",
	})
}

// respondEngineError маппит ошибки ядра на HTTP коды
func (h *RiskHandler) respondEngineError(w http.ResponseWriter, prefix string, err error) {
	if errors.Is(err, service.ErrEngineUnavailable) {
		h.respondWithError(w, http.StatusServiceUnavailable, "Trading engine is not running")
		return
	}
	h.respondWithError(w, http.StatusInternalServerError, prefix+": "+err.Error())
}

// respondWithError отправляет JSON ошибку
func (h *RiskHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON отправляет JSON ответ
func (h *RiskHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
