package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"condor/internal/models"
	"condor/internal/service"
)

// SettingsHandler обрабатывает HTTP запросы для настроек бота
//
// Endpoints:
// - GET /api/v1/settings - получить текущие настройки
// - PATCH /api/v1/settings - частичное обновление настроек
// - PUT /api/v1/settings/credentials - обновить API ключи биржи
// - POST /api/v1/settings/reset - сброс настроек к значениям по умолчанию
//
// Назначение:
// Управление глобальными настройками: пауза сканера, лимит открытых
// структур, фильтры уведомлений, учетные данные биржи.
// API ключи шифруются сервисом перед записью и никогда не возвращаются
// в ответах (поле исключено из JSON на уровне модели).
type SettingsHandler struct {
	settingsService service.SettingsServiceInterface
}

// NewSettingsHandler создает новый SettingsHandler с внедрением зависимости
func NewSettingsHandler(settingsService service.SettingsServiceInterface) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
	}
}

// GetSettings возвращает текущие настройки
//
// GET /api/v1/settings
//
// Response 200 OK:
//
//	{
//	  "id": 1,
//	  "exchange": "deribit-testnet",
//	  "scan_paused": false,
//	  "max_open_structures": null,
//	  "notification_prefs": {"open": true, "close": true, ...},
//	  "updated_at": "2026-03-01T12:00:00Z"
//	}
//
// HTTP коды:
// - 200 OK: успешно
// - 500 Internal Server Error: ошибка сервера
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsService.GetSettings()
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, "Failed to get settings: "+err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, settings)
}

// UpdateSettingsRequestDTO представляет тело PATCH запроса настроек.
// Отсутствующие поля не изменяются.
type UpdateSettingsRequestDTO struct {
	ScanPaused             *bool                           `json:"scan_paused,omitempty"`
	MaxOpenStructures      *int                            `json:"max_open_structures,omitempty"`
	ClearMaxOpenStructures bool                            `json:"clear_max_open_structures,omitempty"`
	NotificationPrefs      *models.NotificationPreferences `json:"notification_prefs,omitempty"`
}

// UpdateSettings выполняет частичное обновление настроек
//
// PATCH /api/v1/settings
//
// Request body (все поля опциональны):
//
//	{
//	  "scan_paused": true,
//	  "max_open_structures": 5,
//	  "clear_max_open_structures": false,
//	  "notification_prefs": {"open": true, ...}
//	}
//
// Для снятия лимита открытых структур передайте
// clear_max_open_structures: true (null в max_open_structures
// неотличим от отсутствия поля).
//
// HTTP коды:
// - 200 OK: успешно, возвращает обновленные настройки
// - 400 Bad Request: невалидное тело или max_open_structures < 1
// - 500 Internal Server Error: ошибка сервера
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var dto UpdateSettingsRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	settings, err := h.settingsService.UpdateSettings(&service.UpdateSettingsRequest{
		ScanPaused:             dto.ScanPaused,
		MaxOpenStructures:      dto.MaxOpenStructures,
		ClearMaxOpenStructures: dto.ClearMaxOpenStructures,
		NotificationPrefs:      dto.NotificationPrefs,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidMaxOpenStructures) {
			h.respondWithError(w, http.StatusBadRequest, "max_open_structures must be at least 1")
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, "Failed to update settings: "+err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, settings)
}

// UpdateCredentialsRequest представляет тело запроса обновления ключей
type UpdateCredentialsRequest struct {
	Exchange  string `json:"exchange"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// UpdateCredentials обновляет учетные данные биржи
//
// PUT /api/v1/settings/credentials
//
// Request body:
//
//	{
//	  "exchange": "deribit-testnet",
//	  "api_key": "...",
//	  "api_secret": "..."
//	}
//
// Ключи шифруются AES-256-GCM перед записью в БД.
// Новые ключи применяются при следующем переподключении к бирже.
//
// HTTP коды:
// - 200 OK: ключи сохранены
// - 400 Bad Request: неподдерживаемая биржа или неполные данные
// - 500 Internal Server Error: ошибка шифрования или записи
func (h *SettingsHandler) UpdateCredentials(w http.ResponseWriter, r *http.Request) {
	var req UpdateCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.settingsService.UpdateCredentials(req.Exchange, req.APIKey, req.APISecret); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidExchange):
			h.respondWithError(w, http.StatusBadRequest, "Unsupported exchange: "+req.Exchange)
		case errors.Is(err, service.ErrCredentialsIncomplete):
			h.respondWithError(w, http.StatusBadRequest, "Both api_key and api_secret are required")
		default:
			h.respondWithError(w, http.StatusInternalServerError, "Failed to update credentials: "+err.Error())
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Credentials updated successfully",
	})
}

// ResetSettings сбрасывает настройки к значениям по умолчанию
//
// POST /api/v1/settings/reset
//
// Сбрасывает паузу сканера, лимит структур и фильтры уведомлений.
// API ключи биржи сохраняются.
//
// HTTP коды:
// - 200 OK: настройки сброшены
// - 500 Internal Server Error: ошибка сервера
func (h *SettingsHandler) ResetSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.settingsService.ResetToDefaults(); err != nil {
		h.respondWithError(w, http.StatusInternalServerError, "Failed to reset settings: "+err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Settings reset to defaults",
	})
}

// respondWithError отправляет JSON ошибку
func (h *SettingsHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON отправляет JSON ответ
func (h *SettingsHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
