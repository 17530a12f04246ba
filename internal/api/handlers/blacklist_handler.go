package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"condor/internal/models"
	"condor/internal/service"

	"github.com/gorilla/mux"
)

// BlacklistHandler обрабатывает HTTP запросы для черного списка экспираций
//
// Endpoints:
// - GET /api/v1/blacklist - получить черный список
// - POST /api/v1/blacklist - добавить экспирацию в черный список
// - DELETE /api/v1/blacklist/{id} - удалить запись из черного списка
//
// Назначение:
// Оператор исключает отдельные экспирации из сканирования
// (например, экспирации в даты макро-событий: FOMC, CPI, халвинг).
// Сканер пропускает занесенные экспирации, открытые структуры
// на них продолжают отслеживаться.
type BlacklistHandler struct {
	blacklistService service.BlacklistServiceInterface
}

// NewBlacklistHandler создает новый BlacklistHandler с внедрением зависимости
func NewBlacklistHandler(blacklistService service.BlacklistServiceInterface) *BlacklistHandler {
	return &BlacklistHandler{
		blacklistService: blacklistService,
	}
}

// GetBlacklistResponse представляет ответ списка записей
type GetBlacklistResponse struct {
	Entries []*models.BlacklistEntry `json:"entries"`
	Total   int                      `json:"total"`
}

// GetBlacklist возвращает все записи черного списка
//
// GET /api/v1/blacklist
//
// HTTP коды:
// - 200 OK: успешно (пустой массив если список пуст)
// - 500 Internal Server Error: ошибка сервера
func (h *BlacklistHandler) GetBlacklist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.blacklistService.GetBlacklist()
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, "Failed to get blacklist: "+err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, GetBlacklistResponse{
		Entries: entries,
		Total:   len(entries),
	})
}

// AddToBlacklistRequest представляет тело запроса добавления
type AddToBlacklistRequest struct {
	Currency   string `json:"currency"`   // BTC, ETH
	Expiration string `json:"expiration"` // 28MAR25
	Reason     string `json:"reason,omitempty"`
}

// AddToBlacklist добавляет экспирацию в черный список
//
// POST /api/v1/blacklist
//
// Request body:
//
//	{"currency": "BTC", "expiration": "28MAR25", "reason": "FOMC week"}
//
// Валюта и экспирация нормализуются к верхнему регистру.
//
// HTTP коды:
// - 201 Created: запись добавлена
// - 400 Bad Request: пустая валюта или экспирация
// - 409 Conflict: такая запись уже существует
// - 500 Internal Server Error: ошибка сервера
func (h *BlacklistHandler) AddToBlacklist(w http.ResponseWriter, r *http.Request) {
	var req AddToBlacklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	entry, err := h.blacklistService.AddToBlacklist(req.Currency, req.Expiration, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBlacklistCurrencyEmpty):
			h.respondWithError(w, http.StatusBadRequest, "Currency is required")
		case errors.Is(err, service.ErrBlacklistExpirationEmpty):
			h.respondWithError(w, http.StatusBadRequest, "Expiration is required")
		case errors.Is(err, service.ErrBlacklistEntryExists):
			h.respondWithError(w, http.StatusConflict, "Entry already blacklisted")
		default:
			h.respondWithError(w, http.StatusInternalServerError, "Failed to add to blacklist: "+err.Error())
		}
		return
	}

	h.respondWithJSON(w, http.StatusCreated, entry)
}

// RemoveFromBlacklist удаляет запись из черного списка
//
// DELETE /api/v1/blacklist/{id}
//
// HTTP коды:
// - 200 OK: запись удалена
// - 400 Bad Request: нечисловой ID
// - 404 Not Found: запись не найдена
// - 500 Internal Server Error: ошибка сервера
func (h *BlacklistHandler) RemoveFromBlacklist(w http.ResponseWriter, r *http.Request) {
	idParam := mux.Vars(r)["id"]

	id, err := strconv.Atoi(idParam)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid blacklist entry ID: "+idParam)
		return
	}

	if err := h.blacklistService.RemoveFromBlacklist(id); err != nil {
		if errors.Is(err, service.ErrBlacklistEntryNotFound) {
			h.respondWithError(w, http.StatusNotFound, "Blacklist entry not found")
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, "Failed to remove from blacklist: "+err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Entry removed from blacklist",
	})
}

// respondWithError отправляет JSON ошибку
func (h *BlacklistHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON отправляет JSON ответ
func (h *BlacklistHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
