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

// StructureHandler обрабатывает HTTP запросы для структур (кондоров)
//
// Endpoints:
// - GET /api/v1/structures - список структур
// - GET /api/v1/structures/active - только отслеживаемые структуры
// - GET /api/v1/structures/{id} - одна структура
// - GET /api/v1/structures/{id}/orders - ордера ног структуры
// - GET /api/v1/structures/{id}/pnl - текущий PnL активной структуры
// - POST /api/v1/structures/{id}/close - принудительное закрытие
//
// Назначение:
// Отдает дашборду состояние портфеля: открытые и исторические структуры,
// журнал исполнения ног, живой PnL из торгового ядра.
// Принудительное закрытие - единственная мутирующая операция,
// она делегируется ядру и проходит тот же порядок ног, что и авто-закрытие.
type StructureHandler struct {
	structureService service.StructureServiceInterface
}

// NewStructureHandler создает новый StructureHandler с внедрением зависимости
func NewStructureHandler(structureService service.StructureServiceInterface) *StructureHandler {
	return &StructureHandler{
		structureService: structureService,
	}
}

// GetStructuresResponse представляет ответ списка структур
type GetStructuresResponse struct {
	Structures []*models.Condor `json:"structures"`
	Total      int              `json:"total"`
}

// GetStructures возвращает список структур
//
// GET /api/v1/structures
//
// Query параметры:
// - limit (int): количество записей (по умолчанию 100, максимум 500)
//
// Для отслеживаемых структур статус берется из живого состояния ядра,
// а не из последнего снимка в БД.
//
// HTTP коды:
// - 200 OK: успешно
// - 500 Internal Server Error: ошибка сервера
func (h *StructureHandler) GetStructures(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	structures, err := h.structureService.GetStructures(limit)
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, "Failed to get structures: "+err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, GetStructuresResponse{
		Structures: structures,
		Total:      len(structures),
	})
}

// GetActiveStructures возвращает только отслеживаемые ядром структуры
//
// GET /api/v1/structures/active
//
// HTTP коды:
// - 200 OK: успешно
// - 500 Internal Server Error: ошибка сервера
func (h *StructureHandler) GetActiveStructures(w http.ResponseWriter, r *http.Request) {
	structures, err := h.structureService.GetActiveStructures()
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, "Failed to get active structures: "+err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, GetStructuresResponse{
		Structures: structures,
		Total:      len(structures),
	})
}

// GetStructure возвращает одну структуру по ID
//
// GET /api/v1/structures/{id}
//
// HTTP коды:
// - 200 OK: успешно
// - 404 Not Found: структура не найдена
// - 500 Internal Server Error: ошибка сервера
func (h *StructureHandler) GetStructure(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	structure, err := h.structureService.GetStructure(id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStructureNotFound):
			h.respondWithError(w, http.StatusNotFound, "Structure not found: "+id)
		case errors.Is(err, service.ErrStructureIDEmpty):
			h.respondWithError(w, http.StatusBadRequest, "Structure ID is required")
		default:
			h.respondWithError(w, http.StatusInternalServerError, "Failed to get structure: "+err.Error())
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, structure)
}

// GetStructureOrdersResponse представляет ответ списка ордеров структуры
type GetStructureOrdersResponse struct {
	StructureID string                   `json:"structure_id"`
	Orders      []*models.LegOrderRecord `json:"orders"`
	Total       int                      `json:"total"`
}

// GetStructureOrders возвращает журнал ордеров ног структуры
//
// GET /api/v1/structures/{id}/orders
//
// Ордера возвращаются в порядке размещения: сначала фаза open
// (long ноги раньше short), затем close или rollback.
//
// HTTP коды:
// - 200 OK: успешно (пустой массив если ордеров нет)
// - 400 Bad Request: пустой ID
// - 500 Internal Server Error: ошибка сервера
func (h *StructureHandler) GetStructureOrders(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	orders, err := h.structureService.GetStructureOrders(id)
	if err != nil {
		if errors.Is(err, service.ErrStructureIDEmpty) {
			h.respondWithError(w, http.StatusBadRequest, "Structure ID is required")
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, "Failed to get structure orders: "+err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, GetStructureOrdersResponse{
		StructureID: id,
		Orders:      orders,
		Total:       len(orders),
	})
}

// StructurePnlResponse представляет текущий PnL структуры
type StructurePnlResponse struct {
	StructureID string  `json:"structure_id"`
	Pnl         float64 `json:"pnl"` // в USD, по текущим маркам
}

// GetStructurePnl возвращает текущий нереализованный PnL структуры
//
// GET /api/v1/structures/{id}/pnl
//
// PnL считается ядром по живым котировкам. Доступен только для
// отслеживаемых структур; для закрытых используйте realized_pnl
// из самой структуры.
//
// HTTP коды:
// - 200 OK: успешно
// - 409 Conflict: структура не отслеживается ядром
// - 500 Internal Server Error: ошибка сервера
func (h *StructureHandler) GetStructurePnl(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	pnl, err := h.structureService.GetStructurePnl(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStructureNotActive):
			h.respondWithError(w, http.StatusConflict, "Structure is not tracked by the engine: "+id)
		case errors.Is(err, service.ErrStructureIDEmpty):
			h.respondWithError(w, http.StatusBadRequest, "Structure ID is required")
		default:
			h.respondWithError(w, http.StatusInternalServerError, "Failed to get structure pnl: "+err.Error())
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, StructurePnlResponse{
		StructureID: id,
		Pnl:         pnl,
	})
}

// ForceCloseResponse представляет ответ принудительного закрытия
type ForceCloseResponse struct {
	Message     string `json:"message"`
	StructureID string `json:"structure_id"`
}

// ForceClose принудительно закрывает структуру
//
// POST /api/v1/structures/{id}/close
//
// Закрытие проходит стандартный порядок ног (сначала short, затем long),
// причина фиксируется как manual. Операция необратима.
//
// HTTP коды:
// - 200 OK: закрытие выполнено
// - 400 Bad Request: пустой ID
// - 409 Conflict: структура не отслеживается ядром
// - 500 Internal Server Error: ошибка закрытия (часть ног могла остаться)
func (h *StructureHandler) ForceClose(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.structureService.ForceClose(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrStructureNotActive):
			h.respondWithError(w, http.StatusConflict, "Structure is not tracked by the engine: "+id)
		case errors.Is(err, service.ErrStructureIDEmpty):
			h.respondWithError(w, http.StatusBadRequest, "Structure ID is required")
		default:
			h.respondWithError(w, http.StatusInternalServerError, "Failed to close structure: "+err.Error())
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, ForceCloseResponse{
		Message:     "Structure closed successfully",
		StructureID: id,
	})
}

// respondWithError отправляет JSON ошибку
func (h *StructureHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON отправляет JSON ответ
func (h *StructureHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
