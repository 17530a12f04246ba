package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"condor/internal/models"
	"condor/internal/repository"
)

// Ошибки сервиса структур
var (
	ErrStructureIDEmpty   = errors.New("structure id cannot be empty")
	ErrStructureNotFound  = errors.New("structure not found")
	ErrStructureNotActive = errors.New("structure is not active")
)

// StructureService предоставляет бизнес-логику для работы со структурами.
//
// Отвечает за:
// - Чтение структур (живое состояние ядра поверх истории в БД)
// - Принудительное закрытие структуры оператором
// - Историю ордеров по ногам структуры
// - Персистентность: запись структур и ордеров, приходящих из ядра
//
// Живое состояние (PnL, статус отслеживаемых структур) берётся из ядра,
// история - из БД. Для отслеживаемой структуры данные ядра приоритетнее
type StructureService struct {
	structureRepo StructureRepositoryInterface
	orderRepo     OrderRepositoryInterface
	engine        TradingEngine
}

// NewStructureService создает новый экземпляр StructureService
func NewStructureService(
	structureRepo StructureRepositoryInterface,
	orderRepo OrderRepositoryInterface,
	engine TradingEngine,
) *StructureService {
	return &StructureService{
		structureRepo: structureRepo,
		orderRepo:     orderRepo,
		engine:        engine,
	}
}

// GetStructures возвращает структуры из БД (новые сверху).
//
// Для отслеживаемых ядром структур статус подменяется живым
func (s *StructureService) GetStructures(limit int) ([]*models.Condor, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	structures, err := s.structureRepo.GetAll(limit)
	if err != nil {
		return nil, err
	}

	if structures == nil {
		structures = []*models.Condor{}
	}

	if s.engine != nil {
		for i, c := range structures {
			if live, ok := s.engine.GetStructure(c.ID); ok {
				structures[i] = live
			}
		}
	}

	return structures, nil
}

// GetActiveStructures возвращает структуры, отслеживаемые ядром
func (s *StructureService) GetActiveStructures() ([]*models.Condor, error) {
	if s.engine == nil {
		return s.structureRepo.GetActive()
	}

	structures := s.engine.TrackedStructures()
	if structures == nil {
		structures = []*models.Condor{}
	}
	return structures, nil
}

// GetStructure возвращает структуру по ID.
//
// Сначала живое состояние ядра, затем БД
func (s *StructureService) GetStructure(id string) (*models.Condor, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrStructureIDEmpty
	}

	if s.engine != nil {
		if live, ok := s.engine.GetStructure(id); ok {
			return live, nil
		}
	}

	c, err := s.structureRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrStructureNotFound) {
			return nil, ErrStructureNotFound
		}
		return nil, err
	}

	return c, nil
}

// GetStructurePnl возвращает живой PnL отслеживаемой структуры
func (s *StructureService) GetStructurePnl(ctx context.Context, id string) (float64, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, ErrStructureIDEmpty
	}

	if s.engine == nil {
		return 0, ErrStructureNotActive
	}

	if _, ok := s.engine.GetStructure(id); !ok {
		return 0, ErrStructureNotActive
	}

	return s.engine.GetPnl(ctx, id)
}

// ForceClose принудительно закрывает отслеживаемую структуру.
//
// Возвращает ErrStructureNotActive, если ядро её не отслеживает
func (s *StructureService) ForceClose(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrStructureIDEmpty
	}

	if s.engine == nil {
		return ErrStructureNotActive
	}

	if _, ok := s.engine.GetStructure(id); !ok {
		return ErrStructureNotActive
	}

	return s.engine.ForceClose(ctx, id)
}

// GetStructureOrders возвращает историю ордеров структуры в порядке размещения
func (s *StructureService) GetStructureOrders(id string) ([]*models.LegOrderRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrStructureIDEmpty
	}

	orders, err := s.orderRepo.GetByStructureID(id)
	if err != nil {
		return nil, err
	}

	if orders == nil {
		orders = []*models.LegOrderRecord{}
	}

	return orders, nil
}

// GetClosedInTimeRange возвращает закрытые структуры за период
func (s *StructureService) GetClosedInTimeRange(from, to time.Time) ([]*models.Condor, error) {
	structures, err := s.structureRepo.GetClosedInTimeRange(from, to)
	if err != nil {
		return nil, err
	}

	if structures == nil {
		structures = []*models.Condor{}
	}

	return structures, nil
}

// PersistStructure сохраняет снимок структуры в БД.
//
// Вызывается ядром при каждом изменении статуса (callback)
func (s *StructureService) PersistStructure(c *models.Condor) error {
	if c == nil {
		return nil
	}
	return s.structureRepo.Upsert(c)
}

// RecordOrder сохраняет запись об ордере ноги.
//
// Вызывается ядром после каждого размещённого ордера (callback)
func (s *StructureService) RecordOrder(order *models.LegOrderRecord) error {
	if order == nil {
		return nil
	}
	return s.orderRepo.Create(order)
}

// GetCount возвращает общее количество структур в БД
func (s *StructureService) GetCount() (int, error) {
	return s.structureRepo.Count()
}
