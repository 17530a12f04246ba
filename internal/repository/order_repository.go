package repository

import (
	"database/sql"
	"errors"
	"time"

	"condor/internal/models"
)

// Ошибки репозитория ордеров
var (
	ErrOrderNotFound = errors.New("order not found")
)

const legOrderColumns = `id, structure_id, instrument, role, side, phase, amount, price, price_avg, exchange_id, status, error_message, created_at, filled_at`

// OrderRepository - работа с таблицей leg_orders: история ордеров
// по ногам структур, включая откаты и закрытия
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create создает запись об ордере
func (r *OrderRepository) Create(order *models.LegOrderRecord) error {
	query := `
		INSERT INTO leg_orders (structure_id, instrument, role, side, phase, amount, price, price_avg, exchange_id, status, error_message, created_at, filled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}

	err := r.db.QueryRow(
		query,
		order.StructureID,
		order.Instrument,
		order.Role,
		order.Side,
		order.Phase,
		order.Amount,
		order.Price,
		order.PriceAvg,
		order.ExchangeID,
		order.Status,
		order.ErrorMessage,
		order.CreatedAt,
		order.FilledAt,
	).Scan(&order.ID)

	if err != nil {
		return err
	}

	return nil
}

// GetByID возвращает ордер по ID
func (r *OrderRepository) GetByID(id int) (*models.LegOrderRecord, error) {
	query := `
		SELECT ` + legOrderColumns + `
		FROM leg_orders
		WHERE id = $1`

	order := &models.LegOrderRecord{}
	err := scanLegOrder(r.db.QueryRow(query, id), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}

// GetByStructureID возвращает все ордера структуры в порядке размещения
func (r *OrderRepository) GetByStructureID(structureID string) ([]*models.LegOrderRecord, error) {
	query := `
		SELECT ` + legOrderColumns + `
		FROM leg_orders
		WHERE structure_id = $1
		ORDER BY created_at ASC`

	return r.queryOrders(query, structureID)
}

// GetRecent возвращает последние N ордеров
func (r *OrderRepository) GetRecent(limit int) ([]*models.LegOrderRecord, error) {
	query := `
		SELECT ` + legOrderColumns + `
		FROM leg_orders
		ORDER BY created_at DESC
		LIMIT $1`

	return r.queryOrders(query, limit)
}

// GetByStatus возвращает ордера с определенным статусом
func (r *OrderRepository) GetByStatus(status string) ([]*models.LegOrderRecord, error) {
	query := `
		SELECT ` + legOrderColumns + `
		FROM leg_orders
		WHERE status = $1
		ORDER BY created_at DESC`

	return r.queryOrders(query, status)
}

// GetByPhase возвращает ордера определенной фазы (open, close, rollback)
func (r *OrderRepository) GetByPhase(phase string, limit int) ([]*models.LegOrderRecord, error) {
	query := `
		SELECT ` + legOrderColumns + `
		FROM leg_orders
		WHERE phase = $1
		ORDER BY created_at DESC
		LIMIT $2`

	return r.queryOrders(query, phase, limit)
}

// Count возвращает общее количество ордеров
func (r *OrderRepository) Count() (int, error) {
	query := `SELECT COUNT(*) FROM leg_orders`

	var count int
	err := r.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// CountByStatus возвращает количество ордеров с определенным статусом
func (r *OrderRepository) CountByStatus(status string) (int, error) {
	query := `SELECT COUNT(*) FROM leg_orders WHERE status = $1`

	var count int
	err := r.db.QueryRow(query, status).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// DeleteByStructureID удаляет все ордера структуры
func (r *OrderRepository) DeleteByStructureID(structureID string) error {
	query := `DELETE FROM leg_orders WHERE structure_id = $1`

	_, err := r.db.Exec(query, structureID)
	return err
}

// DeleteOlderThan удаляет ордера старше указанной даты
func (r *OrderRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	query := `DELETE FROM leg_orders WHERE created_at < $1`

	result, err := r.db.Exec(query, timestamp)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// queryOrders выполняет запрос и сканирует список ордеров
func (r *OrderRepository) queryOrders(query string, args ...interface{}) ([]*models.LegOrderRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.LegOrderRecord
	for rows.Next() {
		order := &models.LegOrderRecord{}
		if err := scanLegOrder(rows, order); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// scanLegOrder сканирует одну строку в запись об ордере
func scanLegOrder(row rowScanner, order *models.LegOrderRecord) error {
	var errorMessage sql.NullString
	err := row.Scan(
		&order.ID,
		&order.StructureID,
		&order.Instrument,
		&order.Role,
		&order.Side,
		&order.Phase,
		&order.Amount,
		&order.Price,
		&order.PriceAvg,
		&order.ExchangeID,
		&order.Status,
		&errorMessage,
		&order.CreatedAt,
		&order.FilledAt,
	)
	if err != nil {
		return err
	}
	order.ErrorMessage = errorMessage.String
	return nil
}
