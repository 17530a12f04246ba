package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"condor/internal/models"
)

// Ошибки репозитория структур
var (
	ErrStructureNotFound = errors.New("structure not found")
	ErrStructureExists   = errors.New("structure already exists")
)

// condorLegs - сериализация четырёх ног в одну JSONB-колонку.
// Ноги неразделимы от структуры, отдельная таблица не нужна
type condorLegs struct {
	LongPut   models.Leg `json:"long_put"`
	ShortPut  models.Leg `json:"short_put"`
	ShortCall models.Leg `json:"short_call"`
	LongCall  models.Leg `json:"long_call"`
}

// StructureRepository - работа с таблицей structures
type StructureRepository struct {
	db *sql.DB
}

// NewStructureRepository создает новый экземпляр репозитория
func NewStructureRepository(db *sql.DB) *StructureRepository {
	return &StructureRepository{db: db}
}

const structureColumns = `id, currency, expiration, legs, entry_spot, entered_at, credit, max_loss, max_profit, size, take_profit_target, stop_loss_target, status, closed_at, close_reason, realized_pnl`

// Create сохраняет новую структуру
func (r *StructureRepository) Create(c *models.Condor) error {
	legsJSON, err := marshalLegs(c)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO structures (` + structureColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = r.db.Exec(
		query,
		c.ID,
		c.Currency,
		c.Expiration,
		legsJSON,
		c.EntrySpot,
		c.EnteredAt,
		c.Credit,
		c.MaxLoss,
		c.MaxProfit,
		c.Size,
		c.TakeProfitTarget,
		c.StopLossTarget,
		c.Status,
		c.ClosedAt,
		c.CloseReason,
		c.RealizedPnl,
	)

	if err != nil {
		if isStructureUniqueViolation(err) {
			return ErrStructureExists
		}
		return err
	}

	return nil
}

// Upsert сохраняет структуру, перезаписывая существующую запись.
// Используется при периодическом сбросе состояния в БД
func (r *StructureRepository) Upsert(c *models.Condor) error {
	legsJSON, err := marshalLegs(c)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO structures (` + structureColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    closed_at = EXCLUDED.closed_at,
		    close_reason = EXCLUDED.close_reason,
		    realized_pnl = EXCLUDED.realized_pnl`

	_, err = r.db.Exec(
		query,
		c.ID,
		c.Currency,
		c.Expiration,
		legsJSON,
		c.EntrySpot,
		c.EnteredAt,
		c.Credit,
		c.MaxLoss,
		c.MaxProfit,
		c.Size,
		c.TakeProfitTarget,
		c.StopLossTarget,
		c.Status,
		c.ClosedAt,
		c.CloseReason,
		c.RealizedPnl,
	)
	return err
}

// GetByID возвращает структуру по ID
func (r *StructureRepository) GetByID(id string) (*models.Condor, error) {
	query := `
		SELECT ` + structureColumns + `
		FROM structures
		WHERE id = $1`

	c, err := scanStructure(r.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStructureNotFound
		}
		return nil, err
	}
	return c, nil
}

// GetAll возвращает структуры, свежие сверху
func (r *StructureRepository) GetAll(limit int) ([]*models.Condor, error) {
	query := `
		SELECT ` + structureColumns + `
		FROM structures
		ORDER BY entered_at DESC
		LIMIT $1`

	return r.queryStructures(query, limit)
}

// GetByStatus возвращает структуры с определенным статусом
func (r *StructureRepository) GetByStatus(status string) ([]*models.Condor, error) {
	query := `
		SELECT ` + structureColumns + `
		FROM structures
		WHERE status = $1
		ORDER BY entered_at DESC`

	return r.queryStructures(query, status)
}

// GetActive возвращает структуры, требующие мониторинга
func (r *StructureRepository) GetActive() ([]*models.Condor, error) {
	query := `
		SELECT ` + structureColumns + `
		FROM structures
		WHERE status IN ($1, $2, $3)
		ORDER BY entered_at DESC`

	return r.queryStructures(query,
		models.StatusOpen, models.StatusClosing, models.StatusPartiallyClosed)
}

// GetClosedInTimeRange возвращает закрытые структуры за период
func (r *StructureRepository) GetClosedInTimeRange(from, to time.Time) ([]*models.Condor, error) {
	query := `
		SELECT ` + structureColumns + `
		FROM structures
		WHERE status = $1 AND closed_at >= $2 AND closed_at <= $3
		ORDER BY closed_at DESC`

	return r.queryStructures(query, models.StatusClosed, from, to)
}

// UpdateStatus обновляет статус структуры
func (r *StructureRepository) UpdateStatus(id, status string) error {
	query := `
		UPDATE structures
		SET status = $1
		WHERE id = $2`

	result, err := r.db.Exec(query, status, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrStructureNotFound
	}

	return nil
}

// MarkClosed фиксирует закрытие структуры
func (r *StructureRepository) MarkClosed(id, reason string, pnl float64, closedAt time.Time) error {
	query := `
		UPDATE structures
		SET status = $1, close_reason = $2, realized_pnl = $3, closed_at = $4
		WHERE id = $5`

	result, err := r.db.Exec(query, models.StatusClosed, reason, pnl, closedAt, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrStructureNotFound
	}

	return nil
}

// Count возвращает общее количество структур
func (r *StructureRepository) Count() (int, error) {
	query := `SELECT COUNT(*) FROM structures`

	var count int
	err := r.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// CountByStatus возвращает количество структур с определенным статусом
func (r *StructureRepository) CountByStatus(status string) (int, error) {
	query := `SELECT COUNT(*) FROM structures WHERE status = $1`

	var count int
	err := r.db.QueryRow(query, status).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// DeleteOlderThan удаляет закрытые структуры старше указанной даты
func (r *StructureRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	query := `DELETE FROM structures WHERE closed_at IS NOT NULL AND closed_at < $1`

	result, err := r.db.Exec(query, timestamp)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// queryStructures выполняет запрос и сканирует список структур
func (r *StructureRepository) queryStructures(query string, args ...interface{}) ([]*models.Condor, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var structures []*models.Condor
	for rows.Next() {
		c, err := scanStructure(rows)
		if err != nil {
			return nil, err
		}
		structures = append(structures, c)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return structures, nil
}

// rowScanner покрывает *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanStructure сканирует одну строку в структуру
func scanStructure(row rowScanner) (*models.Condor, error) {
	c := &models.Condor{}
	var legsJSON []byte
	var closeReason sql.NullString

	err := row.Scan(
		&c.ID,
		&c.Currency,
		&c.Expiration,
		&legsJSON,
		&c.EntrySpot,
		&c.EnteredAt,
		&c.Credit,
		&c.MaxLoss,
		&c.MaxProfit,
		&c.Size,
		&c.TakeProfitTarget,
		&c.StopLossTarget,
		&c.Status,
		&c.ClosedAt,
		&closeReason,
		&c.RealizedPnl,
	)
	if err != nil {
		return nil, err
	}

	c.CloseReason = closeReason.String

	var legs condorLegs
	if err := json.Unmarshal(legsJSON, &legs); err != nil {
		return nil, err
	}
	c.LongPut = legs.LongPut
	c.ShortPut = legs.ShortPut
	c.ShortCall = legs.ShortCall
	c.LongCall = legs.LongCall

	return c, nil
}

// marshalLegs сериализует ноги структуры в JSON для хранения
func marshalLegs(c *models.Condor) ([]byte, error) {
	return json.Marshal(condorLegs{
		LongPut:   c.LongPut,
		ShortPut:  c.ShortPut,
		ShortCall: c.ShortCall,
		LongCall:  c.LongCall,
	})
}

// isStructureUniqueViolation проверяет, является ли ошибка нарушением UNIQUE constraint
func isStructureUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "23505")
}
