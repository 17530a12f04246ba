package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"condor/internal/models"
)

// Ошибки репозитория уведомлений
var (
	ErrNotificationNotFound = errors.New("notification not found")
)

const notificationColumns = `id, timestamp, type, severity, structure_id, message, meta`

// NotificationRepository - работа с таблицей notifications
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository создает новый экземпляр репозитория
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create создает уведомление
func (r *NotificationRepository) Create(n *models.Notification) error {
	query := `
		INSERT INTO notifications (timestamp, type, severity, structure_id, message, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	metaJSON, err := marshalMeta(n.Meta)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(
		query,
		n.Timestamp,
		n.Type,
		n.Severity,
		nullableString(n.StructureID),
		n.Message,
		metaJSON,
	).Scan(&n.ID)

	if err != nil {
		return err
	}

	return nil
}

// GetByID возвращает уведомление по ID
func (r *NotificationRepository) GetByID(id int) (*models.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE id = $1`

	n := &models.Notification{}
	err := scanNotification(r.db.QueryRow(query, id), n)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}

	return n, nil
}

// GetRecent возвращает последние N уведомлений
func (r *NotificationRepository) GetRecent(limit int) ([]*models.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		ORDER BY timestamp DESC
		LIMIT $1`

	return r.queryNotifications(query, limit)
}

// GetByTypes возвращает уведомления определенных типов
func (r *NotificationRepository) GetByTypes(types []string, limit int) ([]*models.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE type = ANY($1)
		ORDER BY timestamp DESC
		LIMIT $2`

	return r.queryNotifications(query, pq.Array(types), limit)
}

// GetByStructureID возвращает уведомления по конкретной структуре
func (r *NotificationRepository) GetByStructureID(structureID string) ([]*models.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE structure_id = $1
		ORDER BY timestamp DESC`

	return r.queryNotifications(query, structureID)
}

// GetSince возвращает уведомления начиная с указанного времени
func (r *NotificationRepository) GetSince(since time.Time) ([]*models.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE timestamp >= $1
		ORDER BY timestamp DESC`

	return r.queryNotifications(query, since)
}

// Count возвращает общее количество уведомлений
func (r *NotificationRepository) Count() (int, error) {
	query := `SELECT COUNT(*) FROM notifications`

	var count int
	err := r.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// CountByType возвращает количество уведомлений определенного типа
func (r *NotificationRepository) CountByType(notifType string) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE type = $1`

	var count int
	err := r.db.QueryRow(query, notifType).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// KeepRecent удаляет все уведомления кроме последних N
func (r *NotificationRepository) KeepRecent(keepCount int) (int64, error) {
	query := `
		DELETE FROM notifications
		WHERE id NOT IN (
			SELECT id FROM notifications
			ORDER BY timestamp DESC
			LIMIT $1
		)`

	result, err := r.db.Exec(query, keepCount)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// DeleteAll удаляет все уведомления
func (r *NotificationRepository) DeleteAll() error {
	query := `DELETE FROM notifications`

	_, err := r.db.Exec(query)
	return err
}

// DeleteOlderThan удаляет уведомления старше указанной даты
func (r *NotificationRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	query := `DELETE FROM notifications WHERE timestamp < $1`

	result, err := r.db.Exec(query, timestamp)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// queryNotifications выполняет запрос и сканирует список уведомлений
func (r *NotificationRepository) queryNotifications(query string, args ...interface{}) ([]*models.Notification, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		if err := scanNotification(rows, n); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return notifications, nil
}

// scanNotification сканирует одну строку в уведомление
func scanNotification(row rowScanner, n *models.Notification) error {
	var structureID sql.NullString
	var metaJSON []byte

	err := row.Scan(
		&n.ID,
		&n.Timestamp,
		&n.Type,
		&n.Severity,
		&structureID,
		&n.Message,
		&metaJSON,
	)
	if err != nil {
		return err
	}

	n.StructureID = structureID.String

	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &n.Meta); err != nil {
			return err
		}
	}

	return nil
}

// marshalMeta сериализует дополнительные данные для хранения в JSONB
func marshalMeta(meta map[string]interface{}) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	return json.Marshal(meta)
}

// nullableString возвращает NULL для пустой строки
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
