package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"condor/internal/models"
)

// Ошибки репозитория черного списка
var (
	ErrBlacklistEntryNotFound = errors.New("blacklist entry not found")
	ErrBlacklistEntryExists   = errors.New("blacklist entry already exists")
)

// BlacklistRepository - работа с таблицей blacklist
type BlacklistRepository struct {
	db *sql.DB
}

// NewBlacklistRepository создает новый экземпляр репозитория
func NewBlacklistRepository(db *sql.DB) *BlacklistRepository {
	return &BlacklistRepository{db: db}
}

// Create добавляет экспирацию в черный список
func (r *BlacklistRepository) Create(entry *models.BlacklistEntry) error {
	query := `
		INSERT INTO blacklist (currency, expiration, reason, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	entry.Currency = strings.ToUpper(entry.Currency)
	entry.Expiration = strings.ToUpper(entry.Expiration)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	err := r.db.QueryRow(
		query,
		entry.Currency,
		entry.Expiration,
		entry.Reason,
		entry.CreatedAt,
	).Scan(&entry.ID)

	if err != nil {
		if isBlacklistUniqueViolation(err) {
			return ErrBlacklistEntryExists
		}
		return err
	}

	return nil
}

// GetAll возвращает все записи черного списка
func (r *BlacklistRepository) GetAll() ([]*models.BlacklistEntry, error) {
	query := `
		SELECT id, currency, expiration, reason, created_at
		FROM blacklist
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.BlacklistEntry
	for rows.Next() {
		entry := &models.BlacklistEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.Currency,
			&entry.Expiration,
			&entry.Reason,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// IsBlacklisted проверяет наличие экспирации в черном списке
func (r *BlacklistRepository) IsBlacklisted(currency, expiration string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM blacklist WHERE currency = $1 AND expiration = $2)`

	var exists bool
	err := r.db.QueryRow(query, strings.ToUpper(currency), strings.ToUpper(expiration)).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

// Delete удаляет запись из черного списка
func (r *BlacklistRepository) Delete(id int) error {
	query := `DELETE FROM blacklist WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrBlacklistEntryNotFound
	}

	return nil
}

// Count возвращает количество записей в черном списке
func (r *BlacklistRepository) Count() (int, error) {
	query := `SELECT COUNT(*) FROM blacklist`

	var count int
	err := r.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// isBlacklistUniqueViolation проверяет нарушение уникальности currency+expiration
func isBlacklistUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "23505")
}
