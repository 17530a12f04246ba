package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"condor/internal/models"
)

// Настройки хранятся одной строкой с фиксированным id
const settingsRowID = 1

// SettingsRepository - работа с таблицей settings
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository создает новый экземпляр репозитория
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get возвращает настройки, создавая строку по умолчанию при первом обращении
func (r *SettingsRepository) Get() (*models.Settings, error) {
	query := `
		SELECT id, exchange, api_key, api_secret, scan_paused, max_open_structures, notification_prefs, updated_at
		FROM settings
		WHERE id = $1`

	s := &models.Settings{}
	var prefsJSON []byte
	err := r.db.QueryRow(query, settingsRowID).Scan(
		&s.ID,
		&s.Exchange,
		&s.APIKey,
		&s.APISecret,
		&s.ScanPaused,
		&s.MaxOpenStructures,
		&prefsJSON,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if err := r.createDefault(); err != nil {
				return nil, err
			}
			return r.Get()
		}
		return nil, err
	}

	if len(prefsJSON) > 0 {
		if err := json.Unmarshal(prefsJSON, &s.NotificationPrefs); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Update сохраняет настройки целиком
func (r *SettingsRepository) Update(s *models.Settings) error {
	query := `
		UPDATE settings
		SET exchange = $1, api_key = $2, api_secret = $3, scan_paused = $4,
		    max_open_structures = $5, notification_prefs = $6, updated_at = $7
		WHERE id = $8`

	prefsJSON, err := json.Marshal(s.NotificationPrefs)
	if err != nil {
		return err
	}

	s.UpdatedAt = time.Now()

	_, err = r.db.Exec(
		query,
		s.Exchange,
		s.APIKey,
		s.APISecret,
		s.ScanPaused,
		s.MaxOpenStructures,
		prefsJSON,
		s.UpdatedAt,
		settingsRowID,
	)

	return err
}

// UpdateCredentials обновляет зашифрованные ключи API
func (r *SettingsRepository) UpdateCredentials(exchange, apiKey, apiSecret string) error {
	query := `
		UPDATE settings
		SET exchange = $1, api_key = $2, api_secret = $3, updated_at = $4
		WHERE id = $5`

	_, err := r.db.Exec(query, exchange, apiKey, apiSecret, time.Now(), settingsRowID)
	return err
}

// UpdateScanPaused включает или выключает сканирование новых структур
func (r *SettingsRepository) UpdateScanPaused(paused bool) error {
	query := `
		UPDATE settings
		SET scan_paused = $1, updated_at = $2
		WHERE id = $3`

	_, err := r.db.Exec(query, paused, time.Now(), settingsRowID)
	return err
}

// UpdateMaxOpenStructures обновляет лимит открытых структур (nil убирает лимит)
func (r *SettingsRepository) UpdateMaxOpenStructures(max *int) error {
	query := `
		UPDATE settings
		SET max_open_structures = $1, updated_at = $2
		WHERE id = $3`

	_, err := r.db.Exec(query, max, time.Now(), settingsRowID)
	return err
}

// GetNotificationPrefs возвращает только настройки уведомлений
func (r *SettingsRepository) GetNotificationPrefs() (*models.NotificationPreferences, error) {
	s, err := r.Get()
	if err != nil {
		return nil, err
	}
	return &s.NotificationPrefs, nil
}

// UpdateNotificationPrefs обновляет настройки уведомлений
func (r *SettingsRepository) UpdateNotificationPrefs(prefs models.NotificationPreferences) error {
	query := `
		UPDATE settings
		SET notification_prefs = $1, updated_at = $2
		WHERE id = $3`

	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(query, prefsJSON, time.Now(), settingsRowID)
	return err
}

// ResetToDefaults сбрасывает настройки к значениям по умолчанию, сохраняя ключи API
func (r *SettingsRepository) ResetToDefaults() error {
	query := `
		UPDATE settings
		SET scan_paused = $1, max_open_structures = $2, notification_prefs = $3, updated_at = $4
		WHERE id = $5`

	prefsJSON, err := json.Marshal(defaultNotificationPrefs())
	if err != nil {
		return err
	}

	_, err = r.db.Exec(query, false, nil, prefsJSON, time.Now(), settingsRowID)
	return err
}

// createDefault создает строку настроек по умолчанию
func (r *SettingsRepository) createDefault() error {
	query := `
		INSERT INTO settings (id, exchange, api_key, api_secret, scan_paused, max_open_structures, notification_prefs, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	prefsJSON, err := json.Marshal(defaultNotificationPrefs())
	if err != nil {
		return err
	}

	_, err = r.db.Exec(query, settingsRowID, "deribit-testnet", "", "", false, nil, prefsJSON, time.Now())
	return err
}

// defaultNotificationPrefs - все типы уведомлений включены
func defaultNotificationPrefs() models.NotificationPreferences {
	return models.NotificationPreferences{
		Open:         true,
		Close:        true,
		TakeProfit:   true,
		StopLoss:     true,
		Expiry:       true,
		Rollback:     true,
		PartialClose: true,
		RiskDenied:   true,
		Emergency:    true,
		APIError:     true,
	}
}
