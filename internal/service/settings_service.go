package service

import (
	"errors"
	"strings"

	"condor/internal/models"
	"condor/pkg/crypto"
)

// Ошибки сервиса настроек
var (
	ErrInvalidMaxOpenStructures = errors.New("max_open_structures must be >= 1 or null")
	ErrInvalidExchange          = errors.New("exchange must be deribit or deribit-testnet")
	ErrCredentialsIncomplete    = errors.New("api key and secret must be set together")
)

// Поддерживаемые биржи
var supportedExchanges = map[string]bool{
	"deribit":         true,
	"deribit-testnet": true,
}

// SettingsService предоставляет бизнес-логику для управления глобальными настройками.
//
// Отвечает за:
// - Получение и обновление глобальных настроек бота
// - Шифрование ключей API биржи перед записью в БД (AES-256-GCM)
// - Управление notification_prefs, max_open_structures, scan_paused
type SettingsService struct {
	settingsRepo  SettingsRepositoryInterface
	encryptionKey []byte
}

// NewSettingsService создает новый экземпляр SettingsService
func NewSettingsService(settingsRepo SettingsRepositoryInterface, encryptionKey []byte) *SettingsService {
	return &SettingsService{
		settingsRepo:  settingsRepo,
		encryptionKey: encryptionKey,
	}
}

// GetSettings возвращает текущие глобальные настройки.
//
// Если записи в БД нет, создается запись с дефолтными значениями.
// Ключи API не покидают сервис: в модели они помечены json:"-"
func (s *SettingsService) GetSettings() (*models.Settings, error) {
	return s.settingsRepo.Get()
}

// UpdateSettingsRequest представляет запрос на обновление настроек.
// Все поля опциональны - обновляются только переданные.
type UpdateSettingsRequest struct {
	ScanPaused        *bool                           `json:"scan_paused,omitempty"`
	MaxOpenStructures *int                            `json:"max_open_structures,omitempty"`
	NotificationPrefs *models.NotificationPreferences `json:"notification_prefs,omitempty"`
	// Флаг для явного сброса max_open_structures в null (ограничение только риском)
	ClearMaxOpenStructures bool `json:"clear_max_open_structures,omitempty"`
}

// UpdateSettings обновляет глобальные настройки.
//
// Принимает только те поля, которые нужно обновить.
//
// Правила валидации:
// - max_open_structures: >= 1 или null (ограничение только риск-бюджетом)
// - notification_prefs: все поля bool, валидация не требуется
func (s *SettingsService) UpdateSettings(req *UpdateSettingsRequest) (*models.Settings, error) {
	settings, err := s.settingsRepo.Get()
	if err != nil {
		return nil, err
	}

	if req.ScanPaused != nil {
		settings.ScanPaused = *req.ScanPaused
	}

	if req.ClearMaxOpenStructures {
		settings.MaxOpenStructures = nil
	} else if req.MaxOpenStructures != nil {
		if *req.MaxOpenStructures < 1 {
			return nil, ErrInvalidMaxOpenStructures
		}
		settings.MaxOpenStructures = req.MaxOpenStructures
	}

	if req.NotificationPrefs != nil {
		settings.NotificationPrefs = *req.NotificationPrefs
	}

	if err := s.settingsRepo.Update(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// UpdateCredentials шифрует и сохраняет ключи API биржи.
//
// Ключи шифруются AES-256-GCM перед записью в БД и никогда
// не хранятся в открытом виде
func (s *SettingsService) UpdateCredentials(exchange, apiKey, apiSecret string) error {
	exchange = strings.ToLower(strings.TrimSpace(exchange))
	if !supportedExchanges[exchange] {
		return ErrInvalidExchange
	}

	apiKey = strings.TrimSpace(apiKey)
	apiSecret = strings.TrimSpace(apiSecret)
	if apiKey == "" || apiSecret == "" {
		return ErrCredentialsIncomplete
	}

	encryptedKey, err := crypto.Encrypt(apiKey, s.encryptionKey)
	if err != nil {
		return err
	}

	encryptedSecret, err := crypto.Encrypt(apiSecret, s.encryptionKey)
	if err != nil {
		return err
	}

	return s.settingsRepo.UpdateCredentials(exchange, encryptedKey, encryptedSecret)
}

// GetDecryptedCredentials возвращает расшифрованные ключи API.
//
// Используется только при подключении к бирже в main.go,
// наружу через API не отдаётся
func (s *SettingsService) GetDecryptedCredentials() (exchange, apiKey, apiSecret string, err error) {
	settings, err := s.settingsRepo.Get()
	if err != nil {
		return "", "", "", err
	}

	if settings.APIKey == "" || settings.APISecret == "" {
		return settings.Exchange, "", "", nil
	}

	apiKey, err = crypto.Decrypt(settings.APIKey, s.encryptionKey)
	if err != nil {
		return "", "", "", err
	}

	apiSecret, err = crypto.Decrypt(settings.APISecret, s.encryptionKey)
	if err != nil {
		return "", "", "", err
	}

	return settings.Exchange, apiKey, apiSecret, nil
}

// UpdateNotificationPrefs обновляет только настройки уведомлений
func (s *SettingsService) UpdateNotificationPrefs(prefs models.NotificationPreferences) error {
	return s.settingsRepo.UpdateNotificationPrefs(prefs)
}

// UpdateMaxOpenStructures обновляет лимит открытых структур.
//
// Передайте nil для снятия ограничения (остаётся только риск-бюджет).
// Значение должно быть >= 1 или nil
func (s *SettingsService) UpdateMaxOpenStructures(max *int) error {
	if max != nil && *max < 1 {
		return ErrInvalidMaxOpenStructures
	}
	return s.settingsRepo.UpdateMaxOpenStructures(max)
}

// UpdateScanPaused включает или выключает сканирование новых структур
func (s *SettingsService) UpdateScanPaused(paused bool) error {
	return s.settingsRepo.UpdateScanPaused(paused)
}

// GetNotificationPrefs возвращает только настройки уведомлений
func (s *SettingsService) GetNotificationPrefs() (*models.NotificationPreferences, error) {
	return s.settingsRepo.GetNotificationPrefs()
}

// ResetToDefaults сбрасывает настройки к значениям по умолчанию.
//
// Дефолтные значения:
// - scan_paused: false
// - max_open_structures: null (ограничение только риск-бюджетом)
// - notification_prefs: все типы включены (true)
//
// Ключи API при сбросе сохраняются
func (s *SettingsService) ResetToDefaults() error {
	return s.settingsRepo.ResetToDefaults()
}
