package service

import (
	"strings"

	"condor/internal/models"
)

// WebSocketBroadcaster - интерфейс для отправки WebSocket сообщений
//
// Позволяет избежать циклических зависимостей между пакетами
// и упрощает тестирование (можно подставить mock)
type WebSocketBroadcaster interface {
	BroadcastNotification(notif *models.Notification)
}

// NotificationService предоставляет бизнес-логику для управления уведомлениями.
//
// Отвечает за:
// - Создание уведомлений с проверкой настроек
// - Получение списка уведомлений с фильтрацией
// - Очистку журнала уведомлений
// - Broadcast уведомлений через WebSocket
//
// Сервис подключается к ядру как NotificationSink: каждое событие
// (открытие, закрытие, откат, отказ риск-менеджера) проходит здесь
type NotificationService struct {
	notificationRepo NotificationRepositoryInterface
	settingsRepo     SettingsRepositoryInterface
	wsHub            WebSocketBroadcaster
}

// NewNotificationService создает новый экземпляр NotificationService
func NewNotificationService(
	notificationRepo NotificationRepositoryInterface,
	settingsRepo SettingsRepositoryInterface,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		settingsRepo:     settingsRepo,
	}
}

// SetWebSocketHub устанавливает WebSocket hub для broadcast уведомлений.
//
// Вызывается после инициализации Hub в main.go:
//
//	notifService := service.NewNotificationService(notifRepo, settingsRepo)
//	notifService.SetWebSocketHub(wsHub)
func (s *NotificationService) SetWebSocketHub(hub WebSocketBroadcaster) {
	s.wsHub = hub
}

// CreateNotification создает новое уведомление.
//
// Перед созданием проверяет настройки уведомлений (notification_prefs).
// Если данный тип отключен в настройках, уведомление не создается.
//
// После успешного создания отправляет broadcast через WebSocket (если hub настроен)
func (s *NotificationService) CreateNotification(notif *models.Notification) error {
	enabled, err := s.isNotificationTypeEnabled(notif.Type)
	if err != nil {
		// При ошибке чтения настроек все равно создаем уведомление:
		// лучше уведомить, чем пропустить важное событие
	} else if !enabled {
		return nil
	}

	if err := s.notificationRepo.Create(notif); err != nil {
		return err
	}

	if s.wsHub != nil {
		s.wsHub.BroadcastNotification(notif)
	}

	return nil
}

// GetNotifications возвращает список уведомлений с фильтрацией.
//
// Параметры:
// - types: список типов для фильтрации (например: ["OPEN", "SL", "ROLLBACK"]),
//   пустой список - все типы
// - limit: максимальное количество записей (по умолчанию 100)
//
// Уведомления отсортированы по времени (новые сверху)
func (s *NotificationService) GetNotifications(types []string, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	normalizedTypes := make([]string, 0, len(types))
	for _, t := range types {
		normalized := strings.ToUpper(strings.TrimSpace(t))
		if normalized != "" && s.isValidNotificationType(normalized) {
			normalizedTypes = append(normalizedTypes, normalized)
		}
	}

	var notifications []*models.Notification
	var err error
	if len(normalizedTypes) > 0 {
		notifications, err = s.notificationRepo.GetByTypes(normalizedTypes, limit)
	} else {
		notifications, err = s.notificationRepo.GetRecent(limit)
	}
	if err != nil {
		return nil, err
	}

	if notifications == nil {
		notifications = []*models.Notification{}
	}

	return notifications, nil
}

// GetStructureNotifications возвращает уведомления по конкретной структуре
func (s *NotificationService) GetStructureNotifications(structureID string) ([]*models.Notification, error) {
	notifications, err := s.notificationRepo.GetByStructureID(structureID)
	if err != nil {
		return nil, err
	}

	if notifications == nil {
		notifications = []*models.Notification{}
	}

	return notifications, nil
}

// ClearNotifications очищает журнал уведомлений
func (s *NotificationService) ClearNotifications() error {
	return s.notificationRepo.DeleteAll()
}

// GetNotificationCount возвращает общее количество уведомлений
func (s *NotificationService) GetNotificationCount() (int, error) {
	return s.notificationRepo.Count()
}

// CleanupOld удаляет уведомления, оставляя только последние N записей
func (s *NotificationService) CleanupOld(keepCount int) (int64, error) {
	if keepCount <= 0 {
		keepCount = 100
	}
	return s.notificationRepo.KeepRecent(keepCount)
}

// isNotificationTypeEnabled проверяет, включен ли тип уведомлений в настройках
func (s *NotificationService) isNotificationTypeEnabled(notifType string) (bool, error) {
	prefs, err := s.settingsRepo.GetNotificationPrefs()
	if err != nil {
		return true, err // При ошибке считаем включенным
	}

	if prefs == nil {
		return true, nil
	}

	switch strings.ToUpper(notifType) {
	case models.NotificationTypeOpen:
		return prefs.Open, nil
	case models.NotificationTypeClose:
		return prefs.Close, nil
	case models.NotificationTypeTP:
		return prefs.TakeProfit, nil
	case models.NotificationTypeSL:
		return prefs.StopLoss, nil
	case models.NotificationTypeExpiry:
		return prefs.Expiry, nil
	case models.NotificationTypeRollback:
		return prefs.Rollback, nil
	case models.NotificationTypePartialClose:
		return prefs.PartialClose, nil
	case models.NotificationTypeRiskDenied:
		return prefs.RiskDenied, nil
	case models.NotificationTypeEmergency:
		return prefs.Emergency, nil
	case models.NotificationTypeError:
		return prefs.APIError, nil
	default:
		// Неизвестный тип - считаем включенным
		return true, nil
	}
}

// isValidNotificationType проверяет, является ли тип допустимым
func (s *NotificationService) isValidNotificationType(notifType string) bool {
	validTypes := map[string]bool{
		models.NotificationTypeOpen:         true,
		models.NotificationTypeClose:        true,
		models.NotificationTypeTP:           true,
		models.NotificationTypeSL:           true,
		models.NotificationTypeExpiry:       true,
		models.NotificationTypeRollback:     true,
		models.NotificationTypePartialClose: true,
		models.NotificationTypeRiskDenied:   true,
		models.NotificationTypeEmergency:    true,
		models.NotificationTypeError:        true,
	}
	return validTypes[strings.ToUpper(notifType)]
}
