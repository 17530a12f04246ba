package bot

import "condor/internal/models"

// ValidTransitions определяет допустимые переходы между статусами структуры
var ValidTransitions = map[string][]string{
	models.StatusPending:         {models.StatusOpen, models.StatusRolledBack},
	models.StatusOpen:            {models.StatusClosing},
	models.StatusClosing:         {models.StatusClosed, models.StatusPartiallyClosed, models.StatusOpen}, // Open при неудачном закрытии всех ног
	models.StatusPartiallyClosed: {models.StatusClosing},                                                 // повторная попытка закрытия остатка
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StatusInfo возвращает описание статуса для UI
func StatusInfo(s string) string {
	switch s {
	case models.StatusPending:
		return "Opening structure legs..."
	case models.StatusOpen:
		return "Structure is open"
	case models.StatusClosing:
		return "Closing structure legs..."
	case models.StatusClosed:
		return "Structure is closed"
	case models.StatusPartiallyClosed:
		return "Partially closed! Manual intervention required"
	case models.StatusRolledBack:
		return "Entry cancelled, legs rolled back"
	default:
		return "Unknown status"
	}
}

// RequiresMonitoring возвращает true если структура требует мониторинга
func RequiresMonitoring(s string) bool {
	return s == models.StatusOpen || s == models.StatusClosing || s == models.StatusPartiallyClosed
}
