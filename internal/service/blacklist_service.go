package service

import (
	"errors"
	"strings"
	"time"

	"condor/internal/models"
	"condor/internal/repository"
)

// Ошибки сервиса черного списка
var (
	ErrBlacklistCurrencyEmpty   = errors.New("currency cannot be empty")
	ErrBlacklistExpirationEmpty = errors.New("expiration cannot be empty")
	ErrBlacklistEntryExists     = errors.New("expiration already in blacklist")
	ErrBlacklistEntryNotFound   = errors.New("blacklist entry not found")
)

// BlacklistService предоставляет бизнес-логику для управления черным списком.
//
// Черный список действует на уровне экспираций: занесённая пара
// валюта+экспирация пропускается сканером при поиске кандидатов
// (например, экспирации, попадающие на даты макро-событий).
// На уже открытые структуры список не влияет.
type BlacklistService struct {
	blacklistRepo BlacklistRepositoryInterface
}

// NewBlacklistService создает новый экземпляр BlacklistService
func NewBlacklistService(blacklistRepo BlacklistRepositoryInterface) *BlacklistService {
	return &BlacklistService{
		blacklistRepo: blacklistRepo,
	}
}

// AddToBlacklist добавляет экспирацию в черный список.
//
// Параметры:
// - currency: базовая валюта (например, "BTC")
// - expiration: метка экспирации (например, "27MAR26")
// - reason: причина добавления (опционально, заметка оператора)
//
// Валюта и экспирация приводятся к верхнему регистру
func (s *BlacklistService) AddToBlacklist(currency, expiration, reason string) (*models.BlacklistEntry, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return nil, ErrBlacklistCurrencyEmpty
	}

	expiration = strings.ToUpper(strings.TrimSpace(expiration))
	if expiration == "" {
		return nil, ErrBlacklistExpirationEmpty
	}

	entry := &models.BlacklistEntry{
		Currency:   currency,
		Expiration: expiration,
		Reason:     strings.TrimSpace(reason),
	}

	if err := s.blacklistRepo.Create(entry); err != nil {
		if errors.Is(err, repository.ErrBlacklistEntryExists) {
			return nil, ErrBlacklistEntryExists
		}
		return nil, err
	}

	return entry, nil
}

// GetBlacklist возвращает весь черный список (новые сверху)
func (s *BlacklistService) GetBlacklist() ([]*models.BlacklistEntry, error) {
	entries, err := s.blacklistRepo.GetAll()
	if err != nil {
		return nil, err
	}

	// Гарантируем возврат пустого массива вместо nil
	if entries == nil {
		entries = []*models.BlacklistEntry{}
	}

	return entries, nil
}

// RemoveFromBlacklist удаляет запись из черного списка по ID
func (s *BlacklistService) RemoveFromBlacklist(id int) error {
	err := s.blacklistRepo.Delete(id)
	if err != nil {
		if errors.Is(err, repository.ErrBlacklistEntryNotFound) {
			return ErrBlacklistEntryNotFound
		}
		return err
	}

	return nil
}

// IsBlacklisted проверяет, занесена ли экспирация в черный список.
//
// Используется сканером перед построением кандидата
func (s *BlacklistService) IsBlacklisted(currency, expiration string) (bool, error) {
	currency = strings.TrimSpace(currency)
	expiration = strings.TrimSpace(expiration)
	if currency == "" || expiration == "" {
		return false, nil
	}

	return s.blacklistRepo.IsBlacklisted(currency, expiration)
}

// IsExpirationBlacklisted проверяет экспирацию, заданную временем.
//
// Подключается к ядру как фильтр сканера (Engine.SetBlacklist).
// Ошибка БД трактуется как «не в списке»: сканер не должен
// останавливаться из-за недоступности черного списка
func (s *BlacklistService) IsExpirationBlacklisted(currency string, expiration time.Time) bool {
	blacklisted, err := s.IsBlacklisted(currency, models.ExpirationLabel(expiration))
	if err != nil {
		return false
	}
	return blacklisted
}

// GetCount возвращает количество записей в черном списке
func (s *BlacklistService) GetCount() (int, error) {
	return s.blacklistRepo.Count()
}
