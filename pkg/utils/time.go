package utils

import (
	"fmt"
	"strings"
	"time"
)

// time.go - утилиты для работы со временем
//
// Назначение:
// Вспомогательные функции для временных операций: разбор экспираций
// опционных инструментов, расчёт времени до экспирации, агрегация
// статистики по периодам.
//
// Функции:
// - ParseExpiry: разбор тега экспирации (28MAR25) в момент экспирации
// - HoursToExpiry / DaysToExpiry: время до экспирации
// - GetDayStart / GetWeekStart / GetMonthStart: границы периодов статистики

// Deribit экспирирует опционы в 08:00 UTC
const expiryHourUTC = 8

// ParseExpiry разбирает тег экспирации формата DDMMMYY (28MAR25)
// и возвращает момент экспирации (08:00 UTC этого дня).
func ParseExpiry(tag string) (time.Time, error) {
	t, err := time.Parse("2Jan06", normalizeExpiryTag(tag))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry tag %q: %w", tag, err)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), expiryHourUTC, 0, 0, 0, time.UTC), nil
}

// ExpiryFromInstrument извлекает момент экспирации из имени инструмента
// (BTC-28MAR25-45000-P)
func ExpiryFromInstrument(instrument string) (time.Time, error) {
	parts := strings.Split(instrument, "-")
	if len(parts) < 2 {
		return time.Time{}, fmt.Errorf("invalid instrument name %q", instrument)
	}
	return ParseExpiry(parts[1])
}

// normalizeExpiryTag приводит 28MAR25 к виду 28Mar25 для time.Parse
func normalizeExpiryTag(tag string) string {
	tag = strings.ToUpper(strings.TrimSpace(tag))
	if len(tag) < 5 {
		return tag
	}
	monthStart := len(tag) - 5
	month := tag[monthStart : monthStart+3]
	return tag[:monthStart] + month[:1] + strings.ToLower(month[1:]) + tag[monthStart+3:]
}

// ExpiryTag форматирует момент экспирации обратно в тег DDMMMYY
func ExpiryTag(expiry time.Time) string {
	return strings.ToUpper(expiry.UTC().Format("2Jan06"))
}

// HoursToExpiry возвращает количество часов до экспирации.
// Отрицательное значение означает, что экспирация уже прошла.
func HoursToExpiry(expiry time.Time) float64 {
	return expiry.Sub(time.Now().UTC()).Hours()
}

// HoursToExpiryFrom возвращает количество часов от now до expiry
func HoursToExpiryFrom(expiry, now time.Time) float64 {
	return expiry.Sub(now).Hours()
}

// DaysToExpiry возвращает количество полных дней до экспирации (DTE)
func DaysToExpiry(expiry time.Time) int {
	return DaysToExpiryFrom(expiry, time.Now().UTC())
}

// DaysToExpiryFrom возвращает DTE относительно заданного момента
func DaysToExpiryFrom(expiry, now time.Time) int {
	return int(expiry.Sub(now).Hours() / 24)
}

// IsWithinDTEWindow проверяет попадание экспирации в окно [minDTE, maxDTE]
func IsWithinDTEWindow(expiry time.Time, minDTE, maxDTE int) bool {
	dte := DaysToExpiry(expiry)
	return dte >= minDTE && dte <= maxDTE
}

// ============================================================
// Границы периодов для агрегации статистики
// ============================================================

// GetDayStart возвращает начало текущего дня (00:00:00) в UTC
func GetDayStart() time.Time {
	return GetDayStartFrom(time.Now().UTC())
}

// GetDayStartFrom возвращает начало дня для указанного времени в UTC
func GetDayStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GetWeekStart возвращает начало текущей недели (понедельник 00:00:00) в UTC
func GetWeekStart() time.Time {
	return GetWeekStartFrom(time.Now().UTC())
}

// GetWeekStartFrom возвращает начало недели (ISO 8601, понедельник)
// для указанного времени
func GetWeekStartFrom(t time.Time) time.Time {
	t = t.UTC()

	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}

	monday := t.AddDate(0, 0, -(weekday - 1))
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}

// GetMonthStart возвращает начало текущего месяца (1-е число 00:00:00) в UTC
func GetMonthStart() time.Time {
	return GetMonthStartFrom(time.Now().UTC())
}

// GetMonthStartFrom возвращает начало месяца для указанного времени
func GetMonthStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PeriodType тип периода для статистики
type PeriodType string

const (
	PeriodDay   PeriodType = "day"
	PeriodWeek  PeriodType = "week"
	PeriodMonth PeriodType = "month"
	PeriodAll   PeriodType = "all"
)

// GetPeriodStart возвращает начало периода указанного типа
func GetPeriodStart(period PeriodType) time.Time {
	switch period {
	case PeriodDay:
		return GetDayStart()
	case PeriodWeek:
		return GetWeekStart()
	case PeriodMonth:
		return GetMonthStart()
	case PeriodAll:
		return time.Time{} // zero time
	default:
		return GetDayStart()
	}
}

// ============================================================
// Утилиты для timestamp
// ============================================================

// UnixMillis возвращает текущее время в миллисекундах Unix
func UnixMillis() int64 {
	return time.Now().UnixMilli()
}

// FromUnixMillis конвертирует миллисекунды Unix в time.Time
func FromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// FormatDuration форматирует продолжительность в человекочитаемый формат
//
// Примеры:
//   - "45s"
//   - "5m30s"
//   - "2h15m"
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	return d.Round(time.Second).String()
}
