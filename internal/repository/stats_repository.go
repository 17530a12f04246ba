package repository

import (
	"database/sql"
	"time"

	"condor/internal/models"
	"condor/pkg/utils"
)

// StatsRepository - агрегация статистики по таблице structures
type StatsRepository struct {
	db *sql.DB
}

// NewStatsRepository создает новый экземпляр репозитория
func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetStats возвращает сводную статистику торговли
func (r *StatsRepository) GetStats() (*models.Stats, error) {
	stats := &models.Stats{}

	if err := r.countAndPnlSince(time.Time{}, &stats.TotalStructures, &stats.TotalPnl); err != nil {
		return nil, err
	}
	if err := r.countAndPnlSince(utils.GetDayStart(), &stats.TodayStructures, &stats.TodayPnl); err != nil {
		return nil, err
	}
	if err := r.countAndPnlSince(utils.GetWeekStart(), &stats.WeekStructures, &stats.WeekPnl); err != nil {
		return nil, err
	}
	if err := r.countAndPnlSince(utils.GetMonthStart(), &stats.MonthStructures, &stats.MonthPnl); err != nil {
		return nil, err
	}

	if err := r.countsByCloseReason(stats); err != nil {
		return nil, err
	}
	if err := r.countsByStatus(stats); err != nil {
		return nil, err
	}

	events, err := r.stopLossEvents(10)
	if err != nil {
		return nil, err
	}
	stats.StopLossEvents = events

	top, err := r.topCurrenciesByPnl(5)
	if err != nil {
		return nil, err
	}
	stats.TopCurrenciesByPnl = top

	return stats, nil
}

// countAndPnlSince считает количество структур и суммарный PnL
// с указанного момента (нулевое время - за всё время)
func (r *StatsRepository) countAndPnlSince(since time.Time, count *int, pnl *float64) error {
	query := `
		SELECT COUNT(*), COALESCE(SUM(realized_pnl), 0)
		FROM structures
		WHERE entered_at >= $1`

	return r.db.QueryRow(query, since).Scan(count, pnl)
}

// countsByCloseReason заполняет счетчики по причинам закрытия
func (r *StatsRepository) countsByCloseReason(stats *models.Stats) error {
	query := `
		SELECT close_reason, COUNT(*)
		FROM structures
		WHERE close_reason IS NOT NULL
		GROUP BY close_reason`

	rows, err := r.db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var reason string
		var count int
		if err := rows.Scan(&reason, &count); err != nil {
			return err
		}
		switch reason {
		case models.CloseReasonTakeProfit:
			stats.ClosedByTakeProfit = count
		case models.CloseReasonStopLoss:
			stats.ClosedByStopLoss = count
		case models.CloseReasonExpiry:
			stats.ClosedByExpiry = count
		}
	}

	return rows.Err()
}

// countsByStatus заполняет счетчики откатов и частичных закрытий
func (r *StatsRepository) countsByStatus(stats *models.Stats) error {
	query := `
		SELECT status, COUNT(*)
		FROM structures
		WHERE status IN ($1, $2)
		GROUP BY status`

	rows, err := r.db.Query(query, models.StatusRolledBack, models.StatusPartiallyClosed)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return err
		}
		switch status {
		case models.StatusRolledBack:
			stats.RolledBack = count
		case models.StatusPartiallyClosed:
			stats.PartiallyClosed = count
		}
	}

	return rows.Err()
}

// stopLossEvents возвращает последние срабатывания SL
func (r *StatsRepository) stopLossEvents(limit int) ([]models.StopLossEvent, error) {
	query := `
		SELECT id, currency, realized_pnl, closed_at
		FROM structures
		WHERE close_reason = $1 AND closed_at IS NOT NULL
		ORDER BY closed_at DESC
		LIMIT $2`

	rows, err := r.db.Query(query, models.CloseReasonStopLoss, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.StopLossEvent
	for rows.Next() {
		var event models.StopLossEvent
		if err := rows.Scan(&event.StructureID, &event.Currency, &event.Pnl, &event.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// topCurrenciesByPnl возвращает валюты с наибольшим суммарным PnL
func (r *StatsRepository) topCurrenciesByPnl(limit int) ([]models.CurrencyStat, error) {
	query := `
		SELECT currency, COALESCE(SUM(realized_pnl), 0) AS pnl
		FROM structures
		WHERE closed_at IS NOT NULL
		GROUP BY currency
		ORDER BY pnl DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var top []models.CurrencyStat
	for rows.Next() {
		var stat models.CurrencyStat
		if err := rows.Scan(&stat.Currency, &stat.Value); err != nil {
			return nil, err
		}
		top = append(top, stat)
	}

	return top, rows.Err()
}

// CountPartiallyClosed возвращает количество структур с незакрытыми ногами
func (r *StatsRepository) CountPartiallyClosed() (int, error) {
	query := `SELECT COUNT(*) FROM structures WHERE status = $1`

	var count int
	err := r.db.QueryRow(query, models.StatusPartiallyClosed).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}
