package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"condor/internal/models"
)

// ============================================================
// NotificationRepository Tests
// ============================================================

func notificationRows(notifications ...*models.Notification) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "timestamp", "type", "severity", "structure_id", "message", "meta",
	})
	for i, n := range notifications {
		rows.AddRow(i+1, n.Timestamp, n.Type, n.Severity, n.StructureID, n.Message, []byte(`{"pnl":14.2}`))
	}
	return rows
}

func TestNotificationRepositoryCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	n := &models.Notification{
		Timestamp:   time.Date(2026, 3, 20, 15, 30, 0, 0, time.UTC),
		Type:        models.NotificationTypeTP,
		Severity:    models.SeverityInfo,
		StructureID: "IC-BTC-1700000000000000000",
		Message:     "take profit reached",
		Meta:        map[string]interface{}{"pnl": 14.2},
	}

	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs(n.Timestamp, n.Type, n.Severity, sqlmock.AnyArg(), n.Message, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	repo := NewNotificationRepository(db)
	if err := repo.Create(n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.ID != 7 {
		t.Errorf("expected ID=7, got %d", n.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestNotificationRepositoryCreateStampsTimestamp(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	n := &models.Notification{
		Type:     models.NotificationTypeError,
		Severity: models.SeverityError,
		Message:  "order placement failed",
	}

	mock.ExpectQuery(`INSERT INTO notifications`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	repo := NewNotificationRepository(db)
	if err := repo.Create(n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Timestamp.IsZero() {
		t.Error("expected Timestamp to be stamped")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestNotificationRepositoryGetRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	first := &models.Notification{
		Timestamp: now, Type: models.NotificationTypeOpen,
		Severity: models.SeverityInfo, StructureID: "IC-BTC-1", Message: "structure opened",
	}
	second := &models.Notification{
		Timestamp: now.Add(-time.Hour), Type: models.NotificationTypeSL,
		Severity: models.SeverityWarn, StructureID: "IC-ETH-2", Message: "stop loss triggered",
	}

	mock.ExpectQuery(`SELECT .+ FROM notifications ORDER BY timestamp DESC LIMIT \$1`).
		WithArgs(50).
		WillReturnRows(notificationRows(first, second))

	repo := NewNotificationRepository(db)
	result, err := repo.GetRecent(50)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(result))
	}
	if result[0].Type != models.NotificationTypeOpen {
		t.Errorf("expected type %s, got %s", models.NotificationTypeOpen, result[0].Type)
	}
	if result[1].Meta["pnl"] != 14.2 {
		t.Errorf("expected meta pnl 14.2, got %v", result[1].Meta["pnl"])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestNotificationRepositoryGetByTypes(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	emergency := &models.Notification{
		Timestamp: time.Now(), Type: models.NotificationTypeEmergency,
		Severity: models.SeverityError, Message: "emergency stop activated",
	}

	types := []string{models.NotificationTypeEmergency, models.NotificationTypeRollback}
	mock.ExpectQuery(`SELECT .+ FROM notifications WHERE type = ANY\(\$1\)`).
		WithArgs(pq.Array(types), 20).
		WillReturnRows(notificationRows(emergency))

	repo := NewNotificationRepository(db)
	result, err := repo.GetByTypes(types, 20)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(result))
	}
	if result[0].Severity != models.SeverityError {
		t.Errorf("expected severity %s, got %s", models.SeverityError, result[0].Severity)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestNotificationRepositoryDeleteOlderThan(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`DELETE FROM notifications WHERE timestamp < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 30))

	repo := NewNotificationRepository(db)
	deleted, err := repo.DeleteOlderThan(cutoff)

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if deleted != 30 {
		t.Errorf("expected 30 deleted, got %d", deleted)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestNotificationRepositoryDeleteAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM notifications`).
		WillReturnResult(sqlmock.NewResult(0, 100))

	repo := NewNotificationRepository(db)
	if err := repo.DeleteAll(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
