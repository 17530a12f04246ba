// Package integration contains integration tests for the trading terminal.
//
// These tests verify the correct interaction between components:
// - API integration tests: full HTTP request cycle
// - WebSocket tests: connection, broadcast messaging
// - Database tests: schema, repositories, transactions
//
// Integration tests use build tag "integration" to separate from unit tests.
// Run with: go test -tags=integration ./tests/integration/...
package integration

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"condor/internal/api"
	"condor/internal/repository"
	"condor/internal/service"
	"condor/internal/websocket"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
)

// testAPIToken - bearer токен для авторизации в тестах
const testAPIToken = "integration-test-token-0123456789abcdef"

// TestConfig contains configuration for integration tests
type TestConfig struct {
	DBDriver   string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

// TestServer encapsulates all components needed for integration testing
type TestServer struct {
	DB       *sql.DB
	Router   *mux.Router
	Server   *httptest.Server
	Hub      *websocket.Hub
	Repos    *TestRepositories
	Services *TestServices
	Cleanup  func()
}

// TestRepositories contains all repository instances for testing
type TestRepositories struct {
	Structure    *repository.StructureRepository
	Order        *repository.OrderRepository
	Notification *repository.NotificationRepository
	Settings     *repository.SettingsRepository
	Blacklist    *repository.BlacklistRepository
	Stats        *repository.StatsRepository
}

// TestServices contains all service instances for testing
type TestServices struct {
	Structure    *service.StructureService
	Risk         *service.RiskService
	Stats        *service.StatsService
	Settings     *service.SettingsService
	Notification *service.NotificationService
	Blacklist    *service.BlacklistService
}

// getTestConfig returns configuration from environment variables or defaults
func getTestConfig() TestConfig {
	return TestConfig{
		DBDriver:   getEnv("TEST_DB_DRIVER", "postgres"),
		DBHost:     getEnv("TEST_DB_HOST", "localhost"),
		DBPort:     getEnv("TEST_DB_PORT", "5432"),
		DBName:     getEnv("TEST_DB_NAME", "condor_test"),
		DBUser:     getEnv("TEST_DB_USER", "postgres"),
		DBPassword: getEnv("TEST_DB_PASSWORD", "postgres"),
		DBSSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// SetupTestDB creates a test database connection
func SetupTestDB(t *testing.T) (*sql.DB, func()) {
	config := getTestConfig()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.DBHost, config.DBPort, config.DBUser, config.DBPassword, config.DBName, config.DBSSLMode,
	)

	db, err := sql.Open(config.DBDriver, connStr)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil, func() {}
	}

	// Test connection
	if err := db.Ping(); err != nil {
		t.Skipf("Skipping integration test: cannot ping database: %v", err)
		return nil, func() {}
	}

	// Set connection pool settings
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}

	return db, cleanup
}

// SetupTestServer creates a complete test server with all components.
//
// The trading engine is intentionally absent: API tests exercise the
// persistence path, engine-backed operations respond with 503.
func SetupTestServer(t *testing.T) *TestServer {
	db, dbCleanup := SetupTestDB(t)
	if db == nil {
		return nil
	}

	// Initialize tables
	if err := initTestTables(db); err != nil {
		t.Skipf("Skipping integration test: cannot initialize tables: %v", err)
		return nil
	}

	// Create WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()

	// Create repositories
	repos := &TestRepositories{
		Structure:    repository.NewStructureRepository(db),
		Order:        repository.NewOrderRepository(db),
		Notification: repository.NewNotificationRepository(db),
		Settings:     repository.NewSettingsRepository(db),
		Blacklist:    repository.NewBlacklistRepository(db),
		Stats:        repository.NewStatsRepository(db),
	}

	// Create services (nil engine: tests cover the DB-backed paths)
	services := &TestServices{
		Structure:    service.NewStructureService(repos.Structure, repos.Order, nil),
		Risk:         service.NewRiskService(nil),
		Stats:        service.NewStatsService(repos.Stats),
		Settings:     service.NewSettingsService(repos.Settings, []byte("0123456789abcdef0123456789abcdef")),
		Notification: service.NewNotificationService(repos.Notification, repos.Settings),
		Blacklist:    service.NewBlacklistService(repos.Blacklist),
	}
	// Set WebSocket hub for notification service
	services.Notification.SetWebSocketHub(hub)

	// Setup router
	deps := &api.Dependencies{
		StructureService:    services.Structure,
		RiskService:         services.Risk,
		StatsService:        services.Stats,
		SettingsService:     services.Settings,
		NotificationService: services.Notification,
		BlacklistService:    services.Blacklist,
		WSHub:               hub,
		APIToken:            testAPIToken,
	}
	router := api.SetupRoutes(deps)

	// Create test server
	server := httptest.NewServer(router)

	cleanup := func() {
		server.Close()
		hub.Stop()
		cleanupTestTables(db)
		dbCleanup()
	}

	return &TestServer{
		DB:       db,
		Router:   router,
		Server:   server,
		Hub:      hub,
		Repos:    repos,
		Services: services,
		Cleanup:  cleanup,
	}
}

// authorize adds the bearer token expected by the API middleware
func authorize(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+testAPIToken)
	return req
}

// initTestTables creates or truncates tables for testing
func initTestTables(db *sql.DB) error {
	// Create tables if not exist
	tables := []string{
		`CREATE TABLE IF NOT EXISTS structures (
			id VARCHAR(64) PRIMARY KEY,
			currency VARCHAR(10) NOT NULL,
			expiration TIMESTAMP NOT NULL,
			legs JSONB NOT NULL DEFAULT '{}',
			entry_spot DECIMAL(20, 8) NOT NULL DEFAULT 0,
			entered_at TIMESTAMP NOT NULL DEFAULT NOW(),
			credit DECIMAL(20, 8) NOT NULL DEFAULT 0,
			max_loss DECIMAL(20, 8) NOT NULL DEFAULT 0,
			max_profit DECIMAL(20, 8) NOT NULL DEFAULT 0,
			size DECIMAL(20, 8) NOT NULL DEFAULT 0,
			take_profit_target DECIMAL(20, 8) NOT NULL DEFAULT 0,
			stop_loss_target DECIMAL(20, 8) NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			closed_at TIMESTAMP,
			close_reason VARCHAR(20),
			realized_pnl DECIMAL(20, 8) NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS leg_orders (
			id SERIAL PRIMARY KEY,
			structure_id VARCHAR(64) REFERENCES structures(id) ON DELETE CASCADE,
			instrument VARCHAR(40) NOT NULL,
			role VARCHAR(20) NOT NULL,
			side VARCHAR(10) NOT NULL,
			phase VARCHAR(10) NOT NULL,
			amount DECIMAL(20, 8) NOT NULL,
			price DECIMAL(20, 8),
			price_avg DECIMAL(20, 8) NOT NULL DEFAULT 0,
			exchange_id VARCHAR(64) NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			filled_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id SERIAL PRIMARY KEY,
			timestamp TIMESTAMP NOT NULL DEFAULT NOW(),
			type VARCHAR(50) NOT NULL,
			severity VARCHAR(10) NOT NULL DEFAULT 'info',
			structure_id VARCHAR(64) NOT NULL DEFAULT '',
			message TEXT NOT NULL,
			meta JSONB NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			id INT PRIMARY KEY DEFAULT 1,
			exchange VARCHAR(20) NOT NULL DEFAULT 'deribit-testnet',
			api_key TEXT NOT NULL DEFAULT '',
			api_secret TEXT NOT NULL DEFAULT '',
			scan_paused BOOLEAN NOT NULL DEFAULT false,
			max_open_structures INT,
			notification_prefs JSONB NOT NULL DEFAULT '{"open":true,"close":true,"take_profit":true,"stop_loss":true,"expiry":true,"rollback":true,"partial_close":true,"risk_denied":true,"emergency":true,"api_error":true}',
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS blacklist (
			id SERIAL PRIMARY KEY,
			currency VARCHAR(10) NOT NULL,
			expiration VARCHAR(10) NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (currency, expiration)
		)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	// Insert default settings if not exists
	_, err := db.Exec(`INSERT INTO settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to insert default settings: %w", err)
	}

	return nil
}

// cleanupTestTables truncates all test tables
func cleanupTestTables(db *sql.DB) {
	tables := []string{
		"leg_orders",
		"notifications",
		"blacklist",
		"structures",
	}

	for _, table := range tables {
		db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
	}
}

// TruncateTable truncates a specific table for testing
func TruncateTable(db *sql.DB, tableName string) error {
	_, err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", tableName))
	return err
}
