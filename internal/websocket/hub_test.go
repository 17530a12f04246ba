package websocket

import (
	"sync"
	"testing"
	"time"

	"condor/internal/models"
)

func testCondor() *models.Condor {
	expiry := time.Date(2026, 3, 27, 8, 0, 0, 0, time.UTC)
	return &models.Condor{
		ID:         "IC-BTC-1",
		Currency:   "BTC",
		Expiration: expiry,
		LongPut:    models.Leg{Instrument: "BTC-27MAR26-42500-P", Strike: 42500, Kind: models.KindPut, Side: models.SideBuy},
		ShortPut:   models.Leg{Instrument: "BTC-27MAR26-45000-P", Strike: 45000, Kind: models.KindPut, Side: models.SideSell},
		ShortCall:  models.Leg{Instrument: "BTC-27MAR26-55000-C", Strike: 55000, Kind: models.KindCall, Side: models.SideSell},
		LongCall:   models.Leg{Instrument: "BTC-27MAR26-57500-C", Strike: 57500, Kind: models.KindCall, Side: models.SideBuy},
		EntrySpot:  50000,
		Credit:     120,
		Status:     models.StatusOpen,
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
	if hub.DroppedMessages() != 0 {
		t.Errorf("expected 0 dropped messages, got %d", hub.DroppedMessages())
	}
}

func TestHub_Stop(t *testing.T) {
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	hub.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after Stop")
	}
}

func TestHub_BroadcastNonBlocking(t *testing.T) {
	hub := NewHub()
	// Run не запущен, канал broadcast никто не читает.
	// Переполняем канал, лишние сообщения должны отбрасываться
	for i := 0; i < broadcastBufferSize+10; i++ {
		hub.BroadcastRaw([]byte(`{"type":"equityUpdate"}`))
	}

	if got := hub.DroppedMessages(); got != 10 {
		t.Errorf("expected 10 dropped messages, got %d", got)
	}
}

func TestHub_TypedBroadcasts(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	// Без подключенных клиентов broadcast не должен паниковать или блокироваться
	hub.BroadcastStructureUpdate(testCondor())
	hub.BroadcastEquityUpdate(10234.56)
	hub.BroadcastStatsUpdate(&models.Stats{TotalStructures: 3})
	hub.BroadcastIndexPrice("BTC", 50123.5)
	hub.BroadcastNotification(&models.Notification{
		ID:       1,
		Type:     models.NotificationTypeOpen,
		Severity: models.SeverityInfo,
		Message:  "structure opened",
	})
	hub.BroadcastNotification(nil)

	time.Sleep(50 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestHub_ConcurrentOperations(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				hub.BroadcastEquityUpdate(float64(j))
				hub.ClientCount()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent broadcasts deadlocked")
	}
}

func TestOriginChecker_Check(t *testing.T) {
	checker := &OriginChecker{
		allowedOrigins: map[string]struct{}{
			"https://example.com": {},
		},
	}

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"allowed origin", "https://example.com", true},
		{"disallowed origin", "https://evil.com", false},
		{"empty origin allowed for non-browser clients", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checker.Check(tt.origin); got != tt.want {
				t.Errorf("Check(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestOriginChecker_AllowAll(t *testing.T) {
	checker := &OriginChecker{
		allowedOrigins: map[string]struct{}{},
		allowAll:       true,
	}

	if !checker.Check("https://anything.example") {
		t.Error("allowAll checker should accept any origin")
	}
}

func BenchmarkHub_Broadcast(b *testing.B) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	msg := NewEquityUpdateMessage(10000.0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.Broadcast(msg)
	}
}

func BenchmarkHub_BroadcastStructureUpdate(b *testing.B) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	condor := testCondor()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.BroadcastStructureUpdate(condor)
	}
}
