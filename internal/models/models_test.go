package models

import (
	"testing"
	"time"
)

func testCondor() *Condor {
	return &Condor{
		ID:         "IC-BTC-1",
		Currency:   "BTC",
		Expiration: time.Date(2025, 3, 28, 8, 0, 0, 0, time.UTC),
		LongPut:    Leg{Instrument: "BTC-28MAR25-42500-P", Strike: 42500, Kind: KindPut, Side: SideBuy, EntryMark: 0.006},
		ShortPut:   Leg{Instrument: "BTC-28MAR25-45000-P", Strike: 45000, Kind: KindPut, Side: SideSell, EntryMark: 0.012},
		ShortCall:  Leg{Instrument: "BTC-28MAR25-55000-C", Strike: 55000, Kind: KindCall, Side: SideSell, EntryMark: 0.011},
		LongCall:   Leg{Instrument: "BTC-28MAR25-57500-C", Strike: 57500, Kind: KindCall, Side: SideBuy, EntryMark: 0.007},
		EntrySpot:  50000,
		EnteredAt:  time.Now().UTC(),
		Status:     StatusOpen,
	}
}

func TestCondorLegsOrder(t *testing.T) {
	c := testCondor()
	legs := c.Legs()

	if len(legs) != 4 {
		t.Fatalf("Legs() returned %d legs, want 4", len(legs))
	}

	// Порядок открытия фиксирован: LP, SP, SC, LC
	expected := []string{
		"BTC-28MAR25-42500-P",
		"BTC-28MAR25-45000-P",
		"BTC-28MAR25-55000-C",
		"BTC-28MAR25-57500-C",
	}
	for i, leg := range legs {
		if leg.Instrument != expected[i] {
			t.Errorf("leg %d = %s, want %s", i, leg.Instrument, expected[i])
		}
	}
}

func TestCondorLegByRole(t *testing.T) {
	c := testCondor()

	tests := []struct {
		role       string
		instrument string
	}{
		{RoleLongPut, "BTC-28MAR25-42500-P"},
		{RoleShortPut, "BTC-28MAR25-45000-P"},
		{RoleShortCall, "BTC-28MAR25-55000-C"},
		{RoleLongCall, "BTC-28MAR25-57500-C"},
	}

	for _, tt := range tests {
		leg := c.LegByRole(tt.role)
		if leg == nil {
			t.Fatalf("LegByRole(%s) = nil", tt.role)
		}
		if leg.Instrument != tt.instrument {
			t.Errorf("LegByRole(%s) = %s, want %s", tt.role, leg.Instrument, tt.instrument)
		}
	}

	if c.LegByRole("bogus") != nil {
		t.Error("LegByRole(bogus) should return nil")
	}
}

func TestCondorSpreadWidths(t *testing.T) {
	c := testCondor()

	if w := c.PutSpreadWidth(); w != 2500 {
		t.Errorf("PutSpreadWidth = %v, want 2500", w)
	}
	if w := c.CallSpreadWidth(); w != 2500 {
		t.Errorf("CallSpreadWidth = %v, want 2500", w)
	}
}

func TestCondorValidateStrikes(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Condor)
		wantErr bool
	}{
		{"valid", func(c *Condor) {}, false},
		{"long put above short put", func(c *Condor) { c.LongPut.Strike = 46000 }, true},
		{"short put above spot", func(c *Condor) { c.ShortPut.Strike = 51000 }, true},
		{"short call below spot", func(c *Condor) { c.ShortCall.Strike = 49000 }, true},
		{"long call below short call", func(c *Condor) { c.LongCall.Strike = 54000 }, true},
		{"short put at spot allowed", func(c *Condor) { c.ShortPut.Strike = 50000 }, false},
		{"short call at spot allowed", func(c *Condor) { c.ShortCall.Strike = 50000 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testCondor()
			tt.mutate(c)
			err := c.ValidateStrikes()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStrikes() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCondorStatusHelpers(t *testing.T) {
	c := testCondor()

	c.Status = StatusOpen
	if !c.IsOpen() || c.IsTerminal() {
		t.Error("open structure: IsOpen should be true, IsTerminal false")
	}

	c.Status = StatusClosing
	if !c.IsOpen() {
		t.Error("closing structure is still monitored")
	}

	c.Status = StatusClosed
	if c.IsOpen() || !c.IsTerminal() {
		t.Error("closed structure: IsOpen false, IsTerminal true")
	}

	c.Status = StatusPartiallyClosed
	if !c.IsTerminal() {
		t.Error("partially closed is terminal")
	}

	c.Status = StatusRolledBack
	if !c.IsTerminal() {
		t.Error("rolled back is terminal")
	}
}

func TestLegCloseSide(t *testing.T) {
	sold := Leg{Side: SideSell}
	if sold.CloseSide() != SideBuy {
		t.Error("sold leg closes with buy")
	}

	bought := Leg{Side: SideBuy}
	if bought.CloseSide() != SideSell {
		t.Error("bought leg closes with sell")
	}
}

func TestNewCondorID(t *testing.T) {
	ts := time.Now()
	id1 := NewCondorID("BTC", ts)
	id2 := NewCondorID("BTC", ts.Add(time.Nanosecond))

	if id1 == id2 {
		t.Error("IDs for different timestamps must differ")
	}
	if id1[:7] != "IC-BTC-" {
		t.Errorf("unexpected ID prefix: %s", id1)
	}
}
