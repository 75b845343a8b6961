package core

import (
	"testing"
	"time"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Gaji", "gaji"},
		{"  Gaji   Bulanan ", "gaji bulanan"},
		{"TRANSPORT", "transport"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeName(tc.in); got != tc.want {
			t.Fatalf("%q: expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestParseDirection(t *testing.T) {
	if d, err := ParseDirection(" Income "); err != nil || d != Income {
		t.Fatalf("expected income, got %v (err=%v)", d, err)
	}
	if _, err := ParseDirection("savings"); err == nil {
		t.Fatalf("expected error for unknown direction")
	}
}

func TestWindowStart(t *testing.T) {
	// Wednesday 2025-06-18
	now := time.Date(2025, 6, 18, 15, 4, 5, 0, time.UTC)

	if _, bounded := WindowAll.Start(now); bounded {
		t.Fatalf("all window must be unbounded")
	}

	start, bounded := WindowMonthly.Start(now)
	if !bounded || !start.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("monthly start = %v", start)
	}

	start, bounded = WindowWeekly.Start(now)
	if !bounded || !start.Equal(time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("weekly start = %v, want Monday 2025-06-16", start)
	}

	// Sunday belongs to the week that started the previous Monday
	sunday := time.Date(2025, 6, 22, 1, 0, 0, 0, time.UTC)
	start, _ = WindowWeekly.Start(sunday)
	if !start.Equal(time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("weekly start on Sunday = %v", start)
	}
}

func TestTransactionValidate(t *testing.T) {
	cases := []struct {
		name string
		tx   Transaction
		ok   bool
	}{
		{"income ok", Transaction{Kind: KindIncome, Amount: Money{Cents: 100}, CategoryID: 1}, true},
		{"income zero amount", Transaction{Kind: KindIncome, Amount: Money{}, CategoryID: 1}, false},
		{"income negative", Transaction{Kind: KindIncome, Amount: Money{Cents: -1}, CategoryID: 1}, false},
		{"income no category", Transaction{Kind: KindIncome, Amount: Money{Cents: 100}}, false},
		{"expense ok", Transaction{Kind: KindExpense, Amount: Money{Cents: 50}, CategoryID: 2}, true},
		{"adjustment positive", Transaction{Kind: KindAssetAdjustment, Amount: Money{Cents: 10}}, true},
		{"adjustment negative", Transaction{Kind: KindAssetAdjustment, Amount: Money{Cents: -10}}, true},
		{"adjustment zero", Transaction{Kind: KindAssetAdjustment, Amount: Money{}}, false},
		{"unknown kind", Transaction{Kind: "transfer", Amount: Money{Cents: 1}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.tx.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestTransactionSigned(t *testing.T) {
	e := Transaction{Kind: KindExpense, Amount: Money{Cents: 500}}
	if e.Signed().Cents != -500 {
		t.Fatalf("expense should count negative, got %d", e.Signed().Cents)
	}
	i := Transaction{Kind: KindIncome, Amount: Money{Cents: 500}}
	if i.Signed().Cents != 500 {
		t.Fatalf("income should keep its sign, got %d", i.Signed().Cents)
	}
}

func TestLedgerSummaryNetAssets(t *testing.T) {
	s := LedgerSummary{
		TotalIncome:      Money{Cents: 1000},
		TotalExpense:     Money{Cents: 400},
		AssetAdjustments: Money{Cents: -100},
	}
	if got := s.NetAssets().Cents; got != 500 {
		t.Fatalf("net assets = %d, want 500", got)
	}
}
