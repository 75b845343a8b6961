package ledger

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"kasbot/internal/cache"
	"kasbot/internal/core"
	"kasbot/internal/log"
	"kasbot/internal/report"
	"kasbot/internal/storage"
)

const testOwner = "whatsapp:+628123456789"

type fakePublisher struct {
	owners  []string
	windows []string
}

func (f *fakePublisher) PublishReportExport(_ context.Context, owner, window string) error {
	f.owners = append(f.owners, owner)
	f.windows = append(f.windows, window)
	return nil
}

func newTestService(t *testing.T, publisher ReportPublisher) (*Service, *storage.Repository) {
	t.Helper()
	repo, err := storage.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	summaries := cache.NewLRU[core.LedgerSummary](16, time.Minute)
	return New(repo, logger, summaries, publisher), repo
}

func send(t *testing.T, s *Service, text string) string {
	t.Helper()
	return s.HandleMessage(context.Background(), testOwner, text)
}

func TestIncomeUpdatesTotalAndHistory(t *testing.T) {
	s, _ := newTestService(t, nil)

	reply := send(t, s, "income 5000000 Gaji bulanan")
	if !strings.Contains(reply, "Income recorded: Rp5,000,000.00 for 'gaji bulanan'") {
		t.Errorf("unexpected reply: %q", reply)
	}
	if !strings.Contains(reply, "Total income: Rp5,000,000.00") {
		t.Errorf("reply missing updated total: %q", reply)
	}
	if !strings.Contains(reply, "New income category 'gaji bulanan' created") {
		t.Errorf("reply missing category creation note: %q", reply)
	}

	history := send(t, s, "/history 1")
	if !strings.Contains(history, "Income: Rp5,000,000.00") || !strings.Contains(history, "gaji bulanan") {
		t.Errorf("history missing entry: %q", history)
	}
}

func TestExpenseUpdatesTotal(t *testing.T) {
	s, _ := newTestService(t, nil)

	send(t, s, "expense 25000 makan siang")
	reply := send(t, s, "expense 15000 makan siang")
	if !strings.Contains(reply, "Expense recorded: Rp15,000.00 for 'makan siang'") {
		t.Errorf("unexpected reply: %q", reply)
	}
	if !strings.Contains(reply, "Total expenses: Rp40,000.00") {
		t.Errorf("reply missing running total: %q", reply)
	}
	if strings.Contains(reply, "created") {
		t.Errorf("second use should not re-create the category: %q", reply)
	}
}

func TestRenameCategoryMovesReportSubtotals(t *testing.T) {
	s, _ := newTestService(t, nil)

	send(t, s, "expense 50000 makanan")
	send(t, s, "expense 30000 makanan")

	reply := send(t, s, "editcategory expense makanan konsumsi")
	if !strings.Contains(reply, "Category 'makanan' (expense) renamed to 'konsumsi'") {
		t.Fatalf("unexpected reply: %q", reply)
	}

	rep := send(t, s, "report all")
	if !strings.Contains(rep, "konsumsi: Rp80,000.00") {
		t.Errorf("report missing renamed subtotal: %q", rep)
	}
	if strings.Contains(rep, "makanan") {
		t.Errorf("report still shows old name: %q", rep)
	}
}

func TestDeleteReferencedCategoryBlocked(t *testing.T) {
	s, _ := newTestService(t, nil)

	send(t, s, "income 100000 gaji")
	reply := send(t, s, "deletecategory gaji income")
	if !strings.Contains(reply, "Cannot delete category 'gaji'") {
		t.Errorf("unexpected reply: %q", reply)
	}

	// Voiding the transaction still blocks deletion; history must keep
	// resolving the name.
	send(t, s, "delete 1")
	reply = send(t, s, "deletecategory gaji income")
	if !strings.Contains(reply, "Cannot delete category 'gaji'") {
		t.Errorf("void should not unblock deletion: %q", reply)
	}
}

func TestAssetAdjustmentNegative(t *testing.T) {
	s, _ := newTestService(t, nil)

	send(t, s, "income 1000000 gaji")
	reply := send(t, s, "/asset -500000 Investasi merugi")
	if !strings.Contains(reply, "Asset adjusted by -Rp500,000.00. Notes: Investasi merugi.") {
		t.Errorf("unexpected reply: %q", reply)
	}
	if !strings.Contains(reply, "Current net assets: Rp500,000.00") {
		t.Errorf("reply missing net assets: %q", reply)
	}

	// The alias spelling behaves identically.
	reply = send(t, s, "aset 250000")
	if !strings.Contains(reply, "Asset adjusted by Rp250,000.00. Notes: None.") {
		t.Errorf("unexpected alias reply: %q", reply)
	}
}

func TestHistoryInvalidCount(t *testing.T) {
	s, _ := newTestService(t, nil)

	reply := send(t, s, "history abc")
	if reply != "Invalid count. Please provide a positive number." {
		t.Errorf("unexpected reply: %q", reply)
	}
}

func TestUnknownCommand(t *testing.T) {
	s, _ := newTestService(t, nil)

	reply := send(t, s, "/frobnicate 42")
	if !strings.Contains(reply, "Unknown command") {
		t.Errorf("unexpected reply: %q", reply)
	}
}

func TestVoidedTransactionLeavesSummaryAsIfReversed(t *testing.T) {
	s, _ := newTestService(t, nil)

	send(t, s, "income 100000 gaji")
	send(t, s, "income 50000 bonus")
	reply := send(t, s, "delete 2")
	if !strings.Contains(reply, "Transaction deleted successfully!") {
		t.Fatalf("unexpected reply: %q", reply)
	}

	summary := send(t, s, "summary")
	if !strings.Contains(summary, "Total income: Rp100,000.00") {
		t.Errorf("summary should exclude voided entry: %q", summary)
	}

	// The row is preserved and visible in the full listing.
	listing := send(t, s, "listall")
	if !strings.Contains(listing, "ID:2") || !strings.Contains(listing, "(deleted)") {
		t.Errorf("voided row missing from listing: %q", listing)
	}

	reply = send(t, s, "delete 2")
	if !strings.Contains(reply, "not found") {
		t.Errorf("double void should fail: %q", reply)
	}
}

func TestSummaryCacheInvalidatedOnWrite(t *testing.T) {
	s, _ := newTestService(t, nil)

	send(t, s, "income 100000 gaji")
	first := send(t, s, "summary")
	if !strings.Contains(first, "Total income: Rp100,000.00") {
		t.Fatalf("unexpected summary: %q", first)
	}

	send(t, s, "income 50000 gaji")
	second := send(t, s, "summary")
	if !strings.Contains(second, "Total income: Rp150,000.00") {
		t.Errorf("summary served stale total after write: %q", second)
	}
}

func TestSummaryMatchesHistoryRefold(t *testing.T) {
	s, repo := newTestService(t, nil)

	send(t, s, "income 5000000 gaji")
	send(t, s, "expense 1250000 sewa")
	send(t, s, "expense 75000,50 makanan")
	send(t, s, "asset -500000 koreksi")
	send(t, s, "income 200000 bonus")
	send(t, s, "delete 2")

	var (
		stored core.LedgerSummary
		txs    []core.Transaction
	)
	err := repo.InTx(context.Background(), func(tx *storage.Tx) error {
		userID, err := tx.GetOrCreateUser(context.Background(), testOwner)
		if err != nil {
			return err
		}
		stored, err = tx.Summary(context.Background(), userID)
		if err != nil {
			return err
		}
		txs, err = tx.Snapshot(context.Background(), userID, core.WindowAll, time.Now())
		return err
	})
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}

	refolded := report.Aggregate(core.WindowAll, txs).Summary()
	if stored != refolded {
		t.Errorf("stored summary %+v diverged from history refold %+v", stored, refolded)
	}
}

func TestReportQueuesExport(t *testing.T) {
	pub := &fakePublisher{}
	s, _ := newTestService(t, pub)

	send(t, s, "income 100000 gaji")
	reply := send(t, s, "report monthly")
	if !strings.Contains(reply, "Total income: Rp100,000.00") {
		t.Errorf("unexpected report: %q", reply)
	}
	if !strings.Contains(reply, "export has been queued") {
		t.Errorf("report missing export note: %q", reply)
	}
	if len(pub.owners) != 1 || pub.owners[0] != testOwner || pub.windows[0] != "monthly" {
		t.Errorf("publisher saw %v %v", pub.owners, pub.windows)
	}
}

func TestReportEmptyPeriod(t *testing.T) {
	s, _ := newTestService(t, nil)

	reply := send(t, s, "report weekly")
	if reply != "No data to generate report for the selected period." {
		t.Errorf("unexpected reply: %q", reply)
	}
}

func TestConcurrentSameOwnerOperationsAreSerialized(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()

	const workers = 20
	replies := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			replies[i] = s.HandleMessage(ctx, testOwner, "income 1000 gaji")
		}(i)
	}
	wg.Wait()

	for i, r := range replies {
		if !strings.Contains(r, "Income recorded: Rp1,000.00") {
			t.Fatalf("worker %d got %q", i, r)
		}
	}

	// Every write landed exactly once.
	summary := send(t, s, "summary")
	if !strings.Contains(summary, "Total income: Rp20,000.00") {
		t.Errorf("concurrent writes lost or doubled: %q", summary)
	}
}

func TestConcurrentDistinctOwnersRunInParallel(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()

	owners := []string{
		"whatsapp:+6281", "whatsapp:+6282", "whatsapp:+6283",
		"whatsapp:+6284", "whatsapp:+6285",
	}
	var wg sync.WaitGroup
	for _, owner := range owners {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(owner string) {
				defer wg.Done()
				if r := s.HandleMessage(ctx, owner, "income 1000 gaji"); !strings.Contains(r, "Income recorded") {
					t.Errorf("%s got %q", owner, r)
				}
			}(owner)
		}
	}
	wg.Wait()

	for _, owner := range owners {
		summary := s.HandleMessage(ctx, owner, "summary")
		if !strings.Contains(summary, "Total income: Rp5,000.00") {
			t.Errorf("%s ledger wrong after parallel writes: %q", owner, summary)
		}
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()

	s.HandleMessage(ctx, "whatsapp:+6281", "income 100000 gaji")
	s.HandleMessage(ctx, "whatsapp:+6282", "income 999999 gaji")

	summary := s.HandleMessage(ctx, "whatsapp:+6281", "summary")
	if !strings.Contains(summary, "Total income: Rp100,000.00") {
		t.Errorf("owner saw another owner's ledger: %q", summary)
	}
}

func TestListCategories(t *testing.T) {
	s, _ := newTestService(t, nil)

	reply := send(t, s, "categories")
	if !strings.Contains(reply, "No categories found") {
		t.Errorf("unexpected reply: %q", reply)
	}

	send(t, s, "addcategory income gaji")
	send(t, s, "addcategory expense makanan")
	send(t, s, "addcategory expense transportasi")

	reply = send(t, s, "categories")
	for _, want := range []string{"Income categories:", "gaji", "Expense categories:", "makanan", "transportasi"} {
		if !strings.Contains(reply, want) {
			t.Errorf("listing missing %q: %q", want, reply)
		}
	}

	reply = send(t, s, "categories income")
	if strings.Contains(reply, "makanan") {
		t.Errorf("direction filter leaked: %q", reply)
	}
}
