// Package report aggregates a ledger snapshot into per-category totals
// for rendering. Aggregate is a pure function: it never touches storage
// and has no rendering dependency.
package report

import (
	"sort"

	"kasbot/internal/core"
)

// Aggregate folds a window's transactions into ReportData. Voided entries
// are skipped. Per-direction subtotals are sorted by descending amount,
// ties broken by name for deterministic output.
func Aggregate(window core.Window, txs []core.Transaction) core.ReportData {
	data := core.ReportData{Window: window}
	income := make(map[string]int64)
	expense := make(map[string]int64)

	for _, t := range txs {
		if t.Voided {
			continue
		}
		data.TransactionCount++
		switch t.Kind {
		case core.KindIncome:
			data.TotalIncome.Cents += t.Amount.Cents
			income[t.Category] += t.Amount.Cents
		case core.KindExpense:
			data.TotalExpense.Cents += t.Amount.Cents
			expense[t.Category] += t.Amount.Cents
		case core.KindAssetAdjustment:
			data.AssetAdjustments.Cents += t.Amount.Cents
		}
	}

	data.IncomeByCategory = sortedSubtotals(income)
	data.ExpenseByCategory = sortedSubtotals(expense)
	return data
}

func sortedSubtotals(byName map[string]int64) []core.CategoryAmount {
	if len(byName) == 0 {
		return nil
	}
	out := make([]core.CategoryAmount, 0, len(byName))
	for name, cents := range byName {
		out = append(out, core.CategoryAmount{Name: name, Amount: core.Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}
