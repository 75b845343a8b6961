package core

// CategoryAmount is an amount aggregated under one category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// LedgerSummary holds the derived running totals for one owner. NetAssets
// is total income minus total expense plus asset adjustments; it is always
// derived from the transaction history, never stored.
type LedgerSummary struct {
	TotalIncome      Money
	TotalExpense     Money
	AssetAdjustments Money
}

// NetAssets returns the current net asset position.
func (s LedgerSummary) NetAssets() Money {
	return s.TotalIncome.Sub(s.TotalExpense).Add(s.AssetAdjustments)
}

// ReportData is the aggregated view of a ledger snapshot for one window,
// ready for rendering. Subtotal slices are sorted by descending amount.
type ReportData struct {
	Window            Window
	TotalIncome       Money
	TotalExpense      Money
	AssetAdjustments  Money
	IncomeByCategory  []CategoryAmount
	ExpenseByCategory []CategoryAmount
	TransactionCount  int
}

// Net returns income minus expense plus adjustments for the window.
func (r ReportData) Net() Money {
	return r.TotalIncome.Sub(r.TotalExpense).Add(r.AssetAdjustments)
}

// Summary folds the report totals into a LedgerSummary.
func (r ReportData) Summary() LedgerSummary {
	return LedgerSummary{
		TotalIncome:      r.TotalIncome,
		TotalExpense:     r.TotalExpense,
		AssetAdjustments: r.AssetAdjustments,
	}
}
