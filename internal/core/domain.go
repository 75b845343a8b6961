package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

const (
	KindIncome          TransactionKind = "income"
	KindExpense         TransactionKind = "expense"
	KindAssetAdjustment TransactionKind = "asset_adjustment"
)

const (
	WindowAll     Window = "all"
	WindowMonthly Window = "monthly"
	WindowWeekly  Window = "weekly"
)

type (
	// Direction partitions categories and transactions into income and expense.
	Direction string

	// TransactionKind identifies what a ledger entry records.
	TransactionKind string

	// Window is a reporting time range.
	Window string

	// Money is an amount in cents. Negative values are legal for asset
	// adjustments only.
	Money struct {
		Cents int64
	}

	Category struct {
		ID        int64
		Direction Direction
		Name      string
		CreatedAt time.Time
	}

	// Transaction is one immutable ledger entry. CategoryID is zero for
	// category-less entries (asset adjustments). Category carries the
	// denormalized name for display and reporting; the id is the source
	// of truth.
	Transaction struct {
		ID         int64
		Kind       TransactionKind
		Amount     Money
		CategoryID int64
		Category   string
		Note       string
		OccurredAt time.Time
		Voided     bool
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidWindow    = errors.New("invalid window")
	ErrEmptyCategory    = errors.New("empty category name")
)

// ParseDirection maps user text to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return Income, nil
	case "expense":
		return Expense, nil
	default:
		return "", ErrInvalidDirection
	}
}

// Kind returns the transaction kind recorded for entries of this direction.
func (d Direction) Kind() TransactionKind {
	if d == Income {
		return KindIncome
	}
	return KindExpense
}

// NormalizeName canonicalizes a category name: trim, collapse inner
// whitespace, case-fold. Category uniqueness is defined over this form.
func NormalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ParseWindow maps user text to a Window. Empty input selects WindowAll.
func ParseWindow(s string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return WindowAll, nil
	case "all":
		return WindowAll, nil
	case "monthly":
		return WindowMonthly, nil
	case "weekly":
		return WindowWeekly, nil
	default:
		return "", ErrInvalidWindow
	}
}

// Start returns the inclusive lower bound of the window relative to now.
// The second return is false for the unbounded window. Monthly starts at
// the first of the current calendar month, weekly at Monday 00:00 of the
// current ISO week.
func (w Window) Start(now time.Time) (time.Time, bool) {
	switch w {
	case WindowMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), true
	case WindowWeekly:
		sinceMonday := (int(now.Weekday()) + 6) % 7
		day := now.AddDate(0, 0, -sinceMonday)
		return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location()), true
	default:
		return time.Time{}, false
	}
}

// Validate checks the kind-specific amount and category rules: income and
// expense entries carry a strictly positive amount and a category, asset
// adjustments carry any non-zero amount and no category.
func (t Transaction) Validate() error {
	switch t.Kind {
	case KindIncome, KindExpense:
		if t.Amount.Cents <= 0 {
			return ErrInvalidAmount
		}
		if t.CategoryID == 0 {
			return ErrEmptyCategory
		}
	case KindAssetAdjustment:
		if t.Amount.Cents == 0 {
			return ErrInvalidAmount
		}
	default:
		return errors.New("unknown transaction kind")
	}
	return nil
}

// Signed returns the amount with the sign implied by the kind: expenses
// count negative, everything else keeps its stored sign.
func (t Transaction) Signed() Money {
	if t.Kind == KindExpense {
		return Money{Cents: -t.Amount.Cents}
	}
	return t.Amount
}
