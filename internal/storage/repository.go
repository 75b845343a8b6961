// Package storage persists users, categories, and the append-only
// transaction log in SQLite. Transactions reference categories by id, so
// renaming a category never rewrites history. Every caller-visible
// mutation runs inside one database transaction via InTx.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"kasbot/internal/core"

	_ "modernc.org/sqlite"
)

var (
	ErrDuplicateCategory   = errors.New("category already exists")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrCategoryInUse       = errors.New("category has linked transactions")
	ErrTransactionNotFound = errors.New("transaction not found")
)

type Repository struct {
	db *sql.DB
}

func Open(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Tx exposes ledger queries bound to one database transaction.
type Tx struct {
	tx *sql.Tx
}

// InTx runs fn inside a single database transaction: commit when fn
// returns nil, rollback otherwise. This is the transactional boundary of
// one executed Operation.
func (r *Repository) InTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetOrCreateUser resolves a chat address to a user id, creating the user
// lazily on first contact.
func (t *Tx) GetOrCreateUser(ctx context.Context, chatAddress string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT id FROM users WHERE chat_address = ?`, chatAddress).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("find user: %w", err)
	}

	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO users (chat_address) VALUES (?)`, chatAddress)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user id: %w", err)
	}

	slog.InfoContext(ctx, "Created user", "user_id", id)
	return id, nil
}

// FindCategory looks up a category by normalized name.
func (t *Tx) FindCategory(ctx context.Context, userID int64, dir core.Direction, name string) (core.Category, error) {
	var (
		c       core.Category
		created int64
	)
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, direction, name, created_at FROM categories
		 WHERE user_id = ? AND direction = ? AND name = ?`,
		userID, string(dir), core.NormalizeName(name)).
		Scan(&c.ID, &c.Direction, &c.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ErrCategoryNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("find category: %w", err)
	}
	c.CreatedAt = time.Unix(created, 0)
	return c, nil
}

// AddCategory creates a category, failing on a normalized-name duplicate.
func (t *Tx) AddCategory(ctx context.Context, userID int64, dir core.Direction, name string) (int64, error) {
	name = core.NormalizeName(name)
	if name == "" {
		return 0, core.ErrEmptyCategory
	}

	if _, err := t.FindCategory(ctx, userID, dir, name); err == nil {
		return 0, ErrDuplicateCategory
	} else if !errors.Is(err, ErrCategoryNotFound) {
		return 0, err
	}

	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO categories (user_id, direction, name) VALUES (?, ?, ?)`,
		userID, string(dir), name)
	if err != nil {
		return 0, fmt.Errorf("create category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("category id: %w", err)
	}
	return id, nil
}

// EnsureCategory finds a category or creates it on first use. The second
// return reports whether the category was created.
func (t *Tx) EnsureCategory(ctx context.Context, userID int64, dir core.Direction, name string) (core.Category, bool, error) {
	c, err := t.FindCategory(ctx, userID, dir, name)
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, ErrCategoryNotFound) {
		return core.Category{}, false, err
	}

	id, err := t.AddCategory(ctx, userID, dir, name)
	if err != nil {
		return core.Category{}, false, err
	}
	return core.Category{ID: id, Direction: dir, Name: core.NormalizeName(name)}, true, nil
}

// RenameCategory changes a category's name in place. Transactions hold
// category ids, so history is untouched and the rename is O(1).
func (t *Tx) RenameCategory(ctx context.Context, userID int64, dir core.Direction, oldName, newName string) error {
	newName = core.NormalizeName(newName)
	if newName == "" {
		return core.ErrEmptyCategory
	}

	c, err := t.FindCategory(ctx, userID, dir, oldName)
	if err != nil {
		return err
	}
	if _, err := t.FindCategory(ctx, userID, dir, newName); err == nil {
		return ErrDuplicateCategory
	} else if !errors.Is(err, ErrCategoryNotFound) {
		return err
	}

	if _, err := t.tx.ExecContext(ctx,
		`UPDATE categories SET name = ? WHERE id = ?`, newName, c.ID); err != nil {
		return fmt.Errorf("rename category: %w", err)
	}
	return nil
}

// DeleteCategory removes a category. Deletion is blocked while any
// transaction, voided included, still references it; history must keep
// resolving its category name.
func (t *Tx) DeleteCategory(ctx context.Context, userID int64, dir core.Direction, name string) error {
	c, err := t.FindCategory(ctx, userID, dir, name)
	if err != nil {
		return err
	}

	var refs int64
	if err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE category_id = ?`, c.ID).Scan(&refs); err != nil {
		return fmt.Errorf("count category references: %w", err)
	}
	if refs > 0 {
		return ErrCategoryInUse
	}

	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ?`, c.ID); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// ListCategories returns the owner's categories for one direction in
// insertion order.
func (t *Tx) ListCategories(ctx context.Context, userID int64, dir core.Direction) ([]core.Category, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, direction, name, created_at FROM categories
		 WHERE user_id = ? AND direction = ? ORDER BY id`,
		userID, string(dir))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c       core.Category
			created int64
		)
		if err := rows.Scan(&c.ID, &c.Direction, &c.Name, &created); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.CreatedAt = time.Unix(created, 0)
		out = append(out, c)
	}
	return out, rows.Err()
}

// AppendTransaction appends one ledger entry and returns its id. Prior
// entries are never mutated or removed.
func (t *Tx) AppendTransaction(ctx context.Context, userID int64, entry core.Transaction) (int64, error) {
	if err := entry.Validate(); err != nil {
		return 0, err
	}

	var categoryID any
	if entry.CategoryID != 0 {
		categoryID = entry.CategoryID
	}
	occurred := entry.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, kind, amount_cents, category_id, note, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, string(entry.Kind), entry.Amount.Cents, categoryID, entry.Note, occurred.Unix())
	if err != nil {
		return 0, fmt.Errorf("append transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	slog.DebugContext(ctx, "Transaction appended",
		"transaction_id", id,
		"kind", string(entry.Kind),
		"amount_cents", entry.Amount.Cents)
	return id, nil
}

const transactionColumns = `
	t.id, t.kind, t.amount_cents, COALESCE(t.category_id, 0),
	COALESCE(c.name, ''), t.note, t.occurred_at, t.voided_at IS NOT NULL
`

func (t *Tx) scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()
	var out []core.Transaction
	for rows.Next() {
		var (
			e        core.Transaction
			occurred int64
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.Amount.Cents, &e.CategoryID,
			&e.Category, &e.Note, &occurred, &e.Voided); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		e.OccurredAt = time.Unix(occurred, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecentTransactions returns the newest non-voided entries first, bounded
// by limit.
func (t *Tx) RecentTransactions(ctx context.Context, userID int64, limit int) ([]core.Transaction, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions t LEFT JOIN categories c ON c.id = t.category_id
		 WHERE t.user_id = ? AND t.voided_at IS NULL
		 ORDER BY t.occurred_at DESC, t.id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}
	return t.scanTransactions(rows)
}

// AllTransactions is RecentTransactions including voided rows, for the
// id-bearing listing that accompanies /delete.
func (t *Tx) AllTransactions(ctx context.Context, userID int64, limit int) ([]core.Transaction, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions t LEFT JOIN categories c ON c.id = t.category_id
		 WHERE t.user_id = ?
		 ORDER BY t.occurred_at DESC, t.id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return t.scanTransactions(rows)
}

// Snapshot returns the non-voided entries inside the window, newest
// first, with category names joined in for reporting.
func (t *Tx) Snapshot(ctx context.Context, userID int64, window core.Window, now time.Time) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		 FROM transactions t LEFT JOIN categories c ON c.id = t.category_id
		 WHERE t.user_id = ? AND t.voided_at IS NULL`
	args := []any{userID}

	if start, bounded := window.Start(now); bounded {
		query += ` AND t.occurred_at >= ?`
		args = append(args, start.Unix())
	}
	query += ` ORDER BY t.occurred_at DESC, t.id DESC`

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("snapshot transactions: %w", err)
	}
	return t.scanTransactions(rows)
}

// Summary folds the full non-voided history into the derived totals.
// There is no incrementally stored counterpart; this fold is the single
// source of truth.
func (t *Tx) Summary(ctx context.Context, userID int64) (core.LedgerSummary, error) {
	var s core.LedgerSummary
	err := t.tx.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents END), 0),
			COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount_cents END), 0),
			COALESCE(SUM(CASE WHEN kind = 'asset_adjustment' THEN amount_cents END), 0)
		 FROM transactions WHERE user_id = ? AND voided_at IS NULL`,
		userID).
		Scan(&s.TotalIncome.Cents, &s.TotalExpense.Cents, &s.AssetAdjustments.Cents)
	if err != nil {
		return core.LedgerSummary{}, fmt.Errorf("summary: %w", err)
	}
	return s, nil
}

// VoidTransaction marks an entry as voided and returns it for the
// confirmation message. The row itself is preserved.
func (t *Tx) VoidTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions t LEFT JOIN categories c ON c.id = t.category_id
		 WHERE t.id = ? AND t.user_id = ?`,
		id, userID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("find transaction: %w", err)
	}
	found, err := t.scanTransactions(rows)
	if err != nil {
		return core.Transaction{}, err
	}
	if len(found) == 0 || found[0].Voided {
		return core.Transaction{}, ErrTransactionNotFound
	}

	if _, err := t.tx.ExecContext(ctx,
		`UPDATE transactions SET voided_at = ? WHERE id = ?`,
		time.Now().Unix(), id); err != nil {
		return core.Transaction{}, fmt.Errorf("void transaction: %w", err)
	}

	entry := found[0]
	entry.Voided = true
	return entry, nil
}
