// Package ledger executes parsed chat commands against the stored
// ledger. One Operation runs as one storage transaction under the
// owner's mutex, and every outcome is rendered as one plain-text reply.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"kasbot/internal/cache"
	"kasbot/internal/command"
	"kasbot/internal/core"
	"kasbot/internal/log"
	"kasbot/internal/report"
	"kasbot/internal/storage"
)

// internalErrorReply is the only text shown for storage faults; the
// real error goes to the log.
const internalErrorReply = "Something went wrong on our side. Please try again later."

// ReportPublisher queues a report export for the worker. Nil disables
// exporting; the chat reply is produced either way.
type ReportPublisher interface {
	PublishReportExport(ctx context.Context, owner, window string) error
}

type Service struct {
	repo      *storage.Repository
	logger    *log.Logger
	summaries cache.Cache[core.LedgerSummary]
	publisher ReportPublisher

	// locks serializes operations per owner; different owners run in
	// parallel.
	locks sync.Map // owner -> *sync.Mutex

	now func() time.Time
}

func New(repo *storage.Repository, logger *log.Logger, summaries cache.Cache[core.LedgerSummary], publisher ReportPublisher) *Service {
	return &Service{
		repo:      repo,
		logger:    logger.WithComponent(log.ComponentLedger),
		summaries: summaries,
		publisher: publisher,
		now:       time.Now,
	}
}

// HandleMessage parses one line of chat text and executes it for the
// owner, returning the reply text. It never returns an error: parse and
// validation failures become actionable replies, storage faults become
// a generic reply with the detail logged.
func (s *Service) HandleMessage(ctx context.Context, owner, text string) string {
	op, perr := command.Parse(text)
	if perr != nil {
		s.logger.DebugContext(ctx, "Rejected command",
			log.FieldOwner, owner,
			log.FieldCommand, perr.Command,
			log.FieldError, perr.Message)
		return perr.Message
	}

	mu := s.ownerLock(owner)
	mu.Lock()
	defer mu.Unlock()

	reply, err := s.execute(ctx, owner, op)
	if err != nil {
		s.logger.ErrorContext(ctx, "Operation failed",
			log.FieldOwner, owner,
			log.FieldOperation, fmt.Sprintf("%T", op),
			log.FieldError, err)
		return internalErrorReply
	}
	return reply
}

func (s *Service) ownerLock(owner string) *sync.Mutex {
	if mu, ok := s.locks.Load(owner); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := s.locks.LoadOrStore(owner, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// execute dispatches one Operation. The returned error is a storage
// fault only; everything user-caused comes back as reply text.
func (s *Service) execute(ctx context.Context, owner string, op command.Operation) (string, error) {
	switch v := op.(type) {
	case command.RecordEntry:
		return s.recordEntry(ctx, owner, v)
	case command.AdjustAsset:
		return s.adjustAsset(ctx, owner, v)
	case command.AddCategory:
		return s.addCategory(ctx, owner, v)
	case command.RenameCategory:
		return s.renameCategory(ctx, owner, v)
	case command.RemoveCategory:
		return s.removeCategory(ctx, owner, v)
	case command.VoidEntry:
		return s.voidEntry(ctx, owner, v)
	case command.ShowHistory:
		return s.showHistory(ctx, owner, v.Limit)
	case command.ListEntries:
		return s.listEntries(ctx, owner, v.Limit)
	case command.ListCategories:
		return s.listCategories(ctx, owner, v.Direction)
	case command.ShowReport:
		return s.showReport(ctx, owner, v.Window)
	case command.ShowSummary:
		return s.showSummary(ctx, owner)
	case command.ShowHelp:
		return helpReply, nil
	default:
		return "", fmt.Errorf("unhandled operation %T", op)
	}
}

func (s *Service) recordEntry(ctx context.Context, owner string, op command.RecordEntry) (string, error) {
	var (
		created bool
		summary core.LedgerSummary
	)
	err := s.repo.InTx(ctx, func(tx *storage.Tx) error {
		userID, err := tx.GetOrCreateUser(ctx, owner)
		if err != nil {
			return err
		}
		cat, isNew, err := tx.EnsureCategory(ctx, userID, op.Direction, op.Category)
		if err != nil {
			return err
		}
		created = isNew
		if _, err := tx.AppendTransaction(ctx, userID, core.Transaction{
			Kind:       op.Direction.Kind(),
			Amount:     op.Amount,
			CategoryID: cat.ID,
		}); err != nil {
			return err
		}
		summary, err = tx.Summary(ctx, userID)
		return err
	})
	if err != nil {
		return "", err
	}
	s.summaries.Delete(owner)

	s.logger.InfoContext(ctx, "Entry recorded",
		log.FieldOwner, owner,
		log.FieldDirection, string(op.Direction),
		log.FieldAmountCents, op.Amount.Cents,
		log.FieldCategory, op.Category)

	var b strings.Builder
	if op.Direction == core.Income {
		fmt.Fprintf(&b, "Income recorded: %s for '%s'.", op.Amount, op.Category)
		fmt.Fprintf(&b, "\nTotal income: %s", summary.TotalIncome)
	} else {
		fmt.Fprintf(&b, "Expense recorded: %s for '%s'.", op.Amount, op.Category)
		fmt.Fprintf(&b, "\nTotal expenses: %s", summary.TotalExpense)
	}
	if created {
		fmt.Fprintf(&b, "\nNew %s category '%s' created.", op.Direction, op.Category)
	}
	return b.String(), nil
}

func (s *Service) adjustAsset(ctx context.Context, owner string, op command.AdjustAsset) (string, error) {
	var summary core.LedgerSummary
	err := s.repo.InTx(ctx, func(tx *storage.Tx) error {
		userID, err := tx.GetOrCreateUser(ctx, owner)
		if err != nil {
			return err
		}
		if _, err := tx.AppendTransaction(ctx, userID, core.Transaction{
			Kind:   core.KindAssetAdjustment,
			Amount: op.Amount,
			Note:   op.Note,
		}); err != nil {
			return err
		}
		summary, err = tx.Summary(ctx, userID)
		return err
	})
	if err != nil {
		return "", err
	}
	s.summaries.Delete(owner)

	s.logger.InfoContext(ctx, "Asset adjusted",
		log.FieldOwner, owner,
		log.FieldAmountCents, op.Amount.Cents)

	note := op.Note
	if note == "" {
		note = "None"
	}
	return fmt.Sprintf("Asset adjusted by %s. Notes: %s.\nCurrent net assets: %s",
		op.Amount, note, summary.NetAssets()), nil
}

func (s *Service) addCategory(ctx context.Context, owner string, op command.AddCategory) (string, error) {
	err := s.repo.InTx(ctx, func(tx *storage.Tx) error {
		userID, err := tx.GetOrCreateUser(ctx, owner)
		if err != nil {
			return err
		}
		_, err = tx.AddCategory(ctx, userID, op.Direction, op.Name)
		return err
	})
	switch {
	case err == nil:
		return fmt.Sprintf("Category '%s' (%s) added successfully.", op.Name, op.Direction), nil
	case errors.Is(err, storage.ErrDuplicateCategory):
		return fmt.Sprintf("Category '%s' (%s) already exists.", op.Name, op.Direction), nil
	case errors.Is(err, core.ErrEmptyCategory):
		return "Category name cannot be empty.", nil
	default:
		return "", err
	}
}

func (s *Service) renameCategory(ctx context.Context, owner string, op command.RenameCategory) (string, error) {
	err := s.repo.InTx(ctx, func(tx *storage.Tx) error {
		userID, err := tx.GetOrCreateUser(ctx, owner)
		if err != nil {
			return err
		}
		return tx.RenameCategory(ctx, userID, op.Direction, op.OldName, op.NewName)
	})
	switch {
	case err == nil:
		return fmt.Sprintf("Category '%s' (%s) renamed to '%s'.", op.OldName, op.Direction, op.NewName), nil
	case errors.Is(err, storage.ErrCategoryNotFound):
		return fmt.Sprintf("Category '%s' (%s) not found.", op.OldName, op.Direction), nil
	case errors.Is(err, storage.ErrDuplicateCategory):
		return fmt.Sprintf("Category '%s' (%s) already exists.", op.NewName, op.Direction), nil
	case errors.Is(err, core.ErrEmptyCategory):
		return "Category name cannot be empty.", nil
	default:
		return "", err
	}
}

func (s *Service) removeCategory(ctx context.Context, owner string, op command.RemoveCategory) (string, error) {
	err := s.repo.InTx(ctx, func(tx *storage.Tx) error {
		userID, err := tx.GetOrCreateUser(ctx, owner)
		if err != nil {
			return err
		}
		return tx.DeleteCategory(ctx, userID, op.Direction, op.Name)
	})
	switch {
	case err == nil:
		return fmt.Sprintf("Category '%s' (%s) deleted successfully.", op.Name, op.Direction), nil
	case errors.Is(err, storage.ErrCategoryNotFound):
		return fmt.Sprintf("Category '%s' (%s) not found.", op.Name, op.Direction), nil
	case errors.Is(err, storage.ErrCategoryInUse):
		return fmt.Sprintf("Cannot delete category '%s' as it has existing transactions linked.\nUse /editcategory to rename it instead.", op.Name), nil
	default:
		return "", err
	}
}

func (s *Service) voidEntry(ctx context.Context, owner string, op command.VoidEntry) (string, error) {
	var entry core.Transaction
	err := s.repo.InTx(ctx, func(tx *storage.Tx) error {
		userID, err := tx.GetOrCreateUser(ctx, owner)
		if err != nil {
			return err
		}
		entry, err = tx.VoidTransaction(ctx, userID, op.ID)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrTransactionNotFound):
		return fmt.Sprintf("Transaction with ID %d not found or doesn't belong to you.\nUse /listall to see your transactions.", op.ID), nil
	default:
		return "", err
	}
	s.summaries.Delete(owner)

	s.logger.InfoContext(ctx, "Transaction voided",
		log.FieldOwner, owner,
		log.FieldTransactionID, op.ID)

	return fmt.Sprintf("Transaction deleted successfully!\nDeleted: %s", formatEntryLine(entry)), nil
}

func (s *Service) showHistory(ctx context.Context, owner string, limit int) (string, error) {
	var txs []core.Transaction
	err := s.repo.InTx(ctx, func(tx *storage.Tx) error {
		userID, err := tx.GetOrCreateUser(ctx, owner)
		if err != nil {
			return err
		}
		txs, err = tx.RecentTransactions(ctx, userID, limit)
		return err
	})
	if err != nil {
		return "", err
	}
	if len(txs) == 0 {
		return "No transaction history found.", nil
	}

	lines := []string{"Your recent transactions:"}
	for _, t := range txs {
		lines = append(lines, "• "+formatEntryLine(t))
	}
	return strings.Join(lines, "\n"), nil
}

func (s *Service) listEntries(ctx context.Context, owner string, limit int) (string, error) {
	var txs []core.Transaction
	err := s.repo.InTx(ctx, func(tx *storage.Tx) error {
		userID, err := tx.GetOrCreateUser(ctx, owner)
		if err != nil {
			return err
		}
		txs, err = tx.AllTransactions(ctx, userID, limit)
		return err
	})
	if err != nil {
		return "", err
	}
	if len(txs) == 0 {
		return "No transactions found.", nil
	}

	lines := []string{fmt.Sprintf("All transactions (showing last %d):", len(txs))}
	for _, t := range txs {
		line := fmt.Sprintf("ID:%d | %s | %s", t.ID, t.OccurredAt.Format("01/02 15:04"), t.Signed())
		if t.Category != "" {
			line += " | " + t.Category
		}
		if t.Note != "" {
			line += " | " + truncateNote(t.Note)
		}
		if t.Voided {
			line += " | (deleted)"
		}
		lines = append(lines, line)
	}
	lines = append(lines, "Use /delete <ID> to delete a transaction.")
	return strings.Join(lines, "\n"), nil
}

func (s *Service) listCategories(ctx context.Context, owner string, dir core.Direction) (string, error) {
	directions := []core.Direction{core.Income, core.Expense}
	if dir != "" {
		directions = []core.Direction{dir}
	}

	byDirection := make(map[core.Direction][]core.Category)
	err := s.repo.InTx(ctx, func(tx *storage.Tx) error {
		userID, err := tx.GetOrCreateUser(ctx, owner)
		if err != nil {
			return err
		}
		for _, d := range directions {
			cats, err := tx.ListCategories(ctx, userID, d)
			if err != nil {
				return err
			}
			byDirection[d] = cats
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	var lines []string
	for _, d := range directions {
		cats := byDirection[d]
		if len(cats) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s categories:", capitalize(string(d))))
		for _, c := range cats {
			lines = append(lines, "• "+c.Name)
		}
	}
	if len(lines) == 0 {
		return "No categories found. Use /addcategory to create one.", nil
	}
	return strings.Join(lines, "\n"), nil
}

func (s *Service) showReport(ctx context.Context, owner string, window core.Window) (string, error) {
	var txs []core.Transaction
	err := s.repo.InTx(ctx, func(tx *storage.Tx) error {
		userID, err := tx.GetOrCreateUser(ctx, owner)
		if err != nil {
			return err
		}
		txs, err = tx.Snapshot(ctx, userID, window, s.now())
		return err
	})
	if err != nil {
		return "", err
	}

	data := report.Aggregate(window, txs)
	if data.TransactionCount == 0 {
		return "No data to generate report for the selected period.", nil
	}

	reply := renderReport(data)
	if s.publisher != nil {
		if err := s.publisher.PublishReportExport(ctx, owner, string(window)); err != nil {
			s.logger.WarnContext(ctx, "Report export publish failed",
				log.FieldOwner, owner,
				log.FieldWindow, string(window),
				log.FieldError, err)
		} else {
			reply += "\nYour spreadsheet export has been queued."
		}
	}
	return reply, nil
}

func (s *Service) showSummary(ctx context.Context, owner string) (string, error) {
	summary, ok := s.summaries.Get(owner)
	if !ok {
		err := s.repo.InTx(ctx, func(tx *storage.Tx) error {
			userID, err := tx.GetOrCreateUser(ctx, owner)
			if err != nil {
				return err
			}
			summary, err = tx.Summary(ctx, userID)
			return err
		})
		if err != nil {
			return "", err
		}
		s.summaries.Set(owner, summary)
	}

	return fmt.Sprintf(
		"Financial summary for %s:\n• Total income: %s\n• Total expenses: %s\n• Current net assets: %s",
		owner, summary.TotalIncome, summary.TotalExpense, summary.NetAssets()), nil
}

func renderReport(data core.ReportData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Financial report (%s):", data.Window)
	fmt.Fprintf(&b, "\n• Total income: %s", data.TotalIncome)
	fmt.Fprintf(&b, "\n• Total expenses: %s", data.TotalExpense)
	if data.AssetAdjustments.Cents != 0 {
		fmt.Fprintf(&b, "\n• Asset adjustments: %s", data.AssetAdjustments)
	}
	fmt.Fprintf(&b, "\n• Net: %s", data.Net())
	if len(data.IncomeByCategory) > 0 {
		b.WriteString("\nIncome by category:")
		for _, ca := range data.IncomeByCategory {
			fmt.Fprintf(&b, "\n• %s: %s", ca.Name, ca.Amount)
		}
	}
	if len(data.ExpenseByCategory) > 0 {
		b.WriteString("\nExpenses by category:")
		for _, ca := range data.ExpenseByCategory {
			fmt.Fprintf(&b, "\n• %s: %s", ca.Name, ca.Amount)
		}
	}
	fmt.Fprintf(&b, "\nTransactions: %d", data.TransactionCount)
	return b.String()
}

func formatEntryLine(t core.Transaction) string {
	line := fmt.Sprintf("%s | %s: %s",
		t.OccurredAt.Format("2006-01-02 15:04"), kindLabel(t.Kind), t.Amount)
	if t.Category != "" {
		line += " | " + t.Category
	}
	if t.Note != "" {
		line += fmt.Sprintf(" (%s)", t.Note)
	}
	return line
}

func kindLabel(k core.TransactionKind) string {
	if k == core.KindAssetAdjustment {
		return "Asset adjustment"
	}
	return capitalize(string(k))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncateNote(note string) string {
	const max = 20
	if len(note) <= max {
		return note
	}
	return note[:max] + "..."
}

const helpReply = "Here are the commands you can use:\n" +
	"/income <amount> <category> - Record income\n" +
	"/expense <amount> <category> - Record expense\n" +
	"/addcategory <income|expense> <name> - Add a new category\n" +
	"/editcategory <income|expense> <old_name> <new_name> - Rename a category\n" +
	"/deletecategory <name> <income|expense> - Delete an unused category\n" +
	"/asset <amount> [notes] - Adjust your total assets (positive or negative)\n" +
	"/delete <transaction_id> - Delete a transaction\n" +
	"/report [monthly|weekly|all] - Get a financial report\n" +
	"/history [count] - Show recent transactions (default: 5)\n" +
	"/listall [count] - Show transactions with IDs\n" +
	"/categories [income|expense] - List your categories\n" +
	"/summary - Show total income, expenses, and current assets\n" +
	"/help - Show this help message"
