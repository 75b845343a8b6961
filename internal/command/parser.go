// Package command parses one line of chat text into a typed Operation.
//
// The grammar is positional: the first token (case-insensitive, optional
// leading slash) selects the command, fixed-position tokens carry amounts
// and directions, and the remaining tokens are captured greedily as a
// category name or note. Parsing is pure: the same input always yields a
// structurally equal Operation, and nothing is applied here.
package command

import (
	"fmt"
	"strconv"
	"strings"

	"kasbot/internal/core"
)

const (
	DefaultHistoryLimit = 5
	MaxHistoryLimit     = 50
	DefaultListLimit    = 20
	MaxListLimit        = 100
)

// Operation is the closed set of commands the executor understands.
// The parser is the only producer; the executor matches exhaustively.
type Operation interface {
	op()
}

type (
	// RecordEntry records an income or expense transaction. The category
	// name captures everything after the amount, so names may contain
	// spaces ("income 5000000 Gaji bulanan" -> category "gaji bulanan").
	RecordEntry struct {
		Direction core.Direction
		Amount    core.Money
		Category  string
	}

	// AdjustAsset records a signed asset adjustment with an optional note.
	AdjustAsset struct {
		Amount core.Money
		Note   string
	}

	AddCategory struct {
		Direction core.Direction
		Name      string
	}

	RenameCategory struct {
		Direction core.Direction
		OldName   string
		NewName   string
	}

	RemoveCategory struct {
		Direction core.Direction
		Name      string
	}

	// VoidEntry marks a transaction as voided. The row is never removed.
	VoidEntry struct {
		ID int64
	}

	ShowHistory struct {
		Limit int
	}

	// ListEntries is ShowHistory with ids, for use with VoidEntry.
	ListEntries struct {
		Limit int
	}

	// ListCategories lists the owner's categories. Direction is empty for
	// both directions.
	ListCategories struct {
		Direction core.Direction
	}

	ShowReport struct {
		Window core.Window
	}

	ShowSummary struct{}

	ShowHelp struct{}
)

func (RecordEntry) op()    {}
func (AdjustAsset) op()    {}
func (AddCategory) op()    {}
func (RenameCategory) op() {}
func (RemoveCategory) op() {}
func (VoidEntry) op()      {}
func (ShowHistory) op()    {}
func (ListEntries) op()    {}
func (ListCategories) op() {}
func (ShowReport) op()     {}
func (ShowSummary) op()    {}
func (ShowHelp) op()       {}

// ErrorKind classifies parse failures.
type ErrorKind int

const (
	UnknownCommand ErrorKind = iota
	MissingArgument
	InvalidAmount
	InvalidArgument
)

// ParseError is a user-caused parse failure. Message carries the
// actionable text shown to the user; it never exposes internals.
type ParseError struct {
	Kind    ErrorKind
	Command string
	Field   string
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}

func missing(cmd, field, usage string) *ParseError {
	return &ParseError{
		Kind:    MissingArgument,
		Command: cmd,
		Field:   field,
		Message: fmt.Sprintf("Missing %s. Usage: %s", field, usage),
	}
}

func badAmount(cmd, field, detail string) *ParseError {
	return &ParseError{
		Kind:    InvalidAmount,
		Command: cmd,
		Field:   field,
		Message: detail,
	}
}

func badArgument(cmd, field, detail string) *ParseError {
	return &ParseError{
		Kind:    InvalidArgument,
		Command: cmd,
		Field:   field,
		Message: detail,
	}
}

// Parse turns one line of text into an Operation or a *ParseError.
func Parse(text string) (Operation, *ParseError) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil, &ParseError{
			Kind:    UnknownCommand,
			Message: "Empty message. Type /help for available commands.",
		}
	}

	cmd := strings.ToLower(strings.TrimPrefix(tokens[0], "/"))
	args := tokens[1:]

	switch cmd {
	case "income":
		return parseEntry(cmd, core.Income, args)
	case "expense":
		return parseEntry(cmd, core.Expense, args)
	case "addcategory":
		return parseAddCategory(cmd, args)
	case "editcategory":
		return parseRenameCategory(cmd, args)
	case "deletecategory":
		return parseRemoveCategory(cmd, args)
	case "asset", "aset":
		return parseAsset(cmd, args)
	case "delete":
		return parseVoid(cmd, args)
	case "history":
		limit, perr := parseLimit(cmd, args, DefaultHistoryLimit, MaxHistoryLimit)
		if perr != nil {
			return nil, perr
		}
		return ShowHistory{Limit: limit}, nil
	case "listall":
		limit, perr := parseLimit(cmd, args, DefaultListLimit, MaxListLimit)
		if perr != nil {
			return nil, perr
		}
		return ListEntries{Limit: limit}, nil
	case "categories":
		return parseListCategories(cmd, args)
	case "report":
		return parseReport(cmd, args)
	case "summary":
		return ShowSummary{}, nil
	case "help":
		return ShowHelp{}, nil
	default:
		return nil, &ParseError{
			Kind:    UnknownCommand,
			Command: cmd,
			Message: "Unknown command. Type /help for available commands.",
		}
	}
}

func parseEntry(cmd string, dir core.Direction, args []string) (Operation, *ParseError) {
	usage := fmt.Sprintf("/%s <amount> <category>", cmd)
	if len(args) < 1 {
		return nil, missing(cmd, "amount", usage)
	}
	cents, err := core.ParsePositiveCents(args[0])
	if err != nil {
		return nil, badAmount(cmd, "amount", "Invalid amount. Please provide a positive number.")
	}
	if len(args) < 2 {
		return nil, missing(cmd, "category", usage)
	}
	category := core.NormalizeName(strings.Join(args[1:], " "))
	return RecordEntry{Direction: dir, Amount: core.Money{Cents: cents}, Category: category}, nil
}

func parseAddCategory(cmd string, args []string) (Operation, *ParseError) {
	usage := "/addcategory <income|expense> <name>"
	if len(args) < 1 {
		return nil, missing(cmd, "direction", usage)
	}
	dir, err := core.ParseDirection(args[0])
	if err != nil {
		return nil, badArgument(cmd, "direction", "Invalid category type. Must be 'income' or 'expense'.")
	}
	if len(args) < 2 {
		return nil, missing(cmd, "name", usage)
	}
	name := core.NormalizeName(strings.Join(args[1:], " "))
	return AddCategory{Direction: dir, Name: name}, nil
}

func parseRenameCategory(cmd string, args []string) (Operation, *ParseError) {
	usage := "/editcategory <income|expense> <old_name> <new_name>"
	if len(args) < 1 {
		return nil, missing(cmd, "direction", usage)
	}
	dir, err := core.ParseDirection(args[0])
	if err != nil {
		return nil, badArgument(cmd, "direction", "Invalid category type. Must be 'income' or 'expense'.")
	}
	if len(args) < 2 {
		return nil, missing(cmd, "old_name", usage)
	}
	if len(args) < 3 {
		return nil, missing(cmd, "new_name", usage)
	}
	oldName := core.NormalizeName(args[1])
	newName := core.NormalizeName(strings.Join(args[2:], " "))
	return RenameCategory{Direction: dir, OldName: oldName, NewName: newName}, nil
}

func parseRemoveCategory(cmd string, args []string) (Operation, *ParseError) {
	usage := "/deletecategory <name> <income|expense>"
	if len(args) < 1 {
		return nil, missing(cmd, "name", usage)
	}
	if len(args) < 2 {
		return nil, missing(cmd, "direction", usage)
	}
	// The direction is the last token so the name may contain spaces.
	dir, err := core.ParseDirection(args[len(args)-1])
	if err != nil {
		return nil, badArgument(cmd, "direction", "Invalid category type. Must be 'income' or 'expense'.")
	}
	name := core.NormalizeName(strings.Join(args[:len(args)-1], " "))
	return RemoveCategory{Direction: dir, Name: name}, nil
}

func parseAsset(cmd string, args []string) (Operation, *ParseError) {
	usage := "/asset <amount> [notes]"
	if len(args) < 1 {
		return nil, missing(cmd, "amount", usage)
	}
	cents, err := core.ParseSignedCents(args[0])
	if err != nil || cents == 0 {
		return nil, badAmount(cmd, "amount", "Invalid amount. Please provide a non-zero number.")
	}
	note := strings.Join(args[1:], " ")
	return AdjustAsset{Amount: core.Money{Cents: cents}, Note: note}, nil
}

func parseVoid(cmd string, args []string) (Operation, *ParseError) {
	if len(args) < 1 {
		return nil, missing(cmd, "transaction_id", "/delete <transaction_id> (use /listall to see ids)")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return nil, badArgument(cmd, "transaction_id", "Invalid transaction id. Use /listall to see ids.")
	}
	return VoidEntry{ID: id}, nil
}

func parseLimit(cmd string, args []string, def, max int) (int, *ParseError) {
	if len(args) == 0 {
		return def, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, badAmount(cmd, "count", "Invalid count. Please provide a positive number.")
	}
	if n > max {
		n = max
	}
	return n, nil
}

func parseListCategories(cmd string, args []string) (Operation, *ParseError) {
	if len(args) == 0 {
		return ListCategories{}, nil
	}
	dir, err := core.ParseDirection(args[0])
	if err != nil {
		return nil, badArgument(cmd, "direction", "Invalid category type. Must be 'income' or 'expense'.")
	}
	return ListCategories{Direction: dir}, nil
}

func parseReport(cmd string, args []string) (Operation, *ParseError) {
	window := core.WindowAll
	if len(args) > 0 {
		w, err := core.ParseWindow(args[0])
		if err != nil {
			return nil, badArgument(cmd, "period", "Invalid report period. Use 'monthly', 'weekly', or 'all'.")
		}
		window = w
	}
	return ShowReport{Window: window}, nil
}
