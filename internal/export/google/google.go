// Package google pushes ledger reports to a Google Sheets spreadsheet
// using a service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"kasbot/internal/core"
	"kasbot/internal/export"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var _ export.ReportWriter = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional: GOOGLE_SHEET_NAME (default "Reports").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Reports"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// WriteReport appends a header block, per-category subtotals and the raw
// transaction rows to the configured sheet.
func (c *Client) WriteReport(ctx context.Context, owner string, data core.ReportData, txs []core.Transaction) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rows := buildRows(owner, data, txs)

	rng := fmt.Sprintf("%s!A:F", c.sheetName)
	vr := &gsheet.ValueRange{Values: rows}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append report to sheet %s: %w", c.sheetName, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}

	slog.InfoContext(ctx, "Report exported to Google Sheets",
		"owner", owner,
		"window", data.Window,
		"rows", len(rows),
		"range", ref)

	return ref, nil
}

// buildRows renders the report as sheet rows. Amounts land as plain
// decimals so the spreadsheet can sum them.
func buildRows(owner string, data core.ReportData, txs []core.Transaction) [][]any {
	rows := [][]any{
		{"Report", owner, string(data.Window), time.Now().Format(time.RFC3339)},
		{"Total income", decimal(data.TotalIncome)},
		{"Total expense", decimal(data.TotalExpense)},
		{"Asset adjustments", decimal(data.AssetAdjustments)},
		{"Net", decimal(data.Net())},
	}

	if len(data.IncomeByCategory) > 0 {
		rows = append(rows, []any{"Income by category"})
		for _, ca := range data.IncomeByCategory {
			rows = append(rows, []any{"", ca.Name, decimal(ca.Amount)})
		}
	}
	if len(data.ExpenseByCategory) > 0 {
		rows = append(rows, []any{"Expense by category"})
		for _, ca := range data.ExpenseByCategory {
			rows = append(rows, []any{"", ca.Name, decimal(ca.Amount)})
		}
	}

	rows = append(rows, []any{"Transactions", len(txs)})
	for _, tx := range txs {
		if tx.Voided {
			continue
		}
		rows = append(rows, []any{
			tx.ID,
			tx.OccurredAt.Format("2006-01-02"),
			string(tx.Kind),
			tx.Category,
			decimal(tx.Amount),
			tx.Note,
		})
	}

	return rows
}

func decimal(m core.Money) float64 {
	return float64(m.Cents) / 100.0
}
