package export

import (
	"context"

	"kasbot/internal/core"
)

// ReportWriter is the outbound port for pushing a rendered report to an
// external destination (a spreadsheet, a file, an in-memory store in tests).
type ReportWriter interface {
	// WriteReport writes one owner's report and the transactions behind it,
	// returning an opaque reference to where it landed.
	WriteReport(ctx context.Context, owner string, data core.ReportData, txs []core.Transaction) (ref string, err error)
}
