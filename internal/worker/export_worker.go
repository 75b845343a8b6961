// Package worker turns queued report-export requests into spreadsheet
// writes: snapshot the owner's ledger, aggregate it, hand the result to
// the configured ReportWriter.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kasbot/internal/amqp"
	"kasbot/internal/core"
	"kasbot/internal/export"
	"kasbot/internal/report"
	"kasbot/internal/storage"
)

type ExportWorker struct {
	repo   *storage.Repository
	writer export.ReportWriter
	now    func() time.Time
}

func NewExportWorker(repo *storage.Repository, writer export.ReportWriter) *ExportWorker {
	return &ExportWorker{
		repo:   repo,
		writer: writer,
		now:    time.Now,
	}
}

// HandleExportMessage processes a single report export request from AMQP.
// The snapshot is re-read here rather than carried in the message, so the
// export always reflects the ledger at export time.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.ReportExportMessage) error {
	slog.InfoContext(ctx, "Processing report export request",
		"owner", msg.Owner,
		"window", msg.Window,
		"requested_at", msg.Timestamp)

	// An unknown window can never succeed on redelivery.
	window, err := core.ParseWindow(msg.Window)
	if err != nil {
		return amqp.Permanent(fmt.Errorf("parse window %q: %w", msg.Window, err))
	}

	var txs []core.Transaction
	err = w.repo.InTx(ctx, func(tx *storage.Tx) error {
		userID, err := tx.GetOrCreateUser(ctx, msg.Owner)
		if err != nil {
			return err
		}
		txs, err = tx.Snapshot(ctx, userID, window, w.now())
		return err
	})
	if err != nil {
		return fmt.Errorf("snapshot ledger: %w", err)
	}

	data := report.Aggregate(window, txs)
	if data.TransactionCount == 0 {
		slog.InfoContext(ctx, "Nothing to export, skipping",
			"owner", msg.Owner,
			"window", msg.Window)
		return nil
	}

	ref, err := w.writer.WriteReport(ctx, msg.Owner, data, txs)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	slog.InfoContext(ctx, "Report exported",
		"owner", msg.Owner,
		"window", msg.Window,
		"transactions", data.TransactionCount,
		"export_ref", ref)
	return nil
}
