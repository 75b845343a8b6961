// Package memory is an in-process ReportWriter used in tests and when no
// spreadsheet backend is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"kasbot/internal/core"
	"kasbot/internal/export"
)

type Report struct {
	Owner        string
	Data         core.ReportData
	Transactions []core.Transaction
}

type Store struct {
	mu      sync.Mutex
	reports []Report
}

var _ export.ReportWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// WriteReport stores the report and returns a synthetic reference.
func (s *Store) WriteReport(_ context.Context, owner string, data core.ReportData, txs []core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, Report{
		Owner:        owner,
		Data:         data,
		Transactions: append([]core.Transaction(nil), txs...),
	})
	return fmt.Sprintf("mem:%d", len(s.reports)), nil
}

// Reports returns a copy of everything written so far.
func (s *Store) Reports() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Report(nil), s.reports...)
}
