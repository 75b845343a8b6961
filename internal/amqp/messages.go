package amqp

import (
	"encoding/json"
	"time"
)

// ReportExportMessage asks the worker to render one owner's report for a
// window and push it to the spreadsheet backend. The worker re-reads the
// ledger itself, so the message stays small.
type ReportExportMessage struct {
	Owner     string    `json:"owner"`
	Window    string    `json:"window"`
	Timestamp time.Time `json:"timestamp"`
}

// NewReportExportMessage creates an export request for one owner+window.
func NewReportExportMessage(owner, window string) *ReportExportMessage {
	return &ReportExportMessage{
		Owner:     owner,
		Window:    window,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReportExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportExportMessageFromJSON creates a message from JSON bytes
func ReportExportMessageFromJSON(data []byte) (*ReportExportMessage, error) {
	var msg ReportExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
