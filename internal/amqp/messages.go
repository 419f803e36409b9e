package amqp

import (
	"encoding/json"
	"time"

	"maaser/internal/core"
)

// EntryCreatedMessage announces a committed ledger entry. It carries only
// identifiers; consumers read the entry itself from the ledger.
type EntryCreatedMessage struct {
	EntryID          string    `json:"entry_id"`
	ObligationID     string    `json:"obligation_id,omitempty"`
	OccurrenceDate   string    `json:"occurrence_date"`
	OccurrenceNumber int       `json:"occurrence_number"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewEntryCreatedMessage creates a message for e
func NewEntryCreatedMessage(e core.LedgerEntry) *EntryCreatedMessage {
	return &EntryCreatedMessage{
		EntryID:          e.ID,
		ObligationID:     e.SourceObligationID,
		OccurrenceDate:   e.Date.String(),
		OccurrenceNumber: e.OccurrenceNumber,
		Timestamp:        time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntryCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryCreatedMessageFromJSON creates a message from JSON bytes
func EntryCreatedMessageFromJSON(data []byte) (*EntryCreatedMessage, error) {
	var msg EntryCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
