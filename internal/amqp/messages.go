package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"billsplit/internal/core"
)

type MessageType string

const (
	MessageExpenseAdded   MessageType = "expense.added"
	MessageExpenseRemoved MessageType = "expense.removed"
)

// LedgerMessage announces one committed ledger change. It carries the full
// record so consumers never read back from the database.
type LedgerMessage struct {
	ID        string       `json:"id"`
	Type      MessageType  `json:"type"`
	Expense   core.Expense `json:"expense"`
	Timestamp time.Time    `json:"timestamp"`
}

func NewLedgerMessage(t MessageType, e core.Expense) *LedgerMessage {
	return &LedgerMessage{
		ID:        uuid.NewString(),
		Type:      t,
		Expense:   e,
		Timestamp: time.Now().UTC(),
	}
}

func (m *LedgerMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerMessageFromJSON decodes and checks a message body.
func LedgerMessageFromJSON(data []byte) (*LedgerMessage, error) {
	var msg LedgerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case MessageExpenseAdded, MessageExpenseRemoved:
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
	if msg.Expense.ID <= 0 {
		return nil, fmt.Errorf("message %s has no expense id", msg.ID)
	}
	return &msg, nil
}
