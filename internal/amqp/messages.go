package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finora/internal/core"
)

// EventType names a change to a user's ledger.
type EventType string

const (
	TransactionCreated    EventType = "transaction.created"
	TransactionUpdated    EventType = "transaction.updated"
	TransactionDeleted    EventType = "transaction.deleted"
	DebtPaymentRecorded   EventType = "debt.payment_recorded"
	DebtPaid              EventType = "debt.paid"
	GoalCompleted         EventType = "goal.completed"
	SubscriptionBilled    EventType = "subscription.billed"
	SubscriptionCancelled EventType = "subscription.cancelled"
)

func (t EventType) Valid() bool {
	switch t {
	case TransactionCreated, TransactionUpdated, TransactionDeleted,
		DebtPaymentRecorded, DebtPaid, GoalCompleted, SubscriptionBilled, SubscriptionCancelled:
		return true
	}
	return false
}

// LedgerEvent is a lightweight notification. Consumers load the entity
// itself from the database, scoped to UserID.
type LedgerEvent struct {
	Type        EventType `json:"type"`
	UserID      string    `json:"user_id"`
	EntityID    string    `json:"entity_id"`
	AmountCents int64     `json:"amount_cents"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewLedgerEvent(eventType EventType, userID, entityID string, amount core.Money) *LedgerEvent {
	return &LedgerEvent{
		Type:        eventType,
		UserID:      userID,
		EntityID:    entityID,
		AmountCents: amount.Cents,
		Timestamp:   time.Now().UTC(),
	}
}

func (e *LedgerEvent) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.UserID == "" || e.EntityID == "" {
		return errors.New("event without user or entity")
	}
	return nil
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
