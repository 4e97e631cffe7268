package audit

import (
	"encoding/json"
	"log"
	"time"
)

type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	EventType    string    `json:"event_type"`
	AccountID    string    `json:"account_id"`
	Counterparty string    `json:"counterparty,omitempty"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	Status       string    `json:"status"`
	Details      any       `json:"details,omitempty"`
}

type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

// LogOperation records one committed balance-mutating operation.
func (a *Logger) LogOperation(action, accountID, counterparty string, amount, balanceAfter int64) {
	a.log(Event{
		Timestamp:    time.Now(),
		EventType:    action,
		AccountID:    accountID,
		Counterparty: counterparty,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Status:       "SUCCESS",
	})
}

func (a *Logger) LogError(action, accountID string, err error) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: action,
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
