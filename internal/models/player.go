package models

import "time"

// Player is a registered mod user. The player's account ID links to the
// accounts table; the ledger itself never touches this table.
type Player struct {
	ID          int        `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"displayName"`
	AccountID   string     `json:"accountId"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}
