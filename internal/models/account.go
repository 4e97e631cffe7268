package models

import (
	"time"
)

// Account holds one row per player: identity, display name, integer balance
// in the smallest currency denomination.
type Account struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Balance   int64     `json:"balance" db:"balance"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TopEntry is one leaderboard row, ordered by balance descending.
type TopEntry struct {
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}
