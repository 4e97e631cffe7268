package database

import (
	"database/sql"
	"log"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS players (
		id SERIAL PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL,
		display_name TEXT NOT NULL,
		account_id TEXT UNIQUE NOT NULL,
		last_login TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS currency_transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		action TEXT NOT NULL,
		amount BIGINT NOT NULL,
		counterparty_id TEXT,
		denomination BIGINT,
		count BIGINT,
		balance_after BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_currency_transactions_account
		ON currency_transactions (account_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS daily_rewards (
		account_id TEXT PRIMARY KEY,
		last_claim_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS mob_limit_reached (
		account_id TEXT PRIMARY KEY,
		date_reached TEXT NOT NULL
	)`,
}

// EnsureSchema creates the tables on boot if they do not exist yet.
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	log.Println("Database schema ensured")
	return nil
}
