// Package postgres adapts a database/sql Postgres handle to the ledger.Store
// contract. Row locking uses SELECT ... FOR UPDATE; a per-transaction
// lock_timeout bounds the wait so contended operations abort as transient
// failures instead of queueing forever.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/vaultcraft/backend/internal/ledger"
	"github.com/vaultcraft/backend/internal/models"
)

type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func New(db *sql.DB, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &Store{db: db, lockTimeout: lockTimeout}
}

func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	// SET LOCAL scopes the timeout to this transaction only.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("set lock_timeout: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

func (s *Store) GetBalance(ctx context.Context, id string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = $1`, id).Scan(&balance)
	if err != nil {
		return 0, translate(err)
	}
	return balance, nil
}

func (s *Store) TopBalances(ctx context.Context, n int) ([]models.TopEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, balance FROM accounts
		ORDER BY balance DESC, name ASC
		LIMIT $1`, n)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	entries := []models.TopEntry{}
	for rows.Next() {
		var e models.TopEntry
		if err := rows.Scan(&e.Name, &e.Balance); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) RecentRecords(ctx context.Context, accountID string, limit int) ([]models.TransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, action, amount,
		       COALESCE(counterparty_id, ''), COALESCE(denomination, 0), COALESCE(count, 0),
		       balance_after, created_at
		FROM currency_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	records := []models.TransactionRecord{}
	for rows.Next() {
		var rec models.TransactionRecord
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.Action, &rec.Amount,
			&rec.CounterpartyID, &rec.Denomination, &rec.Count,
			&rec.BalanceAfter, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) MarkMobLimit(ctx context.Context, accountID, date string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mob_limit_reached (account_id, date_reached)
		VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET date_reached = EXCLUDED.date_reached`,
		accountID, date)
	return translate(err)
}

func (s *Store) MobLimitReached(ctx context.Context, accountID, date string) (bool, error) {
	var reached bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM mob_limit_reached
			WHERE account_id = $1 AND date_reached = $2
		)`, accountID, date).Scan(&reached)
	if err != nil {
		return false, translate(err)
	}
	return reached, nil
}

func (s *Store) UpsertAccount(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, balance, updated_at)
		VALUES ($1, $2, 0, NOW())
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()`,
		id, name)
	return translate(err)
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) LockAccount(ctx context.Context, id string) (*models.Account, error) {
	var acct models.Account
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, name, balance, updated_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE`, id).Scan(&acct.ID, &acct.Name, &acct.Balance, &acct.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &acct, nil
}

func (t *pgTx) AdjustBalance(ctx context.Context, id string, delta int64) (int64, error) {
	var balance int64
	err := t.tx.QueryRowContext(ctx, `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance`, delta, id).Scan(&balance)
	if err != nil {
		return 0, translate(err)
	}
	return balance, nil
}

func (t *pgTx) AppendRecord(ctx context.Context, rec *models.TransactionRecord) error {
	counterparty := sql.NullString{String: rec.CounterpartyID, Valid: rec.CounterpartyID != ""}
	denomination := sql.NullInt64{Int64: rec.Denomination, Valid: rec.Denomination != 0}
	count := sql.NullInt64{Int64: rec.Count, Valid: rec.Count != 0}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO currency_transactions
		(id, account_id, action, amount, counterparty_id, denomination, count, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.AccountID, rec.Action, rec.Amount,
		counterparty, denomination, count, rec.BalanceAfter, rec.CreatedAt)
	return translate(err)
}

func (t *pgTx) LastDailyClaim(ctx context.Context, accountID string) (time.Time, bool, error) {
	var at time.Time
	err := t.tx.QueryRowContext(ctx, `
		SELECT last_claim_at FROM daily_rewards WHERE account_id = $1`, accountID).Scan(&at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, translate(err)
	}
	return at, true, nil
}

func (t *pgTx) UpsertDailyClaim(ctx context.Context, accountID string, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO daily_rewards (account_id, last_claim_at)
		VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET last_claim_at = EXCLUDED.last_claim_at`,
		accountID, at)
	return translate(err)
}

func (t *pgTx) Commit() error {
	return translate(t.tx.Commit())
}

func (t *pgTx) Rollback() error {
	return t.tx.Rollback()
}

// translate maps driver failures onto the sentinels the engine classifies:
// missing rows and bounded-wait lock aborts. 55P03 is lock_not_available,
// 40001 serialization_failure, 40P01 deadlock_detected.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ErrAccountMissing
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "55P03", "40001", "40P01":
			return fmt.Errorf("%w: %v", ledger.ErrContended, err)
		}
	}
	return err
}
