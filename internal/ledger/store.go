package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/vaultcraft/backend/internal/models"
)

// Sentinel errors adapters return so operations can classify failures without
// knowing the backend.
var (
	// ErrAccountMissing is returned by account lookups when no row exists.
	ErrAccountMissing = errors.New("account missing")
	// ErrContended is returned when a row lock could not be acquired within
	// the backend's bounded wait.
	ErrContended = errors.New("lock contention")
)

// Tx is one atomic unit against the balance store, transaction log and
// daily-claim tracker. Either every write in the unit commits, or none do.
type Tx interface {
	// LockAccount reads the account row and blocks concurrent writers to it
	// until Commit or Rollback.
	LockAccount(ctx context.Context, id string) (*models.Account, error)

	// AdjustBalance applies a signed delta and returns the new balance.
	// Callers must have locked the row first and checked funds before any
	// debit; backends may reject a negative result but never compensate it.
	AdjustBalance(ctx context.Context, id string, delta int64) (int64, error)

	// AppendRecord writes one transaction log row in the same atomic unit.
	AppendRecord(ctx context.Context, rec *models.TransactionRecord) error

	// LastDailyClaim returns the account's last claim timestamp, or ok=false
	// if it has never claimed.
	LastDailyClaim(ctx context.Context, accountID string) (at time.Time, ok bool, err error)

	// UpsertDailyClaim records a successful claim.
	UpsertDailyClaim(ctx context.Context, accountID string, at time.Time) error

	Commit() error
	Rollback() error
}

// Store is the persistence contract the canonical operations are written
// against. Each backend supplies an adapter; the operations never see a
// concrete engine.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	// Lock-free reads. GetBalance returns ErrAccountMissing for unknown ids.
	GetBalance(ctx context.Context, id string) (int64, error)
	TopBalances(ctx context.Context, n int) ([]models.TopEntry, error)
	RecentRecords(ctx context.Context, accountID string, limit int) ([]models.TransactionRecord, error)

	// Mob-limit tracker: single-row upsert and read, no cross-account
	// atomicity required. Dates are YYYY-MM-DD.
	MarkMobLimit(ctx context.Context, accountID, date string) error
	MobLimitReached(ctx context.Context, accountID, date string) (bool, error)

	// UpsertAccount creates the account on first login and overwrites the
	// display name on later logins (last write wins). Balance is untouched
	// for existing rows.
	UpsertAccount(ctx context.Context, id, name string) error
}
