// Package ledger implements the transactional currency engine: pay, deposit,
// withdraw and the daily reward claim, written against the Store contract so
// every backend shares one canonical implementation.
//
// Conservation invariant: a completed pay moves value between two accounts
// with a zero net delta. Deposit and withdraw are the only mint/burn points;
// they exchange currency against the external item economy and carry no
// conservation partner.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/vaultcraft/backend/internal/models"
)

// Clock supplies "now" so the daily-claim boundary is testable.
type Clock func() time.Time

// Config carries the tunable constants of the engine.
type Config struct {
	RewardAmount        int64          // credited by a successful daily claim
	ResetHour           int            // daily reset instant, local to Location
	ResetMinute         int
	Location            *time.Location // reference timezone for reset and mob-limit dates
	DefaultDenomination int64          // withdraw denomination when the caller omits one
}

// Ledger runs the balance-mutating operations. All state lives in the injected
// Store; Ledger itself is stateless and safe for concurrent use.
type Ledger struct {
	store Store
	clock Clock
	cfg   Config
}

// New builds a Ledger. A nil clock means time.Now; a nil location means UTC.
func New(store Store, cfg Config, clock Clock) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultDenomination <= 0 {
		cfg.DefaultDenomination = 1000
	}
	if cfg.RewardAmount <= 0 {
		cfg.RewardAmount = 100
	}
	return &Ledger{store: store, clock: clock, cfg: cfg}
}

// Pay moves amount from sender to recipient as one atomic unit: both balance
// mutations and the log append commit together or not at all. Returns the
// sender's new balance.
func (l *Ledger) Pay(ctx context.Context, senderID, recipientID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, invalidAmount("pay amount must be a positive integer, got %d", amount)
	}
	if senderID == recipientID {
		return 0, &Error{Kind: KindValidation, Code: CodeInvalidRecipient, Message: "cannot pay yourself"}
	}

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return 0, l.classify("pay", "", err)
	}
	defer tx.Rollback()

	// Lock both rows in identity order so two opposite-direction payments
	// cannot deadlock each other.
	first, second := senderID, recipientID
	if first > second {
		first, second = second, first
	}
	locked := map[string]*models.Account{}
	for _, id := range []string{first, second} {
		acct, err := tx.LockAccount(ctx, id)
		if err != nil {
			if errors.Is(err, ErrAccountMissing) {
				if id == senderID {
					return 0, notFound(CodeSenderNotFound, id)
				}
				return 0, notFound(CodeRecipientNotFound, id)
			}
			return 0, l.classify("pay", id, err)
		}
		locked[id] = acct
	}

	sender := locked[senderID]
	if sender.Balance < amount {
		return 0, insufficientFunds(sender.Balance, amount)
	}

	newBalance, err := tx.AdjustBalance(ctx, senderID, -amount)
	if err != nil {
		return 0, l.classify("pay", senderID, err)
	}
	if _, err := tx.AdjustBalance(ctx, recipientID, amount); err != nil {
		return 0, l.classify("pay", recipientID, err)
	}

	rec := &models.TransactionRecord{
		ID:             uuid.NewString(),
		AccountID:      senderID,
		Action:         models.ActionPay,
		Amount:         amount,
		CounterpartyID: recipientID,
		BalanceAfter:   newBalance,
		CreatedAt:      l.clock(),
	}
	if err := tx.AppendRecord(ctx, rec); err != nil {
		return 0, l.classify("pay", senderID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, l.classify("pay", senderID, err)
	}

	log.Printf("[LEDGER] pay %s -> %s amount=%d balance_after=%d", senderID, recipientID, amount, newBalance)
	return newBalance, nil
}

// Deposit mints amount into the account: the item-to-currency conversion
// happened outside the ledger, so there is no counterparty leg.
func (l *Ledger) Deposit(ctx context.Context, accountID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, invalidAmount("deposit amount must be a positive integer, got %d", amount)
	}

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return 0, l.classify("deposit", accountID, err)
	}
	defer tx.Rollback()

	if _, err := tx.LockAccount(ctx, accountID); err != nil {
		if errors.Is(err, ErrAccountMissing) {
			return 0, notFound(CodeAccountNotFound, accountID)
		}
		return 0, l.classify("deposit", accountID, err)
	}

	newBalance, err := tx.AdjustBalance(ctx, accountID, amount)
	if err != nil {
		return 0, l.classify("deposit", accountID, err)
	}

	rec := &models.TransactionRecord{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Action:       models.ActionDeposit,
		Amount:       amount,
		BalanceAfter: newBalance,
		CreatedAt:    l.clock(),
	}
	if err := tx.AppendRecord(ctx, rec); err != nil {
		return 0, l.classify("deposit", accountID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, l.classify("deposit", accountID, err)
	}

	log.Printf("[LEDGER] deposit %s amount=%d balance_after=%d", accountID, amount, newBalance)
	return newBalance, nil
}

// WithdrawResult reports an authorized burn. The physical bill issuance is an
// external effect; the ledger only authorizes and records it.
type WithdrawResult struct {
	Withdrawn    int64 `json:"withdrawn"`
	NewBalance   int64 `json:"newBalance"`
	Denomination int64 `json:"denomination"`
	Count        int64 `json:"count"`
}

// Withdraw burns count * denomination from the account. A denomination <= 0
// selects the configured default.
func (l *Ledger) Withdraw(ctx context.Context, accountID string, count, denomination int64) (*WithdrawResult, error) {
	if count <= 0 {
		return nil, invalidAmount("withdraw count must be a positive integer, got %d", count)
	}
	if denomination <= 0 {
		denomination = l.cfg.DefaultDenomination
	}
	// count * denomination must not wrap: a wrapped negative amount would turn
	// the debit below into a credit.
	if count > math.MaxInt64/denomination {
		return nil, invalidAmount("withdraw of %d x %d exceeds the maximum amount", count, denomination)
	}
	amount := count * denomination

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return nil, l.classify("withdraw", accountID, err)
	}
	defer tx.Rollback()

	acct, err := tx.LockAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountMissing) {
			return nil, notFound(CodeAccountNotFound, accountID)
		}
		return nil, l.classify("withdraw", accountID, err)
	}
	if acct.Balance < amount {
		return nil, insufficientFunds(acct.Balance, amount)
	}

	newBalance, err := tx.AdjustBalance(ctx, accountID, -amount)
	if err != nil {
		return nil, l.classify("withdraw", accountID, err)
	}

	rec := &models.TransactionRecord{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Action:       models.ActionWithdraw,
		Amount:       amount,
		Denomination: denomination,
		Count:        count,
		BalanceAfter: newBalance,
		CreatedAt:    l.clock(),
	}
	if err := tx.AppendRecord(ctx, rec); err != nil {
		return nil, l.classify("withdraw", accountID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, l.classify("withdraw", accountID, err)
	}

	log.Printf("[LEDGER] withdraw %s count=%d denomination=%d balance_after=%d", accountID, count, denomination, newBalance)
	return &WithdrawResult{Withdrawn: amount, NewBalance: newBalance, Denomination: denomination, Count: count}, nil
}

// GetBalance is a lock-free read.
func (l *Ledger) GetBalance(ctx context.Context, accountID string) (int64, error) {
	balance, err := l.store.GetBalance(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountMissing) {
			return 0, notFound(CodeAccountNotFound, accountID)
		}
		return 0, l.classify("balance", accountID, err)
	}
	return balance, nil
}

// Top returns the n richest accounts, balance descending. n <= 0 means 10.
func (l *Ledger) Top(ctx context.Context, n int) ([]models.TopEntry, error) {
	if n <= 0 {
		n = 10
	}
	if n > 100 {
		n = 100
	}
	entries, err := l.store.TopBalances(ctx, n)
	if err != nil {
		return nil, l.classify("top", "", err)
	}
	return entries, nil
}

// History returns the account's most recent transaction records.
func (l *Ledger) History(ctx context.Context, accountID string, limit int) ([]models.TransactionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if _, err := l.GetBalance(ctx, accountID); err != nil {
		return nil, err
	}
	recs, err := l.store.RecentRecords(ctx, accountID, limit)
	if err != nil {
		return nil, l.classify("history", accountID, err)
	}
	return recs, nil
}

// MarkMobLimit records that the account hit today's mob cap. Idempotent.
func (l *Ledger) MarkMobLimit(ctx context.Context, accountID string) error {
	if err := l.store.MarkMobLimit(ctx, accountID, l.today()); err != nil {
		return l.classify("mob-limit", accountID, err)
	}
	return nil
}

// CheckMobLimit reports whether the account hit today's mob cap.
func (l *Ledger) CheckMobLimit(ctx context.Context, accountID string) (bool, error) {
	reached, err := l.store.MobLimitReached(ctx, accountID, l.today())
	if err != nil {
		return false, l.classify("mob-limit", accountID, err)
	}
	return reached, nil
}

func (l *Ledger) today() string {
	return l.clock().In(l.cfg.Location).Format("2006-01-02")
}

// classify maps store failures onto the error taxonomy. Contention and
// deadline aborts become transient; anything else is wrapped for the caller
// to treat as internal.
func (l *Ledger) classify(op, accountID string, err error) error {
	if le, ok := AsError(err); ok {
		return le
	}
	if errors.Is(err, ErrContended) || errors.Is(err, context.DeadlineExceeded) {
		return contention(op, err)
	}
	if accountID != "" {
		return fmt.Errorf("ledger: %s %s: %w", op, accountID, err)
	}
	return fmt.Errorf("ledger: %s: %w", op, err)
}
