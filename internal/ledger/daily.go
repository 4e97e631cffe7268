package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vaultcraft/backend/internal/models"
)

// ClaimResult is the success shape of a daily claim.
type ClaimResult struct {
	NewBalance int64  `json:"newBalance"`
	Reward     int64  `json:"reward"`
	Message    string `json:"message"`
}

// ClaimDaily credits the configured reward once per reset period. The period
// boundary is the configured daily instant (default 06:30) in the reference
// timezone: a claim is denied while lastClaimAt >= lastReset, and the denial
// carries the time remaining until the next boundary.
func (l *Ledger) ClaimDaily(ctx context.Context, accountID string) (*ClaimResult, error) {
	now := l.clock()
	reset := l.lastReset(now)

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return nil, l.classify("daily", accountID, err)
	}
	defer tx.Rollback()

	// The account row lock serializes concurrent claims by the same player,
	// so double-crediting inside one period is impossible.
	if _, err := tx.LockAccount(ctx, accountID); err != nil {
		if errors.Is(err, ErrAccountMissing) {
			return nil, notFound(CodeAccountNotFound, accountID)
		}
		return nil, l.classify("daily", accountID, err)
	}

	lastClaim, claimed, err := tx.LastDailyClaim(ctx, accountID)
	if err != nil {
		return nil, l.classify("daily", accountID, err)
	}
	if claimed && !lastClaim.Before(reset) {
		return nil, alreadyClaimed(reset.Add(24 * time.Hour).Sub(now))
	}

	newBalance, err := tx.AdjustBalance(ctx, accountID, l.cfg.RewardAmount)
	if err != nil {
		return nil, l.classify("daily", accountID, err)
	}
	if err := tx.UpsertDailyClaim(ctx, accountID, now); err != nil {
		return nil, l.classify("daily", accountID, err)
	}

	rec := &models.TransactionRecord{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Action:       models.ActionDaily,
		Amount:       l.cfg.RewardAmount,
		BalanceAfter: newBalance,
		CreatedAt:    now,
	}
	if err := tx.AppendRecord(ctx, rec); err != nil {
		return nil, l.classify("daily", accountID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, l.classify("daily", accountID, err)
	}

	return &ClaimResult{
		NewBalance: newBalance,
		Reward:     l.cfg.RewardAmount,
		Message:    fmt.Sprintf("Daily reward of %d deposited", l.cfg.RewardAmount),
	}, nil
}

// lastReset returns the most recent occurrence of the reset instant at or
// before now. Before today's instant that is yesterday's occurrence.
func (l *Ledger) lastReset(now time.Time) time.Time {
	local := now.In(l.cfg.Location)
	reset := time.Date(local.Year(), local.Month(), local.Day(),
		l.cfg.ResetHour, l.cfg.ResetMinute, 0, 0, l.cfg.Location)
	if local.Before(reset) {
		reset = reset.AddDate(0, 0, -1)
	}
	return reset
}
