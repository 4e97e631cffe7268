package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vaultcraft/backend/internal/models"
)

func dailyLedger(store Store, now *time.Time) *Ledger {
	return New(store, Config{
		RewardAmount: 500,
		ResetHour:    6,
		ResetMinute:  30,
		Location:     time.UTC,
	}, func() time.Time { return *now })
}

func TestLedger_ClaimDaily(t *testing.T) {
	ctx := context.Background()
	day := func(d, hour, min int) time.Time {
		return time.Date(2026, time.March, d, hour, min, 0, 0, time.UTC)
	}

	t.Run("first claim after reset succeeds", func(t *testing.T) {
		now := day(10, 7, 0)
		store := newMemStore(&models.Account{ID: "alice", Balance: 100})
		l := dailyLedger(store, &now)

		result, err := l.ClaimDaily(ctx, "alice")
		assert.NoError(t, err)
		assert.Equal(t, int64(600), result.NewBalance)
		assert.Equal(t, int64(500), result.Reward)
		assert.Contains(t, result.Message, "500")

		recs, _ := l.History(ctx, "alice", 10)
		assert.Len(t, recs, 1)
		assert.Equal(t, models.ActionDaily, recs[0].Action)
		assert.Equal(t, int64(600), recs[0].BalanceAfter)
	})

	t.Run("second claim same period is denied without mutation", func(t *testing.T) {
		now := day(10, 7, 0)
		store := newMemStore(&models.Account{ID: "alice", Balance: 100})
		l := dailyLedger(store, &now)

		_, err := l.ClaimDaily(ctx, "alice")
		assert.NoError(t, err)

		now = day(10, 12, 0)
		_, err = l.ClaimDaily(ctx, "alice")
		le, ok := AsError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeAlreadyClaimed, le.Code)
		assert.Equal(t, KindBusinessRule, le.Kind)
		assert.Greater(t, le.RetryAfter, time.Duration(0))

		balance, _ := l.GetBalance(ctx, "alice")
		assert.Equal(t, int64(600), balance)
		recs, _ := l.History(ctx, "alice", 10)
		assert.Len(t, recs, 1)
	})

	t.Run("claim allowed again after next reset", func(t *testing.T) {
		now := day(10, 7, 0)
		store := newMemStore(&models.Account{ID: "alice", Balance: 0})
		l := dailyLedger(store, &now)

		_, err := l.ClaimDaily(ctx, "alice")
		assert.NoError(t, err)

		now = day(11, 6, 31)
		result, err := l.ClaimDaily(ctx, "alice")
		assert.NoError(t, err)
		assert.Equal(t, int64(1000), result.NewBalance)
	})

	t.Run("before reset the period is still yesterday's", func(t *testing.T) {
		// Claimed at 23:00; at 06:29 next day lastReset is still yesterday
		// 06:30, so the claim is denied.
		now := day(10, 23, 0)
		store := newMemStore(&models.Account{ID: "alice", Balance: 0})
		l := dailyLedger(store, &now)

		_, err := l.ClaimDaily(ctx, "alice")
		assert.NoError(t, err)

		now = day(11, 6, 29)
		_, err = l.ClaimDaily(ctx, "alice")
		le, ok := AsError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeAlreadyClaimed, le.Code)

		// One minute later the boundary has passed.
		now = day(11, 6, 30)
		_, err = l.ClaimDaily(ctx, "alice")
		assert.NoError(t, err)
	})

	t.Run("claim exactly at the reset instant opens a new period", func(t *testing.T) {
		now := day(10, 6, 30)
		store := newMemStore(&models.Account{ID: "alice", Balance: 0})
		l := dailyLedger(store, &now)

		// lastReset == now: never claimed, allowed.
		_, err := l.ClaimDaily(ctx, "alice")
		assert.NoError(t, err)

		// A claim timestamped exactly at the boundary counts as inside the
		// new period.
		_, err = l.ClaimDaily(ctx, "alice")
		le, ok := AsError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeAlreadyClaimed, le.Code)
	})

	t.Run("unknown account", func(t *testing.T) {
		now := day(10, 7, 0)
		l := dailyLedger(newMemStore(), &now)

		_, err := l.ClaimDaily(ctx, "ghost")
		le, ok := AsError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeAccountNotFound, le.Code)
	})

	t.Run("denied claim reports floored remaining time", func(t *testing.T) {
		now := day(10, 7, 0)
		store := newMemStore(&models.Account{ID: "alice", Balance: 0})
		l := dailyLedger(store, &now)

		_, err := l.ClaimDaily(ctx, "alice")
		assert.NoError(t, err)

		now = day(10, 8, 15)
		_, err = l.ClaimDaily(ctx, "alice")
		le, ok := AsError(err)
		assert.True(t, ok)
		// Next reset is 06:30 tomorrow: 22h15m away.
		assert.Equal(t, 22*time.Hour+15*time.Minute, le.RetryAfter)
		assert.Contains(t, le.Message, "22h 15m")
	})
}

func TestLastReset(t *testing.T) {
	l := New(newMemStore(), Config{ResetHour: 6, ResetMinute: 30, Location: time.UTC}, nil)

	t.Run("after the instant", func(t *testing.T) {
		now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, time.March, 10, 6, 30, 0, 0, time.UTC), l.lastReset(now))
	})

	t.Run("before the instant", func(t *testing.T) {
		now := time.Date(2026, time.March, 10, 5, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, time.March, 9, 6, 30, 0, 0, time.UTC), l.lastReset(now))
	})

	t.Run("exactly at the instant", func(t *testing.T) {
		now := time.Date(2026, time.March, 10, 6, 30, 0, 0, time.UTC)
		assert.Equal(t, now, l.lastReset(now))
	})
}
