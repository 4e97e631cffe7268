package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vaultcraft/backend/internal/models"
)

// memStore is an in-memory Store. Begin takes the store mutex and stages a
// copy of the state; Commit publishes it, Rollback discards it. That gives
// the same atomicity and serialization the Postgres adapter provides.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	records  []models.TransactionRecord
	claims   map[string]time.Time
	mobDates map[string]string
}

func newMemStore(accounts ...*models.Account) *memStore {
	s := &memStore{
		accounts: map[string]*models.Account{},
		claims:   map[string]time.Time{},
		mobDates: map[string]string{},
	}
	for _, a := range accounts {
		copy := *a
		s.accounts[a.ID] = &copy
	}
	return s
}

func (s *memStore) Begin(ctx context.Context) (Tx, error) {
	s.mu.Lock()
	tx := &memTx{store: s, accounts: map[string]*models.Account{}, claims: map[string]time.Time{}}
	for id, a := range s.accounts {
		copy := *a
		tx.accounts[id] = &copy
	}
	for id, at := range s.claims {
		tx.claims[id] = at
	}
	return tx, nil
}

func (s *memStore) GetBalance(ctx context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return 0, ErrAccountMissing
	}
	return acct.Balance, nil
}

func (s *memStore) TopBalances(ctx context.Context, n int) ([]models.TopEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := []models.TopEntry{}
	for _, a := range s.accounts {
		entries = append(entries, models.TopEntry{Name: a.Name, Balance: a.Balance})
	}
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			if entries[j].Balance > entries[i].Balance {
				entries[i], entries[j] = entries[j], entries[i]
			}
		}
	}
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func (s *memStore) RecentRecords(ctx context.Context, accountID string, limit int) ([]models.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.TransactionRecord{}
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if s.records[i].AccountID == accountID {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

func (s *memStore) MarkMobLimit(ctx context.Context, accountID, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mobDates[accountID] = date
	return nil
}

func (s *memStore) MobLimitReached(ctx context.Context, accountID, date string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mobDates[accountID] == date, nil
}

func (s *memStore) UpsertAccount(ctx context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.accounts[id]; ok {
		acct.Name = name
		return nil
	}
	s.accounts[id] = &models.Account{ID: id, Name: name}
	return nil
}

func (s *memStore) total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, a := range s.accounts {
		sum += a.Balance
	}
	return sum
}

type memTx struct {
	store    *memStore
	accounts map[string]*models.Account
	claims   map[string]time.Time
	appended []models.TransactionRecord
	done     bool
}

func (t *memTx) LockAccount(ctx context.Context, id string) (*models.Account, error) {
	acct, ok := t.accounts[id]
	if !ok {
		return nil, ErrAccountMissing
	}
	copy := *acct
	return &copy, nil
}

func (t *memTx) AdjustBalance(ctx context.Context, id string, delta int64) (int64, error) {
	acct, ok := t.accounts[id]
	if !ok {
		return 0, ErrAccountMissing
	}
	acct.Balance += delta
	return acct.Balance, nil
}

func (t *memTx) AppendRecord(ctx context.Context, rec *models.TransactionRecord) error {
	t.appended = append(t.appended, *rec)
	return nil
}

func (t *memTx) LastDailyClaim(ctx context.Context, accountID string) (time.Time, bool, error) {
	at, ok := t.claims[accountID]
	return at, ok, nil
}

func (t *memTx) UpsertDailyClaim(ctx context.Context, accountID string, at time.Time) error {
	t.claims[accountID] = at
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.accounts = t.accounts
	t.store.claims = t.claims
	t.store.records = append(t.store.records, t.appended...)
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func testLedger(store Store) *Ledger {
	return New(store, Config{
		RewardAmount:        500,
		ResetHour:           6,
		ResetMinute:         30,
		Location:            time.UTC,
		DefaultDenomination: 1000,
	}, nil)
}

func TestLedger_Pay(t *testing.T) {
	ctx := context.Background()

	t.Run("successful pay conserves total", func(t *testing.T) {
		store := newMemStore(
			&models.Account{ID: "alice", Name: "Alice", Balance: 1000},
			&models.Account{ID: "bob", Name: "Bob", Balance: 200},
		)
		l := testLedger(store)

		newBalance, err := l.Pay(ctx, "alice", "bob", 300)
		assert.NoError(t, err)
		assert.Equal(t, int64(700), newBalance)

		bob, _ := l.GetBalance(ctx, "bob")
		assert.Equal(t, int64(500), bob)
		assert.Equal(t, int64(1200), store.total())

		recs, err := l.History(ctx, "alice", 10)
		assert.NoError(t, err)
		assert.Len(t, recs, 1)
		assert.Equal(t, models.ActionPay, recs[0].Action)
		assert.Equal(t, "bob", recs[0].CounterpartyID)
		assert.Equal(t, int64(700), recs[0].BalanceAfter)
	})

	t.Run("insufficient funds leaves both untouched", func(t *testing.T) {
		store := newMemStore(
			&models.Account{ID: "alice", Balance: 100},
			&models.Account{ID: "bob", Balance: 50},
		)
		l := testLedger(store)

		_, err := l.Pay(ctx, "alice", "bob", 150)
		le, ok := AsError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeInsufficientFunds, le.Code)
		assert.Equal(t, KindBusinessRule, le.Kind)

		alice, _ := l.GetBalance(ctx, "alice")
		bob, _ := l.GetBalance(ctx, "bob")
		assert.Equal(t, int64(100), alice)
		assert.Equal(t, int64(50), bob)
		assert.Equal(t, int64(150), store.total())
	})

	t.Run("invalid amount", func(t *testing.T) {
		l := testLedger(newMemStore(&models.Account{ID: "alice", Balance: 100}))

		for _, amount := range []int64{0, -5} {
			_, err := l.Pay(ctx, "alice", "bob", amount)
			le, ok := AsError(err)
			assert.True(t, ok)
			assert.Equal(t, CodeInvalidAmount, le.Code)
			assert.Equal(t, KindValidation, le.Kind)
		}
	})

	t.Run("self payment rejected", func(t *testing.T) {
		l := testLedger(newMemStore(&models.Account{ID: "alice", Balance: 100}))

		_, err := l.Pay(ctx, "alice", "alice", 10)
		le, ok := AsError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeInvalidRecipient, le.Code)
	})

	t.Run("unknown sender", func(t *testing.T) {
		l := testLedger(newMemStore(&models.Account{ID: "bob", Balance: 100}))

		_, err := l.Pay(ctx, "ghost", "bob", 10)
		le, ok := AsError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeSenderNotFound, le.Code)
		assert.Equal(t, KindNotFound, le.Kind)
	})

	t.Run("unknown recipient rolls back debit", func(t *testing.T) {
		store := newMemStore(&models.Account{ID: "alice", Balance: 100})
		l := testLedger(store)

		_, err := l.Pay(ctx, "alice", "ghost", 10)
		le, ok := AsError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeRecipientNotFound, le.Code)

		alice, _ := l.GetBalance(ctx, "alice")
		assert.Equal(t, int64(100), alice)
	})
}

func TestLedger_ConcurrentPays(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(
		&models.Account{ID: "alice", Balance: 100},
		&models.Account{ID: "bob", Balance: 100},
	)
	l := testLedger(store)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := l.Pay(ctx, "alice", "bob", 30)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := l.Pay(ctx, "bob", "alice", 50)
		assert.NoError(t, err)
	}()
	wg.Wait()

	alice, _ := l.GetBalance(ctx, "alice")
	bob, _ := l.GetBalance(ctx, "bob")
	assert.Equal(t, int64(120), alice)
	assert.Equal(t, int64(80), bob)
	assert.Equal(t, int64(200), store.total())
}

func TestLedger_Deposit(t *testing.T) {
	ctx := context.Background()

	t.Run("credits and records balance after", func(t *testing.T) {
		store := newMemStore(&models.Account{ID: "alice", Balance: 100})
		l := testLedger(store)

		newBalance, err := l.Deposit(ctx, "alice", 50)
		assert.NoError(t, err)
		assert.Equal(t, int64(150), newBalance)

		recs, _ := l.History(ctx, "alice", 10)
		assert.Len(t, recs, 1)
		assert.Equal(t, models.ActionDeposit, recs[0].Action)
		assert.Equal(t, int64(150), recs[0].BalanceAfter)
	})

	t.Run("unknown account", func(t *testing.T) {
		l := testLedger(newMemStore())

		_, err := l.Deposit(ctx, "ghost", 50)
		le, ok := AsError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeAccountNotFound, le.Code)
	})

	t.Run("invalid amount", func(t *testing.T) {
		l := testLedger(newMemStore(&models.Account{ID: "alice", Balance: 100}))

		_, err := l.Deposit(ctx, "alice", -1)
		le, ok := AsError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeInvalidAmount, le.Code)
	})
}

func TestLedger_Withdraw(t *testing.T) {
	ctx := context.Background()

	t.Run("two bills of five hundred", func(t *testing.T) {
		store := newMemStore(&models.Account{ID: "alice", Balance: 1200})
		l := testLedger(store)

		result, err := l.Withdraw(ctx, "alice", 2, 500)
		assert.NoError(t, err)
		assert.Equal(t, int64(1000), result.Withdrawn)
		assert.Equal(t, int64(200), result.NewBalance)
		assert.Equal(t, int64(500), result.Denomination)
		assert.Equal(t, int64(2), result.Count)

		recs, _ := l.History(ctx, "alice", 10)
		assert.Len(t, recs, 1)
		assert.Equal(t, int64(500), recs[0].Denomination)
		assert.Equal(t, int64(2), recs[0].Count)
	})

	t.Run("insufficient funds keeps balance", func(t *testing.T) {
		store := newMemStore(&models.Account{ID: "alice", Balance: 1200})
		l := testLedger(store)

		_, err := l.Withdraw(ctx, "alice", 3, 500)
		le, ok := AsError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeInsufficientFunds, le.Code)

		alice, _ := l.GetBalance(ctx, "alice")
		assert.Equal(t, int64(1200), alice)
	})

	t.Run("default denomination", func(t *testing.T) {
		store := newMemStore(&models.Account{ID: "alice", Balance: 5000})
		l := testLedger(store)

		result, err := l.Withdraw(ctx, "alice", 2, 0)
		assert.NoError(t, err)
		assert.Equal(t, int64(1000), result.Denomination)
		assert.Equal(t, int64(2000), result.Withdrawn)
	})

	t.Run("oversized request cannot wrap the amount", func(t *testing.T) {
		store := newMemStore(&models.Account{ID: "alice", Balance: 100})
		l := testLedger(store)

		// 3037000500^2 overflows int64; a wrapped negative amount would pass
		// the funds check and credit instead of debit.
		_, err := l.Withdraw(ctx, "alice", 3037000500, 3037000500)
		le, ok := AsError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeInvalidAmount, le.Code)
		assert.Equal(t, KindValidation, le.Kind)

		alice, _ := l.GetBalance(ctx, "alice")
		assert.Equal(t, int64(100), alice)
		recs, _ := l.History(ctx, "alice", 10)
		assert.Empty(t, recs)
	})

	t.Run("invalid count", func(t *testing.T) {
		l := testLedger(newMemStore(&models.Account{ID: "alice", Balance: 5000}))

		_, err := l.Withdraw(ctx, "alice", 0, 500)
		le, ok := AsError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeInvalidAmount, le.Code)
	})
}

func TestLedger_GetBalanceIdempotent(t *testing.T) {
	ctx := context.Background()
	l := testLedger(newMemStore(&models.Account{ID: "alice", Balance: 777}))

	first, err := l.GetBalance(ctx, "alice")
	assert.NoError(t, err)
	second, err := l.GetBalance(ctx, "alice")
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLedger_Top(t *testing.T) {
	ctx := context.Background()
	l := testLedger(newMemStore(
		&models.Account{ID: "a", Name: "Alice", Balance: 50},
		&models.Account{ID: "b", Name: "Bob", Balance: 300},
		&models.Account{ID: "c", Name: "Carol", Balance: 100},
	))

	entries, err := l.Top(ctx, 2)
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "Bob", entries[0].Name)
	assert.Equal(t, "Carol", entries[1].Name)
}

func TestLedger_MobLimit(t *testing.T) {
	ctx := context.Background()
	l := testLedger(newMemStore(&models.Account{ID: "alice", Balance: 0}))

	reached, err := l.CheckMobLimit(ctx, "alice")
	assert.NoError(t, err)
	assert.False(t, reached)

	assert.NoError(t, l.MarkMobLimit(ctx, "alice"))
	// Repeat marks are idempotent.
	assert.NoError(t, l.MarkMobLimit(ctx, "alice"))

	reached, err = l.CheckMobLimit(ctx, "alice")
	assert.NoError(t, err)
	assert.True(t, reached)
}

// contendedStore fails Begin with the contention sentinel.
type contendedStore struct {
	*memStore
}

func (s *contendedStore) Begin(ctx context.Context) (Tx, error) {
	return nil, ErrContended
}

func TestLedger_TransientClassification(t *testing.T) {
	ctx := context.Background()
	l := testLedger(&contendedStore{newMemStore(&models.Account{ID: "alice", Balance: 100})})

	_, err := l.Pay(ctx, "alice", "bob", 10)
	assert.True(t, IsTransient(err))
	le, _ := AsError(err)
	assert.Equal(t, CodeContention, le.Code)
}
