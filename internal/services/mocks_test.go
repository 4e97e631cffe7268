package services

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vaultcraft/backend/internal/ledger"
	"github.com/vaultcraft/backend/internal/models"
)

// MockEngine implements Engine for handler tests.
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Pay(ctx context.Context, senderID, recipientID string, amount int64) (int64, error) {
	args := m.Called(ctx, senderID, recipientID, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEngine) Deposit(ctx context.Context, accountID string, amount int64) (int64, error) {
	args := m.Called(ctx, accountID, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEngine) Withdraw(ctx context.Context, accountID string, count, denomination int64) (*ledger.WithdrawResult, error) {
	args := m.Called(ctx, accountID, count, denomination)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.WithdrawResult), args.Error(1)
}

func (m *MockEngine) GetBalance(ctx context.Context, accountID string) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEngine) Top(ctx context.Context, n int) ([]models.TopEntry, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TopEntry), args.Error(1)
}

func (m *MockEngine) History(ctx context.Context, accountID string, limit int) ([]models.TransactionRecord, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TransactionRecord), args.Error(1)
}

func (m *MockEngine) ClaimDaily(ctx context.Context, accountID string) (*ledger.ClaimResult, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.ClaimResult), args.Error(1)
}

func (m *MockEngine) MarkMobLimit(ctx context.Context, accountID string) error {
	return m.Called(ctx, accountID).Error(0)
}

func (m *MockEngine) CheckMobLimit(ctx context.Context, accountID string) (bool, error) {
	args := m.Called(ctx, accountID)
	return args.Bool(0), args.Error(1)
}

// MockAccountUpserter implements AccountUpserter for auth tests.
type MockAccountUpserter struct {
	mock.Mock
}

func (m *MockAccountUpserter) UpsertAccount(ctx context.Context, id, name string) error {
	return m.Called(ctx, id, name).Error(0)
}
