package services

import (
	"context"
	"testing"
	"time"

	"github.com/SamiulxHasanx07/atm-management-system/internal/config"
	"github.com/SamiulxHasanx07/atm-management-system/internal/models"
	"github.com/SamiulxHasanx07/atm-management-system/internal/security"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLedger struct {
	mock.Mock
}

var _ AccountLedger = (*MockLedger)(nil)

func (m *MockLedger) account(args mock.Arguments) (*models.Account, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockLedger) Create(ctx context.Context, req CreateAccountRequest) (*models.Account, error) {
	return m.account(m.Called(ctx, req))
}

func (m *MockLedger) FindByCard(ctx context.Context, cardNumber string) (*models.Account, error) {
	return m.account(m.Called(ctx, cardNumber))
}

func (m *MockLedger) FindByAccountNumber(ctx context.Context, accountNumber string) (*models.Account, error) {
	return m.account(m.Called(ctx, accountNumber))
}

func (m *MockLedger) FindByPhone(ctx context.Context, phone string) (*models.Account, error) {
	return m.account(m.Called(ctx, phone))
}

func (m *MockLedger) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return m.account(m.Called(ctx, email))
}

func (m *MockLedger) FindByNID(ctx context.Context, nid string) (*models.Account, error) {
	return m.account(m.Called(ctx, nid))
}

func (m *MockLedger) List(ctx context.Context) ([]models.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Account), args.Error(1)
}

func (m *MockLedger) Block(ctx context.Context, cardNumber string) error {
	return m.Called(ctx, cardNumber).Error(0)
}

func (m *MockLedger) Unblock(ctx context.Context, cardNumber string) error {
	return m.Called(ctx, cardNumber).Error(0)
}

func (m *MockLedger) Deposit(ctx context.Context, cardNumber string, amount decimal.Decimal) (*models.Account, error) {
	return m.account(m.Called(ctx, cardNumber, amount))
}

func (m *MockLedger) Withdraw(ctx context.Context, cardNumber string, amount decimal.Decimal) (*models.Account, error) {
	return m.account(m.Called(ctx, cardNumber, amount))
}

func (m *MockLedger) UpdatePIN(ctx context.Context, cardNumber, newPIN string) error {
	return m.Called(ctx, cardNumber, newPIN).Error(0)
}

func (m *MockLedger) RecoverPIN(ctx context.Context, cardNumber, newPIN string) error {
	return m.Called(ctx, cardNumber, newPIN).Error(0)
}

func (m *MockLedger) ResetPINByIdentity(ctx context.Context, cardNumber, identityProof string) (string, error) {
	args := m.Called(ctx, cardNumber, identityProof)
	return args.String(0), args.Error(1)
}

func (m *MockLedger) RecordTransaction(ctx context.Context, cardNumber string, amount decimal.Decimal, txType models.TransactionType) (*models.Transaction, error) {
	args := m.Called(ctx, cardNumber, amount, txType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockLedger) TransactionsFor(ctx context.Context, cardNumber string) ([]models.Transaction, error) {
	args := m.Called(ctx, cardNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transaction), args.Error(1)
}

// zeroReader yields zero bytes forever, so every generated number is all zeros.
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func newTestCodec(t *testing.T) *security.Argon2Codec {
	t.Helper()
	codec, err := security.NewArgon2Codec(security.Config{Salt: []byte("test-pepper-salt"), Memory: 1024, Threads: 1})
	require.NoError(t, err)
	return codec
}

func newTestLedger(t *testing.T, opts ...LedgerOption) *MemoryLedger {
	t.Helper()
	return NewMemoryLedger(config.DefaultATMConfig(), newTestCodec(t), opts...)
}

func fixedClock(ts time.Time) LedgerOption {
	return WithClock(func() time.Time { return ts })
}

func sampleRequest(suffix string) CreateAccountRequest {
	return CreateAccountRequest{
		Name:           "Karim Ahmed",
		PhoneNumber:    "0171000000" + suffix,
		InitialDeposit: decimal.NewFromInt(1000),
		Email:          "karim" + suffix + "@example.com",
		Gender:         "Male",
		Profession:     "Engineer",
		NID:            "19901234" + suffix + "5678",
		Address:        "House 12, Road 5, Dhanmondi, Dhaka",
	}
}
