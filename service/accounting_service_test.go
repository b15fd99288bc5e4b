// file: service/accounting_service_test.go

package service

import (
	"context"
	"errors"
	"go-ledger-api/metrics"
	"go-ledger-api/model"
	"go-ledger-api/repository"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func newTestService() *AccountingService {
	return NewAccountingService(
		repository.NewAccountRepository(),
		repository.NewTransactionRepository(),
		NewLockRegistry(),
		nil,
	)
}

func mustCreate(t *testing.T, s *AccountingService, balance string) *model.Account {
	t.Helper()
	account, err := s.CreateAccount(context.Background(), decPtr(balance))
	require.NoError(t, err)
	return account
}

func balanceOf(t *testing.T, s *AccountingService, id int64) decimal.Decimal {
	t.Helper()
	account, err := s.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return account.Balance
}

// runWithin fails the test if fn does not return within d.
func runWithin(t *testing.T, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("did not finish within %s, possible deadlock", d)
	}
}

func TestAccountingService_CreateAccount(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	t.Run("success", func(t *testing.T) {
		account, err := s.CreateAccount(ctx, decPtr("100.00"))

		require.NoError(t, err)
		assert.NotEqual(t, model.NoID, account.ID)
		assert.True(t, account.Balance.Equal(dec("100.00")))
	})

	t.Run("balance is kept exactly", func(t *testing.T) {
		for _, b := range []string{"0", "0.01", "123.124", "9999999999999999999999999999999999.99"} {
			account, err := s.CreateAccount(ctx, decPtr(b))
			require.NoError(t, err)
			assert.True(t, account.Balance.Equal(dec(b)), b)
			assert.True(t, balanceOf(t, s, account.ID).Equal(dec(b)), b)
		}
	})

	t.Run("negative balance", func(t *testing.T) {
		before := s.accounts.(*repository.AccountRepository).Count()

		_, err := s.CreateAccount(ctx, decPtr("-5.00"))

		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Equal(t, before, s.accounts.(*repository.AccountRepository).Count())
	})

	t.Run("missing balance", func(t *testing.T) {
		_, err := s.CreateAccount(ctx, nil)

		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("balance out of range", func(t *testing.T) {
		before := s.accounts.(*repository.AccountRepository).Count()

		for _, b := range []string{"1e20000000", "1e-20000000"} {
			_, err := s.CreateAccount(ctx, decPtr(b))

			assert.ErrorIs(t, err, ErrInvalidArgument, b)
			assert.ErrorIs(t, err, model.ErrOutOfRange, b)
		}
		assert.Equal(t, before, s.accounts.(*repository.AccountRepository).Count())
	})

	t.Run("fresh ids", func(t *testing.T) {
		a := mustCreate(t, s, "1")
		b := mustCreate(t, s, "1")
		assert.Less(t, a.ID, b.ID)
	})
}

func TestAccountingService_GetAccount(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	t.Run("not found", func(t *testing.T) {
		_, err := s.GetAccount(ctx, 12345)

		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("returns a copy", func(t *testing.T) {
		created := mustCreate(t, s, "10")

		account, err := s.GetAccount(ctx, created.ID)
		require.NoError(t, err)
		account.Increase(dec("1000"))

		assert.True(t, balanceOf(t, s, created.ID).Equal(dec("10")))
	})
}

func TestAccountingService_Transfer(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		s := newTestService()
		a := mustCreate(t, s, "100.00")
		b := mustCreate(t, s, "0.00")

		transaction, err := s.Transfer(ctx, a.ID, b.ID, dec("30.00"))

		require.NoError(t, err)
		assert.True(t, balanceOf(t, s, a.ID).Equal(dec("70.00")))
		assert.True(t, balanceOf(t, s, b.ID).Equal(dec("30.00")))
		assert.NotEqual(t, model.NoID, transaction.ID)
		assert.Equal(t, a.ID, transaction.SourceAccountID)
		assert.Equal(t, b.ID, transaction.DestinationAccountID)
		assert.True(t, transaction.Amount.Equal(dec("30.00")))
		assert.False(t, transaction.Timestamp.IsZero())

		stored, err := s.GetTransaction(ctx, transaction.ID)
		require.NoError(t, err)
		assert.Same(t, transaction, stored)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		s := newTestService()
		a := mustCreate(t, s, "10.00")
		b := mustCreate(t, s, "0.00")

		_, err := s.Transfer(ctx, a.ID, b.ID, dec("50.00"))

		assert.ErrorIs(t, err, model.ErrInsufficientBalance)
		var balanceErr *model.InsufficientBalanceError
		require.ErrorAs(t, err, &balanceErr)
		assert.Equal(t, "10.00", balanceErr.Balance.StringFixed(2))

		assert.True(t, balanceOf(t, s, a.ID).Equal(dec("10.00")))
		assert.True(t, balanceOf(t, s, b.ID).Equal(dec("0.00")))
		txs, err := s.ListTransactions(ctx, a.ID)
		require.NoError(t, err)
		assert.Empty(t, txs)
	})

	t.Run("drains to exactly zero", func(t *testing.T) {
		s := newTestService()
		a := mustCreate(t, s, "10.00")
		b := mustCreate(t, s, "0")

		_, err := s.Transfer(ctx, a.ID, b.ID, dec("10"))

		require.NoError(t, err)
		assert.True(t, balanceOf(t, s, a.ID).IsZero())
	})

	t.Run("non-positive amount", func(t *testing.T) {
		s := newTestService()
		a := mustCreate(t, s, "10.00")
		b := mustCreate(t, s, "0")

		for _, amount := range []string{"0", "-1"} {
			_, err := s.Transfer(ctx, a.ID, b.ID, dec(amount))
			assert.ErrorIs(t, err, ErrInvalidArgument, amount)
		}
		assert.True(t, balanceOf(t, s, a.ID).Equal(dec("10")))
	})

	t.Run("unknown accounts", func(t *testing.T) {
		s := newTestService()
		a := mustCreate(t, s, "10.00")

		_, err := s.Transfer(ctx, a.ID, 999, dec("1"))
		assert.ErrorIs(t, err, ErrAccountNotFound)

		_, err = s.Transfer(ctx, 999, a.ID, dec("1"))
		assert.ErrorIs(t, err, ErrAccountNotFound)

		assert.True(t, balanceOf(t, s, a.ID).Equal(dec("10")))
	})

	t.Run("self transfer", func(t *testing.T) {
		s := newTestService()
		a := mustCreate(t, s, "10.00")

		var transaction *model.Transaction
		var err error
		runWithin(t, 5*time.Second, func() {
			transaction, err = s.Transfer(ctx, a.ID, a.ID, dec("4"))
		})

		require.NoError(t, err)
		assert.Equal(t, a.ID, transaction.SourceAccountID)
		assert.Equal(t, a.ID, transaction.DestinationAccountID)
		assert.True(t, balanceOf(t, s, a.ID).Equal(dec("10")))

		txs, err := s.ListTransactions(ctx, a.ID)
		require.NoError(t, err)
		assert.Len(t, txs, 1)
	})

	t.Run("self transfer above balance", func(t *testing.T) {
		s := newTestService()
		a := mustCreate(t, s, "10.00")

		_, err := s.Transfer(ctx, a.ID, a.ID, dec("11"))

		assert.ErrorIs(t, err, model.ErrInsufficientBalance)
		assert.True(t, balanceOf(t, s, a.ID).Equal(dec("10")))
	})

	t.Run("releases locks after failure", func(t *testing.T) {
		s := newTestService()
		a := mustCreate(t, s, "1")
		b := mustCreate(t, s, "0")

		_, err := s.Transfer(ctx, a.ID, b.ID, dec("5"))
		require.Error(t, err)

		runWithin(t, 5*time.Second, func() {
			_, err = s.Transfer(ctx, a.ID, b.ID, dec("1"))
		})
		assert.NoError(t, err)
	})
}

func TestAccountingService_Validate(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	a := mustCreate(t, s, "10.00")
	b := mustCreate(t, s, "5.00")

	t.Run("feasible", func(t *testing.T) {
		err := s.Validate(ctx, a.ID, b.ID, dec("10.00"))

		assert.NoError(t, err)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		err := s.Validate(ctx, a.ID, b.ID, dec("10.01"))

		assert.ErrorIs(t, err, model.ErrInsufficientBalance)
	})

	t.Run("not found", func(t *testing.T) {
		assert.ErrorIs(t, s.Validate(ctx, a.ID, 404, dec("1")), ErrAccountNotFound)
		assert.ErrorIs(t, s.Validate(ctx, 404, a.ID, dec("1")), ErrAccountNotFound)
	})

	t.Run("invalid amount", func(t *testing.T) {
		assert.ErrorIs(t, s.Validate(ctx, a.ID, b.ID, dec("0")), ErrInvalidArgument)
		assert.ErrorIs(t, s.Validate(ctx, a.ID, b.ID, dec("1e20000000")), ErrInvalidArgument)
	})

	t.Run("self", func(t *testing.T) {
		runWithin(t, 5*time.Second, func() {
			assert.NoError(t, s.Validate(ctx, a.ID, a.ID, dec("3")))
		})
	})

	// Validation never changes state, whatever its outcome.
	assert.True(t, balanceOf(t, s, a.ID).Equal(dec("10.00")))
	assert.True(t, balanceOf(t, s, b.ID).Equal(dec("5.00")))
	txs, err := s.ListTransactions(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestAccountingService_ListTransactions(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	a := mustCreate(t, s, "100")
	b := mustCreate(t, s, "100")
	c := mustCreate(t, s, "100")

	t1, err := s.Transfer(ctx, a.ID, b.ID, dec("1"))
	require.NoError(t, err)
	t2, err := s.Transfer(ctx, c.ID, a.ID, dec("2"))
	require.NoError(t, err)
	_, err = s.Transfer(ctx, b.ID, c.ID, dec("3"))
	require.NoError(t, err)

	txs, err := s.ListTransactions(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, t1.ID, txs[0].ID)
	assert.Equal(t, t2.ID, txs[1].ID)

	_, err = s.ListTransactions(ctx, 404)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = s.GetTransaction(ctx, 404)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestAccountingService_ConcurrentReversedTransfers(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	a := mustCreate(t, s, "1000.00")
	b := mustCreate(t, s, "1000.00")

	var completed atomic.Int64
	runWithin(t, 30*time.Second, func() {
		var g errgroup.Group
		for i := 0; i < 50; i++ {
			g.Go(func() error {
				_, err := s.Transfer(ctx, a.ID, b.ID, dec("1.00"))
				if err == nil {
					completed.Add(1)
				}
				return err
			})
			g.Go(func() error {
				_, err := s.Transfer(ctx, b.ID, a.ID, dec("1.00"))
				if err == nil {
					completed.Add(1)
				}
				return err
			})
		}
		assert.NoError(t, g.Wait())
	})

	assert.Equal(t, int64(100), completed.Load())
	total := balanceOf(t, s, a.ID).Add(balanceOf(t, s, b.ID))
	assert.True(t, total.Equal(dec("2000.00")), "total is %s", total)
	assert.True(t, balanceOf(t, s, a.ID).Equal(dec("1000.00")))

	txs, err := s.ListTransactions(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 100)
}

func TestAccountingService_BalanceNeverObservedNegative(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	source := mustCreate(t, s, "50")
	sinks := []*model.Account{mustCreate(t, s, "0"), mustCreate(t, s, "0"), mustCreate(t, s, "0")}

	stop := make(chan struct{})
	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				account, err := s.GetAccount(ctx, source.ID)
				if err != nil || account.Balance.IsNegative() {
					t.Errorf("observed balance %v err %v", account, err)
					return
				}
			}
		}()
	}

	var succeeded atomic.Int64
	var g errgroup.Group
	for i := 0; i < 200; i++ {
		sink := sinks[i%len(sinks)]
		g.Go(func() error {
			_, err := s.Transfer(ctx, source.ID, sink.ID, dec("0.75"))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, model.ErrInsufficientBalance):
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(stop)
	readers.Wait()

	// 50 / 0.75 = 66 full transfers, leaving 0.50.
	assert.Equal(t, int64(66), succeeded.Load())
	assert.True(t, balanceOf(t, s, source.ID).Equal(dec("0.5")))

	total := balanceOf(t, s, source.ID)
	for _, sink := range sinks {
		total = total.Add(balanceOf(t, s, sink.ID))
	}
	assert.True(t, total.Equal(dec("50")))
}

// Lock waits are not bounded: a cancelled context does not release a caller
// queued behind a held account lock.
func TestAccountingService_LockWaitIgnoresCancelledContext(t *testing.T) {
	s := newTestService()
	a := mustCreate(t, s, "10")
	b := mustCreate(t, s, "0")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	held := s.locks.GetLock(lockNameForAccount(b.ID))
	held.Lock()

	done := make(chan error, 1)
	go func() {
		_, err := s.Transfer(ctx, a.ID, b.ID, dec("1"))
		done <- err
	}()

	select {
	case err := <-done:
		held.Unlock()
		t.Fatalf("transfer returned while the lock was held: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	held.Unlock()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("transfer did not resume after the lock was released")
	}
	assert.True(t, balanceOf(t, s, b.ID).Equal(dec("1")))
}

func TestAccountingService_DisjointPairsRunInParallel(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	a := mustCreate(t, s, "10")
	b := mustCreate(t, s, "0")
	c := mustCreate(t, s, "10")
	d := mustCreate(t, s, "0")

	// Hold a's lock; a transfer between c and d must still go through.
	held := s.locks.GetLock(lockNameForAccount(a.ID))
	held.Lock()

	blocked := make(chan error, 1)
	go func() {
		_, err := s.Transfer(ctx, a.ID, b.ID, dec("1"))
		blocked <- err
	}()

	runWithin(t, 5*time.Second, func() {
		_, err := s.Transfer(ctx, c.ID, d.ID, dec("1"))
		assert.NoError(t, err)
	})

	select {
	case err := <-blocked:
		t.Fatalf("transfer on a locked account finished early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	held.Unlock()
	select {
	case err := <-blocked:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("transfer did not resume after the lock was released")
	}
}

// --- persistence failures ---

type MockAccountRepository struct{ mock.Mock }

func (m *MockAccountRepository) Store(account *model.Account) (*model.Account, error) {
	args := m.Called(account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByID(id int64) (*model.Account, bool) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*model.Account), args.Bool(1)
}

type MockTransactionRepository struct{ mock.Mock }

func (m *MockTransactionRepository) Store(transaction *model.Transaction) (*model.Transaction, error) {
	args := m.Called(transaction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByID(id int64) (*model.Transaction, bool) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*model.Transaction), args.Bool(1)
}

func (m *MockTransactionRepository) FindByAccountID(accountID int64) []*model.Transaction {
	args := m.Called(accountID)
	return args.Get(0).([]*model.Transaction)
}

type MockCollector struct{ mock.Mock }

func (m *MockCollector) RecordTransfer(outcome string, duration time.Duration) {
	m.Called(outcome, duration)
}
func (m *MockCollector) RecordValidation(outcome string) { m.Called(outcome) }
func (m *MockCollector) RecordAccountCreated()           { m.Called() }
func (m *MockCollector) RecordLockWait(time.Duration)    {}
func (m *MockCollector) RecordLockCount(int)             {}

func TestAccountingService_TransferStoreFailure(t *testing.T) {
	ctx := context.Background()
	source := &model.Account{ID: 1, Balance: dec("100")}
	destination := &model.Account{ID: 2, Balance: dec("0")}

	t.Run("transaction store fails", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		transactions := new(MockTransactionRepository)
		collector := new(MockCollector)
		s := NewAccountingService(accounts, transactions, NewLockRegistry(), collector)

		accounts.On("FindByID", int64(1)).Return(source, true).Once()
		accounts.On("FindByID", int64(2)).Return(destination, true).Once()
		accounts.On("Store", mock.MatchedBy(func(a *model.Account) bool {
			return a != source && a != destination
		})).Return(&model.Account{}, nil).Twice()
		transactions.On("Store", mock.AnythingOfType("*model.Transaction")).Return(nil, errors.New("store unavailable")).Once()
		accounts.On("Store", source).Return(source, nil).Once()
		accounts.On("Store", destination).Return(destination, nil).Once()
		collector.On("RecordTransfer", metrics.OutcomeError, mock.Anything).Once()

		_, err := s.Transfer(ctx, 1, 2, dec("10"))

		assert.ErrorContains(t, err, "could not store transaction record")
		accounts.AssertExpectations(t)
		transactions.AssertExpectations(t)
		collector.AssertExpectations(t)
		assert.True(t, source.Balance.Equal(dec("100")))
		assert.True(t, destination.Balance.Equal(dec("0")))
	})

	t.Run("destination store fails", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		transactions := new(MockTransactionRepository)
		collector := new(MockCollector)
		s := NewAccountingService(accounts, transactions, NewLockRegistry(), collector)

		accounts.On("FindByID", int64(1)).Return(source, true).Once()
		accounts.On("FindByID", int64(2)).Return(destination, true).Once()
		accounts.On("Store", mock.MatchedBy(func(a *model.Account) bool {
			return a != source && a.ID == 1
		})).Return(&model.Account{ID: 1}, nil).Once()
		accounts.On("Store", mock.MatchedBy(func(a *model.Account) bool {
			return a.ID == 2
		})).Return(nil, errors.New("store unavailable")).Once()
		accounts.On("Store", source).Return(source, nil).Once()
		collector.On("RecordTransfer", metrics.OutcomeError, mock.Anything).Once()

		_, err := s.Transfer(ctx, 1, 2, dec("10"))

		assert.ErrorContains(t, err, "could not store destination account")
		accounts.AssertExpectations(t)
		transactions.AssertNotCalled(t, "Store", mock.Anything)
		collector.AssertExpectations(t)
	})

	t.Run("stores both accounts then the transaction", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		transactions := new(MockTransactionRepository)
		collector := new(MockCollector)
		s := NewAccountingService(accounts, transactions, NewLockRegistry(), collector)

		var order []string
		accounts.On("FindByID", int64(1)).Return(source, true).Once()
		accounts.On("FindByID", int64(2)).Return(destination, true).Once()
		accounts.On("Store", mock.MatchedBy(func(a *model.Account) bool {
			return a.ID == 1 && a.Balance.Equal(dec("90"))
		})).Return(&model.Account{ID: 1}, nil).Once().Run(func(mock.Arguments) { order = append(order, "source") })
		accounts.On("Store", mock.MatchedBy(func(a *model.Account) bool {
			return a.ID == 2 && a.Balance.Equal(dec("10"))
		})).Return(&model.Account{ID: 2}, nil).Once().Run(func(mock.Arguments) { order = append(order, "destination") })
		transactions.On("Store", mock.AnythingOfType("*model.Transaction")).
			Return(&model.Transaction{ID: 1}, nil).Once().Run(func(mock.Arguments) { order = append(order, "transaction") })
		collector.On("RecordTransfer", metrics.OutcomeSuccess, mock.Anything).Once()

		_, err := s.Transfer(ctx, 1, 2, dec("10"))

		require.NoError(t, err)
		assert.Equal(t, []string{"source", "destination", "transaction"}, order)
		accounts.AssertExpectations(t)
		transactions.AssertExpectations(t)
		collector.AssertExpectations(t)
		// The accounts handed out by the repository are never modified.
		assert.True(t, source.Balance.Equal(dec("100")))
		assert.True(t, destination.Balance.Equal(dec("0")))
	})

	t.Run("validation outcome is recorded", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		collector := new(MockCollector)
		s := NewAccountingService(accounts, new(MockTransactionRepository), NewLockRegistry(), collector)

		accounts.On("FindByID", int64(1)).Return(nil, false).Once()
		collector.On("RecordValidation", metrics.OutcomeNotFound).Once()

		err := s.Validate(ctx, 1, 2, dec("10"))

		assert.ErrorIs(t, err, ErrAccountNotFound)
		collector.AssertExpectations(t)
	})
}
