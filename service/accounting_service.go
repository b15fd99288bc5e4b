// file: service/accounting_service.go

package service

import (
	"context"
	"errors"
	"fmt"
	"go-ledger-api/logger"
	"go-ledger-api/metrics"
	"go-ledger-api/model"
	"go-ledger-api/repository"
	"slices"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// AccountingService manages accounts and the transfers between them.
//
// Every operation that touches an account holds that account's lock from the
// LockRegistry. When two accounts are involved both locks are taken in the
// order of their names, so callers naming the same pair in opposite
// directions cannot deadlock. Lock waits are not bounded by a deadline.
//
// Stored accounts are never modified in place. A transfer works on copies and
// replaces the stored accounts once both legs have succeeded, so a reader that
// got an account from the repository never sees it change underneath.
type AccountingService struct {
	accounts     repository.IAccountRepository
	transactions repository.ITransactionRepository
	locks        *LockRegistry
	metrics      metrics.Collector
	now          func() time.Time
}

func NewAccountingService(
	accounts repository.IAccountRepository,
	transactions repository.ITransactionRepository,
	locks *LockRegistry,
	collector metrics.Collector,
) *AccountingService {
	if locks == nil {
		locks = NewLockRegistry()
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &AccountingService{
		accounts:     accounts,
		transactions: transactions,
		locks:        locks,
		metrics:      collector,
		now:          time.Now,
	}
}

// CreateAccount opens an account with the given initial balance. Callers
// keep the returned id to refer to the account later.
func (s *AccountingService) CreateAccount(ctx context.Context, balance *decimal.Decimal) (*model.Account, error) {
	if balance == nil {
		return nil, fmt.Errorf("%w: balance cannot be null", ErrInvalidArgument)
	}
	if balance.IsNegative() {
		return nil, fmt.Errorf("%w: balance must be non-negative", ErrInvalidArgument)
	}
	if err := model.CheckRange(*balance); err != nil {
		return nil, fmt.Errorf("%w: balance: %w", ErrInvalidArgument, err)
	}

	account, err := s.accounts.Store(model.NewAccount(*balance))
	if err != nil {
		return nil, fmt.Errorf("could not store account: %w", err)
	}
	s.metrics.RecordAccountCreated()

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"account_id": account.ID,
		"balance":    model.LogValue(account.Balance),
	}).Info("Account created")
	return account.Snapshot(), nil
}

// GetAccount returns a copy of the account with the given id.
func (s *AccountingService) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	account, err := s.findAccount(id)
	if err != nil {
		return nil, err
	}
	return account.Snapshot(), nil
}

// Validate checks that amount could be moved from sourceID to destinationID
// right now. Nothing is persisted and no lock outlives the call, so the
// answer can be stale by the time Transfer is called.
func (s *AccountingService) Validate(ctx context.Context, sourceID, destinationID int64, amount decimal.Decimal) error {
	err := s.validate(sourceID, destinationID, amount)
	s.metrics.RecordValidation(outcomeOf(err))

	log := logger.FromContext(ctx).WithFields(transferFields(sourceID, destinationID, amount))
	if err != nil {
		log.WithError(err).Warn("Transfer validation failed")
		return err
	}
	log.Debug("Transfer validated")
	return nil
}

func (s *AccountingService) validate(sourceID, destinationID int64, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return s.withAccountLocks(sourceID, destinationID, func() error {
		source, destination, err := s.findPair(sourceID, destinationID)
		if err != nil {
			return err
		}
		_, _, err = applyTransfer(source, destination, amount)
		return err
	})
}

// Transfer moves amount from sourceID to destinationID and records the
// transaction. On failure neither account changes and no transaction is
// stored. Source and destination may be the same account.
//
// The two accounts are stored first and the transaction record last. If a
// later store fails, the accounts stored before it are put back to their
// state before the transfer, so a failed transfer leaves no record.
func (s *AccountingService) Transfer(ctx context.Context, sourceID, destinationID int64, amount decimal.Decimal) (*model.Transaction, error) {
	start := time.Now()
	transaction, err := s.transfer(sourceID, destinationID, amount)
	s.metrics.RecordTransfer(outcomeOf(err), time.Since(start))

	log := logger.FromContext(ctx).WithFields(transferFields(sourceID, destinationID, amount))
	if err != nil {
		log.WithError(err).Warn("Transfer rejected")
		return nil, err
	}
	log.WithField("transaction_id", transaction.ID).Info("Transfer completed successfully")
	return transaction, nil
}

func (s *AccountingService) transfer(sourceID, destinationID int64, amount decimal.Decimal) (*model.Transaction, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}

	var transaction *model.Transaction
	err := s.withAccountLocks(sourceID, destinationID, func() error {
		source, destination, err := s.findPair(sourceID, destinationID)
		if err != nil {
			return err
		}
		debited, credited, err := applyTransfer(source, destination, amount)
		if err != nil {
			return err
		}

		if _, err := s.accounts.Store(debited); err != nil {
			return fmt.Errorf("could not store source account: %w", err)
		}
		if credited != debited {
			if _, err := s.accounts.Store(credited); err != nil {
				s.restoreAccounts(source)
				return fmt.Errorf("could not store destination account: %w", err)
			}
		}

		transaction = &model.Transaction{
			SourceAccountID:      sourceID,
			DestinationAccountID: destinationID,
			Amount:               amount,
			Timestamp:            s.now(),
		}
		if _, err := s.transactions.Store(transaction); err != nil {
			s.restoreAccounts(source, destination)
			return fmt.Errorf("could not store transaction record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return transaction, nil
}

// restoreAccounts stores the given pre-transfer accounts again. It is called
// with their locks held.
func (s *AccountingService) restoreAccounts(accounts ...*model.Account) {
	for _, account := range accounts {
		if _, err := s.accounts.Store(account); err != nil {
			logger.Log.WithError(err).WithField("account_id", account.ID).Error("Failed to restore account after aborted transfer")
		}
	}
}

// GetTransaction returns the transaction with the given id.
func (s *AccountingService) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	transaction, ok := s.transactions.FindByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: transaction id: %d", ErrTransactionNotFound, id)
	}
	return transaction, nil
}

// ListTransactions returns the transactions in which accountID took part,
// oldest first.
func (s *AccountingService) ListTransactions(ctx context.Context, accountID int64) ([]*model.Transaction, error) {
	if _, err := s.findAccount(accountID); err != nil {
		return nil, err
	}
	return s.transactions.FindByAccountID(accountID), nil
}

// withAccountLocks runs fn while holding the locks of both accounts. The
// names are sorted and deduplicated first; a self-transfer takes one lock.
// Deferred unlocks release in reverse acquisition order on every path.
func (s *AccountingService) withAccountLocks(firstID, secondID int64, fn func() error) error {
	names := []string{lockNameForAccount(firstID), lockNameForAccount(secondID)}
	slices.Sort(names)
	names = slices.Compact(names)

	waitStart := time.Now()
	for _, name := range names {
		mu := s.locks.GetLock(name)
		mu.Lock()
		defer mu.Unlock()
	}
	s.metrics.RecordLockWait(time.Since(waitStart))
	s.metrics.RecordLockCount(s.locks.Len())

	return fn()
}

func (s *AccountingService) findAccount(id int64) (*model.Account, error) {
	account, ok := s.accounts.FindByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: account id: %d", ErrAccountNotFound, id)
	}
	return account, nil
}

func (s *AccountingService) findPair(sourceID, destinationID int64) (*model.Account, *model.Account, error) {
	source, err := s.findAccount(sourceID)
	if err != nil {
		return nil, nil, err
	}
	destination, err := s.findAccount(destinationID)
	if err != nil {
		return nil, nil, err
	}
	return source, destination, nil
}

// applyTransfer computes the post-transfer state on copies of both accounts.
// The source is debited first, so an insufficient balance fails before the
// destination is touched. For a self-transfer both results are the same copy.
func applyTransfer(source, destination *model.Account, amount decimal.Decimal) (*model.Account, *model.Account, error) {
	debited := source.Snapshot()
	credited := debited
	if destination.ID != source.ID {
		credited = destination.Snapshot()
	}

	if err := debited.Decrease(amount); err != nil {
		return nil, nil, err
	}
	credited.Increase(amount)
	return debited, credited, nil
}

func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be bigger than 0", ErrInvalidArgument)
	}
	if err := model.CheckRange(amount); err != nil {
		return fmt.Errorf("%w: amount: %w", ErrInvalidArgument, err)
	}
	return nil
}

func lockNameForAccount(accountID int64) string {
	return "account-" + strconv.FormatInt(accountID, 10)
}

func transferFields(sourceID, destinationID int64, amount decimal.Decimal) logrus.Fields {
	return logrus.Fields{
		"source_account_id":      sourceID,
		"destination_account_id": destinationID,
		"amount":                 model.LogValue(amount),
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrInvalidArgument):
		return metrics.OutcomeInvalidArgument
	case errors.Is(err, ErrAccountNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, model.ErrInsufficientBalance):
		return metrics.OutcomeInsufficientBalance
	default:
		return metrics.OutcomeError
	}
}
