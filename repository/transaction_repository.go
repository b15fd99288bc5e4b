package repository

import (
	"cmp"
	"go-ledger-api/logger"
	"go-ledger-api/model"
	"slices"
	"sync"
)

// ITransactionRepository defines the contract for transaction persistence.
type ITransactionRepository interface {
	Store(transaction *model.Transaction) (*model.Transaction, error)
	FindByID(id int64) (*model.Transaction, bool)
	FindByAccountID(accountID int64) []*model.Transaction
}

// TransactionRepository implements ITransactionRepository. Besides the keyed
// store it indexes transactions by source and by destination account.
type TransactionRepository struct {
	store *Repository[model.Transaction, *model.Transaction]

	mu            sync.RWMutex
	bySource      map[int64][]*model.Transaction
	byDestination map[int64][]*model.Transaction
}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{
		store:         NewRepository[model.Transaction, *model.Transaction](),
		bySource:      make(map[int64][]*model.Transaction),
		byDestination: make(map[int64][]*model.Transaction),
	}
}

// Store persists the transaction and adds it to the account indexes. Storing
// an already indexed transaction again does not duplicate index entries.
func (r *TransactionRepository) Store(transaction *model.Transaction) (*model.Transaction, error) {
	if transaction == nil {
		logger.Log.WithError(ErrNilEntity).Error("Failed to store transaction")
		return nil, ErrNilEntity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	indexed := false
	if transaction.ID != model.NoID {
		_, indexed = r.store.FindByID(transaction.ID)
	}

	stored, err := r.store.Store(transaction)
	if err != nil {
		return nil, err
	}
	if !indexed {
		r.bySource[stored.SourceAccountID] = append(r.bySource[stored.SourceAccountID], stored)
		r.byDestination[stored.DestinationAccountID] = append(r.byDestination[stored.DestinationAccountID], stored)
	}
	return stored, nil
}

// FindByID retrieves a transaction by its id.
func (r *TransactionRepository) FindByID(id int64) (*model.Transaction, bool) {
	return r.store.FindByID(id)
}

// FindBySourceAccountID returns the transactions that took money from accountID.
func (r *TransactionRepository) FindBySourceAccountID(accountID int64) []*model.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.bySource[accountID])
}

// FindByDestinationAccountID returns the transactions that paid into accountID.
func (r *TransactionRepository) FindByDestinationAccountID(accountID int64) []*model.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.byDestination[accountID])
}

// FindByAccountID returns every transaction involving accountID ordered by id.
// A self-transfer appears once.
func (r *TransactionRepository) FindByAccountID(accountID int64) []*model.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Transaction, 0, len(r.bySource[accountID])+len(r.byDestination[accountID]))
	out = append(out, r.bySource[accountID]...)
	for _, t := range r.byDestination[accountID] {
		if t.SourceAccountID != accountID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b *model.Transaction) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
