package repository

import (
	"go-ledger-api/logger"
	"go-ledger-api/model"
)

// IAccountRepository defines the contract for account persistence.
type IAccountRepository interface {
	Store(account *model.Account) (*model.Account, error)
	FindByID(id int64) (*model.Account, bool)
}

// AccountRepository implements IAccountRepository on top of the in-memory store.
type AccountRepository struct {
	store *Repository[model.Account, *model.Account]
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{store: NewRepository[model.Account, *model.Account]()}
}

// Store persists the account, assigning an id on first store. It is called
// with account locks held, so it only logs on failure.
func (r *AccountRepository) Store(account *model.Account) (*model.Account, error) {
	stored, err := r.store.Store(account)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to store account")
		return nil, err
	}
	return stored, nil
}

// FindByID retrieves an account by its id.
func (r *AccountRepository) FindByID(id int64) (*model.Account, bool) {
	return r.store.FindByID(id)
}

// Count returns the number of accounts held.
func (r *AccountRepository) Count() int {
	return r.store.Count()
}
