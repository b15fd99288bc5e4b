package model

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Bounds on the magnitude of balances and amounts accepted from callers.
const (
	MaxIntegerDigits = 40
	MaxScale         = 40
)

var (
	// ErrInsufficientBalance is matched by every *InsufficientBalanceError.
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrOutOfRange          = errors.New("value out of range")
)

// InsufficientBalanceError is returned when a decrease would leave an account
// with a negative balance. Balance is the account's balance at the time of the
// attempt, floored to two fractional digits.
type InsufficientBalanceError struct {
	AccountID int64
	Balance   decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("account %d doesn't have sufficient balance. Current balance: %s",
		e.AccountID, e.Balance.StringFixed(2))
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

type Account struct {
	ID      int64           `json:"id"`
	Balance decimal.Decimal `json:"balance"`
}

func NewAccount(balance decimal.Decimal) *Account {
	return &Account{Balance: balance}
}

func (a *Account) GetID() int64   { return a.ID }
func (a *Account) SetID(id int64) { a.ID = id }

// Increase adds amount to the balance.
func (a *Account) Increase(amount decimal.Decimal) {
	a.Balance = a.Balance.Add(amount)
}

// Decrease subtracts amount from the balance. The balance is left untouched
// when the result would be negative; a result of exactly zero is allowed.
func (a *Account) Decrease(amount decimal.Decimal) error {
	candidate := a.Balance.Sub(amount)
	if candidate.IsNegative() {
		return &InsufficientBalanceError{AccountID: a.ID, Balance: a.Balance.RoundFloor(2)}
	}
	a.Balance = candidate
	return nil
}

// Snapshot returns an independent copy of the account.
func (a *Account) Snapshot() *Account {
	return &Account{ID: a.ID, Balance: a.Balance}
}

// DisplayBalance renders the balance floored to two fractional digits.
func (a *Account) DisplayBalance() string {
	return DisplayAmount(a.Balance)
}

// DisplayAmount floors d to two fractional digits. The stored value keeps its
// full precision; this is for presentation only.
func DisplayAmount(d decimal.Decimal) string {
	return d.RoundFloor(2).StringFixed(2)
}

// CheckRange rejects values with more than MaxIntegerDigits digits before the
// decimal point or more than MaxScale after it. It only inspects the
// coefficient and exponent, so it is cheap for any input.
func CheckRange(d decimal.Decimal) error {
	exp := int64(d.Exponent())
	if int64(d.NumDigits())+exp > MaxIntegerDigits {
		return fmt.Errorf("%w: more than %d integer digits", ErrOutOfRange, MaxIntegerDigits)
	}
	if -exp > MaxScale {
		return fmt.Errorf("%w: more than %d fractional digits", ErrOutOfRange, MaxScale)
	}
	return nil
}

// LogValue renders d for log fields. Values outside the accepted range are
// written as coefficient and exponent so they are never expanded.
func LogValue(d decimal.Decimal) string {
	if CheckRange(d) != nil {
		return d.Coefficient().String() + "e" + strconv.FormatInt(int64(d.Exponent()), 10)
	}
	return d.String()
}
