package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction records one committed transfer. It references both accounts by
// id and is never modified after it is stored.
type Transaction struct {
	ID                   int64           `json:"id"`
	SourceAccountID      int64           `json:"source_account_id"`
	DestinationAccountID int64           `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Timestamp            time.Time       `json:"timestamp"`
}

func (t *Transaction) GetID() int64   { return t.ID }
func (t *Transaction) SetID(id int64) { t.ID = id }
