// file: model/response.go

package model

import "time"

// AccountResponse is the wire form of an Account. The balance is floored to
// two fractional digits.
type AccountResponse struct {
	ID      int64  `json:"id" example:"1"`
	Balance string `json:"balance" example:"100.00"`
}

func NewAccountResponse(a *Account) AccountResponse {
	return AccountResponse{ID: a.ID, Balance: a.DisplayBalance()}
}

// TransactionResponse is the wire form of a Transaction.
type TransactionResponse struct {
	ID                   int64     `json:"id" example:"1"`
	SourceAccountID      int64     `json:"source_account_id" example:"1"`
	DestinationAccountID int64     `json:"destination_account_id" example:"2"`
	Amount               string    `json:"amount" example:"30.00"`
	Timestamp            time.Time `json:"timestamp"`
}

func NewTransactionResponse(t *Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                   t.ID,
		SourceAccountID:      t.SourceAccountID,
		DestinationAccountID: t.DestinationAccountID,
		Amount:               t.Amount.String(),
		Timestamp:            t.Timestamp,
	}
}

func NewTransactionResponses(ts []*Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, NewTransactionResponse(t))
	}
	return out
}
