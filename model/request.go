// file: model/request.go

package model

import "github.com/shopspring/decimal"

// CreateAccountRequest defines the payload for opening an account.
// The balance may be sent as a JSON string or number; both decode exactly.
type CreateAccountRequest struct {
	Balance *decimal.Decimal `json:"balance" validate:"required" swaggertype:"string" example:"100.00"`
}

// TransferRequest is shared by the validate and process transfer endpoints.
type TransferRequest struct {
	SourceAccountID      int64            `json:"source_account_id" validate:"required,gt=0" example:"1"`
	DestinationAccountID int64            `json:"destination_account_id" validate:"required,gt=0" example:"2"`
	Amount               *decimal.Decimal `json:"amount" validate:"required" swaggertype:"string" example:"30.00"`
}
