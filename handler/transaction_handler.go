package handler

import (
	"go-ledger-api/common"
	"go-ledger-api/model"
	"go-ledger-api/service"
	"net/http"
)

// TransactionHandler holds dependencies for transfer-related handlers.
type TransactionHandler struct {
	service *service.AccountingService
}

// NewTransactionHandler creates a new TransactionHandler with its dependencies.
func NewTransactionHandler(s *service.AccountingService) *TransactionHandler {
	return &TransactionHandler{service: s}
}

// ValidateTransfer godoc
// @Summary      Check whether a transfer would succeed
// @Description  Checks both accounts exist and the source can cover the amount. Nothing is reserved; the result can be stale by the time the transfer is submitted.
// @Tags         transactions
// @Accept       json
// @Param        transfer body model.TransferRequest true "Transfer to check"
// @Success      204
// @Failure      400  {object}  common.AppError "Malformed request or non-positive amount"
// @Failure      404  {object}  common.AppError "Source or destination account not found"
// @Failure      422  {object}  common.AppError "Insufficient balance"
// @Router       /api/transfers/validate [post]
func (h *TransactionHandler) ValidateTransfer(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.TransferRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	if err := h.service.Validate(r.Context(), req.SourceAccountID, req.DestinationAccountID, *req.Amount); err != nil {
		return mapServiceError(err, "Could not validate transfer")
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// CreateTransfer godoc
// @Summary      Transfer money between accounts
// @Description  Moves the amount from the source to the destination account and records a transaction. Send an Idempotency-Key header to make retries safe.
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Client-chosen key identifying this transfer"
// @Param        transfer body model.TransferRequest true "Details of the transfer"
// @Success      201  {object}  model.TransactionResponse
// @Failure      400  {object}  common.AppError "Malformed request or non-positive amount"
// @Failure      404  {object}  common.AppError "Source or destination account not found"
// @Failure      409  {object}  common.AppError "A request with the same idempotency key is in progress"
// @Failure      422  {object}  common.AppError "Insufficient balance, or Idempotency-Key reused with a different request"
// @Failure      500  {object}  common.AppError "Internal server error while processing transfer"
// @Router       /api/transfers [post]
func (h *TransactionHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.TransferRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	transaction, err := h.service.Transfer(r.Context(), req.SourceAccountID, req.DestinationAccountID, *req.Amount)
	if err != nil {
		return mapServiceError(err, "Could not process transfer")
	}

	writeJSON(w, http.StatusCreated, model.NewTransactionResponse(transaction))
	return nil
}

// GetTransaction godoc
// @Summary      Get a transaction
// @Tags         transactions
// @Produce      json
// @Param        transactionId path int true "Transaction ID"
// @Success      200  {object}  model.TransactionResponse
// @Failure      400  {object}  common.AppError "Invalid transaction ID in URL path"
// @Failure      404  {object}  common.AppError "Transaction not found"
// @Router       /api/transactions/{transactionId} [get]
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) *common.AppError {
	transactionID, appErr := parsePathID(r, "transactionId", "Transaction ID")
	if appErr != nil {
		return appErr
	}

	transaction, err := h.service.GetTransaction(r.Context(), transactionID)
	if err != nil {
		return mapServiceError(err, "Could not retrieve transaction")
	}

	writeJSON(w, http.StatusOK, model.NewTransactionResponse(transaction))
	return nil
}

// ListTransactionsForAccount godoc
// @Summary      List account transactions
// @Description  Returns every transaction the account took part in, oldest first.
// @Tags         transactions
// @Produce      json
// @Param        accountId path int true "The ID of the account to retrieve transactions for"
// @Success      200  {array}   model.TransactionResponse
// @Failure      400  {object}  common.AppError "Invalid account ID in URL path"
// @Failure      404  {object}  common.AppError "Account with the specified ID not found"
// @Router       /api/accounts/{accountId}/transactions [get]
func (h *TransactionHandler) ListTransactionsForAccount(w http.ResponseWriter, r *http.Request) *common.AppError {
	accountID, appErr := parsePathID(r, "accountId", "Account ID")
	if appErr != nil {
		return appErr
	}

	transactions, err := h.service.ListTransactions(r.Context(), accountID)
	if err != nil {
		return mapServiceError(err, "Could not retrieve transactions")
	}

	writeJSON(w, http.StatusOK, model.NewTransactionResponses(transactions))
	return nil
}
