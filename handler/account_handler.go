package handler

import (
	"go-ledger-api/common"
	"go-ledger-api/logger"
	"go-ledger-api/model"
	"go-ledger-api/service"
	"net/http"
)

type AccountHandler struct {
	service *service.AccountingService
}

func NewAccountHandler(service *service.AccountingService) *AccountHandler {
	return &AccountHandler{service: service}
}

// CreateAccount godoc
// @Summary      Open an account
// @Description  Creates an account with a non-negative initial balance.
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        account body model.CreateAccountRequest true "Initial balance"
// @Success      201  {object}  model.AccountResponse
// @Failure      400  {object}  common.AppError "Missing, malformed or negative balance"
// @Failure      500  {object}  common.AppError
// @Router       /api/accounts [post]
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.CreateAccountRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	logger.FromContext(r.Context()).WithField("balance", model.LogValue(*req.Balance)).Info("Create account request received")

	account, err := h.service.CreateAccount(r.Context(), req.Balance)
	if err != nil {
		return mapServiceError(err, "Could not create account")
	}

	writeJSON(w, http.StatusCreated, model.NewAccountResponse(account))
	return nil
}

// GetAccount godoc
// @Summary      Get an account
// @Tags         accounts
// @Produce      json
// @Param        accountId path int true "Account ID"
// @Success      200  {object}  model.AccountResponse
// @Failure      400  {object}  common.AppError "Invalid account ID in URL path"
// @Failure      404  {object}  common.AppError "Account not found"
// @Router       /api/accounts/{accountId} [get]
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) *common.AppError {
	accountID, appErr := parsePathID(r, "accountId", "Account ID")
	if appErr != nil {
		return appErr
	}

	account, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		return mapServiceError(err, "Could not retrieve account")
	}

	writeJSON(w, http.StatusOK, model.NewAccountResponse(account))
	return nil
}
