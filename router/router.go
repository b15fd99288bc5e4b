package router

import (
	"go-ledger-api/handler"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "go-ledger-api/docs"
)

// Options carries the optional parts of the route table.
type Options struct {
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Idempotency wraps the transfer endpoint when set.
	Idempotency func(http.Handler) http.Handler
}

func NewRouter(accountHandler *handler.AccountHandler, transactionHandler *handler.TransactionHandler, opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	mux.Handle("POST /api/accounts", handler.ErrorHandlingMiddleware(accountHandler.CreateAccount))
	mux.Handle("GET /api/accounts/{accountId}", handler.ErrorHandlingMiddleware(accountHandler.GetAccount))
	mux.Handle("GET /api/accounts/{accountId}/transactions", handler.ErrorHandlingMiddleware(transactionHandler.ListTransactionsForAccount))
	mux.Handle("GET /api/transactions/{transactionId}", handler.ErrorHandlingMiddleware(transactionHandler.GetTransaction))
	mux.Handle("POST /api/transfers/validate", handler.ErrorHandlingMiddleware(transactionHandler.ValidateTransfer))

	var transfer http.Handler = handler.ErrorHandlingMiddleware(transactionHandler.CreateTransfer)
	if opts.Idempotency != nil {
		transfer = opts.Idempotency(transfer)
	}
	mux.Handle("POST /api/transfers", transfer)

	return handler.RequestLogging(mux)
}
