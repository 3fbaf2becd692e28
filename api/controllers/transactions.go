package controllers

import (
	"net/http"

	"github.com/routebill/routebill-backend/api/responses"
	transactionsvc "github.com/routebill/routebill-backend/internal/transactions"
	"github.com/routebill/routebill-backend/pkg/logger"
)

// ListCustomerTransactions pages through a customer's ledger, newest first.
func ListCustomerTransactions(svc transactionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := pathID(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, next, err := svc.ListByCustomer(r.Context(), customerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listEnvelope{Items: rows, NextCursor: next})
	}
}
