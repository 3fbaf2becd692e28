package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/routebill/routebill-backend/api/responses"
	"github.com/routebill/routebill-backend/api/validators"
	invoicesvc "github.com/routebill/routebill-backend/internal/invoices"
	"github.com/routebill/routebill-backend/pkg/enums"
	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
	"github.com/routebill/routebill-backend/pkg/logger"
)

type createInvoiceRequest struct {
	CustomerID string            `json:"customer_id" validate:"required,uuid"`
	Items      []lineItemRequest `json:"items" validate:"required,min=1,dive"`
	Payments   []paymentRequest  `json:"payments,omitempty" validate:"omitempty,dive"`
	Notes      *string           `json:"notes,omitempty"`
}

// CreateInvoice bills a customer directly, applying balance deduction and
// credit extension in one transaction.
func CreateInvoice(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createInvoiceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customerID, err := uuid.Parse(payload.CustomerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer id"))
			return
		}

		items := make([]invoicesvc.ItemInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			pid, err := uuid.Parse(item.ProductID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
				return
			}
			items = append(items, invoicesvc.ItemInput{
				ProductID: pid,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			})
		}

		payments := make([]invoicesvc.PaymentInput, 0, len(payload.Payments))
		for _, p := range payload.Payments {
			channel := enums.PaymentChannel(strings.ToLower(strings.TrimSpace(p.Channel)))
			if !channel.IsValid() {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "invalid payment channel").
						WithDetails(map[string]any{"channel": p.Channel}))
				return
			}
			payments = append(payments, invoicesvc.PaymentInput{Channel: channel, Amount: p.Amount})
		}

		invoice, err := svc.Create(r.Context(), invoicesvc.CreateInput{
			CustomerID: customerID,
			Items:      items,
			Payments:   payments,
			Notes:      payload.Notes,
			ActorID:    uid,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, invoice)
	}
}

func GetInvoice(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoice, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}

func ListInvoices(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := invoicesvc.ListFilters{}
		if filters.CustomerID, err = queryUUID(r, "customer_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status := enums.InvoiceStatus(strings.ToLower(raw))
			if !status.IsValid() {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "invalid invoice status").
						WithDetails(map[string]any{"status": raw}))
				return
			}
			filters.Status = &status
		}

		rows, next, err := svc.List(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listEnvelope{Items: rows, NextCursor: next})
	}
}

// CancelInvoice voids an active invoice and reverses its money effects.
func CancelInvoice(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoice, err := svc.Cancel(r.Context(), uid, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}

// DeleteInvoice archives the invoice payload, reverses active effects, and
// cascades the rows.
func DeleteInvoice(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), uid, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func ListDeletedInvoices(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, next, err := svc.ListDeleted(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listEnvelope{Items: rows, NextCursor: next})
	}
}
