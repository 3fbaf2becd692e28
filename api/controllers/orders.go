package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/routebill/routebill-backend/api/responses"
	"github.com/routebill/routebill-backend/api/validators"
	invoicesvc "github.com/routebill/routebill-backend/internal/invoices"
	ordersvc "github.com/routebill/routebill-backend/internal/orders"
	"github.com/routebill/routebill-backend/pkg/enums"
	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
	"github.com/routebill/routebill-backend/pkg/logger"
)

type lineItemRequest struct {
	ProductID string           `json:"product_id" validate:"required,uuid"`
	Quantity  int              `json:"quantity" validate:"required,min=1"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type paymentRequest struct {
	Channel string          `json:"channel" validate:"required"`
	Amount  decimal.Decimal `json:"amount" validate:"required"`
}

type createOrderRequest struct {
	CustomerID string            `json:"customer_id" validate:"required,uuid"`
	AgentID    *string           `json:"agent_id,omitempty" validate:"omitempty,uuid"`
	Items      []lineItemRequest `json:"items" validate:"required,min=1,dive"`
	Payments   []paymentRequest  `json:"payments,omitempty" validate:"omitempty,dive"`
	Notes      *string           `json:"notes,omitempty"`
}

type assignAgentRequest struct {
	AgentID *string `json:"agent_id" validate:"omitempty,uuid"`
}

func toItemInputs(items []lineItemRequest) ([]ordersvc.ItemInput, error) {
	out := make([]ordersvc.ItemInput, 0, len(items))
	for _, item := range items {
		pid, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
		}
		out = append(out, ordersvc.ItemInput{
			ProductID: pid,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return out, nil
}

func toPaymentInputs(payments []paymentRequest) ([]ordersvc.PaymentInput, error) {
	out := make([]ordersvc.PaymentInput, 0, len(payments))
	for _, p := range payments {
		channel := enums.PaymentChannel(strings.ToLower(strings.TrimSpace(p.Channel)))
		if !channel.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment channel").
				WithDetails(map[string]any{"channel": p.Channel})
		}
		out = append(out, ordersvc.PaymentInput{Channel: channel, Amount: p.Amount})
	}
	return out, nil
}

// CreateOrder books an order and applies its financial effects.
func CreateOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customerID, err := uuid.Parse(payload.CustomerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer id"))
			return
		}
		agentID, err := parseOptionalUUID(payload.AgentID, "agent_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := toItemInputs(payload.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payments, err := toPaymentInputs(payload.Payments)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Create(r.Context(), ordersvc.CreateInput{
			CustomerID: customerID,
			AgentID:    agentID,
			Items:      items,
			Payments:   payments,
			Notes:      payload.Notes,
			ActorID:    uid,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func GetOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func ListOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := ordersvc.ListFilters{}
		if filters.CustomerID, err = queryUUID(r, "customer_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filters.AgentID, err = queryUUID(r, "agent_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status := enums.OrderStatus(strings.ToLower(raw))
			if !status.IsValid() {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
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

func MarkOrderProcessing(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.MarkProcessing(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// CancelOrder reverses the order's financial effects while it is still open.
func CancelOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Cancel(r.Context(), uid, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func AssignOrderAgent(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload assignAgentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		agentID, err := parseOptionalUUID(payload.AgentID, "agent_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.AssignAgent(r.Context(), id, agentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// InvoiceOrder converts an open order into its invoice, copying the order's
// financial split and marking the order delivered.
func InvoiceOrder(orderSvc ordersvc.Service, invoiceSvc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := orderSvc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := invoiceSvc.Create(r.Context(), invoicesvc.CreateInput{
			CustomerID: order.CustomerID,
			OrderID:    &order.ID,
			ActorID:    uid,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, invoice)
	}
}
