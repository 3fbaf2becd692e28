package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/routebill/routebill-backend/api/responses"
	"github.com/routebill/routebill-backend/api/validators"
	customersvc "github.com/routebill/routebill-backend/internal/customers"
	"github.com/routebill/routebill-backend/pkg/db/models"
	"github.com/routebill/routebill-backend/pkg/enums"
	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
	"github.com/routebill/routebill-backend/pkg/logger"
)

type createCustomerRequest struct {
	Name    string  `json:"name" validate:"required"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Address *string `json:"address,omitempty"`
	RouteID *string `json:"route_id,omitempty" validate:"omitempty,uuid"`
}

type updateCustomerRequest struct {
	Name     *string `json:"name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Address  *string `json:"address,omitempty"`
	RouteID  *string `json:"route_id,omitempty" validate:"omitempty,uuid"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type customerMoneyRequest struct {
	Amount  decimal.Decimal `json:"amount" validate:"required"`
	Channel string          `json:"channel" validate:"required"`
}

// CreateCustomer registers a customer and mints its code.
func CreateCustomer(svc customersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createCustomerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		routeID, err := parseOptionalUUID(payload.RouteID, "route_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customer, err := svc.Create(r.Context(), customersvc.CreateInput{
			Name:    payload.Name,
			Phone:   payload.Phone,
			Email:   payload.Email,
			Address: payload.Address,
			RouteID: routeID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, customer)
	}
}

func UpdateCustomer(svc customersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateCustomerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		routeID, err := parseOptionalUUID(payload.RouteID, "route_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customer, err := svc.Update(r.Context(), id, customersvc.UpdateInput{
			Name:     payload.Name,
			Phone:    payload.Phone,
			Email:    payload.Email,
			Address:  payload.Address,
			RouteID:  routeID,
			IsActive: payload.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, customer)
	}
}

func GetCustomer(svc customersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customer, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, customer)
	}
}

func ListCustomers(svc customersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		routeID, err := queryUUID(r, "route_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, next, err := svc.List(r.Context(), routeID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listEnvelope{Items: rows, NextCursor: next})
	}
}

func DeleteCustomer(svc customersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type customerMoneyOp func(ctx context.Context, actorID, customerID uuid.UUID, amount decimal.Decimal, channel enums.PaymentChannel) (*models.Customer, error)

// CustomerTopUp credits store balance through the given payment channel.
func CustomerTopUp(svc customersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return customerMoneyHandler(svc.TopUpBalance, logg)
}

// CustomerPayOutstanding records a payment against accumulated credit.
func CustomerPayOutstanding(svc customersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return customerMoneyHandler(svc.PayOutstanding, logg)
}

func customerMoneyHandler(op customerMoneyOp, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := pathID(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload customerMoneyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		channel := enums.PaymentChannel(strings.ToLower(strings.TrimSpace(payload.Channel)))
		if !channel.IsValid() {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "invalid payment channel").
					WithDetails(map[string]any{"channel": payload.Channel}))
			return
		}

		customer, err := op(r.Context(), uid, customerID, payload.Amount, channel)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, customer)
	}
}

func parseOptionalUUID(raw *string, field string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid identifier").
			WithDetails(map[string]any{"field": field})
	}
	return &id, nil
}
