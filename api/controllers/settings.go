package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/routebill/routebill-backend/api/responses"
	"github.com/routebill/routebill-backend/api/validators"
	settingsvc "github.com/routebill/routebill-backend/internal/settings"
	"github.com/routebill/routebill-backend/pkg/logger"
)

type settingsResponse struct {
	TaxEnabled    bool            `json:"tax_enabled"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	InvoicePrefix string          `json:"invoice_prefix"`
	OrderPrefix   string          `json:"order_prefix"`
	BusinessName  string          `json:"business_name"`
}

type updateSettingsRequest struct {
	TaxEnabled    *bool            `json:"tax_enabled,omitempty"`
	TaxRate       *decimal.Decimal `json:"tax_rate,omitempty"`
	InvoicePrefix *string          `json:"invoice_prefix,omitempty"`
	OrderPrefix   *string          `json:"order_prefix,omitempty"`
	BusinessName  *string          `json:"business_name,omitempty"`
}

func toSettingsResponse(s settingsvc.BillingSettings) settingsResponse {
	return settingsResponse{
		TaxEnabled:    s.TaxEnabled,
		TaxRate:       s.TaxRate,
		InvoicePrefix: s.InvoicePrefix,
		OrderPrefix:   s.OrderPrefix,
		BusinessName:  s.BusinessName,
	}
}

func GetSettings(svc settingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := svc.Get(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSettingsResponse(settings))
	}
}

func UpdateSettings(svc settingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload updateSettingsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settings, err := svc.Update(r.Context(), settingsvc.UpdateInput{
			TaxEnabled:    payload.TaxEnabled,
			TaxRate:       payload.TaxRate,
			InvoicePrefix: payload.InvoicePrefix,
			OrderPrefix:   payload.OrderPrefix,
			BusinessName:  payload.BusinessName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSettingsResponse(settings))
	}
}
