package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/routebill/routebill-backend/api/responses"
	"github.com/routebill/routebill-backend/api/validators"
	assignmentsvc "github.com/routebill/routebill-backend/internal/assignments"
	"github.com/routebill/routebill-backend/pkg/enums"
	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
	"github.com/routebill/routebill-backend/pkg/logger"
	"github.com/routebill/routebill-backend/pkg/types"
)

type createAssignmentRequest struct {
	AgentID      string  `json:"agent_id" validate:"required,uuid"`
	RouteID      string  `json:"route_id" validate:"required,uuid"`
	AssignedDate *string `json:"assigned_date,omitempty"`
}

type startAssignmentRequest struct {
	OpeningStock types.StockSnapshot `json:"opening_stock" validate:"required"`
}

type finishAssignmentRequest struct {
	ClosingStock  types.StockSnapshot `json:"closing_stock" validate:"required"`
	CollectedCash decimal.Decimal     `json:"collected_cash"`
	CollectedUPI  decimal.Decimal     `json:"collected_upi"`
	Notes         *string             `json:"notes,omitempty"`
}

// CreateAssignment puts an agent on a route for the day.
func CreateAssignment(svc assignmentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createAssignmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		agentID, err := uuid.Parse(payload.AgentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid agent id"))
			return
		}
		routeID, err := uuid.Parse(payload.RouteID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid route id"))
			return
		}

		var assignedDate time.Time
		if payload.AssignedDate != nil {
			assignedDate, err = time.Parse("2006-01-02", strings.TrimSpace(*payload.AssignedDate))
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, err, "assigned_date must be YYYY-MM-DD"))
				return
			}
		}

		assignment, err := svc.Assign(r.Context(), assignmentsvc.AssignInput{
			AgentID:      agentID,
			RouteID:      routeID,
			AssignedDate: assignedDate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, assignment)
	}
}

func GetAssignment(svc assignmentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assignment, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignment)
	}
}

func ListAssignments(svc assignmentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := assignmentsvc.ListFilters{}
		if filters.AgentID, err = queryUUID(r, "agent_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filters.RouteID, err = queryUUID(r, "route_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status := enums.AssignmentStatus(strings.ToLower(raw))
			if !status.IsValid() {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "invalid assignment status").
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

// CancelAssignment withdraws a not-yet-accepted assignment.
func CancelAssignment(svc assignmentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assignment, err := svc.Cancel(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignment)
	}
}

// MyAssignment returns the calling agent's open assignment.
func MyAssignment(svc assignmentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assignment, err := svc.MyAssignment(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignment)
	}
}

func AcceptAssignment(svc assignmentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assignment, err := svc.Accept(r.Context(), uid, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignment)
	}
}

// StartAssignment begins the route run and records the opening stock.
func StartAssignment(svc assignmentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload startAssignmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assignment, err := svc.Start(r.Context(), uid, id, payload.OpeningStock)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignment)
	}
}

// FinishAssignment closes out the run with closing stock and collections.
func FinishAssignment(svc assignmentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload finishAssignmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assignment, err := svc.Finish(r.Context(), uid, id, assignmentsvc.FinishInput{
			ClosingStock:  payload.ClosingStock,
			CollectedCash: payload.CollectedCash,
			CollectedUPI:  payload.CollectedUPI,
			Notes:         payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignment)
	}
}
