package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	customersvc "github.com/routebill/routebill-backend/internal/customers"
	pkgAuth "github.com/routebill/routebill-backend/pkg/auth"
	"github.com/routebill/routebill-backend/pkg/config"
	"github.com/routebill/routebill-backend/pkg/db/models"
	"github.com/routebill/routebill-backend/pkg/enums"
	"github.com/routebill/routebill-backend/pkg/logger"
	"github.com/routebill/routebill-backend/pkg/pagination"

	"github.com/shopspring/decimal"
)

type allowAllSessions struct{}

func (allowAllSessions) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubCustomers struct {
	listed bool
}

func (s *stubCustomers) Create(ctx context.Context, input customersvc.CreateInput) (*models.Customer, error) {
	return &models.Customer{ID: uuid.New(), Code: "CUST-00001", Name: input.Name, IsActive: true}, nil
}

func (s *stubCustomers) Update(ctx context.Context, id uuid.UUID, input customersvc.UpdateInput) (*models.Customer, error) {
	return &models.Customer{ID: id}, nil
}

func (s *stubCustomers) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return &models.Customer{ID: id}, nil
}

func (s *stubCustomers) List(ctx context.Context, routeID *uuid.UUID, params pagination.Params) ([]models.Customer, string, error) {
	s.listed = true
	return []models.Customer{{ID: uuid.New(), Code: "CUST-00001", Name: "Corner Store"}}, "", nil
}

func (s *stubCustomers) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubCustomers) TopUpBalance(ctx context.Context, actorID, customerID uuid.UUID, amount decimal.Decimal, channel enums.PaymentChannel) (*models.Customer, error) {
	return &models.Customer{ID: customerID}, nil
}

func (s *stubCustomers) PayOutstanding(ctx context.Context, actorID, customerID uuid.UUID, amount decimal.Decimal, channel enums.PaymentChannel) (*models.Customer, error) {
	return &models.Customer{ID: customerID}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{
			Secret:            "test-secret",
			Issuer:            "routebill",
			ExpirationMinutes: 15,
		},
	}
}

func testRouter(t *testing.T, customers *stubCustomers) http.Handler {
	t.Helper()
	return NewRouter(Deps{
		Config:         testConfig(),
		Logger:         logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard}),
		SessionChecker: allowAllSessions{},
		Customers:      customers,
	})
}

func mintToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now().UTC(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestRouterHealthLive(t *testing.T) {
	handler := testRouter(t, &stubCustomers{})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-RouteBill-Env"); got != "test" {
		t.Fatalf("expected env header, got %q", got)
	}
}

func TestRouterRequiresAuth(t *testing.T) {
	handler := testRouter(t, &stubCustomers{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/customers", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRouterAgentCanListCustomers(t *testing.T) {
	customers := &stubCustomers{}
	handler := testRouter(t, customers)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/customers", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testConfig(), enums.UserRoleAgent))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !customers.listed {
		t.Fatalf("expected customers list to be called")
	}

	var envelope struct {
		Data struct {
			Items []json.RawMessage `json:"items"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if len(envelope.Data.Items) != 1 {
		t.Fatalf("expected one customer in response, got %d", len(envelope.Data.Items))
	}
}

func TestRouterAgentBlockedFromAdminRoutes(t *testing.T) {
	handler := testRouter(t, &stubCustomers{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testConfig(), enums.UserRoleAgent))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRouterAdminBlockedFromAgentRoutes(t *testing.T) {
	handler := testRouter(t, &stubCustomers{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/agent/assignment", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testConfig(), enums.UserRoleAdmin))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
