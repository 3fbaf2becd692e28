package settings

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/routebill/routebill-backend/pkg/db/models"
	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
)

type stubRepo struct {
	row     *models.AppSettings
	saveErr error
}

func (s *stubRepo) Get(context.Context) (*models.AppSettings, error) {
	if s.row == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.row, nil
}

func (s *stubRepo) Save(_ context.Context, row *models.AppSettings) (*models.AppSettings, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	s.row = row
	return row, nil
}

func defaults() BillingSettings {
	return BillingSettings{
		TaxEnabled:    true,
		TaxRate:       decimal.NewFromInt(18),
		InvoicePrefix: "INV",
		OrderPrefix:   "ORD",
	}
}

func TestGetFallsBackToDefaults(t *testing.T) {
	svc, err := NewService(&stubRepo{}, defaults())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	got, err := svc.Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.TaxRate.Equal(decimal.NewFromInt(18)) || got.InvoicePrefix != "INV" {
		t.Fatalf("unexpected defaults %+v", got)
	}
}

func TestUpdateMutatesOnlyProvidedFields(t *testing.T) {
	repo := &stubRepo{row: &models.AppSettings{
		ID:            1,
		TaxEnabled:    true,
		TaxRate:       decimal.NewFromInt(18),
		InvoicePrefix: "INV",
		OrderPrefix:   "ORD",
	}}
	svc, _ := NewService(repo, defaults())

	enabled := false
	prefix := "  BILL "
	got, err := svc.Update(context.Background(), UpdateInput{
		TaxEnabled:    &enabled,
		InvoicePrefix: &prefix,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.TaxEnabled {
		t.Fatal("expected tax disabled")
	}
	if got.InvoicePrefix != "BILL" {
		t.Fatalf("expected trimmed prefix BILL got %q", got.InvoicePrefix)
	}
	if got.OrderPrefix != "ORD" {
		t.Fatalf("order prefix should be untouched, got %q", got.OrderPrefix)
	}
}

func TestUpdateRejectsBadTaxRate(t *testing.T) {
	svc, _ := NewService(&stubRepo{}, defaults())

	bad := decimal.NewFromInt(150)
	_, err := svc.Update(context.Background(), UpdateInput{TaxRate: &bad})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
}

func TestUpdateRejectsEmptyPrefix(t *testing.T) {
	svc, _ := NewService(&stubRepo{}, defaults())

	empty := "   "
	_, err := svc.Update(context.Background(), UpdateInput{OrderPrefix: &empty})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestBillingSettingsTaxConversion(t *testing.T) {
	s := BillingSettings{TaxEnabled: true, TaxRate: decimal.NewFromInt(18)}
	tax := s.Tax()
	if !tax.Enabled || !tax.Rate.Equal(decimal.NewFromInt(18)) {
		t.Fatalf("unexpected conversion %+v", tax)
	}
}
