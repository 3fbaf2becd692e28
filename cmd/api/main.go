package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/routebill/routebill-backend/api/routes"
	"github.com/routebill/routebill-backend/internal/assignments"
	"github.com/routebill/routebill-backend/internal/auth"
	"github.com/routebill/routebill-backend/internal/customers"
	"github.com/routebill/routebill-backend/internal/deliveryroutes"
	"github.com/routebill/routebill-backend/internal/invoices"
	"github.com/routebill/routebill-backend/internal/orders"
	"github.com/routebill/routebill-backend/internal/products"
	"github.com/routebill/routebill-backend/internal/sequence"
	"github.com/routebill/routebill-backend/internal/settings"
	"github.com/routebill/routebill-backend/internal/transactions"
	"github.com/routebill/routebill-backend/internal/users"
	"github.com/routebill/routebill-backend/pkg/auth/session"
	"github.com/routebill/routebill-backend/pkg/config"
	"github.com/routebill/routebill-backend/pkg/db"
	"github.com/routebill/routebill-backend/pkg/logger"
	"github.com/routebill/routebill-backend/pkg/metrics"
	"github.com/routebill/routebill-backend/pkg/migrate"
	"github.com/routebill/routebill-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	svcs, err := buildServices(cfg, dbClient, sessionManager)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			SessionChecker: sessionManager,
			HTTPMetrics:    httpMetrics,
			MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),

			Auth:         svcs.auth,
			Customers:    svcs.customers,
			Products:     svcs.products,
			Routes:       svcs.routes,
			Orders:       svcs.orders,
			Invoices:     svcs.invoices,
			Assignments:  svcs.assignments,
			Transactions: svcs.transactions,
			Settings:     svcs.settings,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

type services struct {
	auth         auth.Service
	customers    customers.Service
	products     products.Service
	routes       deliveryroutes.Service
	orders       orders.Service
	invoices     invoices.Service
	assignments  assignments.Service
	transactions transactions.Service
	settings     settings.Service
}

func buildServices(cfg *config.Config, dbClient *db.Client, sessionManager *session.Manager) (*services, error) {
	gdb := dbClient.DB()

	minter, err := sequence.NewMinter(sequence.NewRepository(gdb), cfg.Billing.SequencePaddingWidth)
	if err != nil {
		return nil, err
	}

	ledger, err := transactions.NewService(transactions.NewRepository(gdb))
	if err != nil {
		return nil, err
	}

	taxRate, err := decimal.NewFromString(cfg.Billing.DefaultTaxRate)
	if err != nil {
		return nil, err
	}
	settingsSvc, err := settings.NewService(settings.NewRepository(gdb), settings.BillingSettings{
		TaxEnabled:    cfg.Billing.DefaultTaxEnabled,
		TaxRate:       taxRate,
		InvoicePrefix: cfg.Billing.InvoiceNumberPrefix,
		OrderPrefix:   cfg.Billing.OrderNumberPrefix,
	})
	if err != nil {
		return nil, err
	}

	customerRepo := customers.NewRepository(gdb)
	customersSvc, err := customers.NewService(customerRepo, dbClient, minter, ledger, cfg.Billing.CustomerCodePrefix)
	if err != nil {
		return nil, err
	}

	productRepo := products.NewRepository(gdb)
	productsSvc, err := products.NewService(productRepo, dbClient, minter, cfg.Billing.ProductCodePrefix)
	if err != nil {
		return nil, err
	}

	routeRepo := deliveryroutes.NewRepository(gdb)
	routesSvc, err := deliveryroutes.NewService(routeRepo, dbClient, minter, cfg.Billing.RouteCodePrefix)
	if err != nil {
		return nil, err
	}

	orderRepo := orders.NewRepository(gdb)
	ordersSvc, err := orders.NewService(orderRepo, customerRepo, productRepo, ledger, settingsSvc, minter, dbClient)
	if err != nil {
		return nil, err
	}

	invoicesSvc, err := invoices.NewService(invoices.NewRepository(gdb), customerRepo, orderRepo, productRepo, ledger, settingsSvc, minter, dbClient)
	if err != nil {
		return nil, err
	}

	assignmentsSvc, err := assignments.NewService(assignments.NewRepository(gdb), routeRepo)
	if err != nil {
		return nil, err
	}

	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(gdb),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		return nil, err
	}

	return &services{
		auth:         authSvc,
		customers:    customersSvc,
		products:     productsSvc,
		routes:       routesSvc,
		orders:       ordersSvc,
		invoices:     invoicesSvc,
		assignments:  assignmentsSvc,
		transactions: ledger,
		settings:     settingsSvc,
	}, nil
}
