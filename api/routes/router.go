package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/routebill/routebill-backend/api/controllers"
	"github.com/routebill/routebill-backend/api/middleware"
	assignmentsvc "github.com/routebill/routebill-backend/internal/assignments"
	authsvc "github.com/routebill/routebill-backend/internal/auth"
	customersvc "github.com/routebill/routebill-backend/internal/customers"
	routesvc "github.com/routebill/routebill-backend/internal/deliveryroutes"
	invoicesvc "github.com/routebill/routebill-backend/internal/invoices"
	ordersvc "github.com/routebill/routebill-backend/internal/orders"
	productsvc "github.com/routebill/routebill-backend/internal/products"
	settingsvc "github.com/routebill/routebill-backend/internal/settings"
	transactionsvc "github.com/routebill/routebill-backend/internal/transactions"
	"github.com/routebill/routebill-backend/pkg/auth/session"
	"github.com/routebill/routebill-backend/pkg/config"
	"github.com/routebill/routebill-backend/pkg/db"
	"github.com/routebill/routebill-backend/pkg/enums"
	"github.com/routebill/routebill-backend/pkg/logger"
	"github.com/routebill/routebill-backend/pkg/metrics"
	pkgredis "github.com/routebill/routebill-backend/pkg/redis"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          *pkgredis.Client
	SessionChecker session.AccessSessionChecker
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler

	Auth         authsvc.Service
	Customers    customersvc.Service
	Products     productsvc.Service
	Routes       routesvc.Service
	Orders       ordersvc.Service
	Invoices     invoicesvc.Service
	Assignments  assignmentsvc.Service
	Transactions transactionsvc.Service
	Settings     settingsvc.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
		middleware.Metrics(deps.HTTPMetrics),
	)

	var redisPinger pkgredis.Pinger
	if deps.Redis != nil {
		redisPinger = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/api/v1/auth", func(r chi.Router) {
		login := controllers.AuthLogin(deps.Auth, logg)
		if deps.Redis != nil {
			r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", login)
		} else {
			r.Post("/login", login)
		}
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(deps.Auth, logg))
		r.With(middleware.Auth(cfg.JWT, deps.SessionChecker, logg)).Get("/me", controllers.AuthMe(deps.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.SessionChecker, logg))
		if deps.Redis != nil {
			r.Use(middleware.Idempotency(deps.Redis, logg))
		}

		// Reads and billing shared by the back office and agents in the field.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAnyRole(logg, enums.UserRoleAdmin, enums.UserRoleAgent))

			r.Get("/customers", controllers.ListCustomers(deps.Customers, logg))
			r.Get("/customers/{customerId}", controllers.GetCustomer(deps.Customers, logg))
			r.Get("/customers/{customerId}/transactions", controllers.ListCustomerTransactions(deps.Transactions, logg))
			r.Get("/products", controllers.ListProducts(deps.Products, logg))
			r.Get("/products/{productId}", controllers.GetProduct(deps.Products, logg))
			r.Get("/routes", controllers.ListRoutes(deps.Routes, logg))
			r.Get("/routes/{routeId}", controllers.GetRoute(deps.Routes, logg))
			r.Get("/orders", controllers.ListOrders(deps.Orders, logg))
			r.Get("/orders/{orderId}", controllers.GetOrder(deps.Orders, logg))
			r.Get("/invoices", controllers.ListInvoices(deps.Invoices, logg))
			r.Get("/invoices/{invoiceId}", controllers.GetInvoice(deps.Invoices, logg))

			r.Post("/orders", controllers.CreateOrder(deps.Orders, logg))
			r.Post("/orders/{orderId}/invoice", controllers.InvoiceOrder(deps.Orders, deps.Invoices, logg))
			r.Post("/invoices", controllers.CreateInvoice(deps.Invoices, logg))
			r.Post("/customers/{customerId}/balance/top-up", controllers.CustomerTopUp(deps.Customers, logg))
			r.Post("/customers/{customerId}/outstanding/pay", controllers.CustomerPayOutstanding(deps.Customers, logg))
		})

		// Admin-only mutations.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))

			r.Post("/customers", controllers.CreateCustomer(deps.Customers, logg))
			r.Patch("/customers/{customerId}", controllers.UpdateCustomer(deps.Customers, logg))
			r.Delete("/customers/{customerId}", controllers.DeleteCustomer(deps.Customers, logg))

			r.Post("/products", controllers.CreateProduct(deps.Products, logg))
			r.Patch("/products/{productId}", controllers.UpdateProduct(deps.Products, logg))
			r.Delete("/products/{productId}", controllers.DeleteProduct(deps.Products, logg))

			r.Post("/routes", controllers.CreateRoute(deps.Routes, logg))
			r.Patch("/routes/{routeId}", controllers.UpdateRoute(deps.Routes, logg))
			r.Delete("/routes/{routeId}", controllers.DeleteRoute(deps.Routes, logg))

			r.Post("/orders/{orderId}/processing", controllers.MarkOrderProcessing(deps.Orders, logg))
			r.Post("/orders/{orderId}/cancel", controllers.CancelOrder(deps.Orders, logg))
			r.Post("/orders/{orderId}/assign", controllers.AssignOrderAgent(deps.Orders, logg))

			r.Post("/invoices/{invoiceId}/cancel", controllers.CancelInvoice(deps.Invoices, logg))
			r.Delete("/invoices/{invoiceId}", controllers.DeleteInvoice(deps.Invoices, logg))
			r.Get("/invoices/deleted", controllers.ListDeletedInvoices(deps.Invoices, logg))

			r.Post("/assignments", controllers.CreateAssignment(deps.Assignments, logg))
			r.Get("/assignments", controllers.ListAssignments(deps.Assignments, logg))
			r.Get("/assignments/{assignmentId}", controllers.GetAssignment(deps.Assignments, logg))
			r.Post("/assignments/{assignmentId}/cancel", controllers.CancelAssignment(deps.Assignments, logg))

			r.Get("/settings", controllers.GetSettings(deps.Settings, logg))
			r.Patch("/settings", controllers.UpdateSettings(deps.Settings, logg))
		})

		// Agent field operations on their own assignment.
		r.Route("/agent", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleAgent, logg))

			r.Get("/assignment", controllers.MyAssignment(deps.Assignments, logg))
			r.Post("/assignments/{assignmentId}/accept", controllers.AcceptAssignment(deps.Assignments, logg))
			r.Post("/assignments/{assignmentId}/start", controllers.StartAssignment(deps.Assignments, logg))
			r.Post("/assignments/{assignmentId}/finish", controllers.FinishAssignment(deps.Assignments, logg))
		})
	})

	return r
}
