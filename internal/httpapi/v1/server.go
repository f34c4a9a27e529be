// Package v1 wires the HTTP surface of the fund ledger.
// It keeps handlers thin, delegating business rules to the service layer.
package v1

import (
    "log/slog"
    "net/http"
    "time"

    chi "github.com/go-chi/chi/v5"
    chimw "github.com/go-chi/chi/v5/middleware"
    "github.com/go-chi/httprate"
    "github.com/go-playground/validator/v10"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/tinoosan/fundledger/internal/service/account"
    "github.com/tinoosan/fundledger/internal/service/bill"
    "github.com/tinoosan/fundledger/internal/service/contact"
    "github.com/tinoosan/fundledger/internal/service/transaction"
    "github.com/tinoosan/fundledger/internal/storage"
)

// Deps collects what the server needs. Store serves readiness, idempotency
// replays and the trial balance; every write goes through a service.
type Deps struct {
    Store        storage.Store
    Accounts     account.Service
    Contacts     contact.Service
    Transactions transaction.Service
    Bills        bill.Service
    // Currency is the organization currency request amounts are expressed in.
    Currency string
    Logger   *slog.Logger
    // Registry receives the HTTP collectors and backs /metrics. Nil creates a private one.
    Registry *prometheus.Registry
    Auth     AuthConfig
    // RateLimitPerMinute caps /v1 requests per client IP; zero disables the limit.
    RateLimitPerMinute int
    // DevMode relaxes the security headers for plain-HTTP local use.
    DevMode bool
}

// Server wires handlers and middleware using Chi.
type Server struct {
    store        storage.Store
    accounts     account.Service
    contacts     contact.Service
    transactions transaction.Service
    bills        bill.Service
    currency     string
    auth         AuthConfig
    validate     *validator.Validate
    metrics      *httpMetrics
    log          *slog.Logger
    rt           *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
func New(d Deps) *Server {
    if d.Logger == nil { d.Logger = slog.Default() }
    if d.Registry == nil { d.Registry = prometheus.NewRegistry() }
    s := &Server{
        store:        d.Store,
        accounts:     d.Accounts,
        contacts:     d.Contacts,
        transactions: d.Transactions,
        bills:        d.Bills,
        currency:     d.Currency,
        auth:         d.Auth,
        validate:     validator.New(),
        metrics:      newHTTPMetrics(d.Registry),
        log:          d.Logger,
        rt:           chi.NewRouter(),
    }
    s.rt.Use(chimw.RequestID)
    s.rt.Use(requestLogger(d.Logger))
    s.rt.Use(recoverer(d.Logger))
    s.rt.Use(secureHeaders(d.DevMode))
    s.rt.Use(s.metrics.middleware)
    s.routes(d.Registry, d.RateLimitPerMinute)
    return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes(reg *prometheus.Registry, perMinute int) {
    // Health and metrics (unversioned)
    s.rt.Get("/healthz", s.healthz)
    s.rt.Get("/readyz", s.readyz)
    s.rt.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

    s.rt.Route("/v1", func(r chi.Router) {
        if perMinute > 0 {
            r.Use(httprate.Limit(perMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
        }
        r.Get("/dictionary/chart", s.getChart)

        r.Group(func(r chi.Router) {
            r.Use(s.resolveActor)
            r.Post("/statements/parse", s.parseStatement)

            r.Route("/orgs/{orgID}", func(r chi.Router) {
                r.Use(orgScope)
                // Accounts
                r.Post("/accounts", s.postAccount)
                r.Post("/accounts/batch", s.postAccountsBatch)
                r.Get("/accounts", s.listAccounts)
                r.Get("/accounts/{id}", s.getAccount)
                r.Patch("/accounts/{id}", s.updateAccount)
                r.Delete("/accounts/{id}", s.deleteAccount)
                r.Get("/accounts/{id}/history", s.accountHistory)
                // Contacts
                r.Post("/contacts", s.postContact)
                r.Get("/contacts", s.listContacts)
                r.Get("/contacts/{id}", s.getContact)
                r.Patch("/contacts/{id}", s.updateContact)
                r.Delete("/contacts/{id}", s.deleteContact)
                r.Get("/contacts/{id}/history", s.contactHistory)
                // Transactions
                r.Post("/transactions", s.postTransaction)
                r.Get("/transactions", s.listTransactions)
                r.Get("/transactions/{id}", s.getTransaction)
                r.Patch("/transactions/{id}", s.editTransaction)
                r.Post("/transactions/{id}/void", s.voidTransaction)
                r.Post("/transactions/{id}/reconcile", s.reconcileTransaction)
                r.Get("/transactions/{id}/history", s.transactionHistory)
                // Bills and pledges
                r.Post("/bills", s.postBill)
                r.Get("/bills", s.listBills)
                r.Get("/bills/{id}", s.getBill)
                r.Patch("/bills/{id}", s.updateBill)
                r.Post("/bills/{id}/issue", s.issueBill)
                r.Post("/bills/{id}/cancel", s.cancelBill)
                r.Post("/bills/{id}/recalculate", s.recalculateBill)
                r.Post("/bills/{id}/payments", s.postBillPayment)
                r.Post("/bills/{id}/payments/{transactionID}/void", s.voidBillPayment)
                // Reports
                r.Get("/trial-balance", s.trialBalance)
            })
        })
    })
}
