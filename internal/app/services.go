package app

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/ap"
	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
	"github.com/odyssey-erp/odyssey-ledger/internal/audit"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/payments"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ServicesParams carries the infrastructure the ledger services share.
type ServicesParams struct {
	Store    docstore.Store
	Redis    *redis.Client
	CacheTTL time.Duration
	Metrics  *observability.LedgerMetrics
	Logger   *slog.Logger
}

// Services is the wired ledger. Every service reads and writes the same store.
type Services struct {
	Accounts *accounts.Service
	Journals *journals.Service
	Periods  *periods.Service
	Reports  *reports.Service
	Mappings mappings.Repository
	Invoices *ar.Service
	Bills    *ap.Service
	Payments *payments.Service
	Audit    *shared.AuditLogger
	Timeline *audit.Service
	Hooks    *integration.Hooks
}

// NewServices wires the ledger services over one store.
func NewServices(p ServicesParams) *Services {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reportCache := reports.NewCache(p.Redis, p.CacheTTL, p.Metrics, logger)
	auditLogger := shared.NewAuditLogger(p.Store)

	accountSvc := accounts.NewService(accounts.NewRepository(p.Store))
	accountSvc.WithCache(reportCache, logger)
	journalSvc := journals.NewService(journals.NewRepository(p.Store), auditLogger, reportCache, p.Metrics, logger)
	periodSvc := periods.NewService(periods.NewRepository(p.Store))
	mappingRepo := mappings.NewRepository(p.Store)
	hooks := integration.NewHooks(journalSvc, mappingRepo)

	return &Services{
		Accounts: accountSvc,
		Journals: journalSvc,
		Periods:  periodSvc,
		Reports:  reports.NewService(accountSvc, journalSvc, periodSvc, reportCache, logger),
		Mappings: mappingRepo,
		Invoices: ar.NewService(ar.NewRepository(p.Store), hooks, p.Metrics, logger),
		Bills:    ap.NewService(ap.NewRepository(p.Store)),
		Payments: payments.NewService(payments.NewRepository(p.Store), hooks, p.Metrics, logger),
		Audit:    auditLogger,
		Timeline: audit.NewService(p.Store),
		Hooks:    hooks,
	}
}
