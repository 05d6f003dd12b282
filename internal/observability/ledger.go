package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Posting outcomes.
const (
	OutcomePosted   = "posted"
	OutcomeDraft    = "draft"
	OutcomeReplayed = "replayed"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// LedgerMetrics mencatat metrik posting jurnal dan cache laporan.
type LedgerMetrics struct {
	postings   *prometheus.CounterVec
	conflicts  prometheus.Counter
	attempts   prometheus.Histogram
	cache      *prometheus.CounterVec
	pending    *prometheus.CounterVec
	mismatches prometheus.Counter
}

// NewLedgerMetrics mendaftarkan kolektor ledger ke registerer.
func NewLedgerMetrics(registerer prometheus.Registerer) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_postings_total",
		Help: "Journal postings by kind and outcome.",
	}, []string{"kind", "outcome"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_tx_conflicts_total",
		Help: "Store transactions re-executed after a write conflict.",
	})
	attempts := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_tx_conflict_attempt",
		Help:    "Attempt number at which a store transaction hit a conflict.",
		Buckets: []float64{1, 2, 3, 5, 8},
	})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_report_cache_total",
		Help: "Report cache lookups by report and result.",
	}, []string{"report", "result"})
	pending := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_accounting_pending_total",
		Help: "Documents persisted while their journal posting failed.",
	}, []string{"kind"})
	mismatches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_integrity_mismatches_total",
		Help: "Ledger summaries that failed reconciliation.",
	})
	registerer.MustRegister(postings, conflicts, attempts, cache, pending, mismatches)
	return &LedgerMetrics{
		postings:   postings,
		conflicts:  conflicts,
		attempts:   attempts,
		cache:      cache,
		pending:    pending,
		mismatches: mismatches,
	}
}

// ObservePosting records one posting attempt result.
func (m *LedgerMetrics) ObservePosting(kind, outcome string) {
	if m == nil {
		return
	}
	m.postings.WithLabelValues(kind, outcome).Inc()
}

// ObserveConflict is wired to docstore.Options.OnConflict.
func (m *LedgerMetrics) ObserveConflict(attempt int, _ error) {
	if m == nil {
		return
	}
	m.conflicts.Inc()
	m.attempts.Observe(float64(attempt))
}

// ObserveCache records a report cache hit or miss.
func (m *LedgerMetrics) ObserveCache(report string, hit bool) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(report, strconv.FormatBool(hit)).Inc()
}

// ObservePending counts a document left with accounting pending.
func (m *LedgerMetrics) ObservePending(kind string) {
	if m == nil {
		return
	}
	m.pending.WithLabelValues(kind).Inc()
}

// AddMismatches counts failed reconciliations.
func (m *LedgerMetrics) AddMismatches(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.mismatches.Add(float64(n))
}
