// Package metrics defines and registers the custom Prometheus metrics for the
// library circulation API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics registered here use promauto, so importing the package is enough;
// the HTTP layer exposes them through the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "library"

// ── Circulation metrics ───────────────────────────────────────────────────────

// CopiesBorrowedTotal counts successful borrow operations.
var CopiesBorrowedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "copies_borrowed_total",
		Help:      "Total number of copies successfully checked out.",
	},
)

// CopiesReturnedTotal counts successful returns.
var CopiesReturnedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "copies_returned_total",
		Help:      "Total number of copies returned.",
	},
)

// CopiesReservedTotal counts successful reservations.
var CopiesReservedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "copies_reserved_total",
		Help:      "Total number of copies placed on hold.",
	},
)

// CirculationConflictsTotal counts borrow/return/reserve attempts lost to a
// concurrent writer.
// Label:
//   - operation: "borrow", "return", "reserve", "maintenance", "lost"
var CirculationConflictsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "circulation_conflicts_total",
		Help:      "Total number of lifecycle operations rejected by the concurrency guard.",
	},
	[]string{"operation"},
)

// ── Card metrics ──────────────────────────────────────────────────────────────

// CardsIssuedTotal counts successfully issued library cards.
var CardsIssuedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cards_issued_total",
		Help:      "Total number of library cards issued.",
	},
)

// CardStatusChangesTotal counts card status transitions.
// Label:
//   - status: the new card status ("active", "suspended", "expired", "lost")
var CardStatusChangesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "card_status_changes_total",
		Help:      "Total number of card status transitions, by resulting status.",
	},
	[]string{"status"},
)
