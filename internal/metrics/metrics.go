package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	LedgerOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by outcome",
		},
		[]string{"op", "outcome"},
	)
	CoinsCredited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_coins_credited_total",
			Help: "Coins credited, by source",
		},
		[]string{"source"},
	)
	CoinsDebited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_coins_debited_total",
			Help: "Coins debited, by reason",
		},
		[]string{"reason"},
	)
	AutoBans = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_auto_bans_total",
			Help: "Accounts suspended by the anti-abuse monitor",
		},
	)
	PartialFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_partial_failures_total",
			Help: "Multi-write operations that stopped after the first write",
		},
		[]string{"op"},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_active_sessions",
			Help: "Open ledger sessions in this process",
		},
	)
	AdsServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ads_served_total",
			Help: "Ad identifiers returned, by slot",
		},
		[]string{"slot"},
	)
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_events_published_total",
			Help: "Ledger events written to the event stream, by type",
		},
		[]string{"type"},
	)
	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_events_dropped_total",
			Help: "Ledger events lost to a full queue or a broker error",
		},
	)
	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Open presenter websocket connections",
		},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)
)

func init() {
	prometheus.MustRegister(LedgerOps)
	prometheus.MustRegister(CoinsCredited)
	prometheus.MustRegister(CoinsDebited)
	prometheus.MustRegister(AutoBans)
	prometheus.MustRegister(PartialFailures)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(AdsServed)
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(EventsDropped)
	prometheus.MustRegister(WSConnections)
	prometheus.MustRegister(HTTPRequests)
}

// Outcome maps a result to a low-cardinality label.
func Outcome(ok bool, reason string) string {
	if ok && reason == "" {
		return "ok"
	}
	if reason == "" {
		return "failed"
	}
	return reason
}
