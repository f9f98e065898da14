// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "winbingo_ledger_operations_total",
		Help: "Ledger operations by outcome",
	}, []string{"op", "outcome"})

	LedgerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "winbingo_ledger_operation_duration_seconds",
		Help:    "Ledger operation latency",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"op"})

	// UnknownOutcomes counts mutations that need manual reconciliation.
	UnknownOutcomes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "winbingo_ledger_unknown_outcomes_total",
		Help: "Mutations whose commit state could not be determined",
	})

	FlowTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "winbingo_flow_transitions_total",
		Help: "Conversation stage transitions",
	}, []string{"from", "to"})

	RequestsReviewed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "winbingo_requests_reviewed_total",
		Help: "Payout requests reviewed by admins",
	}, []string{"kind", "decision"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "winbingo_http_requests_total",
		Help: "HTTP API requests",
	}, []string{"method", "route", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "winbingo_http_request_duration_seconds",
		Help:    "HTTP API latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"route"})

	TelegramUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "winbingo_telegram_updates_total",
		Help: "Telegram updates handled by kind and status",
	}, []string{"kind", "status"})

	// SenderFailures counts notifications dropped after the last retry.
	SenderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "winbingo_sender_failures_total",
		Help: "Outbound Telegram calls that gave up",
	}, []string{"action"})

	BingoCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "winbingo_bingo_numbers_called_total",
		Help: "Numbers drawn by the live caller",
	})
)
