package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PurchaseResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lace_purchase_results_total",
			Help: "Purchase workflow outcomes by result",
		},
		[]string{"result"},
	)

	PurchaseDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lace_purchase_duration_seconds",
			Help:    "Time taken by the purchase workflow, lock wait included",
			Buckets: prometheus.DefBuckets,
		},
	)

	SubmissionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lace_transfer_submission_seconds",
			Help:    "Time spent waiting for the transfer collaborator",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	TokensSpent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lace_tokens_spent_total",
			Help: "Tokens debited from fan balances",
		},
	)

	AccountsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lace_fan_accounts_created_total",
			Help: "Fan accounts created on first lookup",
		},
	)

	ProofsIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lace_proofs_total",
			Help: "Transfer proofs by outcome",
		},
		[]string{"result"},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lace_purchase_events_published_total",
			Help: "Purchase events handed to the event producer",
		},
		[]string{"result"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lace_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lace_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Worker side.
var (
	ProcessedMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lace_worker_processed_messages_total",
			Help: "Number of processed purchase events",
		},
	)

	MessageProcessingTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "lace_worker_processing_time_seconds",
			Help: "Time taken to process purchase events",
		},
	)

	SavedRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lace_worker_saved_records_total",
			Help: "Purchase events stored in the history table",
		},
	)

	DLQMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lace_worker_dlq_messages_total",
			Help: "Number of messages transferred to DLQ",
		},
	)
)

var (
	apiOnce    sync.Once
	workerOnce sync.Once
)

func RegisterAPI() {
	apiOnce.Do(func() {
		prometheus.MustRegister(
			PurchaseResults, PurchaseDuration, SubmissionDuration, TokensSpent,
			AccountsCreated, ProofsIssued, EventsPublished, HTTPRequests, HTTPDuration,
		)
	})
}

func RegisterWorker() {
	workerOnce.Do(func() {
		prometheus.MustRegister(ProcessedMessages, MessageProcessingTime, SavedRecords, DLQMessages)
	})
}
