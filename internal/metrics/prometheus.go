package metrics

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studybot_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	IngestionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studybot_ingestion_total",
			Help: "Documents that reached a terminal ingestion state",
		},
		[]string{"status"},
	)

	IngestionChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "studybot_ingestion_chunks",
			Help:    "Chunks produced per ingested document",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "studybot_query_duration_seconds",
			Help:    "End-to-end retrieval-augmented query latency",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studybot_query_total",
			Help: "Queries by outcome",
		},
		[]string{"status"},
	)

	FlashcardsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "studybot_flashcards_generated_total",
			Help: "Flashcard drafts produced by the generation engine",
		},
	)

	ExtractionStage = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studybot_flashcard_extraction_stage_total",
			Help: "Which extraction stage produced the cards of a generation",
		},
		[]string{"stage"},
	)

	ExternalCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studybot_external_call_duration_seconds",
			Help:    "Latency of embedding, llm and vector store calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"service", "operation", "outcome"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studybot_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studybot_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestDuration,
			IngestionTotal,
			IngestionChunks,
			QueryDuration,
			QueryTotal,
			FlashcardsGenerated,
			ExtractionStage,
			ExternalCallDuration,
			CacheHits,
			CacheMisses,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveExternalCall records one call to an outside service.
func ObserveExternalCall(service, operation string, d time.Duration, err error) {
	ExternalCallDuration.WithLabelValues(service, operation, outcome(err)).Observe(d.Seconds())
}

type kinded interface {
	KindName() string
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var k kinded
	if errors.As(err, &k) {
		return k.KindName()
	}
	return "error"
}
