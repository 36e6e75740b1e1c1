package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/garyjia/claim-approval/internal/application/dispatcher"
	"github.com/garyjia/claim-approval/internal/domain/event"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "claims"

// Collector owns a private registry with the workflow and HTTP collectors
type Collector struct {
	registry *prometheus.Registry

	claimsSubmitted    *prometheus.CounterVec
	claimReviews       *prometheus.CounterVec
	documentsStored    *prometheus.CounterVec
	documentRejections *prometheus.CounterVec
	lecturersCreated   prometheus.Counter

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewCollector creates a collector. An empty namespace uses "claims".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = defaultNamespace
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		claimsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_submitted_total",
			Help:      "Claims created, labelled by whether an attachment was rejected.",
		}, []string{"partial"}),
		claimReviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claim_reviews_total",
			Help:      "Review actions by action and outcome.",
		}, []string{"action", "outcome"}),
		documentsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_stored_total",
			Help:      "Supporting documents written, by file type.",
		}, []string{"file_type"}),
		documentRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_rejections_total",
			Help:      "Uploads rejected by validation, by reason.",
		}, []string{"reason"}),
		lecturersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lecturers_created_total",
			Help:      "Lecturers registered.",
		}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "route"}),
	}

	c.registry.MustRegister(
		c.claimsSubmitted,
		c.claimReviews,
		c.documentsStored,
		c.documentRejections,
		c.lecturersCreated,
		c.httpInFlight,
		c.httpRequests,
		c.httpDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return c
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Subscribe registers the collector as a handler for every workflow event
func (c *Collector) Subscribe(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeClaimSubmitted, "metrics", c.onClaimSubmitted)
	d.SubscribeNamed(event.TypeClaimReviewed, "metrics", c.onClaimReviewed)
	d.SubscribeNamed(event.TypeDocumentStored, "metrics", c.onDocumentStored)
	d.SubscribeNamed(event.TypeDocumentRejected, "metrics", c.onDocumentRejected)
	d.SubscribeNamed(event.TypeLecturerCreated, "metrics", c.onLecturerCreated)
}

func (c *Collector) onClaimSubmitted(_ context.Context, evt *event.Event) error {
	c.claimsSubmitted.WithLabelValues(strconv.FormatBool(evt.GetPayloadBool(event.KeyPartial))).Inc()
	return nil
}

func (c *Collector) onClaimReviewed(_ context.Context, evt *event.Event) error {
	c.claimReviews.WithLabelValues(
		labelOrUnknown(evt.GetPayloadString(event.KeyAction)),
		labelOrUnknown(evt.GetPayloadString(event.KeyOutcome)),
	).Inc()
	return nil
}

func (c *Collector) onDocumentStored(_ context.Context, evt *event.Event) error {
	c.documentsStored.WithLabelValues(labelOrUnknown(evt.GetPayloadString(event.KeyFileType))).Inc()
	return nil
}

func (c *Collector) onDocumentRejected(_ context.Context, evt *event.Event) error {
	c.documentRejections.WithLabelValues(labelOrUnknown(evt.GetPayloadString(event.KeyReason))).Inc()
	return nil
}

func (c *Collector) onLecturerCreated(_ context.Context, _ *event.Event) error {
	c.lecturersCreated.Inc()
	return nil
}

// GinMiddleware records request counts and latency keyed by route template
func (c *Collector) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.URL.Path == "/metrics" {
			ctx.Next()
			return
		}

		start := time.Now()
		c.httpInFlight.Inc()
		defer c.httpInFlight.Dec()

		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method
		c.httpRequests.WithLabelValues(method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func labelOrUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
