package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pantry_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pantry_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	ingestionRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pantry_ingestion_runs_total",
		Help: "Finished ingestion runs by terminal stage and error kind.",
	}, []string{"stage", "kind"})

	ingestionStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pantry_ingestion_stage_duration_seconds",
		Help:    "Time spent reaching each ingestion stage.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"stage"})

	inventoryMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pantry_inventory_mutations_total",
		Help: "Inventory store mutations by operation and result.",
	}, []string{"operation", "result"})

	blobsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pantry_blobs_swept_total",
		Help: "Orphaned ingestion blobs removed by the sweeper.",
	})
)

func PrometheusMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)

			httpRequests.WithLabelValues(method, route, status).Inc()
			httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// ObserveStage records how long an ingestion stage took.
func ObserveStage(stage string, d time.Duration) {
	ingestionStageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IngestionFinished counts a run that ended at stage; kind is empty for
// successful runs.
func IngestionFinished(stage, kind string) {
	if kind == "" {
		kind = "none"
	}
	ingestionRuns.WithLabelValues(stage, kind).Inc()
}

func InventoryMutation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	inventoryMutations.WithLabelValues(operation, result).Inc()
}

func BlobsSwept(n int) {
	blobsSwept.Add(float64(n))
}
