// 包 metrics：网格服务的 Prometheus 指标
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var msBuckets = []float64{0.1, 0.5, 1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000}

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pyxgrid_requests_total",
		Help: "Total API requests by route and status class",
	}, []string{"route", "code"})
	ProjectionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pyxgrid_projection_total",
		Help: "Total forward/inverse projections",
	}, []string{"direction"})
	ProjectionDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pyxgrid_projection_duration_ms",
		Help:    "Projection duration in milliseconds",
		Buckets: msBuckets,
	}, []string{"direction"})
	NotConvergedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pyxgrid_inverse_not_converged_total",
		Help: "Inverse projections that hit the iteration bound",
	})
	RasterizeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pyxgrid_rasterize_total",
		Help: "Total polygon rasterizations by mode",
	}, []string{"mode"})
	RasterizeDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pyxgrid_rasterize_duration_ms",
		Help:    "Rasterization duration in milliseconds",
		Buckets: msBuckets,
	}, []string{"mode"})
	RasterizeTiles = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pyxgrid_rasterize_tiles",
		Help:    "Tiles per rasterization result",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pyxgrid_cache_hits_total",
		Help: "Cache hits by tier",
	}, []string{"tier"})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pyxgrid_cache_misses_total",
		Help: "Cache misses across all tiers",
	})
	GeoIPLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pyxgrid_geoip_lookups_total",
		Help: "GeoIP lookups by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		ProjectionTotal,
		ProjectionDurationMs,
		NotConvergedTotal,
		RasterizeTotal,
		RasterizeDurationMs,
		RasterizeTiles,
		CacheHitsTotal,
		CacheMissesTotal,
		GeoIPLookupsTotal,
	)
}

// SinceMs：自 start 起的毫秒数（含小数）
func SinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// ObserveProjection：direction 为 forward 或 inverse
func ObserveProjection(direction string, start time.Time) {
	ProjectionTotal.WithLabelValues(direction).Inc()
	ProjectionDurationMs.WithLabelValues(direction).Observe(SinceMs(start))
}

// ObserveRasterize：mode 为 fill 或 boundary
func ObserveRasterize(mode string, start time.Time, tiles int) {
	RasterizeTotal.WithLabelValues(mode).Inc()
	RasterizeDurationMs.WithLabelValues(mode).Observe(SinceMs(start))
	RasterizeTiles.Observe(float64(tiles))
}

// CodeClass：2xx、4xx 等
func CodeClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	}
	return "2xx"
}

// Handler：挂载到 API_BASE/metrics
func Handler() http.Handler { return promhttp.Handler() }
