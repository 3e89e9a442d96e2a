package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCodeClass(t *testing.T) {
	for code, want := range map[int]string{200: "2xx", 204: "2xx", 301: "3xx", 400: "4xx", 429: "4xx", 500: "5xx"} {
		if got := CodeClass(code); got != want {
			t.Errorf("CodeClass(%d) = %s, want %s", code, got, want)
		}
	}
}

func TestObserveExposed(t *testing.T) {
	ObserveProjection("forward", time.Now())
	ObserveRasterize("boundary", time.Now(), 7)
	NotConvergedTotal.Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`pyxgrid_projection_total{direction="forward"} 1`,
		`pyxgrid_rasterize_total{mode="boundary"} 1`,
		`pyxgrid_inverse_not_converged_total 1`,
		`pyxgrid_rasterize_tiles_count 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output misses %q", want)
		}
	}
}
