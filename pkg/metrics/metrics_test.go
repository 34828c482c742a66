package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}

	if Gatherer != prometheus.DefaultGatherer {
		t.Error("Gatherer should be the default Prometheus gatherer")
	}
}

func TestHandler(t *testing.T) {
	sample := promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "swproxy_metrics_handler_sample_total",
		Help: "Counter registered by the metrics handler test",
	})
	sample.Add(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "swproxy_metrics_handler_sample_total 3") {
		t.Errorf("Expected sample counter in output, got:\n%s", body)
	}

	// The second scrape sees the first one counted.
	rec = httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `promhttp_metric_handler_requests_total{code="200"}`) {
		t.Errorf("Expected handler scrape counter in output, got:\n%s", rec.Body.String())
	}
}
