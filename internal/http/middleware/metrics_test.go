package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsRequestsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/ping/:id", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	before := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/ping/:id", "200"))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping/42", nil))
	}

	after := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/ping/:id", "200"))
	if after-before != 3 {
		t.Fatalf("expected 3 new requests, got %v", after-before)
	}
}

func TestObserveExchangeAndDocument(t *testing.T) {
	before := testutil.ToFloat64(exchangeOutcomes.WithLabelValues("answered"))
	ObserveExchange("answered")
	if after := testutil.ToFloat64(exchangeOutcomes.WithLabelValues("answered")); after-before != 1 {
		t.Fatalf("exchange counter not incremented")
	}

	before = testutil.ToFloat64(documentOutcomes.WithLabelValues("compiled"))
	ObserveDocument("compiled")
	if after := testutil.ToFloat64(documentOutcomes.WithLabelValues("compiled")); after-before != 1 {
		t.Fatalf("document counter not incremented")
	}
}
