package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumentHandlerUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/api/v1/patients/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"patient not found"}`))
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/patients/{id}", "404"))
	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/patients/"+id, nil))
	}
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/patients/{id}", "404"))
	if after-before != 2 {
		t.Errorf("requests counted = %v, want 2", after-before)
	}
}

func TestCollectorWithoutPool(t *testing.T) {
	c := NewCollector(nil, func() bool { return true })
	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(c)

	expected := `
# HELP orthocare_transcription_provider_configured 1 when a transcription provider is configured.
# TYPE orthocare_transcription_provider_configured gauge
orthocare_transcription_provider_configured 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "orthocare_transcription_provider_configured"); err != nil {
		t.Error(err)
	}
	if n := testutil.CollectAndCount(c); n != 4 {
		t.Errorf("metrics = %d, want 4", n)
	}
}
