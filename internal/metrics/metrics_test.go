package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHandlerExposesCollectors(t *testing.T) {
	CommandsTotal.WithLabelValues("get_tutorials", "success").Inc()
	StreamChunksTotal.Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{
		`codetutor_commands_total{command="get_tutorials",status="success"}`,
		"codetutor_stream_chunks_total",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestCounterIncrements(t *testing.T) {
	c := ExecutionsTotal.WithLabelValues("timeout")
	before := testutil.ToFloat64(c)
	c.Inc()
	if got := testutil.ToFloat64(c); got != before+1 {
		t.Errorf("executions_total{timeout} = %v, want %v", got, before+1)
	}
}
