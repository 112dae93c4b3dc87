package telemetry

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordJurorCall(t *testing.T) {
	before := testutil.ToFloat64(jurorCalls.WithLabelValues("test-juror", "error"))
	RecordJurorCall("test-juror", errors.New("timeout"), time.Second)
	RecordJurorCall("test-juror", nil, time.Second)

	if got := testutil.ToFloat64(jurorCalls.WithLabelValues("test-juror", "error")); got != before+1 {
		t.Errorf("expected error count %v, got %v", before+1, got)
	}
	if got := testutil.ToFloat64(jurorCalls.WithLabelValues("test-juror", "ok")); got < 1 {
		t.Errorf("expected ok count >= 1, got %v", got)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	RecordSearch("bm25", true, time.Millisecond)
	SetIndexChunks(7)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`tbv_search_requests_total{degraded="true",mode="bm25"}`,
		"tbv_index_chunks 7",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected metrics output to contain %q", want)
		}
	}
}
