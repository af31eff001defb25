package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickspencer/pipewatch/internal/collector"
	"github.com/patrickspencer/pipewatch/internal/realtime"
	"github.com/patrickspencer/pipewatch/internal/store"
	"github.com/patrickspencer/pipewatch/internal/summary"
	"github.com/patrickspencer/pipewatch/internal/testutil"
	"github.com/patrickspencer/pipewatch/internal/web/api"
)

func newRouter(st *testutil.MockStore) http.Handler {
	events := realtime.NewBroker()
	return NewRouter(&api.API{
		Summary:  summary.NewBuilder(st),
		Recorder: collector.NewRecorder(st, events),
		Events:   events,
	})
}

func TestRootRedirectsToUI(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(testutil.NewMockStore()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/ui/", rec.Header().Get("Location"))
}

func TestPreflightAndRequestID(t *testing.T) {
	h := newRouter(testutil.NewMockStore())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/pipelines", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDashboardEscapesPipelineNames(t *testing.T) {
	st := testutil.NewMockStore()
	start := time.Now().Add(-time.Hour)
	end := start.Add(90 * time.Second)
	st.AddExecutions(store.Execution{
		PipelineName: `<script>alert("x")</script>`,
		Status:       store.StatusSuccess,
		StartTime:    start,
		EndTime:      &end,
	})

	rec := httptest.NewRecorder()
	newRouter(st).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ui/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.NotContains(t, body, `<script>alert`)
	assert.Contains(t, body, `&lt;script&gt;alert(&quot;x&quot;)&lt;/script&gt;`)
	assert.Contains(t, body, "1.5m")
	assert.Contains(t, body, "100.0%")
}

func TestDashboardRejectsBadDays(t *testing.T) {
	h := newRouter(testutil.NewMockStore())

	for _, target := range []string{"/ui/?days=abc", "/ui/?days=-3", "/ui/?days=+5", "/ui/?days=200000"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), `class="error"`, target)
		assert.Contains(t, rec.Body.String(), "days must be", target)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ui/?days=30", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Last 30 days")
	assert.NotContains(t, rec.Body.String(), `class="error"`)
}
