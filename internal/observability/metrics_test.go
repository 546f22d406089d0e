package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsHandler_ExposesTrackerMetrics(t *testing.T) {
	RecordChangeTracked("added")
	RecordRollback(10*time.Millisecond, 1)
	RecordReconcile("applied")
	AddActiveSubscriptions(1)
	AddActiveSubscriptions(-1)
	RecordQueueEnqueue("background", 1)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, body, `agentdiff_changes_tracked_total{kind="added"}`)
	assert.Contains(t, body, `agentdiff_rollback_total{status="partial"}`)
	assert.Contains(t, body, `agentdiff_reconcile_total{outcome="applied"}`)
	assert.Contains(t, body, "agentdiff_active_subscriptions 0")
	assert.Contains(t, body, `agentdiff_enqueue_total{lane="background"}`)
}
