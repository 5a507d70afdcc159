package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	m := New()

	m.Submitted()
	m.Submitted()
	m.SubmissionFailed("create_message")
	m.Confirmed("id", false)
	m.Confirmed("query", true)
	m.Adopted()
	m.Pending(3)
	m.FeedDisconnected()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissionsFailed.WithLabelValues("create_message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.confirmed.WithLabelValues("id", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.confirmed.WithLabelValues("query", "errored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.adopted))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.pending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.feedDisconnects))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Pending(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "chatsync_pending_messages 1")
}
