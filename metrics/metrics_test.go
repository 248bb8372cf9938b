package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.CertificateGenerated()
	m.CertificateGenerated()
	m.CertificateFailed("generate")
	m.CertificateFailed("notify")
	m.CertificateFailed("notify")
	m.EmailSent()
	m.CompletionFinished(3 * time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.generated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("generate")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.failures.WithLabelValues("notify")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emailsSent))
	assert.Equal(t, 1, testutil.CollectAndCount(m.completion))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.EmailSent()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "certificate_emails_sent_total 1")
	assert.Contains(t, string(body), "course_completion_duration_seconds_bucket")
	assert.Contains(t, string(body), "go_goroutines")
}
