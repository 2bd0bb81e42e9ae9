package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/fret-sensor/internal/logic"
)

var (
	ch0 = logic.Channel{Index: 0, Pin: 4, Actuated: true}
	ch1 = logic.Channel{Index: 1, Pin: 5}
)

func TestObserveExecutedCycle(t *testing.T) {
	r := NewRecorder(prom.NewRegistry())

	r.Observe(logic.Report{Time: time.Now(), Channels: []logic.ChannelResult{
		{Channel: ch0, Raw: 2000, On: true, Outcome: logic.OutcomePublished},
		{Channel: ch1, Raw: 3500, On: false, Outcome: logic.OutcomeUnchanged},
	}}, 3*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.cycles))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.transitions))
	assert.Equal(t, 2000.0, testutil.ToFloat64(r.raw.WithLabelValues("0")))
	assert.Equal(t, 3500.0, testutil.ToFloat64(r.raw.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.state.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.publishes.WithLabelValues("0", "published")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.cycleDuration))
}

func TestObserveFailedPublishStillSetsState(t *testing.T) {
	r := NewRecorder(prom.NewRegistry())

	r.Observe(logic.Report{Time: time.Now(), Channels: []logic.ChannelResult{
		{Channel: ch0, Raw: 100, On: true, Outcome: logic.OutcomeFailed, Err: errors.New("offline")},
	}}, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.publishes.WithLabelValues("0", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.state.WithLabelValues("0")))
}

func TestObserveSkippedCycle(t *testing.T) {
	r := NewRecorder(prom.NewRegistry())

	r.Observe(logic.Report{Time: time.Now(), Skipped: logic.SkipNotReady}, 0)
	r.Observe(logic.Report{Time: time.Now(), Skipped: logic.SkipInterval}, 0)
	r.Observe(logic.Report{Time: time.Now(), Skipped: logic.SkipInterval}, 0)

	assert.Equal(t, 0.0, testutil.ToFloat64(r.cycles))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.skipped.WithLabelValues("not_ready")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.skipped.WithLabelValues("interval")))
}

func TestSetSessionReady(t *testing.T) {
	r := NewRecorder(prom.NewRegistry())

	r.SetSessionReady(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessionReady))
	r.SetSessionReady(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.sessionReady))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.Observe(logic.Report{}, time.Second)
	r.SetSessionReady(true)
	assert.Nil(t, r.Registry())

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerServesMetrics(t *testing.T) {
	r := NewRecorder(nil)
	r.Observe(logic.Report{Time: time.Now(), Channels: []logic.ChannelResult{
		{Channel: ch0, Raw: 2000, On: true, Outcome: logic.OutcomePublished},
	}}, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "fret_sensor_cycles_total 1"), body)
	assert.Contains(t, body, `fret_sensor_raw_reading{channel="0"} 2000`)
	assert.Contains(t, body, "go_goroutines")
}
