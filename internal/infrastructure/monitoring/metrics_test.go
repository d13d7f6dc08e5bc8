package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordScheduleGenerated(t *testing.T) {
	Schedule.GeneratedTotal.Reset()

	RecordScheduleGenerated("success", 12)
	RecordScheduleGenerated("success", 24)
	RecordScheduleGenerated("rate_unavailable", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(Schedule.GeneratedTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Schedule.GeneratedTotal.WithLabelValues("rate_unavailable")))
}

func TestRecordRateFetch(t *testing.T) {
	Rate.FetchTotal.Reset()
	Rate.FetchDuration.Reset()

	RecordRateFetch("fred", "success", 120*time.Millisecond)
	RecordRateFetch("fred", "error", time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(Rate.FetchTotal.WithLabelValues("fred", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Rate.FetchTotal.WithLabelValues("fred", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(Rate.FetchDuration))
}

func TestRecordRateCacheAndGauge(t *testing.T) {
	Rate.CacheTotal.Reset()
	Rate.Current.Reset()

	RecordRateCache("hit")
	RecordRateCache("hit")
	RecordRateCache("miss")
	RecordCurrentRate("DPRIME", 8.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(Rate.CacheTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Rate.CacheTotal.WithLabelValues("miss")))
	assert.Equal(t, 8.5, testutil.ToFloat64(Rate.Current.WithLabelValues("DPRIME")))
}

func TestRecordBatchRun(t *testing.T) {
	Batch.RunsTotal.Reset()

	RecordBatchRun("RateRefresh", "success")

	assert.Equal(t, 1.0, testutil.ToFloat64(Batch.RunsTotal.WithLabelValues("RateRefresh", "success")))
}
