package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ScheduleMetrics struct {
	GeneratedTotal *prometheus.CounterVec
	Periods        prometheus.Histogram
}

type RateMetrics struct {
	FetchTotal    *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	CacheTotal    *prometheus.CounterVec
	Current       *prometheus.GaugeVec
}

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BatchMetrics struct {
	RunsTotal *prometheus.CounterVec
}

var (
	Schedule = ScheduleMetrics{
		GeneratedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amortization_schedules_generated_total",
				Help: "Total number of amortization schedule generations by outcome.",
			},
			[]string{"status"},
		),
		Periods: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "amortization_schedule_periods",
				Help:    "Number of amortization periods per generated schedule.",
				Buckets: []float64{12, 24, 36, 60, 120, 180, 240, 360, 480},
			},
		),
	}

	Rate = RateMetrics{
		FetchTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "benchmark_rate_fetch_total",
				Help: "Total number of benchmark rate lookups by source and outcome.",
			},
			[]string{"source", "status"},
		),
		FetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "benchmark_rate_fetch_duration_seconds",
				Help:    "Histogram of benchmark rate lookup latencies.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		CacheTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "benchmark_rate_cache_total",
				Help: "Benchmark rate cache lookups by result.",
			},
			[]string{"result"},
		),
		Current: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "benchmark_rate_percent",
				Help: "Last benchmark rate observed, in percent.",
			},
			[]string{"series"},
		),
	}

	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "amortization_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Batch = BatchMetrics{
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amortization_batch_runs_total",
				Help: "Batch job runs by job name and outcome.",
			},
			[]string{"job", "status"},
		),
	}
)

func RecordScheduleGenerated(status string, periods int) {
	Schedule.GeneratedTotal.WithLabelValues(status).Inc()
	if periods > 0 {
		Schedule.Periods.Observe(float64(periods))
	}
}

func RecordRateFetch(source, status string, duration time.Duration) {
	Rate.FetchTotal.WithLabelValues(source, status).Inc()
	Rate.FetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func RecordRateCache(result string) {
	Rate.CacheTotal.WithLabelValues(result).Inc()
}

func RecordCurrentRate(series string, rate float64) {
	Rate.Current.WithLabelValues(series).Set(rate)
}

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordBatchRun(job, status string) {
	Batch.RunsTotal.WithLabelValues(job, status).Inc()
}
