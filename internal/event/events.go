package event

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type ScheduleGeneratedEvent struct {
	CalculationID      string          `json:"calculationId"`
	PrincipalAmount    decimal.Decimal `json:"principalAmount"`
	AmortizationMonths int             `json:"amortizationMonths"`
	TermMonths         int             `json:"termMonths"`
	MarginRate         decimal.Decimal `json:"marginRate"`
	BenchmarkRate      decimal.Decimal `json:"benchmarkRate"`
	StartDate          time.Time       `json:"startDate"`
	TermEndDate        time.Time       `json:"termEndDate"`
	TotalInterest      decimal.Decimal `json:"totalInterest"`
	TotalPayment       decimal.Decimal `json:"totalPayment"`
	Timestamp          time.Time       `json:"timestamp"`
}

type BenchmarkRateRefreshedEvent struct {
	SeriesID        string          `json:"seriesId"`
	ObservationDate time.Time       `json:"observationDate"`
	Rate            decimal.Decimal `json:"rate"`
	Timestamp       time.Time       `json:"timestamp"`
}

// MessageID identifies one observation so consumers can drop redeliveries.
func (e BenchmarkRateRefreshedEvent) MessageID() string {
	return e.SeriesID + ":" + e.ObservationDate.UTC().Format(time.DateOnly)
}

// NoopPublisher drops every event. Used when RabbitMQ is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishScheduleGenerated(context.Context, ScheduleGeneratedEvent) error {
	return nil
}

func (NoopPublisher) PublishBenchmarkRateRefreshed(context.Context, BenchmarkRateRefreshedEvent) error {
	return nil
}

var _ EventPublisher = NoopPublisher{}
