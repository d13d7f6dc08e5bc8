package loan

import (
	"amortization-engine/internal/event"
	"amortization-engine/internal/infrastructure/monitoring"
	"amortization-engine/internal/pkg/apperrors"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RateSource supplies the current benchmark annual rate in percentage units.
// Implementations must be safe for concurrent use.
type RateSource interface {
	CurrentRate(ctx context.Context) (decimal.Decimal, error)
}

type AmortizationService interface {
	Validate(inputs LoanInputs) apperrors.ValidationErrors

	GenerateSchedule(ctx context.Context, inputs LoanInputs) (*ScheduleResult, error)
}

type amortizationServiceImpl struct {
	rates     RateSource
	publisher event.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewAmortizationService(rates RateSource, publisher event.EventPublisher, logger *slog.Logger) AmortizationService {
	if publisher == nil {
		publisher = event.NoopPublisher{}
	}
	return &amortizationServiceImpl{
		rates:     rates,
		publisher: publisher,
		logger:    logger.With("component", "AmortizationService"),
		now:       time.Now,
	}
}

func (s *amortizationServiceImpl) Validate(inputs LoanInputs) apperrors.ValidationErrors {
	return ValidateInputs(inputs)
}

func (s *amortizationServiceImpl) GenerateSchedule(ctx context.Context, inputs LoanInputs) (*ScheduleResult, error) {
	if errs := ValidateInputs(inputs); len(errs) > 0 {
		s.logger.WarnContext(ctx, "Rejected invalid loan inputs", "errors", len(errs))
		monitoring.RecordScheduleGenerated("invalid", 0)
		return nil, errs
	}

	benchmarkRate, err := s.rates.CurrentRate(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to fetch benchmark rate", "error", err)
		monitoring.RecordScheduleGenerated("rate_unavailable", 0)
		if errors.Is(err, apperrors.ErrRateUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrRateUnavailable, err)
	}

	result, err := BuildSchedule(inputs, benchmarkRate)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to build amortization schedule", "error", err)
		monitoring.RecordScheduleGenerated("error", 0)
		return nil, err
	}

	s.logger.InfoContext(ctx, "Amortization schedule generated",
		"principal", inputs.PrincipalAmount.String(),
		"amortizationMonths", inputs.AmortizationMonths,
		"termMonths", inputs.TermMonths,
		"benchmarkRate", benchmarkRate.String(),
		"rows", len(result.Schedule),
	)
	monitoring.RecordScheduleGenerated("success", inputs.AmortizationMonths)

	s.publishGenerated(ctx, inputs, result)

	return result, nil
}

// publishGenerated is best effort; a broker failure never fails the calculation.
func (s *amortizationServiceImpl) publishGenerated(ctx context.Context, inputs LoanInputs, result *ScheduleResult) {
	ev := event.ScheduleGeneratedEvent{
		CalculationID:      uuid.NewString(),
		PrincipalAmount:    inputs.PrincipalAmount,
		AmortizationMonths: inputs.AmortizationMonths,
		TermMonths:         inputs.TermMonths,
		MarginRate:         inputs.MarginRate,
		BenchmarkRate:      result.Params.BenchmarkRate,
		StartDate:          NormalizeDate(inputs.StartDate),
		TermEndDate:        result.TermEndDate,
		TotalInterest:      result.Summary.TotalInterest,
		TotalPayment:       result.Summary.TotalPayment,
		Timestamp:          s.now().UTC(),
	}
	if err := s.publisher.PublishScheduleGenerated(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish schedule generated event", "calculationId", ev.CalculationID, "error", err)
	}
}
