package dto

import (
	"amortization-engine/internal/domain/loan"
	"amortization-engine/internal/domain/rate"
	"amortization-engine/internal/pkg/apperrors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateTimeLayout is ISO-8601 with milliseconds; UTC values render with a "Z" suffix.
const DateTimeLayout = "2006-01-02T15:04:05.000Z07:00"

const FieldStartDate = "startDate"

// MaxAmortizationMonths bounds the schedule length a single request may ask for.
const MaxAmortizationMonths = 1200

// CalculateScheduleRequest accepts amounts as JSON numbers or numeric strings.
type CalculateScheduleRequest struct {
	PrincipalAmount    decimal.Decimal `json:"principalAmount"`
	AmortizationMonths int             `json:"amortizationMonths"`
	TermMonths         int             `json:"termMonths"`
	MarginRate         decimal.Decimal `json:"marginRate"`
	StartDate          string          `json:"startDate"`
	InterestDays       int             `json:"interestDays"`
}

// ToInputs maps the request onto loan inputs. An unreadable start date and an
// oversized amortization period are reported as field errors; the remaining
// rules are left to domain validation.
func (r *CalculateScheduleRequest) ToInputs() (loan.LoanInputs, apperrors.ValidationErrors) {
	inputs := loan.LoanInputs{
		PrincipalAmount:    r.PrincipalAmount,
		AmortizationMonths: r.AmortizationMonths,
		TermMonths:         r.TermMonths,
		MarginRate:         r.MarginRate,
		InterestDays:       r.InterestDays,
	}

	var errs apperrors.ValidationErrors
	if r.AmortizationMonths > MaxAmortizationMonths {
		errs = append(errs, apperrors.ValidationError{
			Field:   loan.FieldAmortizationMonths,
			Message: "Amortization months must not exceed 1200",
		})
	}

	start, err := ParseStartDate(r.StartDate)
	if err != nil {
		errs = append(errs, apperrors.ValidationError{
			Field:   FieldStartDate,
			Message: "Start date must be a valid ISO-8601 date",
			Cause:   err,
		})
		return inputs, errs
	}
	inputs.StartDate = start
	return inputs, errs
}

// ParseStartDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns midnight UTC of its UTC day.
func ParseStartDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return loan.NormalizeDate(t), nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return loan.NormalizeDate(t), nil
}

type AmortizationEntryResponse struct {
	Date             string  `json:"date"`
	DaysInPeriod     int     `json:"daysInPeriod"`
	StartingBalance  float64 `json:"startingBalance"`
	InterestPayment  float64 `json:"interestPayment"`
	PrincipalPayment float64 `json:"principalPayment"`
	TotalPayment     float64 `json:"totalPayment"`
	EndingBalance    float64 `json:"endingBalance"`
}

type ScheduleSummaryResponse struct {
	TotalPrincipal float64 `json:"totalPrincipal"`
	TotalInterest  float64 `json:"totalInterest"`
	TotalPayment   float64 `json:"totalPayment"`
}

type CalculateScheduleResponse struct {
	Schedule                []AmortizationEntryResponse `json:"schedule"`
	TermEndDate             string                      `json:"termEndDate"`
	BenchmarkRate           float64                     `json:"benchmarkRate"`
	AnnualRate              float64                     `json:"annualRate"`
	DailyInterestRate       float64                     `json:"dailyInterestRate"`
	MonthlyPrincipalPayment float64                     `json:"monthlyPrincipalPayment"`
	Summary                 ScheduleSummaryResponse     `json:"summary"`
}

func NewCalculateScheduleResponse(result *loan.ScheduleResult) CalculateScheduleResponse {
	if result == nil {
		return CalculateScheduleResponse{}
	}

	entries := make([]AmortizationEntryResponse, 0, len(result.Schedule))
	for _, e := range result.Schedule {
		entries = append(entries, AmortizationEntryResponse{
			Date:             FormatDate(e.Date),
			DaysInPeriod:     e.DaysInPeriod,
			StartingBalance:  e.StartingBalance.InexactFloat64(),
			InterestPayment:  e.InterestPayment.InexactFloat64(),
			PrincipalPayment: e.PrincipalPayment.InexactFloat64(),
			TotalPayment:     e.TotalPayment.InexactFloat64(),
			EndingBalance:    e.EndingBalance.InexactFloat64(),
		})
	}

	return CalculateScheduleResponse{
		Schedule:                entries,
		TermEndDate:             FormatDate(result.TermEndDate),
		BenchmarkRate:           result.Params.BenchmarkRate.InexactFloat64(),
		AnnualRate:              result.Params.AnnualRate.InexactFloat64(),
		DailyInterestRate:       result.Params.DailyInterestRate.InexactFloat64(),
		MonthlyPrincipalPayment: result.Params.MonthlyPrincipalPayment.InexactFloat64(),
		Summary: ScheduleSummaryResponse{
			TotalPrincipal: result.Summary.TotalPrincipal.InexactFloat64(),
			TotalInterest:  result.Summary.TotalInterest.InexactFloat64(),
			TotalPayment:   result.Summary.TotalPayment.InexactFloat64(),
		},
	}
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DateTimeLayout)
}

type ValidationErrorsResponse struct {
	Errors []apperrors.ValidationError `json:"errors"`
}

type BenchmarkRateResponse struct {
	SeriesID  string  `json:"seriesId"`
	Date      string  `json:"date"`
	Rate      float64 `json:"rate"`
	Source    string  `json:"source"`
	FetchedAt string  `json:"fetchedAt"`
}

func NewBenchmarkRateResponse(obs *rate.Observation) BenchmarkRateResponse {
	if obs == nil {
		return BenchmarkRateResponse{}
	}
	return BenchmarkRateResponse{
		SeriesID:  obs.SeriesID,
		Date:      obs.Date.UTC().Format(time.DateOnly),
		Rate:      obs.Rate.InexactFloat64(),
		Source:    obs.Source,
		FetchedAt: FormatDate(obs.FetchedAt),
	}
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type TokenRequest struct {
	Username string `json:"username"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}
