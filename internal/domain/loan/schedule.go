package loan

import (
	"amortization-engine/internal/pkg/apperrors"
	"fmt"

	"github.com/shopspring/decimal"
)

// CalculateParams derives the rates and the level principal payment shared by every period.
// benchmarkRate and MarginRate are annual percentages.
func CalculateParams(inputs LoanInputs, benchmarkRate decimal.Decimal) CalculationParams {
	annualRate := benchmarkRate.Add(inputs.MarginRate)
	dailyRate := annualRate.
		DivRound(hundred, ratePrecision).
		DivRound(decimal.NewFromInt(int64(inputs.InterestDays)), ratePrecision)

	return CalculationParams{
		BenchmarkRate:           benchmarkRate,
		AnnualRate:              annualRate,
		DailyInterestRate:       dailyRate,
		MonthlyPrincipalPayment: inputs.PrincipalAmount.DivRound(decimal.NewFromInt(int64(inputs.AmortizationMonths)), ratePrecision),
		TermEndDate:             TermEndDate(inputs.StartDate, inputs.TermMonths),
	}
}

// BuildSchedule produces the full schedule from an already fetched benchmark rate.
// It returns the validation errors as the error when inputs are invalid and never
// returns a partial schedule.
func BuildSchedule(inputs LoanInputs, benchmarkRate decimal.Decimal) (*ScheduleResult, error) {
	if errs := ValidateInputs(inputs); len(errs) > 0 {
		return nil, errs
	}

	params := CalculateParams(inputs, benchmarkRate)
	start := NormalizeDate(inputs.StartDate)

	schedule := make([]AmortizationEntry, 0, inputs.AmortizationMonths+1)
	schedule = append(schedule, AmortizationEntry{
		Date:             start,
		StartingBalance:  inputs.PrincipalAmount,
		InterestPayment:  decimal.Zero,
		PrincipalPayment: decimal.Zero,
		TotalPayment:     decimal.Zero,
		EndingBalance:    inputs.PrincipalAmount,
	})

	balance := inputs.PrincipalAmount
	periodStart := start
	for month := 1; month <= inputs.AmortizationMonths; month++ {
		periodEnd := endOfMonth(periodStart)
		days := daysInPeriod(periodStart, periodEnd)
		startingBalance := balance

		interest := decimal.Zero
		principal := decimal.Zero
		switch {
		case month < inputs.TermMonths:
			interest = accrueInterest(startingBalance, params.AnnualRate, days, inputs.InterestDays)
			principal = params.MonthlyPrincipalPayment
		case month == inputs.TermMonths:
			interest = accrueInterest(startingBalance, params.AnnualRate, days, inputs.InterestDays)
			principal = startingBalance
		}

		balance = startingBalance.Sub(principal)
		schedule = append(schedule, AmortizationEntry{
			Date:             periodEnd,
			DaysInPeriod:     days,
			StartingBalance:  startingBalance,
			InterestPayment:  interest,
			PrincipalPayment: principal,
			TotalPayment:     interest.Add(principal),
			EndingBalance:    balance,
		})

		periodStart = firstOfNextMonth(periodEnd)
	}

	if len(schedule) != inputs.AmortizationMonths+1 {
		return nil, fmt.Errorf("%w: schedule has %d rows, expected %d", apperrors.ErrInternalServer, len(schedule), inputs.AmortizationMonths+1)
	}
	if !schedule[inputs.TermMonths].EndingBalance.IsZero() {
		return nil, fmt.Errorf("%w: balance %s remains at term end", apperrors.ErrInternalServer, schedule[inputs.TermMonths].EndingBalance)
	}

	return &ScheduleResult{
		Schedule:    schedule,
		TermEndDate: params.TermEndDate,
		Params:      params,
		Summary:     summarize(schedule),
	}, nil
}

// accrueInterest computes balance × annualRate% × days / interestDays with a
// single rounded division, so the rounded daily rate never feeds a payment.
func accrueInterest(balance, annualRate decimal.Decimal, days, interestDays int) decimal.Decimal {
	return balance.
		Mul(annualRate).
		Mul(decimal.NewFromInt(int64(days))).
		DivRound(hundred.Mul(decimal.NewFromInt(int64(interestDays))), ratePrecision)
}

func summarize(schedule []AmortizationEntry) ScheduleSummary {
	summary := ScheduleSummary{
		TotalPrincipal: decimal.Zero,
		TotalInterest:  decimal.Zero,
		TotalPayment:   decimal.Zero,
	}
	for _, entry := range schedule[1:] {
		summary.TotalPrincipal = summary.TotalPrincipal.Add(entry.PrincipalPayment)
		summary.TotalInterest = summary.TotalInterest.Add(entry.InterestPayment)
		summary.TotalPayment = summary.TotalPayment.Add(entry.TotalPayment)
	}
	return summary
}
