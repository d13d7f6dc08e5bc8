package loan

import (
	"time"

	"github.com/shopspring/decimal"
)

// InterestDays360 is the only supported day-count basis.
const InterestDays360 = 360

// ratePrecision is the number of decimal places kept by each division.
const ratePrecision int32 = 20

var hundred = decimal.NewFromInt(100)

// LoanInputs describes the loan a schedule is generated for.
type LoanInputs struct {
	PrincipalAmount    decimal.Decimal
	AmortizationMonths int
	TermMonths         int
	MarginRate         decimal.Decimal
	StartDate          time.Time
	InterestDays       int
}

// AmortizationEntry is one row of a schedule. Row 0 is the opening balance
// and carries no payments.
type AmortizationEntry struct {
	Date             time.Time
	DaysInPeriod     int
	StartingBalance  decimal.Decimal
	InterestPayment  decimal.Decimal
	PrincipalPayment decimal.Decimal
	TotalPayment     decimal.Decimal
	EndingBalance    decimal.Decimal
}

// CalculationParams holds the rates and amounts derived once per schedule.
type CalculationParams struct {
	BenchmarkRate           decimal.Decimal
	AnnualRate              decimal.Decimal
	DailyInterestRate       decimal.Decimal
	MonthlyPrincipalPayment decimal.Decimal
	TermEndDate             time.Time
}

// ScheduleSummary totals the payment rows of a schedule.
type ScheduleSummary struct {
	TotalPrincipal decimal.Decimal
	TotalInterest  decimal.Decimal
	TotalPayment   decimal.Decimal
}

// ScheduleResult is a generated schedule with the parameters used to build it.
type ScheduleResult struct {
	Schedule    []AmortizationEntry
	TermEndDate time.Time
	Params      CalculationParams
	Summary     ScheduleSummary
}
