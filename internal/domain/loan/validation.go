package loan

import (
	"amortization-engine/internal/pkg/apperrors"
)

const (
	FieldPrincipalAmount    = "principalAmount"
	FieldAmortizationMonths = "amortizationMonths"
	FieldTermMonths         = "termMonths"
	FieldMarginRate         = "marginRate"
	FieldInterestDays       = "interestDays"
)

// ValidateInputs reports every violated rule, in field order. An empty result means the inputs are valid.
func ValidateInputs(inputs LoanInputs) apperrors.ValidationErrors {
	var errs apperrors.ValidationErrors

	if !inputs.PrincipalAmount.IsPositive() {
		errs = append(errs, apperrors.ValidationError{
			Field:   FieldPrincipalAmount,
			Message: "Principal amount must be greater than 0",
		})
	}

	if inputs.AmortizationMonths <= 0 {
		errs = append(errs, apperrors.ValidationError{
			Field:   FieldAmortizationMonths,
			Message: "Amortization months must be greater than 0",
		})
	}

	if inputs.TermMonths <= 0 || inputs.TermMonths > inputs.AmortizationMonths {
		errs = append(errs, apperrors.ValidationError{
			Field:   FieldTermMonths,
			Message: "Term months must be greater than 0 and less than or equal to amortization months",
		})
	}

	if inputs.MarginRate.IsNegative() {
		errs = append(errs, apperrors.ValidationError{
			Field:   FieldMarginRate,
			Message: "Margin rate must not be negative",
		})
	}

	if inputs.InterestDays != InterestDays360 {
		errs = append(errs, apperrors.ValidationError{
			Field:   FieldInterestDays,
			Message: "Interest days must be 360",
		})
	}

	return errs
}
