package handler

import (
	"amortization-engine/internal/api/handler/dto"
	"amortization-engine/internal/domain/loan"
	"amortization-engine/internal/pkg/apperrors"
	"fmt"
	"log/slog"
	"net/http"
)

type LoanHandler struct {
	service loan.AmortizationService
	logger  *slog.Logger
}

func NewLoanHandler(s loan.AmortizationService, l *slog.Logger) *LoanHandler {
	return &LoanHandler{
		service: s,
		logger:  l.With("component", "LoanHandler"),
	}
}

// CalculateSchedule generates an amortization schedule.
//
// @Summary Calculate an amortization schedule
// @Description Validates the loan inputs, fetches the current benchmark rate and returns the period-by-period schedule. Row 0 is the opening balance.
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body dto.CalculateScheduleRequest true "Loan inputs"
// @Success 200 {object} dto.CalculateScheduleResponse "Schedule generated"
// @Failure 400 {object} dto.ValidationErrorsResponse "Validation errors"
// @Failure 503 {object} dto.ErrorResponse "Benchmark rate unavailable"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /api/loan/calculate [post]
// @Security BearerAuth
func (h *LoanHandler) CalculateSchedule(w http.ResponseWriter, r *http.Request) {
	var req dto.CalculateScheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode calculation request", "error", err)
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	inputs, dateErrs := req.ToInputs()
	errs := append(h.service.Validate(inputs), dateErrs...)
	if len(errs) > 0 {
		respondJSON(w, http.StatusBadRequest, dto.ValidationErrorsResponse{Errors: errs})
		return
	}

	result, err := h.service.GenerateSchedule(r.Context(), inputs)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewCalculateScheduleResponse(result))
}
