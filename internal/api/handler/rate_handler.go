package handler

import (
	"amortization-engine/internal/api/handler/dto"
	"amortization-engine/internal/domain/rate"
	"log/slog"
	"net/http"
)

type RateHandler struct {
	service rate.BenchmarkService
	logger  *slog.Logger
}

func NewRateHandler(s rate.BenchmarkService, l *slog.Logger) *RateHandler {
	return &RateHandler{
		service: s,
		logger:  l.With("component", "RateHandler"),
	}
}

// GetBenchmarkRate returns the benchmark observation used for new schedules.
//
// @Summary Current benchmark rate
// @Tags Rates
// @Produce json
// @Success 200 {object} dto.BenchmarkRateResponse "Latest observation"
// @Failure 503 {object} dto.ErrorResponse "Benchmark rate unavailable"
// @Router /api/rates/benchmark [get]
// @Security BearerAuth
func (h *RateHandler) GetBenchmarkRate(w http.ResponseWriter, r *http.Request) {
	obs, err := h.service.LatestObservation(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewBenchmarkRateResponse(obs))
}
