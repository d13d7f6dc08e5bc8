package rates

import (
	"amortization-engine/internal/config"
	"amortization-engine/internal/domain/rate"
	"amortization-engine/internal/infrastructure/monitoring"
	"amortization-engine/internal/pkg/apperrors"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	xrate "golang.org/x/time/rate"
)

const fredDateLayout = "2006-01-02"

type fredObservationsResponse struct {
	Count        int               `json:"count"`
	Observations []fredObservation `json:"observations"`
}

type fredObservation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

type fredErrorResponse struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// FredClient reads the latest observation of a FRED series.
type FredClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	seriesID   string
	lookback   int
	limiter    *xrate.Limiter
	logger     *slog.Logger
	now        func() time.Time
}

func NewFredClient(cfg config.FredConfig, seriesID string, logger *slog.Logger) (*FredClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: FRED API key is not configured", apperrors.ErrInvalidArgument)
	}
	if seriesID == "" {
		return nil, fmt.Errorf("%w: FRED series id is empty", apperrors.ErrInvalidArgument)
	}

	lookback := cfg.Lookback
	if lookback <= 0 {
		lookback = 10
	}
	limit := xrate.Inf
	burst := 1
	if cfg.RequestsPerMinute > 0 {
		limit = xrate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
		burst = max(1, cfg.RequestsPerMinute/10)
	}

	return &FredClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		seriesID:   seriesID,
		lookback:   lookback,
		limiter:    xrate.NewLimiter(limit, burst),
		logger:     logger.With("component", "FredClient", "seriesId", seriesID),
		now:        time.Now,
	}, nil
}

func (c *FredClient) LatestObservation(ctx context.Context) (*rate.Observation, error) {
	start := time.Now()
	obs, err := c.fetchLatest(ctx)
	if err != nil {
		monitoring.RecordRateFetch(rate.SourceFred, "error", time.Since(start))
		return nil, err
	}
	monitoring.RecordRateFetch(rate.SourceFred, "success", time.Since(start))
	return obs, nil
}

func (c *FredClient) fetchLatest(ctx context.Context) (*rate.Observation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.WrapRateError(err, "FRED rate limiter wait aborted")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.observationsURL(), nil)
	if err != nil {
		return nil, apperrors.WrapRateError(err, "failed to build FRED request")
	}
	req.Header.Set("Accept", "application/json")

	c.logger.DebugContext(ctx, "Requesting FRED observations", "limit", c.lookback)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.WrapRateError(err, "FRED request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.WrapRateError(err, "failed to read FRED response")
	}

	if resp.StatusCode != http.StatusOK {
		var fredErr fredErrorResponse
		if json.Unmarshal(body, &fredErr) == nil && fredErr.ErrorMessage != "" {
			return nil, apperrors.WrapRateError(
				fmt.Errorf("status %d: %s", resp.StatusCode, fredErr.ErrorMessage),
				"FRED returned an error")
		}
		return nil, apperrors.WrapRateError(fmt.Errorf("status %d", resp.StatusCode), "FRED returned an error")
	}

	var payload fredObservationsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.WrapRateError(err, "failed to decode FRED response")
	}

	return c.firstPublished(payload.Observations)
}

// firstPublished picks the newest observation with a value. FRED marks
// missing days such as bank holidays with ".".
func (c *FredClient) firstPublished(observations []fredObservation) (*rate.Observation, error) {
	for _, o := range observations {
		value := strings.TrimSpace(o.Value)
		if value == "" || value == "." {
			continue
		}
		parsed, err := decimal.NewFromString(value)
		if err != nil {
			return nil, apperrors.WrapRateError(err, fmt.Sprintf("unparsable FRED value %q", o.Value))
		}
		date, err := time.Parse(fredDateLayout, o.Date)
		if err != nil {
			return nil, apperrors.WrapRateError(err, fmt.Sprintf("unparsable FRED date %q", o.Date))
		}
		return &rate.Observation{
			SeriesID:  c.seriesID,
			Date:      date,
			Rate:      parsed,
			Source:    rate.SourceFred,
			FetchedAt: c.now().UTC(),
		}, nil
	}
	return nil, apperrors.WrapRateError(
		fmt.Errorf("no published value in the last %d observations", len(observations)),
		"FRED returned no usable observation")
}

func (c *FredClient) observationsURL() string {
	q := url.Values{}
	q.Set("series_id", c.seriesID)
	q.Set("api_key", c.apiKey)
	q.Set("file_type", "json")
	q.Set("sort_order", "desc")
	q.Set("limit", strconv.Itoa(c.lookback))
	return c.baseURL + "/series/observations?" + q.Encode()
}

var _ rate.Provider = (*FredClient)(nil)
