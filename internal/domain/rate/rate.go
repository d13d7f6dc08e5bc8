package rate

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SourceFred     = "fred"
	SourceDatabase = "database"
	SourceStatic   = "static"
)

// Observation is one published value of a benchmark series, in percentage units.
type Observation struct {
	SeriesID  string          `json:"seriesId"`
	Date      time.Time       `json:"date"`
	Rate      decimal.Decimal `json:"rate"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// Provider returns the most recent observation of the configured series.
type Provider interface {
	LatestObservation(ctx context.Context) (*Observation, error)
}

type Repository interface {
	SaveObservation(ctx context.Context, obs *Observation) error

	LatestObservation(ctx context.Context, seriesID string) (*Observation, error)
}
