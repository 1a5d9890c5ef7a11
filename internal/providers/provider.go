package providers

import (
	"context"

	"abscollector/internal/model"
)

type Provider interface {
	Name() string
	FetchIndicators(ctx context.Context) ([]model.IndicatorRecord, error)
}
