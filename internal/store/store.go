package store

import (
	"context"

	"abscollector/internal/model"
)

type Store interface {
	UpsertRecords(ctx context.Context, records []model.IndicatorRecord) error
	ListHistory(ctx context.Context, provider string) ([]model.IndicatorRecord, error)
	Close() error
}

type NopStore struct{}

func (s *NopStore) UpsertRecords(ctx context.Context, records []model.IndicatorRecord) error {
	_ = ctx
	_ = records
	return nil
}

func (s *NopStore) ListHistory(ctx context.Context, provider string) ([]model.IndicatorRecord, error) {
	_ = ctx
	_ = provider
	return nil, nil
}

func (s *NopStore) Close() error {
	return nil
}
