package service

import (
	"context"
	"fmt"
	"time"

	"chain-price-alerts/internal/domain"
)

const (
	hourlyPoints = 24
	hourLabel    = "2006-01-02T15"
)

// HourlyPrices reconstructs a 24-point hourly series for a chain, anchored
// at the chain's latest sample and ordered most-recent-hour first. Hours
// without a sample carry a nil price. A chain with no samples at all yields
// an empty slice, which is distinct from 24 empty hours.
func (s *Service) HourlyPrices(ctx context.Context, chain domain.Chain) ([]domain.HourlyPrice, error) {
	latest, err := s.prices.LatestSample(ctx, chain)
	if err != nil {
		return nil, fmt.Errorf("read latest sample: %w", err)
	}
	if latest == nil {
		return []domain.HourlyPrice{}, nil
	}

	anchor := latest.CreatedAt
	series := make([]domain.HourlyPrice, 0, hourlyPoints)
	for i := 0; i < hourlyPoints; i++ {
		hourStart := anchor.Add(-time.Duration(i) * time.Hour)
		hourEnd := hourStart.Add(time.Hour)

		point := domain.HourlyPrice{Hour: hourStart.UTC().Format(hourLabel)}

		// Most recent sample within [hourStart, hourEnd) wins.
		sample, err := s.prices.LatestSampleInWindow(ctx, chain, hourStart, hourEnd)
		if err != nil {
			return nil, fmt.Errorf("read hour window %s: %w", point.Hour, err)
		}
		if sample != nil {
			price := sample.Price
			point.Price = &price
		}
		series = append(series, point)
	}

	return series, nil
}
