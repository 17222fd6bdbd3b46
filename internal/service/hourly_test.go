package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chain-price-alerts/internal/domain"
)

func TestHourlyPricesEmptyWithoutSamples(t *testing.T) {
	env := newTestEnv(t)

	series, err := env.svc.HourlyPrices(context.Background(), domain.ChainEthereum)
	require.NoError(t, err)
	assert.Empty(t, series, "no data is an empty series, not 24 empty hours")
}

func TestHourlyPricesSingleSample(t *testing.T) {
	env := newTestEnv(t)
	at := time.Date(2024, 5, 1, 9, 42, 17, 0, time.UTC)
	env.prices.add(domain.ChainEthereum, 1234.5, at)

	series, err := env.svc.HourlyPrices(context.Background(), domain.ChainEthereum)
	require.NoError(t, err)
	require.Len(t, series, 24)

	assert.Equal(t, "2024-05-01T09", series[0].Hour)
	require.NotNil(t, series[0].Price)
	assert.Equal(t, 1234.5, *series[0].Price)

	for i := 1; i < 24; i++ {
		assert.Nil(t, series[i].Price, "hour %d should be empty", i)
	}
}

func TestHourlyPricesAnchoredAtLatestSample(t *testing.T) {
	env := newTestEnv(t)
	anchor := time.Date(2024, 5, 1, 12, 10, 0, 0, time.UTC)
	env.prices.add(domain.ChainEthereum, 100, anchor.Add(-3*time.Hour))
	env.prices.add(domain.ChainEthereum, 110, anchor)

	series, err := env.svc.HourlyPrices(context.Background(), domain.ChainEthereum)
	require.NoError(t, err)
	require.Len(t, series, 24)

	// Hour 0 is the anchor's own window, hour 3 holds the older sample.
	assert.Equal(t, "2024-05-01T12", series[0].Hour)
	require.NotNil(t, series[0].Price)
	assert.Equal(t, 110.0, *series[0].Price)

	assert.Equal(t, "2024-05-01T09", series[3].Hour)
	require.NotNil(t, series[3].Price)
	assert.Equal(t, 100.0, *series[3].Price)

	assert.Nil(t, series[1].Price)
	assert.Nil(t, series[2].Price)
}

func TestHourlyPricesMostRecentSampleWinsWithinHour(t *testing.T) {
	env := newTestEnv(t)
	anchor := time.Date(2024, 5, 1, 12, 55, 0, 0, time.UTC)
	env.prices.add(domain.ChainPolygon, 0.70, anchor.Add(-40*time.Minute))
	env.prices.add(domain.ChainPolygon, 0.75, anchor.Add(-20*time.Minute))
	env.prices.add(domain.ChainPolygon, 0.80, anchor)

	series, err := env.svc.HourlyPrices(context.Background(), domain.ChainPolygon)
	require.NoError(t, err)
	require.NotNil(t, series[0].Price)
	assert.Equal(t, 0.80, *series[0].Price, "sparse downsampling picks the most recent, not an average")
}

func TestHourlyPricesIdempotent(t *testing.T) {
	env := newTestEnv(t)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	env.prices.add(domain.ChainEthereum, 1000, at.Add(-5*time.Hour))
	env.prices.add(domain.ChainEthereum, 1100, at)

	first, err := env.svc.HourlyPrices(context.Background(), domain.ChainEthereum)
	require.NoError(t, err)
	second, err := env.svc.HourlyPrices(context.Background(), domain.ChainEthereum)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Hour, second[i].Hour)
		if first[i].Price == nil {
			assert.Nil(t, second[i].Price)
		} else {
			require.NotNil(t, second[i].Price)
			assert.Equal(t, *first[i].Price, *second[i].Price)
		}
	}
}

func TestHourlyPricesChainsAreIndependent(t *testing.T) {
	env := newTestEnv(t)
	env.prices.add(domain.ChainEthereum, 2000, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))

	series, err := env.svc.HourlyPrices(context.Background(), domain.ChainPolygon)
	require.NoError(t, err)
	assert.Empty(t, series)
}
