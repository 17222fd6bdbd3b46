package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"chain-price-alerts/internal/domain"
)

// SwapRate quotes an ETH to BTC conversion for the given amount. The flat
// fee is taken from the input amount before conversion. A nil quote with a
// nil error means the provider had no usable rate; the HTTP boundary maps
// that to a not-found response.
func (s *Service) SwapRate(ctx context.Context, ethAmount float64) (*domain.SwapQuote, error) {
	if ethAmount <= 0 {
		return nil, fmt.Errorf("eth amount must be positive")
	}

	ratio, err := s.feed.BtcNativeRatio(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("btc native ratio unavailable")
		return nil, nil
	}

	btcPerEth := ratio.Normalized()
	if btcPerEth.IsZero() {
		s.logger.Warn().Msg("btc native ratio normalised to zero")
		return nil, nil
	}

	amount := decimal.NewFromFloat(ethAmount)
	feeEth := amount.Mul(decimal.NewFromFloat(s.swapFeePct))
	btcAmount := amount.Sub(feeEth).Div(btcPerEth)

	ethUsd, err := s.feed.UsdPrice(ctx, domain.ChainEthereum)
	if err != nil {
		s.logger.Warn().Err(err).Msg("eth usd price unavailable")
		return nil, nil
	}

	feeDollar := feeEth.Mul(decimal.NewFromFloat(ethUsd))

	return &domain.SwapQuote{
		BtcAmount: btcAmount.InexactFloat64(),
		Fee: domain.SwapFee{
			Eth:    feeEth.InexactFloat64(),
			Dollar: feeDollar.InexactFloat64(),
		},
	}, nil
}
