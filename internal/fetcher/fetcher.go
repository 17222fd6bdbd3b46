package fetcher

import (
	"context"

	"github.com/shopspring/decimal"

	"chain-price-alerts/internal/domain"
)

// NativeRatio is a fixed-point BTC/ETH price as reported by the provider.
// Value carries the raw integer amount; Decimals is the provider-declared
// exponent to shift by when normalising.
type NativeRatio struct {
	Value    decimal.Decimal
	Decimals int32
}

// Normalized shifts the raw value by the declared exponent.
func (r NativeRatio) Normalized() decimal.Decimal {
	return r.Value.Shift(-r.Decimals)
}

// PriceFeed retrieves current reference-asset prices from an external provider.
type PriceFeed interface {
	// UsdPrice returns the current USD price of the chain's reference asset.
	UsdPrice(ctx context.Context, chain domain.Chain) (float64, error)
	// BtcNativeRatio returns the wrapped-BTC native price ratio.
	BtcNativeRatio(ctx context.Context) (NativeRatio, error)
}
