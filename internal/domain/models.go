package domain

import (
	"fmt"
	"time"
)

// Chain identifies one of the tracked blockchains.
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainPolygon  Chain = "polygon"
)

// Chains lists every supported chain in evaluation order.
var Chains = []Chain{ChainEthereum, ChainPolygon}

// ParseChain validates a raw chain name.
func ParseChain(raw string) (Chain, error) {
	switch Chain(raw) {
	case ChainEthereum:
		return ChainEthereum, nil
	case ChainPolygon:
		return ChainPolygon, nil
	default:
		return "", fmt.Errorf("unknown chain %q, must be either ethereum or polygon", raw)
	}
}

func (c Chain) String() string { return string(c) }

// PriceSample is one observation of a chain's reference asset price in USD.
// Samples are append-only; CreatedAt is assigned by the database at insert.
type PriceSample struct {
	ID        int64
	Chain     Chain
	Price     float64
	CreatedAt time.Time
}

// Alert is a standing request to be notified once a chain's price reaches
// the threshold. An alert is delivered at most once and deleted afterwards.
type Alert struct {
	ID        int64
	Chain     Chain
	Threshold float64
	Email     string
	CreatedAt time.Time
}

// HourlyPrice is one point of the 24-hour downsampled series. Price is nil
// for hours without any sample.
type HourlyPrice struct {
	Hour  string   `json:"hour"`
	Price *float64 `json:"price"`
}

// SwapFee breaks the flat swap fee into its ETH and USD denominations.
type SwapFee struct {
	Eth    float64 `json:"eth"`
	Dollar float64 `json:"dollar"`
}

// SwapQuote is the result of an ETH to BTC conversion estimate.
type SwapQuote struct {
	BtcAmount float64 `json:"btcAmount"`
	Fee       SwapFee `json:"fee"`
}
