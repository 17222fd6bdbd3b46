package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"chain-price-alerts/internal/domain"
)

const defaultMoralisBaseURL = "https://deep-index.moralis.io/api/v2.2"

// Moralis chain identifiers.
const (
	moralisChainEthereum = "0x1"
	moralisChainPolygon  = "0x89"
)

// MoralisOptions parameterise the Moralis token-price client.
type MoralisOptions struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
	// Reference asset contract addresses.
	WETHAddress   string
	WMATICAddress string
	WBTCAddress   string
}

// Moralis fetches token prices from the Moralis deep-index API.
type Moralis struct {
	opts    MoralisOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewMoralis constructs a Moralis price feed client.
func NewMoralis(opts MoralisOptions, logger zerolog.Logger) *Moralis {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultMoralisBaseURL
	}

	return &Moralis{
		opts:    opts,
		logger:  logger.With().Str("component", "price_feed").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// UsdPrice returns the current USD price of the chain's reference asset
// (WETH for ethereum, WMATIC for polygon).
func (m *Moralis) UsdPrice(ctx context.Context, chain domain.Chain) (float64, error) {
	chainHex, address, err := m.referenceAsset(chain)
	if err != nil {
		return 0, err
	}

	res, err := m.tokenPrice(ctx, chainHex, address)
	if err != nil {
		return 0, err
	}
	if res.UsdPrice == nil {
		return 0, fmt.Errorf("provider returned no usd price for %s", chain)
	}
	return *res.UsdPrice, nil
}

// BtcNativeRatio returns the wrapped-BTC native price along with the
// provider-declared decimal exponent.
func (m *Moralis) BtcNativeRatio(ctx context.Context) (NativeRatio, error) {
	if !common.IsHexAddress(m.opts.WBTCAddress) {
		return NativeRatio{}, errors.New("wbtc contract address not configured")
	}

	res, err := m.tokenPrice(ctx, moralisChainEthereum, m.opts.WBTCAddress)
	if err != nil {
		return NativeRatio{}, err
	}
	if res.NativePrice == nil || res.NativePrice.Value == "" {
		return NativeRatio{}, errors.New("provider returned no native price")
	}

	value, err := decimal.NewFromString(res.NativePrice.Value)
	if err != nil {
		return NativeRatio{}, fmt.Errorf("parse native price value: %w", err)
	}

	return NativeRatio{Value: value, Decimals: res.NativePrice.Decimals}, nil
}

func (m *Moralis) referenceAsset(chain domain.Chain) (chainHex, address string, err error) {
	switch chain {
	case domain.ChainEthereum:
		chainHex, address = moralisChainEthereum, m.opts.WETHAddress
	case domain.ChainPolygon:
		chainHex, address = moralisChainPolygon, m.opts.WMATICAddress
	default:
		return "", "", fmt.Errorf("no reference asset for chain %q", chain)
	}
	if !common.IsHexAddress(address) {
		return "", "", fmt.Errorf("reference asset address for %s not configured", chain)
	}
	return chainHex, address, nil
}

func (m *Moralis) tokenPrice(ctx context.Context, chainHex, address string) (*tokenPriceResponse, error) {
	endpoint := fmt.Sprintf("%s/erc20/%s/price?chain=%s", m.baseURL, address, url.QueryEscape(chainHex))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", m.opts.APIKey)
	if ua := strings.TrimSpace(m.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var res tokenPriceResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("decode token price: %w", err)
	}
	return &res, nil
}

type tokenPriceResponse struct {
	UsdPrice    *float64     `json:"usdPrice"`
	NativePrice *nativePrice `json:"nativePrice"`
	TokenName   string       `json:"tokenName"`
	TokenSymbol string       `json:"tokenSymbol"`
}

type nativePrice struct {
	Value    string `json:"value"`
	Decimals int32  `json:"decimals"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("moralis api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("moralis api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("moralis api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("moralis api error (%d)", status)
}

var _ PriceFeed = (*Moralis)(nil)
