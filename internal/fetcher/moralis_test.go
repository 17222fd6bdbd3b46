package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"chain-price-alerts/internal/domain"
)

const (
	testWETH   = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	testWMATIC = "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270"
	testWBTC   = "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testOptions(baseURL string) MoralisOptions {
	return MoralisOptions{
		BaseURL:       baseURL,
		APIKey:        "test-key",
		Timeout:       time.Second,
		UserAgent:     "test",
		WETHAddress:   testWETH,
		WMATICAddress: testWMATIC,
		WBTCAddress:   testWBTC,
	}
}

func TestUsdPriceMissingAddress(t *testing.T) {
	m := NewMoralis(MoralisOptions{}, noopLogger())
	if _, err := m.UsdPrice(context.Background(), domain.ChainEthereum); err == nil {
		t.Fatal("expected error for unconfigured reference asset")
	}
}

func TestUsdPriceSuccess(t *testing.T) {
	var gotPath, gotChain, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotChain = r.URL.Query().Get("chain")
		gotKey = r.Header.Get("X-API-Key")
		price := 2456.78
		_ = json.NewEncoder(w).Encode(tokenPriceResponse{UsdPrice: &price})
	}))
	defer srv.Close()

	m := NewMoralis(testOptions(srv.URL), noopLogger())
	price, err := m.UsdPrice(context.Background(), domain.ChainPolygon)
	if err != nil {
		t.Fatalf("UsdPrice failed: %v", err)
	}
	if price != 2456.78 {
		t.Fatalf("expected 2456.78, got %f", price)
	}
	if gotPath != "/erc20/"+testWMATIC+"/price" {
		t.Fatalf("unexpected request path %s", gotPath)
	}
	if gotChain != "0x89" {
		t.Fatalf("polygon request should use chain 0x89, got %s", gotChain)
	}
	if gotKey != "test-key" {
		t.Fatalf("api key header missing, got %q", gotKey)
	}
}

func TestUsdPriceNoUsableField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"tokenName": "Wrapped Ether"})
	}))
	defer srv.Close()

	m := NewMoralis(testOptions(srv.URL), noopLogger())
	if _, err := m.UsdPrice(context.Background(), domain.ChainEthereum); err == nil {
		t.Fatal("missing usdPrice field should be an error")
	}
}

func TestUsdPriceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid api key"})
	}))
	defer srv.Close()

	m := NewMoralis(testOptions(srv.URL), noopLogger())
	if _, err := m.UsdPrice(context.Background(), domain.ChainEthereum); err == nil {
		t.Fatal("HTTP 401 should be an error")
	}
}

func TestBtcNativeRatioSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"nativePrice": map[string]any{
				"value":    "20000000000000000000",
				"decimals": 18,
				"symbol":   "ETH",
			},
		})
	}))
	defer srv.Close()

	m := NewMoralis(testOptions(srv.URL), noopLogger())
	ratio, err := m.BtcNativeRatio(context.Background())
	if err != nil {
		t.Fatalf("BtcNativeRatio failed: %v", err)
	}
	if ratio.Decimals != 18 {
		t.Fatalf("expected provider-declared decimals 18, got %d", ratio.Decimals)
	}
	if got := ratio.Normalized(); got.Cmp(decimal.NewFromInt(20)) != 0 {
		t.Fatalf("expected normalized ratio 20, got %s", got.String())
	}
}

func TestBtcNativeRatioMissingValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"usdPrice": 60000.0})
	}))
	defer srv.Close()

	m := NewMoralis(testOptions(srv.URL), noopLogger())
	if _, err := m.BtcNativeRatio(context.Background()); err == nil {
		t.Fatal("missing nativePrice should be an error")
	}
}
