package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"chain-price-alerts/internal/domain"
)

type stubService struct {
	hourly    []domain.HourlyPrice
	hourlyErr error
	quote     *domain.SwapQuote
	quoteErr  error

	submitted []domain.Alert
	submitErr error
}

func (s *stubService) HourlyPrices(_ context.Context, chain domain.Chain) ([]domain.HourlyPrice, error) {
	return s.hourly, s.hourlyErr
}

func (s *stubService) SwapRate(_ context.Context, ethAmount float64) (*domain.SwapQuote, error) {
	return s.quote, s.quoteErr
}

func (s *stubService) SubmitAlert(_ context.Context, chain domain.Chain, threshold float64, email string) error {
	if s.submitErr != nil {
		return s.submitErr
	}
	s.submitted = append(s.submitted, domain.Alert{Chain: chain, Threshold: threshold, Email: email})
	return nil
}

func newTestServer(svc *stubService) *Server {
	return NewServer(Options{}, svc, zerolog.Nop())
}

func doRequest(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func TestHourlyPricesRejectsUnknownChain(t *testing.T) {
	s := newTestServer(&stubService{})

	for _, target := range []string{"/prices/hourly", "/prices/hourly?chain=solana"} {
		rec := doRequest(t, s, http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestHourlyPricesNotFoundWhenEmpty(t *testing.T) {
	s := newTestServer(&stubService{hourly: []domain.HourlyPrice{}})

	rec := doRequest(t, s, http.MethodGet, "/prices/hourly?chain=ethereum", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if got := decodeBody(t, rec)["message"]; got != "No prices found" {
		t.Fatalf("unexpected message %v", got)
	}
}

func TestHourlyPricesSuccess(t *testing.T) {
	price := 1234.5
	s := newTestServer(&stubService{hourly: []domain.HourlyPrice{
		{Hour: "2024-05-01T09", Price: &price},
		{Hour: "2024-05-01T08"},
	}})

	rec := doRequest(t, s, http.MethodGet, "/prices/hourly?chain=ethereum", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	payload := decodeBody(t, rec)
	data, ok := payload["data"].([]any)
	if !ok || len(data) != 2 {
		t.Fatalf("expected 2 data points, got %v", payload["data"])
	}
	second := data[1].(map[string]any)
	if second["price"] != nil {
		t.Fatalf("empty hour should serialise a null price, got %v", second["price"])
	}
}

func TestHourlyPricesInternalError(t *testing.T) {
	s := newTestServer(&stubService{hourlyErr: errors.New("db down")})

	rec := doRequest(t, s, http.MethodGet, "/prices/hourly?chain=polygon", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestSwapRateValidation(t *testing.T) {
	s := newTestServer(&stubService{})

	for _, target := range []string{
		"/prices/swap-rate",
		"/prices/swap-rate?ethAmount=abc",
		"/prices/swap-rate?ethAmount=0",
		"/prices/swap-rate?ethAmount=-2",
	} {
		rec := doRequest(t, s, http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestSwapRateNotFoundWhenAbsent(t *testing.T) {
	s := newTestServer(&stubService{})

	rec := doRequest(t, s, http.MethodGet, "/prices/swap-rate?ethAmount=1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSwapRateSuccess(t *testing.T) {
	s := newTestServer(&stubService{quote: &domain.SwapQuote{
		BtcAmount: 0.0485,
		Fee:       domain.SwapFee{Eth: 0.03, Dollar: 60},
	}})

	rec := doRequest(t, s, http.MethodGet, "/prices/swap-rate?ethAmount=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	data := decodeBody(t, rec)["data"].(map[string]any)
	if data["btcAmount"] != 0.0485 {
		t.Fatalf("unexpected btcAmount %v", data["btcAmount"])
	}
	fee := data["fee"].(map[string]any)
	if fee["eth"] != 0.03 || fee["dollar"] != 60.0 {
		t.Fatalf("unexpected fee %v", fee)
	}
}

func TestSetAlertSuccess(t *testing.T) {
	stub := &stubService{}
	s := newTestServer(stub)

	rec := doRequest(t, s, http.MethodPost, "/alerts",
		`{"chain":"ethereum","dollar":1500,"email":"user@example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	if len(stub.submitted) != 1 {
		t.Fatalf("expected 1 submitted alert, got %d", len(stub.submitted))
	}
	got := stub.submitted[0]
	if got.Chain != domain.ChainEthereum || got.Threshold != 1500 || got.Email != "user@example.com" {
		t.Fatalf("unexpected alert %+v", got)
	}
}

func TestSetAlertZeroThresholdAllowed(t *testing.T) {
	stub := &stubService{}
	s := newTestServer(stub)

	rec := doRequest(t, s, http.MethodPost, "/alerts",
		`{"chain":"polygon","dollar":0,"email":"user@example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for zero threshold, got %d", rec.Code)
	}
}

func TestSetAlertValidation(t *testing.T) {
	s := newTestServer(&stubService{})

	cases := []string{
		``,
		`not json`,
		`{"chain":"solana","dollar":10,"email":"user@example.com"}`,
		`{"chain":"ethereum","email":"user@example.com"}`,
		`{"chain":"ethereum","dollar":10,"email":"nope"}`,
	}
	for _, body := range cases {
		rec := doRequest(t, s, http.MethodPost, "/alerts", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestSetAlertServiceRejection(t *testing.T) {
	s := newTestServer(&stubService{submitErr: errors.New("threshold must not be negative")})

	rec := doRequest(t, s, http.MethodPost, "/alerts",
		`{"chain":"ethereum","dollar":-5,"email":"user@example.com"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
