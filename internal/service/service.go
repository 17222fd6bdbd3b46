package service

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/rs/zerolog"

	"chain-price-alerts/internal/alerting"
	"chain-price-alerts/internal/config"
	"chain-price-alerts/internal/domain"
	"chain-price-alerts/internal/fetcher"
	"chain-price-alerts/internal/scheduler"
	"chain-price-alerts/internal/storage"
)

// Service orchestrates sampling, persistence, and alert evaluation.
type Service struct {
	scheduler *scheduler.Scheduler
	feed      fetcher.PriceFeed
	prices    storage.PriceStore
	alerts    storage.AlertStore
	notifier  alerting.Notifier
	logger    zerolog.Logger

	volatilityPct float64
	operatorEmail string
	swapFeePct    float64

	locker  storage.AdvisoryLocker
	lockKey int64

	now func() time.Time
}

// New constructs the monitoring service.
func New(cfg *config.Config, sched *scheduler.Scheduler, feed fetcher.PriceFeed, prices storage.PriceStore, alerts storage.AlertStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := prices.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:     sched,
		feed:          feed,
		prices:        prices,
		alerts:        alerts,
		notifier:      notifier,
		logger:        logger.With().Str("component", "service").Logger(),
		volatilityPct: cfg.Alerting.VolatilityPct,
		operatorEmail: cfg.Alerting.OperatorEmail,
		swapFeePct:    cfg.Swap.FeePct,
		locker:        locker,
		lockKey:       cfg.Scheduler.AdvisoryLockKey,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Run begins the sampling and evaluation loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick executes one full cycle: sample both chains, then evaluate
// alerts per chain. A sampling failure aborts the evaluation step so alerts
// are never matched against stale data.
func (s *Service) ProcessTick(ctx context.Context, tick time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", tick).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	if err := s.samplePrices(ctx); err != nil {
		return fmt.Errorf("sample prices: %w", err)
	}

	for _, chain := range domain.Chains {
		if err := s.evaluateChain(ctx, chain); err != nil {
			// One chain's failure never blocks the other.
			s.logger.Error().Err(err).Str("chain", chain.String()).Msg("alert evaluation failed")
		}
	}

	return nil
}

// samplePrices fetches both chains' reference asset prices and appends them
// in one atomic batch. Either chain failing fails the whole tick; a partial
// write would break hour alignment downstream.
func (s *Service) samplePrices(ctx context.Context) error {
	ethUsd, err := s.feed.UsdPrice(ctx, domain.ChainEthereum)
	if err != nil {
		return fmt.Errorf("fetch ethereum price: %w", err)
	}

	polygonUsd, err := s.feed.UsdPrice(ctx, domain.ChainPolygon)
	if err != nil {
		return fmt.Errorf("fetch polygon price: %w", err)
	}

	samples := []domain.PriceSample{
		{Chain: domain.ChainEthereum, Price: ethUsd},
		{Chain: domain.ChainPolygon, Price: polygonUsd},
	}
	if err := s.prices.InsertSamples(ctx, samples); err != nil {
		return fmt.Errorf("store samples: %w", err)
	}

	s.logger.Info().
		Float64("ethereum_usd", ethUsd).
		Float64("polygon_usd", polygonUsd).
		Msg("samples recorded")
	return nil
}

func (s *Service) evaluateChain(ctx context.Context, chain domain.Chain) error {
	current, err := s.prices.LatestSample(ctx, chain)
	if err != nil {
		return fmt.Errorf("read latest sample: %w", err)
	}
	if current == nil {
		s.logger.Debug().Str("chain", chain.String()).Msg("no samples yet, skipping chain")
		return nil
	}

	s.checkVolatility(ctx, chain, current)

	matched, err := s.alerts.FindMatching(ctx, chain, current.Price)
	if err != nil {
		return fmt.Errorf("find matching alerts: %w", err)
	}

	for _, alert := range matched {
		s.deliverAlert(ctx, alert)
	}
	return nil
}

// checkVolatility compares the current price against the most recent sample
// newer than one hour. On a five-minute cadence that baseline is usually the
// previous tick rather than a true hour-old point; this mirrors the
// historical alerting behaviour and is kept for compatibility.
func (s *Service) checkVolatility(ctx context.Context, chain domain.Chain, current *domain.PriceSample) {
	now := s.now()
	baseline, err := s.prices.LatestSampleInWindow(ctx, chain, now.Add(-time.Hour), now)
	if err != nil {
		s.logger.Error().Err(err).Str("chain", chain.String()).Msg("failed to read volatility baseline")
		return
	}
	if baseline == nil || baseline.Price == 0 {
		return
	}

	change := (current.Price - baseline.Price) / baseline.Price
	if change <= s.volatilityPct {
		return
	}

	s.logger.Warn().
		Str("chain", chain.String()).
		Float64("change_pct", change*100).
		Float64("current", current.Price).
		Float64("baseline", baseline.Price).
		Msg("volatility breach detected")

	if s.notifier == nil || s.operatorEmail == "" {
		s.logger.Warn().Str("chain", chain.String()).Msg("operator notification not configured, breach dropped")
		return
	}

	subject := "Price Alert " + chainTitle(chain)
	body := fmt.Sprintf("Price increased by more than %g%% for %s", s.volatilityPct*100, chain)
	if err := s.notifier.Send(ctx, s.operatorEmail, subject, body); err != nil {
		// Operator mail is best effort; the check re-fires next tick anyway.
		s.logger.Error().Err(err).Str("chain", chain.String()).Msg("operator notification failed")
	}
}

// deliverAlert notifies the alert owner and removes the alert only after
// the delivery has been confirmed. A failed delivery keeps the alert in the
// store so it is retried on the next tick.
func (s *Service) deliverAlert(ctx context.Context, alert domain.Alert) {
	if s.notifier == nil {
		s.logger.Warn().Int64("alert_id", alert.ID).Msg("notifier not configured, alert retained")
		return
	}

	subject := "Price Alert " + chainTitle(alert.Chain)
	body := fmt.Sprintf("Price above your alert level %g", alert.Threshold)
	if err := s.notifier.Send(ctx, alert.Email, subject, body); err != nil {
		s.logger.Error().Err(err).
			Int64("alert_id", alert.ID).
			Str("chain", alert.Chain.String()).
			Msg("alert delivery failed, alert retained for retry")
		return
	}

	if err := s.alerts.RemoveAlert(ctx, alert.ID); err != nil {
		s.logger.Error().Err(err).Int64("alert_id", alert.ID).Msg("failed to remove delivered alert")
		return
	}

	s.logger.Info().
		Int64("alert_id", alert.ID).
		Str("chain", alert.Chain.String()).
		Float64("threshold", alert.Threshold).
		Msg("alert delivered and removed")
}

// SubmitAlert validates and persists a new pending threshold alert.
func (s *Service) SubmitAlert(ctx context.Context, chain domain.Chain, threshold float64, email string) error {
	if _, err := domain.ParseChain(chain.String()); err != nil {
		return err
	}
	if threshold < 0 {
		return fmt.Errorf("threshold must not be negative")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email address: %w", err)
	}

	rec, err := s.alerts.InsertAlert(ctx, domain.Alert{Chain: chain, Threshold: threshold, Email: email})
	if err != nil {
		return fmt.Errorf("store alert: %w", err)
	}

	s.logger.Info().
		Int64("alert_id", rec.ID).
		Str("chain", chain.String()).
		Float64("threshold", threshold).
		Msg("alert registered")
	return nil
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

func chainTitle(chain domain.Chain) string {
	switch chain {
	case domain.ChainEthereum:
		return "Ethereum"
	case domain.ChainPolygon:
		return "Polygon"
	default:
		return chain.String()
	}
}
