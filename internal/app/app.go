package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"chain-price-alerts/internal/alerting"
	"chain-price-alerts/internal/config"
	"chain-price-alerts/internal/domain"
	"chain-price-alerts/internal/fetcher"
	"chain-price-alerts/internal/httpapi"
	"chain-price-alerts/internal/scheduler"
	"chain-price-alerts/internal/service"
	"chain-price-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFeed() fetcher.PriceFeed {
	return fetcher.NewMoralis(fetcher.MoralisOptions{
		BaseURL:       a.Config.Moralis.BaseURL,
		APIKey:        a.Config.Moralis.APIKey,
		Timeout:       a.Config.Moralis.RequestTimeout,
		UserAgent:     a.Config.Moralis.UserAgent,
		WETHAddress:   a.Config.Moralis.WETHAddress,
		WMATICAddress: a.Config.Moralis.WMATICAddress,
		WBTCAddress:   a.Config.Moralis.WBTCAddress,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	smtp := a.Config.Alerting.SMTP
	if smtp.Host == "" {
		return nil
	}
	return alerting.NewSMTPNotifier(alerting.SMTPOptions{
		Host:     smtp.Host,
		Port:     smtp.Port,
		Username: smtp.Username,
		Password: smtp.Password,
		From:     smtp.From,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running sampling service plus the HTTP API.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sched := scheduler.New(scheduler.Options{
		Interval:        a.Config.Scheduler.Interval,
		AlignToInterval: a.Config.Scheduler.AlignToInterval,
		StartupDelay:    a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	notifier := a.newNotifier()
	if notifier == nil {
		a.Logger.Warn().Msg("alerting.smtp.host not configured; mail delivery disabled")
	}

	svc := service.New(a.Config, sched, a.newFeed(), store, store, notifier, a.Logger)

	api := httpapi.NewServer(httpapi.Options{
		Addr:            a.Config.HTTP.Addr,
		ShutdownTimeout: a.Config.HTTP.ShutdownTimeout,
	}, svc, a.Logger)

	a.Logger.Info().Msg("starting chainwatcher")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(ctx) })
	g.Go(func() error { return api.Run(ctx) })

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("chainwatcher terminated with error")
		return err
	}

	a.Logger.Info().Msg("chainwatcher stopped")
	return nil
}

// SetAlert registers a pending threshold alert from the CLI.
func (a *App) SetAlert(ctx context.Context, chainName string, threshold float64, email string) error {
	chain, err := domain.ParseChain(chainName)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := service.New(a.Config, nil, a.newFeed(), store, store, nil, a.Logger)
	return svc.SubmitAlert(ctx, chain, threshold, email)
}

// SendTestEmail pushes one message through the configured mail transport so
// operators can verify SMTP credentials before relying on alerts.
func (a *App) SendTestEmail(ctx context.Context, to string) error {
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("alerting.smtp.host not configured")
	}

	body := fmt.Sprintf("Test message from %s sent at %s", a.Config.App.Name, time.Now().UTC().Format(time.RFC3339))
	return notifier.Send(ctx, to, "chainwatcher test email", body)
}

// ExportOptions hold parameters for exporting historical samples.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
