package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"chain-price-alerts/internal/domain"
)

// Service is the core surface the API exposes.
type Service interface {
	HourlyPrices(ctx context.Context, chain domain.Chain) ([]domain.HourlyPrice, error)
	SwapRate(ctx context.Context, ethAmount float64) (*domain.SwapQuote, error)
	SubmitAlert(ctx context.Context, chain domain.Chain, threshold float64, email string) error
}

// Options tune the API server.
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Server exposes the price and alert endpoints over HTTP.
type Server struct {
	opts   Options
	svc    Service
	logger zerolog.Logger
	engine *gin.Engine
}

// NewServer builds the API server and registers its routes.
func NewServer(opts Options, svc Service, logger zerolog.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		opts:   opts,
		svc:    svc,
		logger: logger.With().Str("component", "http").Logger(),
		engine: engine,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/prices/hourly", s.handleHourlyPrices)
	s.engine.GET("/prices/swap-rate", s.handleSwapRate)
	s.engine.POST("/alerts", s.handleSetAlert)
}

// Run serves requests until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.opts.Addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) handleHourlyPrices(c *gin.Context) {
	chain, err := domain.ParseChain(c.Query("chain"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid chain, must be either ethereum or polygon")
		return
	}

	prices, err := s.svc.HourlyPrices(c.Request.Context(), chain)
	if err != nil {
		s.logger.Error().Err(err).Str("chain", chain.String()).Msg("hourly prices failed")
		respondError(c, http.StatusInternalServerError, "Failed to load prices")
		return
	}

	if len(prices) == 0 {
		respondError(c, http.StatusNotFound, "No prices found")
		return
	}

	respondData(c, http.StatusOK, prices)
}

func (s *Server) handleSwapRate(c *gin.Context) {
	ethAmount, err := strconv.ParseFloat(c.Query("ethAmount"), 64)
	if err != nil || ethAmount <= 0 {
		respondError(c, http.StatusBadRequest, "Invalid swap amount, must be positive number")
		return
	}

	quote, err := s.svc.SwapRate(c.Request.Context(), ethAmount)
	if err != nil {
		s.logger.Error().Err(err).Msg("swap rate failed")
		respondError(c, http.StatusInternalServerError, "Failed to compute swap rate")
		return
	}

	if quote == nil {
		respondError(c, http.StatusNotFound, "No swap rate found")
		return
	}

	respondData(c, http.StatusOK, quote)
}

type setAlertRequest struct {
	Chain  string   `json:"chain" binding:"required"`
	Dollar *float64 `json:"dollar" binding:"required"`
	Email  string   `json:"email" binding:"required,email"`
}

func (s *Server) handleSetAlert(c *gin.Context) {
	var req setAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid data provided")
		return
	}

	chain, err := domain.ParseChain(req.Chain)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid data provided")
		return
	}

	if err := s.svc.SubmitAlert(c.Request.Context(), chain, *req.Dollar, req.Email); err != nil {
		s.logger.Warn().Err(err).Str("chain", chain.String()).Msg("alert submission rejected")
		respondError(c, http.StatusBadRequest, "Invalid data provided")
		return
	}

	c.Status(http.StatusCreated)
}

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"statusCode": status, "data": data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"statusCode": status, "message": message})
}
