package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chain-price-alerts/internal/domain"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertPriceSQL = `INSERT INTO price (chain, price) VALUES ($1, $2);`

	latestPriceSQL = `SELECT id, chain, price, created_at
    FROM price
    WHERE chain = $1
    ORDER BY created_at DESC, id DESC
    LIMIT 1;`

	latestPriceInWindowSQL = `SELECT id, chain, price, created_at
    FROM price
    WHERE chain = $1
      AND created_at >= $2
      AND created_at < $3
    ORDER BY created_at DESC, id DESC
    LIMIT 1;`

	listPricesBetweenSQL = `SELECT id, chain, price, created_at
    FROM price
    WHERE chain = $1
      AND created_at >= $2
      AND created_at < $3
    ORDER BY created_at;`

	listRecentPricesSQL = `SELECT id, chain, price, created_at
    FROM price
    ORDER BY created_at DESC, id DESC
    LIMIT $1;`

	insertAlertSQL = `INSERT INTO alert (chain, price, email)
    VALUES ($1, $2, $3)
    RETURNING id, chain, price, email, created_at;`

	findMatchingAlertsSQL = `SELECT id, chain, price, email, created_at
    FROM alert
    WHERE chain = $1
      AND price <= $2
    ORDER BY id;`

	listPendingAlertsSQL = `SELECT id, chain, price, email, created_at
    FROM alert
    ORDER BY created_at DESC, id DESC
    LIMIT $1;`

	removeAlertSQL = `DELETE FROM alert WHERE id = $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PriceStore defines operations for the price time series.
type PriceStore interface {
	InsertSamples(ctx context.Context, samples []domain.PriceSample) error
	LatestSample(ctx context.Context, chain domain.Chain) (*domain.PriceSample, error)
	LatestSampleInWindow(ctx context.Context, chain domain.Chain, start, end time.Time) (*domain.PriceSample, error)
	ListSamplesBetween(ctx context.Context, chain domain.Chain, from, to time.Time) ([]domain.PriceSample, error)
	ListRecentSamples(ctx context.Context, limit int) ([]domain.PriceSample, error)
}

// AlertStore defines operations on pending threshold alerts.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert domain.Alert) (domain.Alert, error)
	FindMatching(ctx context.Context, chain domain.Chain, maxThreshold float64) ([]domain.Alert, error)
	RemoveAlert(ctx context.Context, id int64) error
	ListPendingAlerts(ctx context.Context, limit int) ([]domain.Alert, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to price samples and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertSamples appends a batch of price samples in a single transaction.
// created_at is assigned by the database; either all samples are written
// or none are.
func (s *Store) InsertSamples(ctx context.Context, samples []domain.PriceSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin sample insert: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, sample := range samples {
		if _, err := tx.Exec(ctx, insertPriceSQL, sample.Chain.String(), sample.Price); err != nil {
			return fmt.Errorf("insert sample for %s: %w", sample.Chain, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit sample insert: %w", err)
	}
	return nil
}

// LatestSample returns the newest sample for a chain, or nil when the
// chain has no samples yet.
func (s *Store) LatestSample(ctx context.Context, chain domain.Chain) (*domain.PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	sample, err := scanPriceSample(pool.QueryRow(ctx, latestPriceSQL, chain.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest sample: %w", err)
	}
	return sample, nil
}

// LatestSampleInWindow returns the newest sample within [start, end),
// or nil when the window is empty.
func (s *Store) LatestSampleInWindow(ctx context.Context, chain domain.Chain, start, end time.Time) (*domain.PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	sample, err := scanPriceSample(pool.QueryRow(ctx, latestPriceInWindowSQL, chain.String(), start, end))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest sample in window: %w", err)
	}
	return sample, nil
}

// ListSamplesBetween lists a chain's samples within [from, to) in ascending order.
func (s *Store) ListSamplesBetween(ctx context.Context, chain domain.Chain, from, to time.Time) ([]domain.PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPricesBetweenSQL, chain.String(), from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	return collectPriceSamples(rows, 0)
}

// ListRecentSamples lists the most recent samples across all chains.
func (s *Store) ListRecentSamples(ctx context.Context, limit int) ([]domain.PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentPricesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	return collectPriceSamples(rows, limit)
}

// InsertAlert persists a pending threshold alert.
func (s *Store) InsertAlert(ctx context.Context, alert domain.Alert) (domain.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return domain.Alert{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL, alert.Chain.String(), alert.Threshold, alert.Email)

	var rec domain.Alert
	var chain string
	if scanErr := row.Scan(&rec.ID, &chain, &rec.Threshold, &rec.Email, &rec.CreatedAt); scanErr != nil {
		return domain.Alert{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	rec.Chain = domain.Chain(chain)
	return rec, nil
}

// FindMatching returns alerts on a chain whose threshold is at or below
// the given price.
func (s *Store) FindMatching(ctx context.Context, chain domain.Chain, maxThreshold float64) ([]domain.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, findMatchingAlertsSQL, chain.String(), maxThreshold)
	if queryErr != nil {
		return nil, fmt.Errorf("find matching alerts: %w", queryErr)
	}
	defer rows.Close()

	return collectAlerts(rows, 0)
}

// RemoveAlert deletes a consumed alert.
func (s *Store) RemoveAlert(ctx context.Context, id int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, removeAlertSQL, id); execErr != nil {
		return fmt.Errorf("remove alert %d: %w", id, execErr)
	}
	return nil
}

// ListPendingAlerts lists the most recently created alerts.
func (s *Store) ListPendingAlerts(ctx context.Context, limit int) ([]domain.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPendingAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list pending alerts: %w", queryErr)
	}
	defer rows.Close()

	return collectAlerts(rows, limit)
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func scanPriceSample(row pgx.Row) (*domain.PriceSample, error) {
	var sample domain.PriceSample
	var chain string
	if err := row.Scan(&sample.ID, &chain, &sample.Price, &sample.CreatedAt); err != nil {
		return nil, err
	}
	sample.Chain = domain.Chain(chain)
	return &sample, nil
}

func collectPriceSamples(rows pgx.Rows, capacityHint int) ([]domain.PriceSample, error) {
	samples := make([]domain.PriceSample, 0, capacityHint)
	for rows.Next() {
		sample, err := scanPriceSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, *sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

func collectAlerts(rows pgx.Rows, capacityHint int) ([]domain.Alert, error) {
	alerts := make([]domain.Alert, 0, capacityHint)
	for rows.Next() {
		var rec domain.Alert
		var chain string
		if err := rows.Scan(&rec.ID, &chain, &rec.Threshold, &rec.Email, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Chain = domain.Chain(chain)
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

var (
	_ PriceStore     = (*Store)(nil)
	_ AlertStore     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
