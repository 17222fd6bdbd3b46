package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"chain-price-alerts/internal/domain"
)

// Export renders the sampled price series as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	series := make(map[domain.Chain][]domain.PriceSample, len(domain.Chains))
	total := 0
	for _, chain := range domain.Chains {
		samples, err := store.ListSamplesBetween(ctx, chain, from, to)
		if err != nil {
			return err
		}
		series[chain] = downsampleSamples(samples, opts.MaxPoints)
		total += len(samples)
	}

	if total == 0 {
		a.Logger.Info().Msg("no samples found for export window")
		return nil
	}
	a.Logger.Info().Int("total", total).Msg("exporting samples")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, series); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSamplesPNG(opts.PNGPath, series); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSamples(samples []domain.PriceSample, max int) []domain.PriceSample {
	if max <= 0 || len(samples) <= max {
		return samples
	}

	result := make([]domain.PriceSample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func writeSamplesCSV(path string, series map[domain.Chain][]domain.PriceSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"chain", "price_usd", "created_at"}); err != nil {
		return err
	}

	for _, chain := range domain.Chains {
		for _, sample := range series[chain] {
			record := []string{
				chain.String(),
				strconv.FormatFloat(sample.Price, 'f', -1, 64),
				sample.CreatedAt.UTC().Format(time.RFC3339),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	return writer.Error()
}

func writeSamplesPNG(path string, series map[domain.Chain][]domain.PriceSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.4f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (USD)",
			ValueFormatter: priceFormatter,
		},
	}

	for _, chain := range domain.Chains {
		samples := series[chain]
		if len(samples) == 0 {
			continue
		}
		x := make([]time.Time, len(samples))
		y := make([]float64, len(samples))
		for i, sample := range samples {
			x[i] = sample.CreatedAt
			y[i] = sample.Price
		}
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name:    chainSeriesName(chain),
			XValues: x,
			YValues: y,
		})
	}

	if len(graph.Series) == 0 {
		return fmt.Errorf("no series to render")
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func chainSeriesName(chain domain.Chain) string {
	return chain.String() + " (USD)"
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
