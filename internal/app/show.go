package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints recent samples and pending alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	samples, err := store.ListRecentSamples(ctx, opts.Limit)
	if err != nil {
		return err
	}

	if len(samples) == 0 {
		fmt.Fprintln(os.Stdout, "no samples found")
	} else {
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Time (UTC)\tChain\tPrice (USD)")
		for _, sample := range samples {
			fmt.Fprintf(
				writer,
				"%s\t%s\t%.6f\n",
				sample.CreatedAt.UTC().Format(time.RFC3339),
				sample.Chain,
				sample.Price,
			)
		}
		writer.Flush()
	}

	alerts, err := store.ListPendingAlerts(ctx, opts.Limit)
	if err != nil {
		return err
	}

	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no pending alerts")
		return nil
	}

	fmt.Fprintln(os.Stdout)
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tChain\tThreshold (USD)\tEmail\tCreated (UTC)")
	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%.6f\t%s\t%s\n",
			alert.ID,
			alert.Chain,
			alert.Threshold,
			alert.Email,
			alert.CreatedAt.UTC().Format(time.RFC3339),
		)
	}
	writer.Flush()
	return nil
}
