// Command ginifetch queries the indicator pipeline from the terminal.
// It shares the configuration and upstream client with the server, so
// the same environment variables apply.
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/giniscope/internal/adapters/worldbank"
	app "github.com/okian/giniscope/internal/app"
	"github.com/okian/giniscope/internal/config"
	"github.com/okian/giniscope/internal/domain/model"
	"github.com/okian/giniscope/pkg/logger"
)

const defaultStartYear = 1990

var (
	flagStart int
	flagEnd   int
	flagCSV   string
)

func main() {
	root := &cobra.Command{
		Use:           "ginifetch",
		Short:         "Fetch Gini coefficient data from the World Bank API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	countriesCmd := &cobra.Command{
		Use:   "countries",
		Short: "List countries with indicator coverage",
		Args:  cobra.NoArgs,
		RunE:  runCountries,
	}

	seriesCmd := &cobra.Command{
		Use:   "series CODE",
		Short: "Fetch the indicator series for one country",
		Args:  cobra.ExactArgs(1),
		RunE:  runSeries,
	}
	seriesCmd.Flags().IntVar(&flagStart, "start", defaultStartYear, "first year of the range")
	seriesCmd.Flags().IntVar(&flagEnd, "end", time.Now().UTC().Year(), "last year of the range")
	seriesCmd.Flags().StringVar(&flagCSV, "csv", "", "write the series to a CSV file instead of stdout")

	root.AddCommand(countriesCmd, seriesCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ginifetch:", err)
		os.Exit(1)
	}
}

// newService builds a started pipeline facade from the shared
// configuration. The CLI keeps logging at warn so tables stay clean.
func newService(ctx context.Context) (*app.Service, error) {
	if err := logger.Init(); err != nil {
		return nil, err
	}
	_ = logger.SetLevelString("warn")
	log := logger.Get()

	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	client := worldbank.New(
		worldbank.WithBaseURL(cfg.BaseURL),
		worldbank.WithIndicator(cfg.Indicator),
		worldbank.WithTimeout(time.Duration(cfg.RequestTimeoutSec)*time.Second),
		worldbank.WithMaxRetries(cfg.MaxRetries),
		worldbank.WithBackoff(
			time.Duration(cfg.RetryBaseDelayMS)*time.Millisecond,
			time.Duration(cfg.RetryMaxDelayMS)*time.Millisecond,
		),
		worldbank.WithPerPage(cfg.PerPage),
		worldbank.WithLogger(log),
	)

	svc := app.New(
		app.WithLogger(log),
		app.WithFetcher(client),
		app.WithSkipWarnRatio(cfg.SkipWarnRatio),
	)
	if err := svc.Start(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

func runCountries(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer svc.Stop()

	countries, err := svc.ListCountries(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tREGION")
	for _, c := range countries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Code, c.Name, c.Region)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d countries\n", len(countries))
	return nil
}

func runSeries(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer svc.Stop()

	series, err := svc.GetSeries(ctx, args[0], flagStart, flagEnd)
	if err != nil {
		return err
	}

	points := series.Chronological()
	if flagCSV != "" {
		return writeCSV(flagCSV, points)
	}

	if len(points) == 0 {
		fmt.Printf("no observations for %s in %d-%d\n", series.CountryCode, flagStart, flagEnd)
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "YEAR\tGINI")
	for _, p := range points {
		if p.HasValue() {
			fmt.Fprintf(tw, "%d\t%.2f\n", p.Year, *p.Value)
		} else {
			fmt.Fprintf(tw, "%d\t-\n", p.Year)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	summary := series.Summarize()
	fmt.Printf("\n%d observations %d-%d, mean %.2f, trend %s\n",
		summary.Count, summary.FirstYear, summary.LastYear, summary.MeanValue, summary.Trend)
	if series.Skipped > 0 {
		fmt.Printf("skipped %d malformed records\n", series.Skipped)
	}
	if series.Partial {
		fmt.Println("warning: upstream pagination was interrupted; data may be incomplete")
	}
	return nil
}

func writeCSV(path string, points []model.Point) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"year", "value"}); err != nil {
		return err
	}
	for _, p := range points {
		value := ""
		if p.HasValue() {
			value = strconv.FormatFloat(*p.Value, 'f', -1, 64)
		}
		if err := w.Write([]string{strconv.Itoa(p.Year), value}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
