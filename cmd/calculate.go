package main

import (
	"amortization-engine/internal/api/handler/dto"
	"amortization-engine/internal/config"
	"amortization-engine/internal/domain/loan"
	"amortization-engine/internal/domain/rate"
	"amortization-engine/internal/infrastructure/database/postgres"
	"amortization-engine/internal/infrastructure/logging"
	"amortization-engine/internal/infrastructure/rates"
	"amortization-engine/internal/pkg/apperrors"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

type calculateOptions struct {
	principal          string
	amortizationMonths int
	termMonths         int
	margin             string
	start              string
	interestDays       int
	rate               string
	output             string
}

func newCalculateCmd() *cobra.Command {
	opts := &calculateOptions{}
	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Print an amortization schedule",
		Long: `Generates a schedule for a single loan. The benchmark rate comes from
--rate when given, otherwise from the rate source in the configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runCalculate(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), configPath, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.principal, "principal", "", "principal amount")
	f.IntVar(&opts.amortizationMonths, "amortization-months", 0, "months over which principal is amortized")
	f.IntVar(&opts.termMonths, "term-months", 0, "months until the remaining balance is due")
	f.StringVar(&opts.margin, "margin", "0", "margin over the benchmark, in percent")
	f.StringVar(&opts.start, "start", time.Now().UTC().Format(time.DateOnly), "start date (YYYY-MM-DD)")
	f.IntVar(&opts.interestDays, "interest-days", loan.InterestDays360, "day-count basis")
	f.StringVar(&opts.rate, "rate", "", "benchmark rate in percent; skips the configured rate source")
	f.StringVarP(&opts.output, "output", "o", outputTable, "output format: table or json")
	_ = cmd.MarkFlagRequired("principal")
	_ = cmd.MarkFlagRequired("amortization-months")
	_ = cmd.MarkFlagRequired("term-months")

	return cmd
}

func runCalculate(ctx context.Context, stdout, stderr io.Writer, configPath string, opts *calculateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.output != outputTable && opts.output != outputJSON {
		return fmt.Errorf("unsupported output %q, expected %s or %s", opts.output, outputTable, outputJSON)
	}

	req, err := opts.request()
	if err != nil {
		return err
	}

	logger := logging.NewWriterLogger(stderr, config.LoggerConfig{Level: "warn", Encoding: "text"})
	provider, closeProvider, err := cliRateProvider(ctx, configPath, opts.rate, logger)
	if err != nil {
		return err
	}
	defer closeProvider()

	service := loan.NewAmortizationService(rate.NewBenchmarkService(provider, logger), nil, logger)

	inputs, dateErrs := req.ToInputs()
	if errs := append(service.Validate(inputs), dateErrs...); len(errs) > 0 {
		printValidationErrors(stderr, errs)
		return errs
	}

	result, err := service.GenerateSchedule(ctx, inputs)
	if err != nil {
		return err
	}

	if opts.output == outputJSON {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(dto.NewCalculateScheduleResponse(result))
	}
	return renderTable(stdout, result)
}

func (o *calculateOptions) request() (dto.CalculateScheduleRequest, error) {
	principal, err := decimal.NewFromString(strings.TrimSpace(o.principal))
	if err != nil {
		return dto.CalculateScheduleRequest{}, fmt.Errorf("invalid --principal %q: %w", o.principal, err)
	}
	margin, err := decimal.NewFromString(strings.TrimSpace(o.margin))
	if err != nil {
		return dto.CalculateScheduleRequest{}, fmt.Errorf("invalid --margin %q: %w", o.margin, err)
	}
	return dto.CalculateScheduleRequest{
		PrincipalAmount:    principal,
		AmortizationMonths: o.amortizationMonths,
		TermMonths:         o.termMonths,
		MarginRate:         margin,
		StartDate:          o.start,
		InterestDays:       o.interestDays,
	}, nil
}

// cliRateProvider prefers an explicit --rate and otherwise builds the configured
// source. The returned func releases any database pool it opened.
func cliRateProvider(ctx context.Context, configPath, staticRate string, logger *slog.Logger) (rate.Provider, func(), error) {
	noop := func() {}
	if staticRate != "" {
		provider, err := rates.NewStaticProvider("CLI", staticRate)
		if err != nil {
			return nil, noop, fmt.Errorf("invalid --rate: %w", err)
		}
		return provider, noop, nil
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Rate.Source != config.RateSourceDatabase {
		provider, err := newUpstreamProvider(cfg, nil, logger)
		return provider, noop, err
	}

	dbPool, err := postgres.NewConnectionPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, noop, err
	}
	provider, err := newUpstreamProvider(cfg, postgres.NewRateRepository(dbPool, logger), logger)
	if err != nil {
		dbPool.Close()
		return nil, noop, err
	}
	return provider, dbPool.Close, nil
}

func printValidationErrors(w io.Writer, errs apperrors.ValidationErrors) {
	for _, e := range errs {
		fmt.Fprintf(w, "%s: %s\n", e.Field, e.Message)
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// renderTable rounds to cents for display only.
func renderTable(w io.Writer, result *loan.ScheduleResult) error {
	if result == nil {
		return errors.New("no schedule to render")
	}

	fmt.Fprintf(w, "Benchmark rate: %s%%  Annual rate: %s%%  Term end: %s\n\n",
		result.Params.BenchmarkRate.String(),
		result.Params.AnnualRate.String(),
		result.TermEndDate.Format(time.DateOnly),
	)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Period\tDate\tDays\tStarting Balance\tPrincipal\tInterest\tTotal\tEnding Balance\t")
	for i, e := range result.Schedule {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t\n",
			i,
			e.Date.Format(time.DateOnly),
			e.DaysInPeriod,
			money(e.StartingBalance),
			money(e.PrincipalPayment),
			money(e.InterestPayment),
			money(e.TotalPayment),
			money(e.EndingBalance),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\nTotal principal: %s  Total interest: %s  Total paid: %s\n",
		money(result.Summary.TotalPrincipal),
		money(result.Summary.TotalInterest),
		money(result.Summary.TotalPayment),
	)
	return err
}
