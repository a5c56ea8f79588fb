package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	arbitrageApp "github.com/fd1az/triarb-bot/business/arbitrage/app"
	arbitrageDI "github.com/fd1az/triarb-bot/business/arbitrage/di"
	"github.com/fd1az/triarb-bot/business/exchange"
	exchangeDI "github.com/fd1az/triarb-bot/business/exchange/di"
	riskApp "github.com/fd1az/triarb-bot/business/risk/app"
	"github.com/fd1az/triarb-bot/business/risk/infra/filestore"
	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/logger"
	"github.com/fd1az/triarb-bot/internal/monolith"
)

const topOpportunities = 5

// resetRisk clears the persisted pause and loss streak.
func resetRisk(ctx context.Context, cfg *config.Config) error {
	store := filestore.New(cfg.Risk.StatePath)
	if err := riskApp.ResetState(ctx, store); err != nil {
		return fmt.Errorf("reset risk state: %w", err)
	}
	fmt.Printf("risk state reset: %s\n", store.Path())
	return nil
}

// testConnection pings the exchange, fetches prices and, when credentials
// are configured, balances.
func testConnection(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) error {
	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	if err := mono.RegisterModules(&exchange.Module{}); err != nil {
		return err
	}
	gw := exchangeDI.GetGateway(mono.Services())

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	if err := gw.Ping(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", cfg.Binance.BaseURL(), err)
	}
	fmt.Printf("ping       ok (%s) %s\n", time.Since(start).Round(time.Millisecond), cfg.Binance.BaseURL())

	prices, err := gw.GetAllPrices(ctx)
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}
	fmt.Printf("prices     ok (%d symbols)\n", len(prices))
	for _, sym := range cfg.Trading.Symbols() {
		p, ok := prices[sym]
		if !ok {
			fmt.Printf("  %-10s MISSING\n", sym)
			continue
		}
		fmt.Printf("  %-10s %s\n", sym, p.String())
	}

	if cfg.Binance.APIKey == "" || cfg.Binance.APISecret == "" {
		fmt.Println("balances   skipped (no API credentials)")
		return nil
	}
	balances, err := gw.GetBalances(ctx)
	if err != nil {
		return fmt.Errorf("fetch balances: %w", err)
	}
	fmt.Printf("balances   ok (%d assets)\n", len(balances))
	for _, b := range balances {
		if b.Free.IsZero() && b.Locked.IsZero() {
			continue
		}
		fmt.Printf("  %-6s free %s locked %s\n", b.Asset, b.Free.String(), b.Locked.String())
	}
	return nil
}

// scanOnce evaluates every triangle against the current prices and prints
// the best opportunities. Nothing is executed or recorded.
func scanOnce(ctx context.Context, mono monolith.Monolith, w io.Writer) error {
	detector := arbitrageDI.GetDetector(mono.Services())

	report, err := detector.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	printScan(w, report)
	return nil
}

func printScan(w io.Writer, report arbitrageApp.ScanReport) {
	if w == nil {
		w = os.Stdout
	}
	if report.Snapshot.Empty() {
		fmt.Fprintln(w, "no prices available")
		return
	}
	fmt.Fprintf(w, "%d prices from %s at %s, %d opportunities (%s)\n",
		len(report.Snapshot.Prices),
		report.Snapshot.Source,
		report.Snapshot.Timestamp.Format(time.RFC3339),
		len(report.Opportunities),
		report.Elapsed.Round(time.Microsecond))

	for i, opp := range report.Opportunities {
		if i == topOpportunities {
			break
		}
		fmt.Fprintf(w, "%d. %-24s %s -> %s  profit %s (%s%%)\n",
			i+1,
			opp.Key(),
			opp.InitialAmount.StringFixed(2),
			opp.FinalAmount.StringFixed(4),
			opp.Profit.StringFixed(4),
			opp.ProfitPct.StringFixed(3))
	}
}
