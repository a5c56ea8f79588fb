// Package main replays recorded price snapshots through the opportunity
// calculator.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/arbitrage/app"
	"github.com/fd1az/triarb-bot/business/arbitrage/domain"
	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/logger"
)

// snapshot is one recorded price set.
type snapshot struct {
	Timestamp time.Time                  `json:"timestamp"`
	Prices    map[string]decimal.Decimal `json:"prices"`
}

type summary struct {
	Snapshots     int
	Opportunities int
	Best          *domain.Opportunity
	BestAt        time.Time
}

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	dataPath := flag.String("data", "", "Path to a JSON array of price snapshots")
	top := flag.Int("top", 5, "Opportunities printed per snapshot")
	flag.Parse()

	if *dataPath == "" {
		fmt.Fprintln(os.Stderr, "usage: backtest -data snapshots.json [-config config.yaml] [-top 5]")
		os.Exit(2)
	}

	if err := run(context.Background(), *configPath, *dataPath, *top, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, dataPath string, top int, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name+"-backtest", nil)

	triangles, err := app.LoadTriangles(ctx, cfg.Trading.Triangles, log)
	if err != nil {
		return err
	}

	f, err := os.Open(dataPath)
	if err != nil {
		return fmt.Errorf("open snapshots: %w", err)
	}
	defer f.Close()

	snaps, err := readSnapshots(f)
	if err != nil {
		return err
	}

	calc := app.NewCalculator(app.CalculatorConfigFrom(cfg.Trading))
	capital := cfg.Trading.InitialCapitalDecimal()
	size := calc.OptimalTradeSize(capital, capital)

	sum := replay(calc, triangles, snaps, size, top, out)
	printSummary(out, sum)
	return nil
}

func readSnapshots(r io.Reader) ([]snapshot, error) {
	var snaps []snapshot
	if err := json.NewDecoder(r).Decode(&snaps); err != nil {
		return nil, fmt.Errorf("decode snapshots: %w", err)
	}
	return snaps, nil
}

// replay evaluates every snapshot and prints its top opportunities.
func replay(calc *app.Calculator, triangles []*domain.Triangle, snaps []snapshot, size decimal.Decimal, top int, out io.Writer) summary {
	var sum summary
	for _, s := range snaps {
		sum.Snapshots++
		opps := calc.Scan(triangles, s.Prices, size)
		sum.Opportunities += len(opps)

		fmt.Fprintf(out, "[%s] %d prices, %d opportunities\n",
			s.Timestamp.Format(time.RFC3339), len(s.Prices), len(opps))

		for i, opp := range opps {
			if i == top {
				break
			}
			fmt.Fprintf(out, "  %d. %-24s %s -> %s  profit %s (%s%%)\n",
				i+1,
				opp.Key(),
				opp.InitialAmount.StringFixed(2),
				opp.FinalAmount.StringFixed(4),
				opp.Profit.StringFixed(4),
				opp.ProfitPct.StringFixed(3))
		}

		if len(opps) > 0 && (sum.Best == nil || opps[0].ProfitPct.GreaterThan(sum.Best.ProfitPct)) {
			sum.Best = opps[0]
			sum.BestAt = s.Timestamp
		}
	}
	return sum
}

func printSummary(out io.Writer, sum summary) {
	fmt.Fprintln(out, "================================")
	fmt.Fprintf(out, "snapshots:     %d\n", sum.Snapshots)
	fmt.Fprintf(out, "opportunities: %d\n", sum.Opportunities)
	if sum.Best != nil {
		fmt.Fprintf(out, "best:          %s %s%% at %s\n",
			sum.Best.Key(), sum.Best.ProfitPct.StringFixed(3), sum.BestAt.Format(time.RFC3339))
	}
}
