package main

import (
	"context"
	"fmt"

	arbitrageApp "github.com/fd1az/triarb-bot/business/arbitrage/app"
	arbitrageDI "github.com/fd1az/triarb-bot/business/arbitrage/di"
	exchangeDI "github.com/fd1az/triarb-bot/business/exchange/di"
	historyDI "github.com/fd1az/triarb-bot/business/history/di"
	pricingDI "github.com/fd1az/triarb-bot/business/pricing/di"
	"github.com/fd1az/triarb-bot/internal/health"
	"github.com/fd1az/triarb-bot/internal/monolith"
)

// registerStatus wires the health checks and the read-only /api documents.
func registerStatus(s *health.Server, mono monolith.Monolith) {
	cfg := mono.Config()
	sr := mono.Services()

	detector := arbitrageDI.GetDetector(sr)
	prices := pricingDI.GetPricingService(sr)
	gateway := exchangeDI.GetGateway(sr)
	store := historyDI.GetStore(sr)

	s.RegisterCheck("price_feed", func(context.Context) (bool, string) {
		h := prices.Health()
		if h.LastMessageAt.IsZero() {
			return false, fmt.Sprintf("%s: no prices received", h.Source)
		}
		if cfg.Pricing.StaleAfter > 0 && h.LastMessageAge > cfg.Pricing.StaleAfter {
			return false, fmt.Sprintf("%s: last price %s ago", h.Source, h.LastMessageAge)
		}
		return true, h.Source
	})

	s.RegisterCheck("exchange", func(context.Context) (bool, string) {
		rate := gateway.ErrorRate(cfg.Binance.ErrorWindow)
		msg := fmt.Sprintf("error rate %.2f", rate)
		return rate < cfg.Risk.APIErrorRateThreshold, msg
	})

	s.RegisterStatus("status", func(ctx context.Context, _ health.Query) (any, error) {
		return statusDocument(detector.Status(ctx), cfg.Trading.DryRun), nil
	})
	s.RegisterStatus("stats", func(ctx context.Context, _ health.Query) (any, error) {
		return store.Statistics(ctx)
	})
	s.RegisterStatus("trades", func(ctx context.Context, q health.Query) (any, error) {
		return store.RecentTrades(ctx, q.Limit)
	})
	s.RegisterStatus("opportunities", func(ctx context.Context, q health.Query) (any, error) {
		return store.RecentOpportunities(ctx, q.Limit)
	})
}

type statusDoc struct {
	Version       string  `json:"version"`
	DryRun        bool    `json:"dry_run"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Scans         int64   `json:"scans"`
	Opportunities int64   `json:"opportunities"`
	Executions    int64   `json:"executions"`
	APIErrorRate  float64 `json:"api_error_rate"`
	Feed          any     `json:"feed"`
	Risk          any     `json:"risk"`
	Execution     any     `json:"execution"`
}

func statusDocument(st arbitrageApp.Status, dryRun bool) statusDoc {
	return statusDoc{
		Version:       version,
		DryRun:        dryRun,
		UptimeSeconds: st.Uptime.Seconds(),
		Scans:         st.Scans,
		Opportunities: st.Opportunities,
		Executions:    st.Executions,
		APIErrorRate:  st.ErrorRate,
		Feed:          st.Feed,
		Risk:          st.Risk,
		Execution:     st.Stats,
	}
}
