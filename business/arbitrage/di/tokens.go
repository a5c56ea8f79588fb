// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	"github.com/fd1az/triarb-bot/business/arbitrage/app"
	"github.com/fd1az/triarb-bot/business/arbitrage/domain"
	"github.com/fd1az/triarb-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Detector   = di.NewToken[*app.Detector]("arbitrage.Detector")
	Calculator = di.NewToken[*app.Calculator]("arbitrage.Calculator")
	Triangles  = di.NewToken[[]*domain.Triangle]("arbitrage.Triangles")
)

// Private dependency tokens - internal to arbitrage module
var (
	Reporter = di.NewToken[app.Reporter]("arbitrage:reporter")
)

func GetDetector(c di.ServiceRegistry) *app.Detector {
	return di.GetToken(c, Detector)
}

func GetCalculator(c di.ServiceRegistry) *app.Calculator {
	return di.GetToken(c, Calculator)
}

func GetTriangles(c di.ServiceRegistry) []*domain.Triangle {
	return di.GetToken(c, Triangles)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}
