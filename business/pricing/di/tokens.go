// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/triarb-bot/business/pricing/app"
	"github.com/fd1az/triarb-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	PricingService = di.NewToken[*app.Service]("pricing.Service")
)

// Private dependency tokens - internal to pricing module
var (
	PrimaryFeed  = di.NewToken[app.Feed]("pricing:primaryFeed")
	FallbackFeed = di.NewToken[app.Feed]("pricing:fallbackFeed")
	Mirror       = di.NewToken[app.Mirror]("pricing:mirror")
)

// Helper functions for type-safe access
func GetPricingService(c di.ServiceRegistry) *app.Service {
	return di.GetToken(c, PricingService)
}

func GetPrimaryFeed(c di.ServiceRegistry) app.Feed {
	return di.GetToken(c, PrimaryFeed)
}

func GetFallbackFeed(c di.ServiceRegistry) app.Feed {
	return di.GetToken(c, FallbackFeed)
}

func GetMirror(c di.ServiceRegistry) app.Mirror {
	return di.GetToken(c, Mirror)
}
