// Package di contains dependency injection tokens for the exchange context.
package di

import (
	"github.com/fd1az/triarb-bot/business/exchange/app"
	"github.com/fd1az/triarb-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Gateway = di.NewToken[app.Gateway]("exchange.Gateway")
)

// GetGateway returns the exchange gateway.
func GetGateway(c di.ServiceRegistry) app.Gateway {
	return di.GetToken(c, Gateway)
}
