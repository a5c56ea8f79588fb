// Package di contains dependency injection tokens for the liquidity context.
package di

import (
	"github.com/fd1az/triarb-bot/business/liquidity/app"
	"github.com/fd1az/triarb-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Checker = di.NewToken[*app.Checker]("liquidity.Checker")
)

// GetChecker returns the liquidity checker.
func GetChecker(c di.ServiceRegistry) *app.Checker {
	return di.GetToken(c, Checker)
}
