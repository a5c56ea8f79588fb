// Package di contains dependency injection tokens for the history context.
package di

import (
	"github.com/fd1az/triarb-bot/business/history/app"
	"github.com/fd1az/triarb-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Store  = di.NewToken[app.Store]("history.Store")
	Pruner = di.NewToken[*app.Pruner]("history.Pruner")
)

func GetStore(c di.ServiceRegistry) app.Store {
	return di.GetToken(c, Store)
}

func GetPruner(c di.ServiceRegistry) *app.Pruner {
	return di.GetToken(c, Pruner)
}
