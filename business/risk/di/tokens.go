// Package di contains dependency injection tokens for the risk context.
package di

import (
	"github.com/fd1az/triarb-bot/business/risk/app"
	"github.com/fd1az/triarb-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Manager = di.NewToken[*app.Manager]("risk.Manager")
)

// Private dependency tokens - internal to risk module
var (
	StateStore = di.NewToken[app.StateStore]("risk:stateStore")
)

func GetManager(c di.ServiceRegistry) *app.Manager {
	return di.GetToken(c, Manager)
}

func GetStateStore(c di.ServiceRegistry) app.StateStore {
	return di.GetToken(c, StateStore)
}
