// Package di contains dependency injection tokens for the execution context.
package di

import (
	"github.com/fd1az/triarb-bot/business/execution/app"
	"github.com/fd1az/triarb-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Executor = di.NewToken[*app.Executor]("execution.Executor")
)

// GetExecutor returns the trade executor.
func GetExecutor(c di.ServiceRegistry) *app.Executor {
	return di.GetToken(c, Executor)
}
