package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// Init builds a zap logger for the environment and installs it as the global logger.
func Init(env string) error {
	var (
		l   *zap.Logger
		err error
	)
	switch env {
	case "production", "prod":
		l, err = zap.NewProduction()
	default:
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(l)
	return nil
}

// Sync flushes buffered log entries. Errors from syncing stderr are ignored.
func Sync() {
	_ = zap.L().Sync()
}
