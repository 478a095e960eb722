package config

import (
	"log"

	"go.uber.org/zap"
)

// InitLogging sets up the zap logger and installs it as the global logger,
// so services can log through zap.S() / zap.L().
func InitLogging(environment string) *zap.Logger {
	var logger *zap.Logger
	var err error

	if environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)
	return logger
}
