// Package main is the entry point for the autoscaling policy server.
package main

import (
	"os"

	"github.com/scalemesh/policy-server/cmd/policy-server/app"
	"github.com/scalemesh/policy-server/internal/logger"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}
