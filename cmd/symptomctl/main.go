package main

import (
	"os"

	"github.com/synaptica-ai/symptomscan/pkg/common/logger"
)

func main() {
	logger.Configure(os.Stderr, os.Getenv("LOG_LEVEL"))
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
