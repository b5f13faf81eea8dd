package main

import (
	"os"

	"github.com/sealpost/sealpost/cmd"
)

func main() {
	if addr := os.Getenv("SEALPOST_COVERAGE_ADDR"); addr != "" {
		startCoverageServer(addr)
	}

	cmd.Execute()
}
