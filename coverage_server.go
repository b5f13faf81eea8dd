package main

import (
	"net/http"
	"runtime/coverage"

	"k8s.io/klog/v2"
)

// startCoverageServer serves the coverage counters of a binary built with
// -cover, so that they can be collected from a process that never exits
// normally, such as the echo server.
func startCoverageServer(addr string) {
	log := klog.Background().WithName("coverage")
	adminMux := http.NewServeMux()

	adminMux.HandleFunc("/_debug/coverage/download", func(w http.ResponseWriter, r *http.Request) {
		log.Info("Received request to download coverage counter data")

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="coverage.out"`)

		if err := coverage.WriteCounters(w); err != nil {
			log.Error(err, "Error writing coverage counters to response")
		}
	})

	adminMux.HandleFunc("/_debug/coverage/meta/download", func(w http.ResponseWriter, r *http.Request) {
		log.Info("Received request to download coverage metadata")

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="coverage.meta"`)

		if err := coverage.WriteMeta(w); err != nil {
			log.Error(err, "Error writing coverage metadata to response")
		}
	})

	go func() {
		log.Info("Starting private admin server", "address", addr)
		if err := http.ListenAndServe(addr, adminMux); err != nil {
			log.Error(err, "Admin server failed")
		}
	}()
}
