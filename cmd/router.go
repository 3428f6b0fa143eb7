package main

import (
	"net/http"

	"github.com/quotegate/guardian/internal/metrics"
	"github.com/quotegate/guardian/internal/ops"
	"github.com/quotegate/guardian/internal/upstream"
)

func setupRouter(opsHandler *ops.Handler, collector *metrics.Collector, client *upstream.Client, services map[string]upstream.Service) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", opsHandler.Health)
	mux.HandleFunc("/breakers", opsHandler.Breakers)
	mux.HandleFunc("/breakers/reset", opsHandler.ResetBreakers)
	mux.HandleFunc("/metrics", collector.Handler())
	mux.HandleFunc("/proxy/", client.Handler(services))

	return mux
}
