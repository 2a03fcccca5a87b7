// Package ingest exposes the gateway's HTTP surface: event submission,
// status snapshots, and manual worker triggers.
package ingest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.gazette.dev/core/server"

	"github.com/itplaylab/eventgate/gateway"
)

type api struct {
	gw *gateway.Gateway
}

// NewRouter builds the gateway's HTTP router.
func NewRouter(gw *gateway.Gateway) *mux.Router {
	var a = api{gw: gw}
	var router = mux.NewRouter()

	router.Path("/events").Methods("POST").HandlerFunc(a.serveEvents)
	router.Path("/ingest").Methods("POST").HandlerFunc(a.serveIngest)

	router.Path("/health").Methods("GET").HandlerFunc(a.serveHealth)
	router.Path("/store/recent").Methods("GET").HandlerFunc(a.serveStoreRecent)
	router.Path("/sync/status").Methods("GET").HandlerFunc(a.serveSyncStatus)
	router.Path("/sync/run").Methods("POST").HandlerFunc(a.serveSyncRun)
	router.Path("/fallback/status").Methods("GET").HandlerFunc(a.serveFallbackStatus)
	router.Path("/fallback/tail").Methods("GET").HandlerFunc(a.serveFallbackTail)
	router.Path("/replay/status").Methods("GET").HandlerFunc(a.serveReplayStatus)
	router.Path("/replay/run").Methods("POST").HandlerFunc(a.serveReplayRun)

	router.Path("/metrics").Methods("GET").Handler(promhttp.Handler())

	router.NotFoundHandler = http.HandlerFunc(serveNotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(serveNotFound)
	return router
}

// RegisterAPIs mounts the gateway router on the server's HTTP mux.
func RegisterAPIs(srv *server.Server, gw *gateway.Gateway) {
	srv.HTTPMux.Handle("/", NewRouter(gw))
}

func serveNotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "NOT_FOUND", "")
}
