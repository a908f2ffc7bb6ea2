package routers

import (
	"net/http"

	"dag-ledger/handlers"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes sets up all the HTTP routes for the DAG
func RegisterRoutes(r *mux.Router, h *handlers.Handler) {

	// Submissions building a new node on top of the current tips
	r.HandleFunc("/dag/transactions", h.AddTransaction).Methods("POST")
	r.HandleFunc("/dag/arbitrary", h.AddArbitrary).Methods("POST")
	r.HandleFunc("/dag/work", h.AddWork).Methods("POST")

	// Nodes relayed by peers, already signed
	r.HandleFunc("/dag/nodes", h.AddDAGNode).Methods("POST")

	// Point lookups
	r.HandleFunc("/dag/nodes/{hash}", h.GetDAGNode).Methods("GET")
	r.HandleFunc("/dag/work/{hash}", h.GetWork).Methods("GET")
	r.HandleFunc("/dag/epochs/{hash}", h.HasEpoch).Methods("GET")

	// Epoch lifecycle
	r.HandleFunc("/dag/epoch", h.GetStatus).Methods("GET")
	r.HandleFunc("/dag/epochs", h.CommitEpoch).Methods("POST")
	r.HandleFunc("/dag/revert/{number}", h.RevertToEpoch).Methods("POST")

	// Used by the networking layer to decide what to broadcast or request next
	r.HandleFunc("/dag/recent", h.GetRecentlyAdded).Methods("GET")
	r.HandleFunc("/dag/missing", h.GetRecentlyMissing).Methods("GET")
	r.HandleFunc("/dag/latest", h.GetLatest).Methods("GET")
	r.HandleFunc("/dag/tips", h.GetTips).Methods("GET")

	r.HandleFunc("/dag/graph", h.GetGraph).Methods("GET")
}

// RegisterMetrics exposes the registry in Prometheus format
func RegisterMetrics(r *mux.Router, reg *prometheus.Registry) {
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})).Methods(http.MethodGet)
}
