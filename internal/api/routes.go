package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.HandleFunc("/", handler.DashboardPage).Methods("GET")
	if handler.metrics != nil {
		r.Handle("/metrics", handler.metrics.Handler()).Methods("GET")
	}

	// Dashboard routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/dashboard", handler.GetDashboard).Methods("GET")
	api.HandleFunc("/assets", handler.GetAllAssets).Methods("GET")
	api.HandleFunc("/assets/{ticker}/signals", handler.GetAssetSignals).Methods("GET")
	api.HandleFunc("/assets/{ticker}/prices", handler.GetAssetPrices).Methods("GET")
	api.HandleFunc("/assets/{ticker}/indicators", handler.GetAssetIndicators).Methods("GET")

	return r
}
