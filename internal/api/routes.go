// Package api exposes the patient panel over HTTP and a WebSocket stream.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"stealthcompany.com/patientpanel/internal/metrics"
	"stealthcompany.com/patientpanel/internal/presenter"
)

// Server holds the handlers' dependencies
type Server struct {
	panel    *presenter.Panel
	upgrader websocket.Upgrader
}

// NewServer creates the API server for a panel
func NewServer(panel *presenter.Panel) *Server {
	return &Server{
		panel: panel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// SetupRoutes configures and returns the HTTP router
func (s *Server) SetupRoutes() *mux.Router {
	r := mux.NewRouter()

	// Add middleware to all routes
	r.Use(metrics.MetricsMiddleware)

	r.HandleFunc("/health", s.HealthHandler).Methods("GET")

	// Fixed paths first so they win over /patients/{id}
	r.HandleFunc("/patients/stream", s.StreamHandler).Methods("GET")
	r.HandleFunc("/patients/refetch", s.RefetchHandler).Methods("POST")

	r.HandleFunc("/patients", s.ListPatientsHandler).Methods("GET")
	r.HandleFunc("/patients", s.CreatePatientHandler).Methods("POST")
	r.HandleFunc("/patients/{id}", s.GetPatientHandler).Methods("GET")
	r.HandleFunc("/patients/{id}", s.PatchPatientHandler).Methods("PATCH")
	r.HandleFunc("/patients/{id}", s.ReplacePatientHandler).Methods("PUT")
	r.HandleFunc("/patients/{id}", s.DeletePatientHandler).Methods("DELETE")

	r.HandleFunc("/notifications", s.ListNotificationsHandler).Methods("GET")
	r.HandleFunc("/notifications/{id}", s.DismissNotificationHandler).Methods("DELETE")

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}
