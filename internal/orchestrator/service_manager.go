package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"stealthcompany.com/patientpanel/internal/presenter"
)

// DefaultShutdownTimeout bounds the graceful HTTP shutdown
const DefaultShutdownTimeout = 30 * time.Second

// ServiceManager manages the lifecycle of the record subscription and the
// HTTP server
type ServiceManager struct {
	panel           *presenter.Panel
	server          *http.Server
	serverErr       chan error
	ShutdownTimeout time.Duration
}

// NewServiceManager creates a new service manager
func NewServiceManager(panel *presenter.Panel, handler http.Handler) *ServiceManager {
	return &ServiceManager{
		panel:           panel,
		server:          &http.Server{Handler: handler},
		serverErr:       make(chan error, 1),
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// StartPanelService opens the live record subscription
func (sm *ServiceManager) StartPanelService(ctx context.Context) error {
	log.Info().Msg("Starting record subscription...")
	if err := sm.panel.Start(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to patient records: %w", err)
	}
	return nil
}

// StartAPIService serves HTTP on ln in the background
func (sm *ServiceManager) StartAPIService(ln net.Listener) {
	log.Info().Str("addr", ln.Addr().String()).Msg("Starting API service...")

	go func() {
		err := sm.server.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			sm.serverErr <- err
			return
		}
		sm.serverErr <- nil
	}()
}

// WaitForServices blocks until the server fails or ctx is cancelled, then
// shuts everything down
func (sm *ServiceManager) WaitForServices(ctx context.Context) error {
	log.Info().Msg("Services started, waiting for shutdown...")

	var serveErr error
	select {
	case serveErr = <-sm.serverErr:
		if serveErr != nil {
			log.Error().Err(serveErr).Msg("API service exited with error")
		} else {
			log.Info().Msg("API service exited")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down services...")
	}

	if err := sm.shutdownServices(); err != nil {
		return err
	}
	return serveErr
}

// shutdownServices stops the HTTP server and releases the subscription
func (sm *ServiceManager) shutdownServices() error {
	ctx, cancel := context.WithTimeout(context.Background(), sm.ShutdownTimeout)
	defer cancel()

	err := sm.server.Shutdown(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	sm.panel.Stop()
	log.Info().Msg("Services stopped")
	return err
}
