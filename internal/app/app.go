// Package app wires the startup sequence: port reclamation and certificate
// provisioning run once, serialized, before the listener accepts anything;
// per-connection handling afterwards is fully parallel.
package app

import (
	"context"
	"strconv"

	"mingmong/internal/certs"
	"mingmong/internal/common/logging"
	"mingmong/internal/config"
	"mingmong/internal/handlers"
	"mingmong/internal/ports"
	"mingmong/internal/server"
	"mingmong/internal/signature"
	"mingmong/internal/stealth"
)

// App holds the assembled application.
type App struct {
	cfg      *config.Config
	logger   logging.Logger
	Bundle   *certs.Bundle
	Handlers *handlers.Handlers
}

// New runs the startup sequence and assembles the handler set.
func New(cfg *config.Config) (*App, error) {
	logger := logging.GetGlobalLogger()

	reclaimer := ports.NewReclaimer(logger)

	if cfg.ReclaimPort {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil {
			return nil, err
		}
		if err := reclaimer.Reclaim(port); err != nil {
			return nil, err
		}
	}

	provisioner := certs.NewProvisioner(cfg, reclaimer, logger)
	bundle, err := provisioner.Provision(context.Background())
	if err != nil {
		return nil, err
	}

	gate := stealth.NewGate(logger)
	h := handlers.New(signature.NewValidator(), gate, bundle != nil, logger)

	return &App{
		cfg:      cfg,
		logger:   logger,
		Bundle:   bundle,
		Handlers: h,
	}, nil
}

// Server builds the HTTP(S) server from the assembled handlers.
func (a *App) Server() *server.Server {
	return server.New(NewRouter(a.Handlers), a.cfg.Port, a.Bundle)
}
