package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/driftchat/driftchat-client/internal/api"
	"github.com/driftchat/driftchat-client/internal/config"
	"github.com/driftchat/driftchat-client/internal/core"
	"github.com/driftchat/driftchat-client/internal/imaging"
	"github.com/driftchat/driftchat-client/internal/store"
	"github.com/driftchat/driftchat-client/internal/store/sqlite"
	"github.com/driftchat/driftchat-client/internal/transport/hub"
	"github.com/driftchat/driftchat-client/internal/upload"
)

// App wires together the session core, the hub transport, the side-channel
// API, and the local archive.
type App struct {
	session *core.Session
	uploads *upload.Orchestrator
	api     *api.Client
	store   store.Store
	log     *zerolog.Logger
}

// New constructs the application from the persisted client record.
// cfgPath is where config changes are written back.
func New(cfg config.Config, cfgPath string, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("init archive: %w", err)
	}
	logger.Info().Str("archive_path", cfg.ArchivePath).Msg("transcript archive ready")

	apiClient := api.New(cfg.ServerURL, logger)

	dialer := func(ctx context.Context, serverURL string) (core.Channel, error) {
		return hub.Dial(ctx, hub.Options{ServerURL: serverURL}, logger)
	}

	session := core.NewSession(core.SessionOptions{
		Config:   cfg,
		Dialer:   dialer,
		Logger:   logger,
		Archiver: st,
		SaveConfig: func(updated config.Config) {
			if err := config.Save(cfgPath, updated); err != nil {
				logger.Warn().Err(err).Str("path", cfgPath).Msg("config save failed")
			}
		},
	})

	uploads := &upload.Orchestrator{
		Budget:     upload.DefaultBudget,
		Client:     apiClient,
		Compressor: &imaging.Compressor{Budget: upload.DefaultBudget, Log: logger},
		Notify:     session.SystemNotice,
		Log:        logger,
	}

	return &App{
		session: session,
		uploads: uploads,
		api:     apiClient,
		store:   st,
		log:     logger,
	}, nil
}

// Session exposes the state-owning session for the UI layer.
func (a *App) Session() *core.Session { return a.session }

// Uploads exposes the image upload flow.
func (a *App) Uploads() *upload.Orchestrator { return a.uploads }

// API exposes the HTTP side channel (points purchase).
func (a *App) API() *api.Client { return a.api }

// Store exposes the transcript archive.
func (a *App) Store() store.Store { return a.store }

// Run drives the session loop until the context is cancelled, then releases
// resources.
func (a *App) Run(ctx context.Context) error {
	a.session.Run(ctx)
	a.cleanup()
	return nil
}

func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close archive")
		}
	}
}
