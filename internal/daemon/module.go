// Package daemon composes the controller, pipeline and supporting
// services into an fx application.
package daemon

import (
	"context"

	"github.com/heitorfr/wahook/internal/api"
	"github.com/heitorfr/wahook/internal/bus"
	"github.com/heitorfr/wahook/internal/config"
	"github.com/heitorfr/wahook/internal/event"
	"github.com/heitorfr/wahook/internal/lifecycle"
	"github.com/heitorfr/wahook/internal/lock"
	"github.com/heitorfr/wahook/internal/logging"
	"github.com/heitorfr/wahook/internal/media"
	"github.com/heitorfr/wahook/internal/pipeline"
	"github.com/heitorfr/wahook/internal/projection"
	"github.com/heitorfr/wahook/internal/session"
	"github.com/heitorfr/wahook/internal/wa"
	"github.com/heitorfr/wahook/internal/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideLock,
			provideAdapter,
			provideMediaStore,
			provideDispatcher,
			provideChatStore,
			provideMessageRing,
			provideReceiptRing,
			provideController,
			providePipeline,
			provideQuery,
			provideSender,
			provideDirectory,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideConfig(logger *zap.Logger) (*config.Config, error) {
	path := session.ConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Info("config loaded",
		zap.String("path", path),
		zap.String("webhook_base", cfg.Webhook.BaseURL))
	return cfg, nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideAdapter(p Params, _ *lock.Lock, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), p.SessionName, logger)
}

func provideMediaStore(p Params, cfg *config.Config, adapter *wa.Adapter, logger *zap.Logger) (*media.Store, error) {
	dir := cfg.MediaDir
	if dir == "" {
		dir = session.MediaDir(p.SessionName)
	}
	return media.NewStore(dir, adapter, logger)
}

func provideDispatcher(cfg *config.Config, logger *zap.Logger) *webhook.Dispatcher {
	endpoints := webhook.Endpoints{
		Message:  cfg.EndpointURL(cfg.Webhook.MessagePath),
		Receipt:  cfg.EndpointURL(cfg.Webhook.ReceiptPath),
		Presence: cfg.EndpointURL(cfg.Webhook.PresencePath),
		Media:    cfg.EndpointURL(cfg.Webhook.MediaPath),
	}
	return webhook.NewDispatcher(endpoints, cfg.WebhookTimeout(), logger)
}

func provideChatStore() *projection.Store {
	return projection.NewStore()
}

func provideMessageRing() *projection.Ring[event.Message] {
	return projection.NewRing[event.Message](projection.MessageHistorySize)
}

func provideReceiptRing() *projection.Ring[event.Receipt] {
	return projection.NewRing[event.Receipt](projection.ReceiptHistorySize)
}

func provideController(cfg *config.Config, adapter *wa.Adapter, b *bus.Bus, logger *zap.Logger) *lifecycle.Controller {
	return lifecycle.NewController(adapter, b, logger,
		lifecycle.WithReconnectDelay(cfg.ReconnectDelay()))
}

func providePipeline(
	b *bus.Bus,
	chats *projection.Store,
	messages *projection.Ring[event.Message],
	receipts *projection.Ring[event.Receipt],
	d *webhook.Dispatcher,
	m *media.Store,
	logger *zap.Logger,
) *pipeline.Pipeline {
	return pipeline.New(b, chats, messages, receipts, d, m, logger)
}

func provideQuery(
	ctrl *lifecycle.Controller,
	chats *projection.Store,
	messages *projection.Ring[event.Message],
	receipts *projection.Ring[event.Receipt],
) *api.Query {
	return api.NewQuery(ctrl, chats, messages, receipts)
}

func provideSender(ctrl *lifecycle.Controller, adapter *wa.Adapter, logger *zap.Logger) *api.Sender {
	return api.NewSender(ctrl, adapter, logger)
}

func provideDirectory(ctrl *lifecycle.Controller, adapter *wa.Adapter) *api.Directory {
	return api.NewDirectory(ctrl, adapter)
}

func registerLifecycle(
	lc fx.Lifecycle,
	ctrl *lifecycle.Controller,
	pipe *pipeline.Pipeline,
	lk *lock.Lock,
	_ *api.Query,
	_ *api.Sender,
	_ *api.Directory,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Pipeline first so no forwarded event is lost between the
			// controller attaching its handler and the consumer loop
			// coming up.
			pipe.Start(context.Background())
			if err := ctrl.Start(context.Background()); err != nil {
				return err
			}
			logger.Info("daemon started")
			return nil
		},
		OnStop: func(_ context.Context) error {
			ctrl.Stop()
			pipe.Stop()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
