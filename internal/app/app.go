package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"macdbot/internal/agent"
	"macdbot/internal/config"
	"macdbot/internal/logger"
	"macdbot/internal/market"
	livehttp "macdbot/internal/transport/http/live"
)

// App wires the configured components and runs them until cancelled.
type App struct {
	cfg      *config.Config
	agent    *agent.Agent
	source   market.Source
	liveHTTP *livehttp.Server
}

// NewApp builds the application from config without starting anything.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run serves the control surface and, when auto start is configured,
// starts the trading loop. Blocks until ctx is cancelled or a component
// fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	if a.liveHTTP != nil {
		group.Go(func() error {
			logger.Infof("control surface listening on %s", a.liveHTTP.Addr())
			if err := a.liveHTTP.Start(ctx); err != nil {
				return fmt.Errorf("live http server error: %w", err)
			}
			return nil
		})
	}

	if a.cfg.Trading.AutoStart {
		if err := a.agent.Start(ctx); err != nil {
			return fmt.Errorf("start agent: %w", err)
		}
	}

	group.Go(func() error {
		<-ctx.Done()
		a.agent.Stop()
		if a.source != nil {
			_ = a.source.Close()
		}
		return nil
	})

	return group.Wait()
}

// Agent exposes the agent handle (for testing and replay harnesses).
func (a *App) Agent() *agent.Agent {
	if a == nil {
		return nil
	}
	return a.agent
}
