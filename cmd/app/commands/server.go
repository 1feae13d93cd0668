package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/courier/internal/app"
	"github.com/allisson/courier/internal/config"
	outboxUseCase "github.com/allisson/courier/internal/outbox/usecase"
	schedulerUseCase "github.com/allisson/courier/internal/scheduler/usecase"
)

const minShutdownTimeout = 30 * time.Second

// RunServer starts the HTTP server, the metrics server, the outbox deliverer and the task
// scheduler, then blocks until SIGINT/SIGTERM or until one of them fails. Shutdown stops the
// HTTP servers first so no new work is accepted, then drains the deliverer and the scheduler.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server",
		slog.String("version", version),
		slog.String("worker_name", cfg.WorkerName),
	)

	defer closeContainer(container, logger)

	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	var deliverer *outboxUseCase.Deliverer
	if cfg.OutboxEnabled {
		deliverer, err = container.Deliverer()
		if err != nil {
			return fmt.Errorf("failed to initialize outbox deliverer: %w", err)
		}
	}

	var scheduler *schedulerUseCase.Scheduler
	if cfg.SchedulerEnabled {
		scheduler, err = container.Scheduler()
		if err != nil {
			return fmt.Errorf("failed to initialize scheduler: %w", err)
		}
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Background workers outlive the signal: they are stopped explicitly so in-flight work
	// can finish within the shutdown timeout.
	workCtx := context.WithoutCancel(ctx)

	if scheduler != nil {
		if err := scheduler.Start(workCtx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	components := []component{{name: "api server shutdown", stop: server.Shutdown}}
	if metricsServer != nil {
		components = append(components, component{name: "metrics server shutdown", stop: metricsServer.Shutdown})
	}
	if deliverer != nil {
		components = append(components, component{name: "outbox deliverer stop", stop: deliverer.Stop})
	}
	if scheduler != nil {
		components = append(components, component{name: "scheduler stop", stop: scheduler.Stop})
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(gctx); err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		g.Go(func() error {
			if err := metricsServer.Start(gctx); err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}

	if deliverer != nil {
		g.Go(func() error {
			if err := deliverer.Start(workCtx); err != nil {
				return fmt.Errorf("outbox deliverer error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info("shutdown signal received")
		} else {
			logger.Error("component failed, initiating shutdown")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
		defer shutdownCancel()

		return shutdown(shutdownCtx, components)
	})

	return g.Wait()
}

// component is a running part of the server, stopped in registration order.
type component struct {
	name string
	stop func(ctx context.Context) error
}

// shutdown stops every component in order, collecting the failures.
func shutdown(ctx context.Context, components []component) error {
	var shutdownErrors []error
	for _, c := range components {
		if err := c.stop(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	return errors.Join(shutdownErrors...)
}

// shutdownTimeout leaves the scheduler its full grace period plus time for the rest.
func shutdownTimeout(cfg *config.Config) time.Duration {
	timeout := cfg.SchedulerShutdownMaxWait + 5*time.Second
	if timeout < minShutdownTimeout {
		return minShutdownTimeout
	}
	return timeout
}
