// Command engined runs the ride engine: zone resolution, fare quoting, and
// driver dispatch behind an HTTP API, fed by the driver-state stream.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/gatiride/gati-platform/engine/bootstrap"
	"github.com/gatiride/gati-platform/engine/httpapi"
	"github.com/gatiride/gati-platform/engine/telemetry"
)

const serviceName = "ride-engine"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.Initialize(ctx, serviceName, bootstrap.DefaultOptions())
	if err != nil {
		os.Stderr.WriteString("initialization failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer svc.Close(context.Background())

	api := httpapi.NewAPI(
		svc.Zones,
		svc.Rules,
		svc.Calculator,
		svc.QuoteCache,
		svc.Dispatcher,
		svc.Drivers,
		svc.Roster,
		svc.Applier,
		svc.Checker,
		svc.Logger,
	)

	router := httpapi.NewRouter(api, svc.Logger, tracerOrNil(svc.Tracer()))

	serverCfg := httpapi.ServerConfig{
		Port:            svc.Config.Port,
		ReadTimeout:     svc.Config.ReadTimeout,
		WriteTimeout:    svc.Config.WriteTimeout,
		IdleTimeout:     svc.Config.IdleTimeout,
		ShutdownTimeout: httpapi.DefaultServerConfig().ShutdownTimeout,
	}
	if svc.Config.RateLimitRPS > 0 {
		rl := httpapi.DefaultRateLimiterConfig()
		rl.RequestsPerSecond = svc.Config.RateLimitRPS
		rl.Burst = svc.Config.RateLimitBurst
		serverCfg.RateLimit = &rl
	}

	server := httpapi.NewServer(serverCfg, router, svc.Logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(ctx)
	})

	consumer, err := svc.StreamConsumer(ctx)
	if err != nil {
		svc.Logger.WithError(err).Error("stream consumer setup failed")
		os.Exit(1)
	}
	if consumer != nil {
		g.Go(func() error {
			return consumer.Run(ctx)
		})
	} else {
		svc.Logger.Info("driver-state stream not configured; webhook only")
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		svc.Logger.WithError(err).Error("service exited with error")
		os.Exit(1)
	}
}

func tracerOrNil(tp *telemetry.TracingProvider) trace.Tracer {
	if tp == nil {
		return nil
	}
	return tp.Tracer()
}
