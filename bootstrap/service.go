// Package bootstrap assembles the engine from configuration: backing
// stores, telemetry, the zone index, fare table, roster, and dispatcher.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/gatiride/gati-platform/engine/config"
	"github.com/gatiride/gati-platform/engine/database"
	"github.com/gatiride/gati-platform/engine/dispatch"
	"github.com/gatiride/gati-platform/engine/driver"
	"github.com/gatiride/gati-platform/engine/fare"
	"github.com/gatiride/gati-platform/engine/health"
	"github.com/gatiride/gati-platform/engine/logging"
	"github.com/gatiride/gati-platform/engine/stream"
	"github.com/gatiride/gati-platform/engine/telemetry"
	"github.com/gatiride/gati-platform/engine/zone"
)

// Service holds all initialized engine components.
type Service struct {
	Config      *config.Config
	Logger      *logging.Logger
	Connections *database.Connections

	Zones      *zone.Index
	Rules      *fare.Table
	Calculator *fare.Calculator
	QuoteCache *fare.QuoteCache
	Roster     *driver.Roster
	Drivers    driver.Repository
	Dispatcher *dispatch.Dispatcher
	Applier    *stream.Applier
	Checker    *health.Checker

	Metrics *telemetry.EngineMetrics
	tracing *telemetry.TracingProvider
	metrics *telemetry.MetricsProvider
}

// Options configures which optional components to start.
type Options struct {
	// UseSQL backs the dispatch repository with SQL Server instead of the
	// in-memory roster. The roster still tracks stream state either way.
	UseSQL bool
	// UseRedis enables the Redis quote cache.
	UseRedis bool
	// UseTelemetry starts OTLP exporters.
	UseTelemetry bool
	// RunMigrations applies the roster schema on startup (SQL only).
	RunMigrations bool
}

// DefaultOptions enables every optional component.
func DefaultOptions() Options {
	return Options{
		UseSQL:        true,
		UseRedis:      true,
		UseTelemetry:  true,
		RunMigrations: true,
	}
}

// Initialize builds a fully wired engine.
func Initialize(ctx context.Context, serviceName string, opts Options) (*Service, error) {
	cfg, err := config.Load(serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel).WithComponent(serviceName)
	logger.Info("starting service", "environment", cfg.Environment, "version", cfg.Version)

	svc := &Service{
		Config: cfg,
		Logger: logger,
	}

	if opts.UseTelemetry && cfg.OTLPEndpoint != "" {
		if err := svc.initTelemetry(ctx); err != nil {
			return nil, err
		}
	}

	if err := svc.initStores(ctx, opts); err != nil {
		svc.Close(ctx)
		return nil, err
	}

	svc.initEngine()
	svc.initHealth()

	return svc, nil
}

// MustInitialize initializes the service and panics on error.
func MustInitialize(ctx context.Context, serviceName string, opts Options) *Service {
	svc, err := Initialize(ctx, serviceName, opts)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize service: %v", err))
	}
	return svc
}

func (s *Service) initTelemetry(ctx context.Context) error {
	cfg := s.Config

	tracing, err := telemetry.NewTracingProvider(ctx, telemetry.TracingConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.OTLPEndpoint,
		SampleRate:     1.0,
		Insecure:       cfg.IsDevelopment(),
	})
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	s.tracing = tracing

	metricsProvider, err := telemetry.NewMetricsProvider(ctx, telemetry.MetricsConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.IsDevelopment(),
	})
	if err != nil {
		return fmt.Errorf("failed to init metrics: %w", err)
	}
	s.metrics = metricsProvider

	engineMetrics, err := telemetry.NewEngineMetrics(metricsProvider.Meter())
	if err != nil {
		return fmt.Errorf("failed to create engine metrics: %w", err)
	}
	s.Metrics = engineMetrics

	return nil
}

func (s *Service) initStores(ctx context.Context, opts Options) error {
	cfg := *s.Config
	if !opts.UseSQL {
		cfg.SQLConnectionString = ""
	}
	if !opts.UseRedis {
		cfg.RedisAddr = ""
	}

	conns, err := database.NewConnections(ctx, &cfg)
	if err != nil {
		return err
	}
	s.Connections = conns

	if conns.SQL != nil && opts.RunMigrations {
		migrator := database.NewMigrator(conns.SQL)
		driver.RegisterMigrations(migrator)
		applied, err := migrator.Up(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		if applied > 0 {
			s.Logger.Info("applied migrations", "count", applied)
		}
	}

	if conns.Redis != nil {
		s.QuoteCache = fare.NewQuoteCache(conns.Redis.Client(), s.Config.QuoteCacheTTL)
	}
	return nil
}

func (s *Service) initEngine() {
	cfg := s.Config
	audit := logging.NewAuditLogger(s.Logger)

	s.Zones = zone.NewIndex(audit)
	s.Rules = fare.NewTable(audit)
	s.Calculator = fare.NewCalculator(fare.Policy{
		MinRentalHours:   cfg.MinRentalHours,
		NightWindowStart: cfg.NightWindowStart,
		NightWindowEnd:   cfg.NightWindowEnd,
		PlatformFeeFlat:  cfg.PlatformFeeFlat,
		PlatformFeePct:   cfg.PlatformFeePct,
		Currency:         "INR",
	})

	rosterConfig := driver.DefaultRosterConfig()
	rosterConfig.LocationStaleness = cfg.LocationStaleness
	s.Roster = driver.NewRoster(rosterConfig, audit)
	s.Applier = stream.NewApplier(s.Roster, s.Logger)

	// SQL, when configured, is the dispatch source of truth; the roster
	// keeps serving stream state and the webhook either way.
	s.Drivers = s.Roster
	if s.Connections.SQL != nil {
		s.Drivers = driver.NewSQLRepository(s.Connections.SQL.DB(), rosterConfig.LocationStaleness)
	}

	s.Dispatcher = dispatch.NewDispatcher(s.Zones, s.Rules, s.Calculator, s.Drivers, dispatch.Config{
		SearchRadiusKm:   cfg.SearchRadiusKm,
		MaxClaimAttempts: cfg.MaxClaimAttempts,
	}, s.Logger, s.Metrics)
}

func (s *Service) initHealth() {
	s.Checker = health.NewChecker(s.Config.Version)
	s.Checker.AddCheck("zones", health.ZonesLoadedCheck(s.Zones), true)
	s.Checker.AddCheck("fares", health.FareRulesCheck(s.Rules), true)
	if s.Connections.SQL != nil {
		s.Checker.AddCheck("sql", health.DatabaseCheck(s.Connections.SQL.DB()), true)
	}
	if s.Connections.Redis != nil {
		s.Checker.AddCheck("redis", health.RedisCheck(s.Connections.Redis.Client()), false)
	}
}

// StreamConsumer builds the driver-state stream consumer, or nil when
// Event Hubs is not configured.
func (s *Service) StreamConsumer(ctx context.Context) (*stream.Consumer, error) {
	cfg := s.Config
	if cfg.EventHubsNamespace == "" && cfg.StorageConnectionString == "" {
		return nil, nil
	}

	return stream.NewConsumer(ctx, stream.ConsumerConfig{
		Namespace:               cfg.EventHubsNamespace,
		EventHubName:            cfg.EventHubName,
		ConsumerGroup:           cfg.EventHubsConsumerGroup,
		StorageConnectionString: cfg.StorageConnectionString,
		StorageContainerName:    cfg.CheckpointContainer,
	}, s.Applier, s.Logger)
}

// Tracer returns the tracer, or nil when tracing is disabled.
func (s *Service) Tracer() *telemetry.TracingProvider {
	return s.tracing
}

// Close releases every resource the service holds.
func (s *Service) Close(ctx context.Context) {
	if s.Connections != nil {
		s.Connections.Close()
	}
	if s.tracing != nil {
		if err := s.tracing.Shutdown(ctx); err != nil {
			s.Logger.WithError(err).Warn("tracing shutdown failed")
		}
	}
	if s.metrics != nil {
		if err := s.metrics.Shutdown(ctx); err != nil {
			s.Logger.WithError(err).Warn("metrics shutdown failed")
		}
	}
}
