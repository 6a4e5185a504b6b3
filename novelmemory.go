// Package novelmemory wires the layered working memory with its compression
// engine stack in one call.
//
// Usage:
//
//	import "github.com/BaSui01/novelmemory"
//
//	svc, err := novelmemory.New(config.DefaultConfig(), logger)
//	defer svc.Close(ctx)
//	svc.Manager.UpdateMemory(ctx, memory.MemoryUpdate{...})
//
// The engine stack is LocalEngine, then the optional Redis cache, the
// optional rate limiter and the optional OpenTelemetry instrumentation.
package novelmemory

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/novelmemory/compression"
	"github.com/BaSui01/novelmemory/config"
	"github.com/BaSui01/novelmemory/internal/cache"
	"github.com/BaSui01/novelmemory/internal/metrics"
	"github.com/BaSui01/novelmemory/internal/telemetry"
	"github.com/BaSui01/novelmemory/memory"
	"github.com/BaSui01/novelmemory/tokenizer"
)

// Service bundles the memory manager with its background maintainer.
type Service struct {
	Manager    *memory.Manager
	Maintainer *memory.Maintainer
	Engine     memory.CompressionEngine

	cache     *cache.Manager
	telemetry *telemetry.Providers
	logger    *zap.Logger
}

// Option configures [New].
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	engine     memory.CompressionEngine
	telemetry  []telemetry.Option
}

// WithRegisterer registers Prometheus metrics on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithEngine replaces the LocalEngine at the bottom of the stack.
func WithEngine(e memory.CompressionEngine) Option {
	return func(o *options) { o.engine = e }
}

// WithSpanExporter exports engine spans to exp synchronously.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.telemetry = append(o.telemetry, telemetry.WithSpanExporter(exp)) }
}

// WithMetricReader reads engine metrics through r.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.telemetry = append(o.telemetry, telemetry.WithMetricReader(r)) }
}

// WithoutGlobalTelemetry keeps the OpenTelemetry providers out of the otel globals.
func WithoutGlobalTelemetry() Option {
	return func(o *options) { o.telemetry = append(o.telemetry, telemetry.WithoutGlobal()) }
}

// New builds a Service from cfg. A nil cfg uses [config.DefaultConfig].
// An unreachable Redis disables the engine cache instead of failing.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	svc := &Service{logger: logger.With(zap.String("component", "novelmemory"))}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace, o.registerer, logger)
	}

	var engine compression.Engine = o.engine
	if engine == nil {
		engine = compression.NewLocalEngine(compression.LocalConfig{
			SummaryMaxLength: cfg.Engine.SummaryMaxLength,
		}, logger)
	}

	if cfg.Engine.CacheEnabled {
		cm, err := cache.NewManager(cache.FromRedisConfig(cfg.Redis, cfg.Engine.CacheTTL), logger)
		if err != nil {
			svc.logger.Warn("engine cache unavailable, continuing without cache", zap.Error(err))
		} else {
			svc.cache = cm
			var cacheOpts []compression.CachedOption
			if collector != nil {
				cacheOpts = append(cacheOpts, compression.WithCacheObserver(collector))
			}
			engine = compression.NewCachedEngine(engine, cm, cfg.Engine.CacheTTL, logger, cacheOpts...)
		}
	}

	if cfg.Engine.RateLimitRPS > 0 {
		engine = compression.NewRateLimitedEngine(engine, cfg.Engine.RateLimitRPS, cfg.Engine.RateLimitBurst, logger)
	}

	if cfg.Engine.Instrumented {
		providers, err := telemetry.Init(cfg.Telemetry, logger, o.telemetry...)
		if err != nil {
			svc.closeCache()
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
		svc.telemetry = providers

		ie, err := compression.NewInstrumentedEngine(engine, providers.Tracer(), providers.Meter())
		if err != nil {
			_ = svc.Close(context.Background())
			return nil, fmt.Errorf("instrument engine: %w", err)
		}
		engine = ie
	}

	svc.Engine = engine
	svc.Manager = memory.NewManager(cfg.Memory, engine, logger,
		memory.WithManagerMetrics(collector),
		memory.WithTokenizer(tokenizer.ForModel(cfg.Engine.TokenizerModel)),
	)
	svc.Maintainer = memory.NewMaintainer(svc.Manager, logger)

	svc.logger.Info("novelmemory ready",
		zap.Bool("cache", svc.cache != nil),
		zap.Bool("rate_limited", cfg.Engine.RateLimitRPS > 0),
		zap.Bool("instrumented", svc.telemetry != nil),
		zap.Bool("metrics", collector != nil),
	)
	return svc, nil
}

// Start launches background maintenance when an interval is configured.
func (s *Service) Start(ctx context.Context) {
	s.Maintainer.Start(ctx)
}

// Close stops maintenance and releases the cache and telemetry providers.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	if s.Maintainer != nil {
		s.Maintainer.Stop()
	}
	if err := s.closeCache(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) closeCache() error {
	if s.cache == nil {
		return nil
	}
	err := s.cache.Close()
	s.cache = nil
	return err
}
