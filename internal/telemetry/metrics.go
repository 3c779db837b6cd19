package telemetry

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/detectors/aws/ecs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/google/uuid"

	"ksb-content-proxy/config"
)

type MetricsProvider struct {
	ProxyMetrics *ProxyMetrics
	FetchMetrics *FetchMetrics
	Close        func()
}

// ProxyMetrics counts responses per endpoint ("article", "rss").
type ProxyMetrics struct {
	Served   func(endpoint string)
	Rejected func(endpoint, reason string)
	Failed   func(endpoint string)
}

type FetchMetrics struct {
	CacheHit     func(kind string)
	CacheMiss    func(kind string)
	UpstreamFail func(kind string)
}

func NoopProxyMetrics() *ProxyMetrics {
	return &ProxyMetrics{
		Served:   func(string) {},
		Rejected: func(string, string) {},
		Failed:   func(string) {},
	}
}

func NoopFetchMetrics() *FetchMetrics {
	return &FetchMetrics{
		CacheHit:     func(string) {},
		CacheMiss:    func(string) {},
		UpstreamFail: func(string) {},
	}
}

func SetupMetrics(ctx context.Context, cfg *config.Config) *MetricsProvider {
	metricsProvider := &MetricsProvider{
		ProxyMetrics: NoopProxyMetrics(),
		FetchMetrics: NoopFetchMetrics(),
		Close:        func() {},
	}
	if !cfg.TelemetrySettings.Enabled {
		return metricsProvider
	}

	r, err := newResource(cfg)
	if err != nil {
		slog.Error("failed to get resource.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	exporter, err := newMetricExporter(ctx, cfg.TelemetrySettings)
	if err != nil {
		slog.Error("failed to get metric exporter.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	meterProvider := newMeterProvider(exporter, r)
	otel.SetMeterProvider(meterProvider)
	metricsProvider.Close = func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			slog.Error("failed to shutdown metrics provider.", slog.String("err", err.Error()))
		}
	}

	meter := otel.Meter(cfg.ServiceName)
	if err := registerCounters(ctx, meter, cfg.ServiceName, metricsProvider); err != nil {
		slog.Error("failed to create telemetry counters.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	return metricsProvider
}

func registerCounters(ctx context.Context, meter metric.Meter, prefix string, mp *MetricsProvider) error {
	served, err := meter.Int64Counter(prefix+".proxy.served",
		metric.WithDescription("The number of proxy requests answered with 200"),
		metric.WithUnit("{requests}"))
	if err != nil {
		return err
	}
	rejected, err := meter.Int64Counter(prefix+".proxy.rejected",
		metric.WithDescription("The number of proxy requests rejected before any outbound fetch"),
		metric.WithUnit("{requests}"))
	if err != nil {
		return err
	}
	failed, err := meter.Int64Counter(prefix+".proxy.failed",
		metric.WithDescription("The number of proxy requests that failed upstream"),
		metric.WithUnit("{requests}"))
	if err != nil {
		return err
	}
	mp.ProxyMetrics = &ProxyMetrics{
		Served: func(endpoint string) {
			served.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
		},
		Rejected: func(endpoint, reason string) {
			rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint),
				attribute.String("reason", reason)))
		},
		Failed: func(endpoint string) {
			failed.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
		},
	}

	hit, err := meter.Int64Counter(prefix+".fetch.cache.hit",
		metric.WithDescription("The number of documents served from the document cache"),
		metric.WithUnit("{documents}"))
	if err != nil {
		return err
	}
	miss, err := meter.Int64Counter(prefix+".fetch.cache.miss",
		metric.WithDescription("The number of documents fetched from the source site"),
		metric.WithUnit("{documents}"))
	if err != nil {
		return err
	}
	upstreamFail, err := meter.Int64Counter(prefix+".fetch.fail",
		metric.WithDescription("The number of outbound fetches that failed"),
		metric.WithUnit("{documents}"))
	if err != nil {
		return err
	}
	mp.FetchMetrics = &FetchMetrics{
		CacheHit: func(kind string) {
			hit.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
		},
		CacheMiss: func(kind string) {
			miss.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
		},
		UpstreamFail: func(kind string) {
			upstreamFail.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
		},
	}

	return nil
}

func newResource(cfg *config.Config) (*resource.Resource, error) {
	ecsResource, err := ecs.NewResourceDetector().Detect(context.Background())
	if err != nil {
		slog.Error("ecs detection failed", slog.String("err", err.Error()))
	}
	mergedResource, err := resource.Merge(ecsResource, resource.Default())
	if err != nil {
		slog.Error("failed to merge resources", slog.String("err", err.Error()))
	}
	serviceId := uuid.New().String()
	if ecsResource != nil {
		if keyValue, found := ecsResource.Set().Value("container.id"); found {
			serviceId = keyValue.AsString()
		}
	}
	return resource.Merge(mergedResource,
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
			semconv.DeploymentEnvironment(cfg.Env),
			semconv.ServiceInstanceID(serviceId),
		))
}

func newMetricExporter(ctx context.Context, cfg *config.TelemetryConfig) (sdkmetric.Exporter, error) {
	return otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(cfg.CollectorUrl),
		otlpmetrichttp.WithInsecure())
}

func newMeterProvider(meterExporter sdkmetric.Exporter, r *resource.Resource) *sdkmetric.MeterProvider {
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(meterExporter)),
		sdkmetric.WithResource(r),
	)
}
