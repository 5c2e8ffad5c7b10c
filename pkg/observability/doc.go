// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing and health probes.
//
// # Structured Logging
//
// Logger wraps logrus with a JSON formatter:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithFields(map[string]interface{}{"group_id": 7}).Info("inheritance applied")
//
// Request-scoped loggers travel in the context:
//
//	observability.FromContext(ctx).WithError(err).Error("grant failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	checker.AddChecker("blob", blobStore)
//	observability.RegisterHealthRoutes(serveMux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer observability.ShutdownOTel(ctx, providers)
package observability
