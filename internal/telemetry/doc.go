// Package telemetry wires OpenTelemetry tracing and metrics for questd.
//
// Spans and metrics are exported over OTLP (gRPC by default, HTTP when the
// endpoint carries an http:// or https:// scheme). When telemetry is
// disabled, Tracer and Meter fall back to the global no-op providers so
// instrumented code never needs to check.
//
//	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg, version))
//	defer tel.Shutdown(ctx)
//
//	ctx, span := tel.Tracer("questd.planner").Start(ctx, "planner.generate")
//	defer span.End()
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
