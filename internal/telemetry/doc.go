// Package telemetry provides OpenTelemetry instrumentation for wardlog.
//
// Traces and metrics are exported over OTLP (gRPC or HTTP/protobuf) to a
// collector. Telemetry is disabled by default; when it is disabled or an
// exporter cannot be created, Tracer and Meter fall back to the global
// no-op providers and the service keeps running.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx, span := tel.Tracer("wardlog/dispatch").Start(ctx, "dispatch.append")
//	defer span.End()
//
// # Testing
//
// NewTestTelemetry records spans and metrics in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	// ... exercise code using tt.Tracer(...)
//	tt.AssertSpanExists(t, "dispatch.append")
package telemetry
