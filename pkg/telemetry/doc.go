// Package telemetry provides logging, tracing and metrics for the project store.
//
// It wires zerolog for structured logs, OpenTelemetry for spans and a private
// Prometheus registry for counters and histograms behind a single Telemetry
// handle:
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// Store operations are wrapped with StartOperation, which opens a span named
// "store.<operation>", attaches a logger carrying the operation name and a
// unique op_id, and starts a timer:
//
//	op := tel.StartOperation(ctx, "insert_project", telemetry.AttrUserID.Int64(userID))
//	err := doWork(op.Ctx)
//	op.End(err)
//
// End records the outcome on the span, observes
// portfolio_store_operations_total and portfolio_store_operation_duration_seconds,
// and logs failures at error level. A nil *Telemetry is valid and only times
// the operation.
//
// Metrics can be served over HTTP with StartMetricsServer or written once in
// the Prometheus text format with Metrics.WriteText, which the CLI uses for
// --metrics-dump.
package telemetry
