// Package observability provides a metrics extension that records
// gate-wide lifecycle metrics via OpenTelemetry.
//
// Register it like any other extension:
//
//	g := gate.New[string](cfg,
//	    gate.WithExtensions(observability.NewMetricsExtension()),
//	)
//
// Per-execution duration metrics live in the middleware package
// ([middleware.Metrics]); this extension covers the queue-level view:
// admissions, outcomes, queue-wait latency, and breaker transitions.
package observability
