// Package telemetry wraps OpenTelemetry SDK initialization, giving the
// execution core a single TracerProvider/MeterProvider configuration
// point. When telemetry is disabled, noop implementations are used and
// no external service is contacted.
package telemetry
