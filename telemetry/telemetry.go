// Package telemetry provides checkout.TelemetrySink implementations backed by
// structured logging and OpenTelemetry tracing.
package telemetry

import (
	"context"

	checkout "github.com/aprskavec/stripe-framer"
)

// Nop discards all telemetry
type Nop = checkout.NopTelemetry

// multi fans telemetry out to several sinks
type multi []checkout.TelemetrySink

// Multi returns a sink that forwards to every non-nil sink in order
func Multi(sinks ...checkout.TelemetrySink) checkout.TelemetrySink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return Nop{}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (m multi) CaptureException(ctx context.Context, err error, report checkout.ExceptionReport) {
	for _, s := range m {
		s.CaptureException(ctx, err, report)
	}
}

func (m multi) AddBreadcrumb(ctx context.Context, crumb checkout.Breadcrumb) {
	for _, s := range m {
		s.AddBreadcrumb(ctx, crumb)
	}
}
