package telemetry

import (
	"context"
	"log/slog"
	"sort"

	checkout "github.com/aprskavec/stripe-framer"
)

// SlogSink writes telemetry as structured log records
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink. A nil logger uses slog.Default().
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) CaptureException(ctx context.Context, err error, report checkout.ExceptionReport) {
	attrs := []any{slog.Any("error", err)}
	if kind := checkout.KindOf(err); kind != "" {
		attrs = append(attrs, slog.String("kind", string(kind)))
	}
	if len(report.Tags) > 0 {
		tags := make(map[string]interface{}, len(report.Tags))
		for k, v := range report.Tags {
			tags[k] = v
		}
		attrs = append(attrs, group("tags", tags))
	}
	if len(report.Extra) > 0 {
		attrs = append(attrs, group("extra", report.Extra))
	}
	s.logger.ErrorContext(ctx, "checkout exception", attrs...)
}

func (s *SlogSink) AddBreadcrumb(ctx context.Context, crumb checkout.Breadcrumb) {
	attrs := []any{slog.String("category", crumb.Category)}
	if len(crumb.Data) > 0 {
		attrs = append(attrs, group("data", crumb.Data))
	}
	s.logger.Log(ctx, slogLevel(crumb.Level), crumb.Message, attrs...)
}

func slogLevel(level checkout.Level) slog.Level {
	switch level {
	case checkout.LevelError:
		return slog.LevelError
	case checkout.LevelWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// group renders a map as a slog group with sorted keys
func group(name string, values map[string]interface{}) slog.Attr {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]any, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, values[k]))
	}
	return slog.Group(name, attrs...)
}
