package logging

import (
	"context"
	"log/slog"

	"github.com/nickh0112/insta-captions/internal/services"
)

// WithContext returns the logger enriched with identifiers carried by ctx.
// Unannotated contexts return the logger unchanged.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	if ctx == nil {
		return logger
	}

	attrs := make([]any, 0, 3)
	if jobID, ok := services.JobIDFromContext(ctx); ok {
		attrs = append(attrs, slog.String(FieldJobID, jobID))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		attrs = append(attrs, slog.String(FieldStage, stage))
	}
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		attrs = append(attrs, slog.String(FieldRequestID, requestID))
	}
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(attrs...)
}
