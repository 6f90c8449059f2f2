package fetcher

import (
	"context"

	"github.com/google/uuid"

	"github.com/yamihome/yami/internal/logger"
)

type jobKey struct{}

// withJob tags ctx with a fresh job ID for log correlation.
func withJob(ctx context.Context) (context.Context, string) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return context.WithValue(ctx, jobKey{}, id.String()), id.String()
}

// JobID returns the job ID carried by ctx, if any.
func JobID(ctx context.Context) string {
	id, _ := ctx.Value(jobKey{}).(string)
	return id
}

func (f *Fetcher) logFor(ctx context.Context) *logger.ComponentLogger {
	if id := JobID(ctx); id != "" {
		return f.log.With(logger.Fields{"job_id": id})
	}
	return f.log
}
