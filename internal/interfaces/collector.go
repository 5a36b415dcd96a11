package interfaces

import (
	"context"
	"time"
)

// CollectResult is the raw outcome of one collection call
type CollectResult struct {
	Content     string
	ContentType string
	Title       string
	StatusCode  int
	SizeBytes   int64
	CapturedAt  time.Time
}

// Collector captures a content snapshot of a URL. Implementations may retry
// internally; callers guarantee at most one Collect call per task per run.
type Collector interface {
	Collect(ctx context.Context, url string) (*CollectResult, error)
}
