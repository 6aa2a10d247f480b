package port

import (
	"context"
	"time"
)

// ReportCache stores computed reports with a time-to-live.
// Values are JSON-encoded by implementations.
type ReportCache interface {
	// Get decodes the cached value into dest. ok is false on a miss or expiry.
	Get(ctx context.Context, key string, dest any) (ok bool, err error)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}
