// Package chat keeps the local conversation store in step with the backend:
// paging the conversation list, loading histories on demand and running the
// optimistic send pipeline.
package chat

import (
	"log/slog"
	"time"

	"github.com/hrygo/supervaani/metrics"
)

// DefaultPageSize is the number of conversation summaries fetched per page.
const DefaultPageSize = 10

// Options configures the components of this package.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Exporter
	// Now stamps locally created messages. Defaults to time.Now.
	Now func() time.Time
	// OnChange is called after every store mutation made through a Client.
	OnChange func()
	PageSize int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	return o
}
