// Package trace wraps golang.org/x/net/trace for per-object operation
// tracing: New starts a trace and attaches it to a context, and Printf is a
// no-op unless the context carries an active trace.Trace.
package trace

import (
	"context"

	"golang.org/x/net/trace"
)

// Printf appends a formatted entry to the active trace.Trace carried by ctx,
// if any. It's always safe to call, including when tracing is disabled.
func Printf(ctx context.Context, format string, args ...interface{}) {
	if tr, ok := trace.FromContext(ctx); ok {
		tr.LazyPrintf(format, args...)
	}
}

// New starts a new trace.Trace of the given family/title and attaches it to
// the returned Context, mirroring trace.New's (family, title) convention for
// family names like "sync.observer" or "sync.duplicate".
func New(ctx context.Context, family, title string) (context.Context, func()) {
	var tr = trace.New(family, title)
	return trace.NewContext(ctx, tr), tr.Finish
}
