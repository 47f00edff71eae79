// Package reporting sends unexpected errors and recovered panics to Sentry.
//
// Reporting is off unless sentry.dsn is configured; every function here is
// a no-op until Init succeeds with a DSN.
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/moonseer/church-planner-core/internal/infrastructure/config"
)

// flushTimeout bounds how long Flush waits for queued events at shutdown.
const flushTimeout = 2 * time.Second

// Init configures the global Sentry client. It reports whether reporting
// is enabled; an empty DSN is not an error.
func Init(cfg config.SentryConfig, environment, release string) (bool, error) {
	if cfg.DSN == "" {
		return false, nil
	}
	if err := sentry.Init(clientOptions(cfg, environment, release)); err != nil {
		return false, fmt.Errorf("initialising sentry: %w", err)
	}
	return true, nil
}

func clientOptions(cfg config.SentryConfig, environment, release string) sentry.ClientOptions {
	rate := cfg.SampleRate
	if rate <= 0 || rate > 1 {
		rate = 1
	}
	return sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      environment,
		Release:          release,
		SampleRate:       rate,
		AttachStacktrace: true,
		// Request bodies may carry passwords.
		SendDefaultPII: false,
	}
}

// Flush waits for buffered events to be delivered.
func Flush() {
	sentry.Flush(flushTimeout)
}

// hubFrom prefers a request-scoped hub when one is attached to ctx.
func hubFrom(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

// CaptureError reports err with optional tags such as request_id.
func CaptureError(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	hubFrom(ctx).WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hubFrom(ctx).CaptureException(err)
	})
}

// CapturePanic reports a recovered panic value with its stack.
func CapturePanic(ctx context.Context, recovered any, stack []byte, tags map[string]string) {
	hubFrom(ctx).WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		scope.SetExtra("stack", string(stack))
		hubFrom(ctx).CaptureMessage(fmt.Sprintf("panic: %v", recovered))
	})
}
