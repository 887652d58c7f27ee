package observability

import (
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/audiopulse/internal/errors"
)

// ComponentReporter identifies error reporter errors
const ComponentReporter = "error-reporter"

// reportedCategories are the categories forwarded to Sentry. Validation and
// configuration errors are user input and stay local.
var reportedCategories = map[errors.ErrorCategory]struct{}{
	errors.CategoryAudio:       {},
	errors.CategoryAudioSource: {},
	errors.CategoryBuffer:      {},
	errors.CategorySystem:      {},
	errors.CategoryResource:    {},
	errors.CategoryNetwork:     {},
}

// ReporterOptions configures an ErrorReporter
type ReporterOptions struct {
	DSN         string
	Environment string

	// Transport replaces the HTTP transport, used by tests
	Transport sentry.Transport
}

// ErrorReporter forwards enhanced errors to Sentry on its own hub, leaving
// the global Sentry client untouched.
type ErrorReporter struct {
	client *sentry.Client
	hub    *sentry.Hub
	closed atomic.Bool
}

// NewErrorReporter creates a reporter. Events carry no user or host identity.
func NewErrorReporter(opts ReporterOptions) (*ErrorReporter, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              opts.DSN,
		Environment:      opts.Environment,
		Transport:        opts.Transport,
		SampleRate:       1.0,
		AttachStacktrace: false,
		BeforeSend:       scrubEvent,
	})
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentReporter).
			Category(errors.CategoryConfiguration).
			Context("operation", "create_sentry_client").
			Build()
	}

	return &ErrorReporter{
		client: client,
		hub:    sentry.NewHub(client, sentry.NewScope()),
	}, nil
}

// Hook returns an error hook that reports errors of the forwarded categories
func (r *ErrorReporter) Hook() errors.ErrorHook {
	return func(ee *errors.EnhancedError) {
		if _, ok := reportedCategories[ee.Category]; !ok {
			return
		}
		r.Capture(ee)
	}
}

// Capture sends ee with its component, category and context attached
func (r *ErrorReporter) Capture(ee *errors.EnhancedError) {
	if ee == nil || r.closed.Load() {
		return
	}

	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", ee.GetCategory())
		if ctx := ee.GetContext(); len(ctx) > 0 {
			scope.SetContext("error", sentry.Context(ctx))
		}
		r.hub.CaptureException(ee)
	})
}

// Flush waits up to timeout for queued events to be delivered
func (r *ErrorReporter) Flush(timeout time.Duration) bool {
	return r.client.Flush(timeout)
}

// Close stops reporting and releases the transport. Later captures are dropped.
func (r *ErrorReporter) Close() {
	if r.closed.Swap(true) {
		return
	}
	r.client.Close()
}

func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Request = nil
	return event
}
