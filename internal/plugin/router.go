package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nsqio/go-nsq"
	"go.opentelemetry.io/otel/attribute"

	"github.com/emberhook/emberhook/internal/logging"
	"github.com/emberhook/emberhook/internal/metrics"
	"github.com/emberhook/emberhook/internal/tracing"
)

// Router consumes queued invocations and calls the matching plugin handler.
// Handler failures are terminal at this boundary: they are logged and counted
// but never requeued and never affect sibling invocations. Best-effort,
// single-attempt semantics.
type Router struct {
	registry *Registry
	logger   *logging.Logger
	timeout  time.Duration
}

func NewRouter(registry *Registry, logger *logging.Logger, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Router{registry: registry, logger: logger, timeout: timeout}
}

// HandleMessage implements nsq.Handler. It always returns nil: a bad payload
// or handler failure must not be redelivered by NSQ.
func (r *Router) HandleMessage(m *nsq.Message) error {
	var inv Invocation
	if err := json.Unmarshal(m.Body, &inv); err != nil {
		r.logger.Plain().WithError(err).Error("bad invocation payload")
		return nil
	}

	ctx := tracing.ExtractTraceFromNSQ(context.Background(), inv.TraceHeaders)
	ctx, span := tracing.StartSpan(ctx, "plugin.invoke",
		attribute.String("invocation_id", inv.InvocationID),
		attribute.String("org_id", inv.OrgID),
		attribute.String("plugin", inv.Slug),
		attribute.String("event_type", inv.EventType),
	)
	defer span.End()

	r.Invoke(ctx, inv)
	return nil
}

// Invoke resolves the plugin and runs its SendEvent action. The outcome is
// recorded in logs and metrics; errors do not propagate to the caller.
func (r *Router) Invoke(ctx context.Context, inv Invocation) {
	def, ok := r.registry.Get(inv.Slug)
	if !ok {
		// Installation outlived the plugin catalog; nothing to run.
		r.logger.WithContext(ctx).WithOrg(inv.OrgID).WithPlugin(inv.Slug).
			Warn("invocation for unregistered plugin skipped")
		metrics.RecordPluginInvocation(inv.Slug, "skipped")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := r.safeSend(ctx, def, Context{
		Config: inv.Config,
		Input:  Input{Event: inv.EventType, Data: inv.Payload},
	})
	latency := time.Since(start)

	entry := r.logger.WithContext(ctx).
		WithOrg(inv.OrgID).
		WithPlugin(inv.Slug).
		WithEvent(inv.EventID).
		WithEventType(inv.EventType).
		WithField("latency_ms", latency.Milliseconds())
	if err != nil {
		tracing.SetSpanError(ctx, err)
		entry.WithError(err).Error("plugin invocation failed")
		metrics.RecordPluginInvocation(inv.Slug, "error")
		return
	}
	entry.Info("plugin invocation ok")
	metrics.RecordPluginInvocation(inv.Slug, "ok")
}

// safeSend calls the handler and converts panics into errors so one broken
// provider cannot take down the worker.
func (r *Router) safeSend(ctx context.Context, def Definition, pc Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("plugin %s panicked: %v", def.Slug, rec)
		}
	}()
	return def.Handler.SendEvent(ctx, pc)
}
