package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/emberhook/emberhook/internal/delivery"
	"github.com/emberhook/emberhook/internal/event"
	"github.com/emberhook/emberhook/internal/logging"
	"github.com/emberhook/emberhook/internal/metrics"
	"github.com/emberhook/emberhook/internal/plugin"
	"github.com/emberhook/emberhook/internal/tracing"
	"github.com/emberhook/emberhook/internal/webhook"
)

// UnknownEventError reports a dispatch for an event type outside the
// registry vocabulary.
type UnknownEventError struct {
	Type string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Type)
}

// NotFoundError reports a replay request for a delivery the organization
// does not own, or that does not exist.
type NotFoundError struct {
	DeliveryID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("delivery %s not found", e.DeliveryID)
}

// ReplayStore is the ledger surface replay needs: the snapshot behind a past
// delivery and a way to enqueue a fresh row referencing it.
// *delivery.PostgresLedger satisfies it.
type ReplayStore interface {
	GetReplaySource(ctx context.Context, deliveryID string) (delivery.ReplaySource, error)
	CreateReplay(ctx context.Context, eventID, webhookID, replayOf, reason string) (string, error)
}

// Result summarizes one dispatch: the recorded event and how many jobs were
// enqueued. A duplicate idempotency key yields the original event id with
// zero jobs.
type Result struct {
	EventID     string `json:"event_id"`
	Duplicate   bool   `json:"duplicate,omitempty"`
	WebhookJobs int    `json:"webhook_jobs"`
	PluginJobs  int    `json:"plugin_jobs"`
}

// Dispatcher records events and fans them out. Each matching target gets its
// own queue message carrying a snapshot of the target's routing data, so a
// slow or broken endpoint never blocks its siblings.
type Dispatcher struct {
	registry *event.Registry
	webhooks webhook.Store
	plugins  *plugin.Service
	ledger   delivery.Ledger
	events   EventStore
	queue    delivery.Publisher
	replay   ReplayStore
	logger   *logging.Logger

	deliveriesTopic string
	pluginTopic     string

	now func() time.Time
}

func NewDispatcher(
	registry *event.Registry,
	webhooks webhook.Store,
	plugins *plugin.Service,
	ledger delivery.Ledger,
	events EventStore,
	queue delivery.Publisher,
	replay ReplayStore,
	logger *logging.Logger,
	deliveriesTopic, pluginTopic string,
) *Dispatcher {
	return &Dispatcher{
		registry:        registry,
		webhooks:        webhooks,
		plugins:         plugins,
		ledger:          ledger,
		events:          events,
		queue:           queue,
		replay:          replay,
		logger:          logger,
		deliveriesTopic: deliveriesTopic,
		pluginTopic:     pluginTopic,
		now:             time.Now,
	}
}

// Dispatch records the event and enqueues one delivery per matching webhook
// subscription and one invocation per enabled plugin. Enqueue failures are
// isolated per target: the failure is logged and counted, and fan-out
// continues with the remaining targets.
func (d *Dispatcher) Dispatch(ctx context.Context, orgID, eventType string, payload map[string]any, idemKey string) (Result, error) {
	if !d.registry.Contains(eventType) {
		return Result{}, &UnknownEventError{Type: eventType}
	}
	if payload == nil {
		payload = map[string]any{}
	}

	ctx, span := tracing.StartSpan(ctx, "dispatch.event",
		attribute.String("org_id", orgID),
		attribute.String("event_type", eventType),
	)
	defer span.End()

	ev := Event{
		ID:             "evt_" + uuid.NewString(),
		OrgID:          orgID,
		Type:           eventType,
		Payload:        payload,
		IdempotencyKey: idemKey,
		CreatedAt:      d.now().UTC(),
	}
	eventID, inserted, err := d.events.Insert(ctx, ev)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return Result{}, fmt.Errorf("record event: %w", err)
	}
	span.SetAttributes(attribute.String("event_id", eventID))
	if !inserted {
		tracing.AddSpanEvent(ctx, "dispatch.duplicate")
		d.logger.WithContext(ctx).WithOrg(orgID).WithEvent(eventID).WithEventType(eventType).
			Info("duplicate idempotency key, fanout skipped")
		return Result{EventID: eventID, Duplicate: true}, nil
	}
	metrics.RecordEventPublished()

	res := Result{EventID: eventID}
	publishedAt := d.now().UTC().Format(time.RFC3339)
	traceHeaders := tracing.PropagateTraceToNSQ(ctx)

	subs, err := d.webhooks.ListByOrg(ctx, orgID)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return res, fmt.Errorf("list subscriptions: %w", err)
	}
	for _, sub := range subs {
		if !slices.Contains(sub.Events, eventType) {
			continue
		}
		deliveryID, err := d.ledger.CreateQueued(ctx, eventID, sub.ID)
		if err != nil {
			d.fanoutFailure(ctx, "webhook", sub.ID, eventID, err)
			continue
		}
		t := delivery.Task{
			DeliveryID:   deliveryID,
			EventID:      eventID,
			OrgID:        orgID,
			WebhookID:    sub.ID,
			URL:          sub.URL,
			Secret:       sub.Secret,
			EventType:    eventType,
			Payload:      payload,
			Attempt:      0,
			PublishedAt:  publishedAt,
			TraceHeaders: traceHeaders,
		}
		body, _ := json.Marshal(t)
		if err := d.queue.Publish(d.deliveriesTopic, body); err != nil {
			d.fanoutFailure(ctx, "webhook", sub.ID, eventID, err)
			continue
		}
		res.WebhookJobs++
	}

	installs, err := d.plugins.ListEnabled(ctx, orgID)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return res, fmt.Errorf("list plugin installations: %w", err)
	}
	for _, inst := range installs {
		inv := plugin.Invocation{
			InvocationID: "inv_" + uuid.NewString(),
			EventID:      eventID,
			OrgID:        orgID,
			Slug:         inst.Slug,
			EventType:    eventType,
			Payload:      payload,
			Config:       inst.Config,
			PublishedAt:  publishedAt,
			TraceHeaders: traceHeaders,
		}
		body, _ := json.Marshal(inv)
		if err := d.queue.Publish(d.pluginTopic, body); err != nil {
			d.fanoutFailure(ctx, "plugin", inst.Slug, eventID, err)
			continue
		}
		res.PluginJobs++
	}

	span.SetAttributes(
		attribute.Int("webhook_jobs", res.WebhookJobs),
		attribute.Int("plugin_jobs", res.PluginJobs),
	)
	d.logger.WithContext(ctx).WithOrg(orgID).WithEvent(eventID).WithEventType(eventType).
		WithFields(map[string]any{
			"webhook_jobs": res.WebhookJobs,
			"plugin_jobs":  res.PluginJobs,
		}).Info("event dispatched")
	return res, nil
}

// Replay enqueues a fresh delivery for a past attempt's event and webhook.
// The current subscription URL and secret are used, not the original task's
// snapshot, so a fixed endpoint or rotated secret takes effect.
func (d *Dispatcher) Replay(ctx context.Context, orgID, deliveryID, reason string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "dispatch.replay",
		attribute.String("org_id", orgID),
		attribute.String("replay_of", deliveryID),
	)
	defer span.End()

	src, err := d.replay.GetReplaySource(ctx, deliveryID)
	if err != nil {
		return "", &NotFoundError{DeliveryID: deliveryID}
	}
	if src.OrgID != orgID {
		// same response as a missing row: no cross-org existence signal
		return "", &NotFoundError{DeliveryID: deliveryID}
	}

	var payload map[string]any
	if err := json.Unmarshal(src.Payload, &payload); err != nil {
		tracing.SetSpanError(ctx, err)
		return "", fmt.Errorf("decode event payload: %w", err)
	}

	newID, err := d.replay.CreateReplay(ctx, src.EventID, src.WebhookID, deliveryID, reason)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return "", fmt.Errorf("record replay: %w", err)
	}

	t := delivery.Task{
		DeliveryID:   newID,
		EventID:      src.EventID,
		OrgID:        src.OrgID,
		WebhookID:    src.WebhookID,
		URL:          src.URL,
		Secret:       src.Secret,
		EventType:    src.EventType,
		Payload:      payload,
		Attempt:      0,
		PublishedAt:  d.now().UTC().Format(time.RFC3339),
		TraceHeaders: tracing.PropagateTraceToNSQ(ctx),
	}
	body, _ := json.Marshal(t)
	if err := d.queue.Publish(d.deliveriesTopic, body); err != nil {
		tracing.SetSpanError(ctx, err)
		return "", fmt.Errorf("enqueue replay: %w", err)
	}

	d.logger.WithContext(ctx).WithOrg(orgID).WithEvent(src.EventID).WithDelivery(newID).
		WithField("replay_of", deliveryID).Info("delivery replayed")
	return newID, nil
}

func (d *Dispatcher) fanoutFailure(ctx context.Context, kind, targetID, eventID string, err error) {
	metrics.RecordEnqueueFailure(kind)
	tracing.AddSpanEvent(ctx, "dispatch.enqueue_failure",
		attribute.String("kind", kind),
		attribute.String("target", targetID),
	)
	d.logger.WithContext(ctx).WithEvent(eventID).WithError(err).WithFields(map[string]any{
		"kind":   kind,
		"target": targetID,
	}).Error("enqueue failed, continuing fanout")
}
