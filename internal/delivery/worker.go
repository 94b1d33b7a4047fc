package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nsqio/go-nsq"
	"go.opentelemetry.io/otel/attribute"

	"github.com/emberhook/emberhook/internal/logging"
	"github.com/emberhook/emberhook/internal/metrics"
	"github.com/emberhook/emberhook/internal/tracing"
)

// Worker performs webhook delivery attempts. It implements nsq.Handler; each
// message is one attempt for one Task, acked or requeued explicitly.
//
// Per-task state machine: queued -> inflight -> delivered (terminal) or
// failed -> requeue (below the ceiling) or dead (ceiling reached, DLQ'd).
type Worker struct {
	Ledger    Ledger
	Client    *http.Client
	Policy    Policy
	Logger    *logging.Logger
	UserAgent string

	// DLQ is optional; when set, dead letters are also published to DLQTopic.
	DLQ      Publisher
	DLQTopic string
}

// HandleMessage implements nsq.Handler with manual responses.
func (w *Worker) HandleMessage(m *nsq.Message) error {
	m.DisableAutoResponse() // we manually requeue or finish
	defer func() {
		if !m.HasResponded() {
			w.Logger.Plain().Warn("message had no response, finishing")
			m.Finish()
		}
	}()

	var t Task
	if err := json.Unmarshal(m.Body, &t); err != nil {
		w.Logger.Plain().WithError(err).Error("bad task payload")
		metrics.RecordDelivery("failed", 0)
		m.Finish() // terminal: don't retry bad payloads
		return nil
	}

	ctx := tracing.ExtractTraceFromNSQ(context.Background(), t.TraceHeaders)
	ctx, span := tracing.StartSpan(ctx, "worker.delivery",
		attribute.String("delivery_id", t.DeliveryID),
		attribute.String("event_id", t.EventID),
		attribute.String("org_id", t.OrgID),
		attribute.String("webhook_id", t.WebhookID),
		attribute.String("event_type", t.EventType),
		attribute.Int("attempt", t.Attempt),
	)
	defer span.End()

	tracing.AddSpanEvent(ctx, "ledger.mark_inflight")
	_ = w.Ledger.MarkInflight(ctx, t.DeliveryID)

	status, latency, doErr := w.attempt(ctx, t)

	span.SetAttributes(
		attribute.Int("http.status_code", status),
		attribute.Int64("http.latency_ms", latency.Milliseconds()),
	)
	if doErr != nil {
		span.SetAttributes(attribute.String("http.error", doErr.Error()))
	}

	if doErr == nil && status >= 200 && status < 300 {
		tracing.AddSpanEvent(ctx, "delivery.success")
		if err := w.Ledger.MarkDelivered(ctx, t.DeliveryID, status, int(latency.Milliseconds())); err != nil {
			w.Logger.WithContext(ctx).WithDelivery(t.DeliveryID).WithError(err).Error("ledger update success failed")
			tracing.SetSpanError(ctx, err)
		}
		metrics.RecordDelivery("delivered", latency)
		m.Finish() // explicit ack
		return nil
	}

	// failure: increment attempt and decide requeue vs DLQ
	tracing.AddSpanEvent(ctx, "delivery.failed")
	attempt, updErr := w.Ledger.MarkFailed(ctx, t.DeliveryID, status, int(latency.Milliseconds()), errString(doErr))
	if updErr != nil {
		w.Logger.WithContext(ctx).WithDelivery(t.DeliveryID).WithError(updErr).Error("ledger update fail failed")
		tracing.SetSpanError(ctx, updErr)
		attempt = w.Policy.MaxAttempts // be safe -> DLQ
	}

	reason := ClassifyFailure(doErr, status)
	span.SetAttributes(attribute.String("failure_reason", reason))
	metrics.RecordRetry(reason)
	metrics.RecordDelivery("failed", latency)

	if attempt >= w.Policy.MaxAttempts {
		w.abandon(ctx, m, t, attempt, status, doErr, reason)
		return nil
	}

	delay := w.Policy.Delay(attempt)
	tracing.AddSpanEvent(ctx, "delivery.requeue",
		attribute.Int("attempt", attempt),
		attribute.String("delay", delay.String()),
	)
	w.Logger.WithContext(ctx).WithDelivery(t.DeliveryID).WithFields(map[string]any{
		"attempt": attempt,
		"delay":   delay.String(),
	}).Info("requeue delivery")

	// Carry the attempt count into the redelivered task
	t.Attempt = attempt
	updatedBody, _ := json.Marshal(t)
	m.Body = updatedBody

	m.Requeue(delay) // explicit requeue with delay
	return nil
}

// attempt issues exactly one signed POST to the task's snapshot URL.
func (w *Worker) attempt(ctx context.Context, t Task) (int, time.Duration, error) {
	body, err := json.Marshal(t.Payload)
	if err != nil {
		return 0, 0, err
	}
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", w.UserAgent)
	req.Header.Set(EventHeader, t.EventType)
	req.Header.Set(DeliveryHeader, t.DeliveryID)
	req.Header.Set(TimestampHeader, ts)
	req.Header.Set(SignatureHeader, Sign(t.Secret, body, ts))

	// Add trace ID to HTTP headers for correlation
	if traceID := tracing.GetTraceID(ctx); traceID != "" {
		req.Header.Set("X-Trace-Id", traceID)
	}

	start := time.Now()
	tracing.AddSpanEvent(ctx, "ledger.mark_sent")
	_ = w.Ledger.MarkSent(ctx, t.DeliveryID, start)

	tracing.AddSpanEvent(ctx, "http.send_webhook")
	resp, doErr := w.Client.Do(req)
	latency := time.Since(start)
	status := 0
	if doErr == nil {
		status = resp.StatusCode
		_ = resp.Body.Close()
	}
	return status, latency, doErr
}

// abandon dead-letters a task that exhausted its retry budget.
func (w *Worker) abandon(ctx context.Context, m *nsq.Message, t Task, attempt, status int, doErr error, reason string) {
	tracing.AddSpanEvent(ctx, "delivery.dlq", attribute.Int("attempt", attempt))
	detail := fmt.Sprintf("max attempts reached (%d), last status=%d, err=%s", attempt, status, errString(doErr))

	if err := w.Ledger.MarkDead(ctx, t.DeliveryID, detail); err != nil {
		w.Logger.WithContext(ctx).WithDelivery(t.DeliveryID).WithError(err).Error("dlq record failed")
		tracing.SetSpanError(ctx, err)
	}

	if w.DLQ != nil && w.DLQTopic != "" {
		env := NewDeadLetter(t, attempt, status, errString(doErr), fmt.Sprintf("max attempts reached (%d)", attempt))
		b, _ := json.Marshal(env)
		if err := w.DLQ.Publish(w.DLQTopic, b); err != nil {
			w.Logger.WithContext(ctx).WithDelivery(t.DeliveryID).WithError(err).Error("dlq publish failed")
			tracing.SetSpanError(ctx, err)
		}
	}

	w.Logger.WithContext(ctx).
		WithDelivery(t.DeliveryID).
		WithWebhook(t.WebhookID).
		WithEventType(t.EventType).
		WithFields(map[string]any{"attempt": attempt, "reason": reason}).
		Error("delivery abandoned")

	metrics.RecordDelivery("dead", 0)
	metrics.RecordDLQ(reason)
	m.Finish() // drop from main topic
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
