package delivery

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/emberhook/emberhook/internal/logging"
)

// recordingDelegate captures the worker's explicit finish/requeue responses.
type recordingDelegate struct {
	mu       sync.Mutex
	finished bool
	requeued bool
	delay    time.Duration
}

func (d *recordingDelegate) OnFinish(*nsq.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finished = true
}

func (d *recordingDelegate) OnRequeue(m *nsq.Message, delay time.Duration, backoff bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requeued = true
	d.delay = delay
}

func (d *recordingDelegate) OnTouch(*nsq.Message) {}

// memoryLedger records state transitions per delivery id.
type memoryLedger struct {
	mu        sync.Mutex
	attempts  map[string]int
	inflight  []string
	delivered []string
	failed    []string
	dead      []string
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{attempts: map[string]int{}}
}

func (l *memoryLedger) CreateQueued(_ context.Context, eventID, webhookID string) (string, error) {
	return "dlv_test", nil
}

func (l *memoryLedger) MarkInflight(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inflight = append(l.inflight, id)
	return nil
}

func (l *memoryLedger) MarkSent(_ context.Context, id string, _ time.Time) error { return nil }

func (l *memoryLedger) MarkDelivered(_ context.Context, id string, _, _ int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delivered = append(l.delivered, id)
	return nil
}

func (l *memoryLedger) MarkFailed(_ context.Context, id string, _, _ int, _ string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts[id]++
	l.failed = append(l.failed, id)
	return l.attempts[id], nil
}

func (l *memoryLedger) MarkDead(_ context.Context, id, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dead = append(l.dead, id)
	return nil
}

// capturingPublisher records DLQ publishes.
type capturingPublisher struct {
	mu     sync.Mutex
	topic  string
	bodies [][]byte
}

func (p *capturingPublisher) Publish(topic string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.bodies = append(p.bodies, body)
	return nil
}

func newTestWorker(ledger Ledger) *Worker {
	return &Worker{
		Ledger: ledger,
		Client: &http.Client{Timeout: 2 * time.Second},
		Policy: Policy{
			MaxAttempts: 3,
			Backoff:     []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
			JitterPct:   0,
		},
		Logger:    logging.NewWithWriter("worker-test", io.Discard),
		UserAgent: "EmberHook-Webhooks/test",
	}
}

func newTestMessage(t *testing.T, task Task) (*nsq.Message, *recordingDelegate) {
	t.Helper()
	body, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}
	var id nsq.MessageID
	copy(id[:], "0123456789abcdef")
	m := nsq.NewMessage(id, body)
	d := &recordingDelegate{}
	m.Delegate = d
	return m, d
}

func testTask(url string) Task {
	return Task{
		DeliveryID: "dlv_1",
		EventID:    "evt_1",
		OrgID:      "org_1",
		WebhookID:  "wh_1",
		URL:        url,
		Secret:     "whsec_test",
		EventType:  "lead.created",
		Payload:    map[string]any{"id": "ld_1", "name": "Ada"},
		Attempt:    0,
	}
}

func TestWorkerDeliversAndSigns(t *testing.T) {
	var gotHeaders http.Header
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ledger := newMemoryLedger()
	w := newTestWorker(ledger)

	m, d := newTestMessage(t, testTask(srv.URL))
	if err := w.HandleMessage(m); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	if !d.finished || d.requeued {
		t.Fatalf("expected finish without requeue, finished=%v requeued=%v", d.finished, d.requeued)
	}
	if len(ledger.delivered) != 1 || ledger.delivered[0] != "dlv_1" {
		t.Errorf("delivered = %v", ledger.delivered)
	}
	if len(ledger.inflight) != 1 {
		t.Errorf("inflight transitions = %v", ledger.inflight)
	}

	if got := gotHeaders.Get(EventHeader); got != "lead.created" {
		t.Errorf("event header = %q", got)
	}
	if got := gotHeaders.Get(DeliveryHeader); got != "dlv_1" {
		t.Errorf("delivery header = %q", got)
	}
	ts := gotHeaders.Get(TimestampHeader)
	sig := gotHeaders.Get(SignatureHeader)
	if ok, msg := Verify("whsec_test", gotBody, ts, sig, 5*time.Minute); !ok {
		t.Errorf("signature did not verify: %s", msg)
	}
}

func TestWorkerRequeuesOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ledger := newMemoryLedger()
	w := newTestWorker(ledger)

	m, d := newTestMessage(t, testTask(srv.URL))
	if err := w.HandleMessage(m); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	if !d.requeued || d.finished {
		t.Fatalf("expected requeue, finished=%v requeued=%v", d.finished, d.requeued)
	}
	if d.delay != time.Second {
		t.Errorf("requeue delay = %v, want schedule's first entry", d.delay)
	}
	if len(ledger.failed) != 1 {
		t.Errorf("failed transitions = %v", ledger.failed)
	}
	if len(ledger.dead) != 0 {
		t.Errorf("unexpected dead transitions: %v", ledger.dead)
	}

	// the requeued body carries the incremented attempt
	var requeued Task
	if err := json.Unmarshal(m.Body, &requeued); err != nil {
		t.Fatalf("unmarshal requeued body: %v", err)
	}
	if requeued.Attempt != 1 {
		t.Errorf("requeued attempt = %d, want 1", requeued.Attempt)
	}
}

func TestWorkerDeadLettersAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ledger := newMemoryLedger()
	ledger.attempts["dlv_1"] = 2 // next failure is the third and final attempt

	pub := &capturingPublisher{}
	w := newTestWorker(ledger)
	w.DLQ = pub
	w.DLQTopic = "deliveries_dlq"

	task := testTask(srv.URL)
	task.Attempt = 2
	m, d := newTestMessage(t, task)
	if err := w.HandleMessage(m); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	if !d.finished || d.requeued {
		t.Fatalf("expected terminal finish, finished=%v requeued=%v", d.finished, d.requeued)
	}
	if len(ledger.dead) != 1 {
		t.Fatalf("dead transitions = %v", ledger.dead)
	}
	if pub.topic != "deliveries_dlq" || len(pub.bodies) != 1 {
		t.Fatalf("expected one DLQ publish, topic=%q n=%d", pub.topic, len(pub.bodies))
	}

	var env DeadLetter
	if err := json.Unmarshal(pub.bodies[0], &env); err != nil {
		t.Fatalf("unmarshal dead letter: %v", err)
	}
	if env.Type != DLQType {
		t.Errorf("dead letter type = %q, want %q", env.Type, DLQType)
	}
	if env.Attempt != 3 {
		t.Errorf("dead letter attempt = %d, want 3", env.Attempt)
	}
}

func TestWorkerConnectionErrorRequeues(t *testing.T) {
	ledger := newMemoryLedger()
	w := newTestWorker(ledger)

	// closed server: connection refused
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	m, d := newTestMessage(t, testTask(url))
	if err := w.HandleMessage(m); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	if !d.requeued {
		t.Fatal("expected requeue after connection error")
	}
	if len(ledger.failed) != 1 {
		t.Errorf("failed transitions = %v", ledger.failed)
	}
}

func TestWorkerFinishesBadPayload(t *testing.T) {
	ledger := newMemoryLedger()
	w := newTestWorker(ledger)

	var id nsq.MessageID
	copy(id[:], "0123456789abcdef")
	m := nsq.NewMessage(id, []byte("not json"))
	d := &recordingDelegate{}
	m.Delegate = d

	if err := w.HandleMessage(m); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !d.finished || d.requeued {
		t.Fatalf("bad payload must finish, finished=%v requeued=%v", d.finished, d.requeued)
	}
	if len(ledger.inflight)+len(ledger.failed)+len(ledger.dead) != 0 {
		t.Error("bad payload must not touch the ledger")
	}
}
