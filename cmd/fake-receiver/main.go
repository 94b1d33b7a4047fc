// fake-receiver is a local webhook endpoint for exercising the delivery
// pipeline. It verifies signatures when a secret is configured and can fail
// the first N requests to exercise the retry path.
package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/emberhook/emberhook/internal/config"
	"github.com/emberhook/emberhook/internal/delivery"
)

type receiver struct {
	failFirstN int
	secret     string
	leeway     time.Duration
	reqCount   atomic.Int64
}

func main() {
	cfg := config.FromEnv()

	rcv := &receiver{
		failFirstN: cfg.FakeReceiver.FailFirstN,
		secret:     cfg.FakeReceiver.EndpointSecret,
		leeway:     time.Duration(cfg.FakeReceiver.SigningLeewaySeconds) * time.Second,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"ok":true}`)) })
	mux.HandleFunc("/hook", rcv.handleHook)

	addr := cfg.FakeReceiver.Port
	log.Printf("fake-receiver listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func (rcv *receiver) handleHook(w http.ResponseWriter, r *http.Request) {
	n := rcv.reqCount.Add(1)
	b, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	if rcv.secret != "" {
		ts := r.Header.Get(delivery.TimestampHeader)
		sig := r.Header.Get(delivery.SignatureHeader)
		if ok, msg := delivery.Verify(rcv.secret, b, ts, sig, rcv.leeway); !ok {
			log.Printf("fake-receiver failed to verify signature: %s", msg)
			http.Error(w, "invalid signature: "+msg, http.StatusUnauthorized)
			return
		}
	}

	// Simulate flakiness: first N requests -> 500
	if n <= int64(rcv.failFirstN) {
		log.Printf("FAILING (%d/%d) event=%s delivery=%s body=%s",
			n, rcv.failFirstN, r.Header.Get(delivery.EventHeader), r.Header.Get(delivery.DeliveryHeader), truncate(string(b), 160))
		http.Error(w, "temporary failure", http.StatusInternalServerError)
		return
	}

	log.Printf("fake-receiver OK event=%s delivery=%s body=%q",
		r.Header.Get(delivery.EventHeader), r.Header.Get(delivery.DeliveryHeader), truncate(string(b), 160))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`ok`))
}

// truncate shortens a string to n bytes with an ellipsis when cut
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
