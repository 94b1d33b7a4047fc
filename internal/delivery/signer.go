package delivery

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Request headers shared by the worker and receivers verifying deliveries.
const (
	SignatureHeader = "X-EmberHook-Signature" // sha256=<hex>
	TimestampHeader = "X-EmberHook-Timestamp" // unix seconds
	EventHeader     = "X-EmberHook-Event"
	DeliveryHeader  = "X-EmberHook-Delivery"
)

// Sign computes the delivery signature: HMAC-SHA256 over body||timestamp,
// keyed with the subscription secret.
func Sign(secret string, body []byte, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	mac.Write([]byte(ts))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a delivery signature the way a receiving endpoint would:
// the timestamp must be within leeway of now and the HMAC must match.
// On failure it returns a short diagnostic.
func Verify(secret string, body []byte, ts, signature string, leeway time.Duration) (bool, string) {
	if ts == "" || signature == "" {
		return false, "missing headers"
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false, "invalid timestamp"
	}
	skew := time.Now().Unix() - unix
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(leeway.Seconds()) {
		return false, "timestamp outside leeway"
	}
	want := Sign(secret, body, ts)
	if !hmac.Equal([]byte(signature), []byte(want)) {
		return false, "sig mismatch"
	}
	return true, ""
}
