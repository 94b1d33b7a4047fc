package delivery

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestSignDeterministic(t *testing.T) {
	body := []byte(`{"id":"ld_1"}`)

	a := Sign("whsec_test", body, "1700000000")
	b := Sign("whsec_test", body, "1700000000")
	if a != b {
		t.Error("same inputs must produce the same signature")
	}
	if !strings.HasPrefix(a, "sha256=") {
		t.Errorf("signature %q missing sha256= prefix", a)
	}

	if Sign("whsec_other", body, "1700000000") == a {
		t.Error("different secrets must produce different signatures")
	}
	if Sign("whsec_test", body, "1700000001") == a {
		t.Error("different timestamps must produce different signatures")
	}
}

func TestVerify(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"id":"ld_1"}`)
	now := strconv.FormatInt(time.Now().Unix(), 10)
	goodSig := Sign(secret, body, now)

	tests := []struct {
		name    string
		ts      string
		sig     string
		body    []byte
		wantOK  bool
		wantMsg string
	}{
		{name: "valid", ts: now, sig: goodSig, body: body, wantOK: true},
		{name: "missing timestamp", ts: "", sig: goodSig, body: body, wantOK: false, wantMsg: "missing headers"},
		{name: "missing signature", ts: now, sig: "", body: body, wantOK: false, wantMsg: "missing headers"},
		{name: "garbage timestamp", ts: "yesterday", sig: goodSig, body: body, wantOK: false, wantMsg: "invalid timestamp"},
		{name: "tampered body", ts: now, sig: goodSig, body: []byte(`{"id":"ld_2"}`), wantOK: false, wantMsg: "sig mismatch"},
		{name: "wrong signature", ts: now, sig: "sha256=deadbeef", body: body, wantOK: false, wantMsg: "sig mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, msg := Verify(secret, tt.body, tt.ts, tt.sig, 5*time.Minute)
			if ok != tt.wantOK {
				t.Errorf("Verify ok = %v, want %v (msg=%q)", ok, tt.wantOK, msg)
			}
			if !tt.wantOK && msg != tt.wantMsg {
				t.Errorf("msg = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{}`)
	stale := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	sig := Sign(secret, body, stale)

	ok, msg := Verify(secret, body, stale, sig, 5*time.Minute)
	if ok {
		t.Fatal("expected stale timestamp rejection")
	}
	if msg != "timestamp outside leeway" {
		t.Errorf("msg = %q", msg)
	}

	// same signature passes with a generous leeway
	if ok, _ := Verify(secret, body, stale, sig, 2*time.Hour); !ok {
		t.Error("expected acceptance within leeway")
	}
}
