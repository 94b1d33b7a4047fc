package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// testKeys generates an RSA pair and returns the private key plus the PEM
// encoding of the public key.
func testKeys(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return key, string(pemBytes)
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":    "emberhook",
		"aud":    "emberhook-api",
		"org_id": "org_123",
		"exp":    time.Now().Add(time.Hour).Unix(),
		"iat":    time.Now().Unix(),
	}
}

func TestNewJWTValidator(t *testing.T) {
	_, publicPEM := testKeys(t)

	tests := []struct {
		name         string
		publicKeyPEM string
		expectError  bool
	}{
		{"valid PKIX key", publicPEM, false},
		{"invalid PEM format", "invalid-pem", true},
		{"empty public key", "", true},
		{
			name: "garbage key data",
			publicKeyPEM: `-----BEGIN PUBLIC KEY-----
aW52YWxpZC1rZXktZGF0YQ==
-----END PUBLIC KEY-----`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewJWTValidator(tt.publicKeyPEM, "emberhook", "emberhook-api")
			if (err != nil) != tt.expectError {
				t.Fatalf("NewJWTValidator error = %v, expectError %v", err, tt.expectError)
			}
			if !tt.expectError && v == nil {
				t.Fatal("NewJWTValidator returned nil validator without error")
			}
		})
	}
}

func TestValidateToken(t *testing.T) {
	key, publicPEM := testKeys(t)
	otherKey, _ := testKeys(t)
	v, err := NewJWTValidator(publicPEM, "emberhook", "emberhook-api")
	if err != nil {
		t.Fatalf("NewJWTValidator: %v", err)
	}

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	wrongIssuer := validClaims()
	wrongIssuer["iss"] = "someone-else"

	wrongAudience := validClaims()
	wrongAudience["aud"] = "other-api"

	noOrg := validClaims()
	delete(noOrg, "org_id")

	emptyOrg := validClaims()
	emptyOrg["org_id"] = ""

	tests := []struct {
		name    string
		token   string
		wantOrg string
		wantErr bool
	}{
		{"valid token", signToken(t, key, validClaims()), "org_123", false},
		{"expired token", signToken(t, key, expired), "", true},
		{"wrong issuer", signToken(t, key, wrongIssuer), "", true},
		{"wrong audience", signToken(t, key, wrongAudience), "", true},
		{"missing org_id", signToken(t, key, noOrg), "", true},
		{"empty org_id", signToken(t, key, emptyOrg), "", true},
		{"signed with a different key", signToken(t, otherKey, validClaims()), "", true},
		{"not a token", "not.a.token", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			org, err := v.ValidateToken(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateToken error = %v, wantErr %v", err, tt.wantErr)
			}
			if org != tt.wantOrg {
				t.Errorf("org = %q, want %q", org, tt.wantOrg)
			}
		})
	}
}

func TestValidateTokenRejectsHMAC(t *testing.T) {
	_, publicPEM := testKeys(t)
	v, err := NewJWTValidator(publicPEM, "emberhook", "emberhook-api")
	if err != nil {
		t.Fatalf("NewJWTValidator: %v", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	s, err := token.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("sign hmac token: %v", err)
	}
	if _, err := v.ValidateToken(s); err == nil {
		t.Fatal("ValidateToken accepted an HMAC-signed token")
	}
}

func TestMiddleware(t *testing.T) {
	key, publicPEM := testKeys(t)
	v, err := NewJWTValidator(publicPEM, "emberhook", "emberhook-api")
	if err != nil {
		t.Fatalf("NewJWTValidator: %v", err)
	}

	var gotOrg string
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOrg, _ = OrgFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
		wantOrg    string
	}{
		{"valid bearer token", "Bearer " + signToken(t, key, validClaims()), http.StatusOK, "org_123"},
		{"no header", "", http.StatusUnauthorized, ""},
		{"not a bearer scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage token", "Bearer garbage", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotOrg = ""
			req := httptest.NewRequest(http.MethodGet, "/v1/webhooks", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if gotOrg != tt.wantOrg {
				t.Errorf("org in context = %q, want %q", gotOrg, tt.wantOrg)
			}
		})
	}
}

func TestOrgFromContext(t *testing.T) {
	if org, ok := OrgFromContext(httptest.NewRequest("GET", "/", nil).Context()); ok || org != "" {
		t.Errorf("OrgFromContext on bare context = %q/%v, want empty/false", org, ok)
	}
	ctx := WithOrg(httptest.NewRequest("GET", "/", nil).Context(), "org_9")
	if org, ok := OrgFromContext(ctx); !ok || org != "org_9" {
		t.Errorf("OrgFromContext = %q/%v, want org_9/true", org, ok)
	}
}
