package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/meshflow/config"
	"github.com/BaSui01/meshflow/internal/ctxkeys"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}

func TestSecurityHeaders_ChainedWithOtherMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	handler := Chain(inner, SecurityHeaders(), RequestID())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ctxkeys.RequestID(r.Context())
	})
	handler := RequestID()(inner)

	t.Run("generates", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		id := w.Header().Get("X-Request-ID")
		assert.True(t, strings.HasPrefix(id, "req-"))
		assert.Equal(t, id, seen)
	})

	t.Run("preserves client id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-ID", "req-from-client")
		handler.ServeHTTP(w, r)

		assert.Equal(t, "req-from-client", w.Header().Get("X-Request-ID"))
		assert.Equal(t, "req-from-client", seen)
	})
}

func TestRecovery(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := Recovery(zaptest.NewLogger(t))(panicking)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/api/v1/generate", "/api/v1/generate"},
		{"/api/v1/generate/ws", "/api/v1/generate/ws"},
		{"/api/v1/generations", "/api/v1/generations"},
		{"/api/v1/generations/0b894d92-4f3a-4b2e-9c1d-8e7f6a5b4c3d", "/api/v1/generations/:id"},
		{"/api/v1/generations/deadbeef01", "/api/v1/generations/:id"},
		{"/api/v1/generations/42", "/api/v1/generations/:id"},
		{"/api/v1/generations/latest", "/api/v1/generations/latest"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.path))
		})
	}
}

func TestCORS(t *testing.T) {
	t.Run("unconfigured rejects cross-origin preflight", func(t *testing.T) {
		handler := CORS(nil)(okHandler())

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodOptions, "/api/v1/generate", nil)
		r.Header.Set("Origin", "https://evil.example")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unconfigured passes same-origin requests", func(t *testing.T) {
		handler := CORS(nil)(okHandler())

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/generate", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allowed origin gets headers", func(t *testing.T) {
		handler := CORS([]string{"https://app.example"})(okHandler())

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/generate", nil)
		r.Header.Set("Origin", "https://app.example")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allowed origin preflight", func(t *testing.T) {
		handler := CORS([]string{"https://app.example"})(okHandler())

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodOptions, "/api/v1/generate", nil)
		r.Header.Set("Origin", "https://app.example")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin gets no headers", func(t *testing.T) {
		handler := CORS([]string{"https://app.example"})(okHandler())

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/generate", nil)
		r.Header.Set("Origin", "https://other.example")
		handler.ServeHTTP(w, r)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := RateLimiter(ctx, 1, 2, zaptest.NewLogger(t))(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1:54321"
		handler.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestClientRateLimiterKeysByPrincipal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := ClientRateLimiter(ctx, 1, 1, zaptest.NewLogger(t))(okHandler())

	send := func(client string) int {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1:54321"
		if client != "" {
			r = r.WithContext(ctxkeys.WithClient(r.Context(), client))
		}
		handler.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("alpha"))
	assert.Equal(t, http.StatusTooManyRequests, send("alpha"))
	// A different principal on the same IP has its own bucket.
	assert.Equal(t, http.StatusOK, send("beta"))
	// Anonymous requests fall back to the IP bucket.
	assert.Equal(t, http.StatusOK, send(""))
	assert.Equal(t, http.StatusTooManyRequests, send(""))
}

func TestAuthAPIKey(t *testing.T) {
	var principal string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ = ctxkeys.Client(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	cfg := config.ServerConfig{APIKeys: []string{"sk-valid"}, AllowQueryAPIKey: true}
	handler := Auth(cfg, []string{"/health"}, zaptest.NewLogger(t))(inner)

	t.Run("valid header key", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/generate", nil)
		r.Header.Set("X-API-Key", "sk-valid")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasPrefix(principal, "key-"))
		assert.NotContains(t, principal, "sk-valid")
	})

	t.Run("valid query key", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/generate/ws?api_key=sk-valid", nil)
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid key", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/generate", nil)
		r.Header.Set("X-API-Key", "sk-wrong")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	})

	t.Run("missing credentials", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/generate", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("skip path needs no key", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("query key rejected when disallowed", func(t *testing.T) {
		strict := Auth(config.ServerConfig{APIKeys: []string{"sk-valid"}}, nil, zaptest.NewLogger(t))(inner)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/generations?api_key=sk-valid", nil)
		strict.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthJWT(t *testing.T) {
	var principal string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ = ctxkeys.Client(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	cfg := config.ServerConfig{
		JWTSecret:   "test-secret",
		JWTIssuer:   "meshflow-ci",
		JWTAudience: "meshflow-api",
	}
	handler := Auth(cfg, nil, zaptest.NewLogger(t))(inner)

	baseClaims := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": "svc-batch",
			"iss": "meshflow-ci",
			"aud": "meshflow-api",
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	t.Run("valid token", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/generate", nil)
		r.Header.Set("Authorization", "Bearer "+signHS256(t, "test-secret", baseClaims()))
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "svc-batch", principal)
	})

	t.Run("wrong secret", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/generate", nil)
		r.Header.Set("Authorization", "Bearer "+signHS256(t, "other-secret", baseClaims()))
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := baseClaims()
		claims["exp"] = time.Now().Add(-time.Hour).Unix()

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/generate", nil)
		r.Header.Set("Authorization", "Bearer "+signHS256(t, "test-secret", claims))
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := baseClaims()
		claims["iss"] = "someone-else"

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/generate", nil)
		r.Header.Set("Authorization", "Bearer "+signHS256(t, "test-secret", claims))
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/generate", nil)
		r.Header.Set("Authorization", "Token abc")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthEitherCredential(t *testing.T) {
	cfg := config.ServerConfig{
		APIKeys:   []string{"sk-valid"},
		JWTSecret: "test-secret",
	}
	handler := Auth(cfg, nil, zaptest.NewLogger(t))(okHandler())

	t.Run("api key passes without token", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/generate", nil)
		r.Header.Set("X-API-Key", "sk-valid")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("token passes without api key", func(t *testing.T) {
		token := signHS256(t, "test-secret", jwt.MapClaims{
			"sub": "cli",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/generate", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong key falls through to valid token", func(t *testing.T) {
		token := signHS256(t, "test-secret", jwt.MapClaims{
			"sub": "cli",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/generate", nil)
		r.Header.Set("X-API-Key", "sk-wrong")
		r.Header.Set("Authorization", "Bearer "+token)
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
