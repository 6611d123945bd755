package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func protected() http.Handler {
	return AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := OperatorID(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(id))
	}))
}

func call(h http.Handler, authHeader string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	if authHeader != "" {
		r.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	viper.Set("jwt.secret_key", "middleware-secret")
	defer viper.Set("jwt.secret_key", "")
	InitAuthMiddleware(nil)

	secret := []byte("middleware-secret")
	exp := time.Now().Add(time.Hour).Unix()
	valid := signToken(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"operator_id": "teller-9", "exp": exp})

	t.Run("valid token", func(t *testing.T) {
		w := call(protected(), "Bearer "+valid)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "teller-9", w.Body.String())
	})

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic " + valid},
		{name: "malformed", header: "Bearer"},
		{name: "wrong secret", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"operator_id": "x", "exp": exp})},
		{name: "expired", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"operator_id": "x", "exp": time.Now().Add(-time.Hour).Unix()})},
		{name: "no operator claim", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"exp": exp})},
		{name: "other algorithm", header: "Bearer " + signToken(t, jwt.SigningMethodHS512, secret, jwt.MapClaims{"operator_id": "x", "exp": exp})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(protected(), tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestAuthMiddleware_RejectsWithoutSecret(t *testing.T) {
	InitAuthMiddleware(nil)
	claims := jwt.MapClaims{"operator_id": "attacker", "exp": time.Now().Add(time.Hour).Unix()}

	for _, secret := range []string{"", "short"} {
		viper.Set("jwt.secret_key", secret)
		token := signToken(t, jwt.SigningMethodHS256, []byte(secret), claims)

		w := call(protected(), "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "secret %q", secret)
		assert.NotContains(t, w.Body.String(), "attacker")
	}
	viper.Set("jwt.secret_key", "")
}

func TestAuthMiddleware_RevokedToken(t *testing.T) {
	viper.Set("jwt.secret_key", "middleware-secret")
	defer viper.Set("jwt.secret_key", "")

	client, mock := redismock.NewClientMock()
	InitAuthMiddleware(client)
	defer InitAuthMiddleware(nil)

	token := signToken(t, jwt.SigningMethodHS256, []byte("middleware-secret"), jwt.MapClaims{"operator_id": "teller-9", "exp": time.Now().Add(time.Hour).Unix()})

	mock.ExpectExists("blacklist:" + token).SetVal(1)
	w := call(protected(), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	mock.ExpectExists("blacklist:" + token).SetVal(0)
	w = call(protected(), "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
