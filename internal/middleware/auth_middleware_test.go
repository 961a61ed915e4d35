package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poofware/backoffice-service/internal/middleware"
	"github.com/poofware/backoffice-service/internal/testhelpers"
	"github.com/poofware/backoffice-service/internal/utils"
)

func TestAuthMiddleware(t *testing.T) {
	key := testhelpers.NewSigningKey(t)
	other := testhelpers.NewSigningKey(t)
	userID := uuid.NewString()

	var seen any
	handler := middleware.AuthMiddleware(&key.PublicKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Context().Value(middleware.ContextKeyUserID)
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(mutate func(*http.Request)) *httptest.ResponseRecorder {
		seen = nil
		req := httptest.NewRequest(http.MethodGet, "/api/v1/crews", nil)
		mutate(req)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}
	bearer := func(tok string) func(*http.Request) {
		return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
	}
	errorCode := func(t *testing.T, rec *httptest.ResponseRecorder) string {
		t.Helper()
		var env utils.Envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		require.NotNil(t, env.Error)
		return env.Error.Code
	}

	t.Run("valid bearer token", func(t *testing.T) {
		rec := serve(bearer(testhelpers.SignToken(t, key, userID, time.Hour)))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, userID, seen)
	})

	t.Run("valid cookie token", func(t *testing.T) {
		tok := testhelpers.SignToken(t, key, userID, time.Hour)
		rec := serve(func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookieName, Value: tok})
		})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, userID, seen)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := serve(func(*http.Request) {})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, utils.ErrCodeUnauthorized, errorCode(t, rec))
		assert.Nil(t, seen)
	})

	t.Run("malformed header", func(t *testing.T) {
		rec := serve(func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") })
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		rec := serve(bearer(testhelpers.SignToken(t, key, userID, -time.Minute)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, utils.ErrCodeTokenExpired, errorCode(t, rec))
	})

	t.Run("foreign signature", func(t *testing.T) {
		rec := serve(bearer(testhelpers.SignToken(t, other, userID, time.Hour)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, utils.ErrCodeUnauthorized, errorCode(t, rec))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		rec := serve(bearer(testhelpers.SignToken(t, key, userID, time.Hour, jwt.MapClaims{"iss": "someone-else"})))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("subject must be a uuid", func(t *testing.T) {
		rec := serve(bearer(testhelpers.SignToken(t, key, "admin", time.Hour)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, seen)
	})

	t.Run("hmac tokens are rejected", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": userID,
			"iss": middleware.TokenIssuer,
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte("secret"))
		require.NoError(t, err)
		rec := serve(bearer(tok))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
