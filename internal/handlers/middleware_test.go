package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/autograder.net/internal/adapter/crypto"
	"gitlab.com/autograder.net/internal/config"
	"gitlab.com/autograder.net/internal/domain"
)

func TestJWTMiddlewareStoresPrincipal(t *testing.T) {
	jwtService := crypto.NewJWTService(&config.JwtConfig{Secret: "s3cret"})
	m := New(jwtService)
	tok, err := jwtService.GenerateTokenHMAC(context.Background(), &domain.Principal{
		UserID:      42,
		Permissions: []string{"VIEW_OWN_SUBMISSION"},
	}, time.Hour)
	require.NoError(t, err)

	var got *domain.Principal
	h := m.JWTMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = PrincipalFrom(r.Context())
	}))

	header := httptest.NewRequest(http.MethodGet, "/", nil)
	header.Header.Set("Authorization", "Bearer "+tok)
	query := httptest.NewRequest(http.MethodGet, "/?access_token="+tok, nil)

	for _, req := range []*http.Request{header, query} {
		got = nil
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, got)
		assert.Equal(t, int64(42), got.UserID)
		assert.True(t, got.Has(domain.PermissionViewOwnSubmission))
	}
}

func TestJWTMiddlewareRejects(t *testing.T) {
	m := New(crypto.NewJWTService(&config.JwtConfig{Secret: "s3cret"}))
	called := false
	h := m.JWTMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	missing := httptest.NewRequest(http.MethodGet, "/", nil)
	invalid := httptest.NewRequest(http.MethodGet, "/", nil)
	invalid.Header.Set("Authorization", "Bearer a.b.c")

	for _, req := range []*http.Request{missing, invalid} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	assert.False(t, called)
}

func TestPrincipalFromEmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, PrincipalFrom(req.Context()))
}
