package handlers

import (
	"context"
	"net/http"
	"strings"

	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/domain"
	"gitlab.com/autograder.net/internal/handlers/response"
)

type principalKey struct{}

type MiddlewareProvider struct {
	jwtService primary.JWTService
}

func New(jwtService primary.JWTService) *MiddlewareProvider {
	return &MiddlewareProvider{
		jwtService: jwtService,
	}
}

// JWTMiddleware authenticates the request and stores the principal in its context.
// Browsers cannot set headers on a WebSocket handshake, so the token may also come
// in the access_token query parameter.
func (m *MiddlewareProvider) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			response.WriteError(w, response.ErrorMessage{Message: "authorization header missing", StatusCode: http.StatusUnauthorized})
			return
		}

		principal, err := m.jwtService.VerifyTokenHMAC(r.Context(), tokenString)
		if err != nil {
			response.WriteError(w, response.ErrorMessage{Message: "invalid token", StatusCode: http.StatusUnauthorized})
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func bearerToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}

func WithPrincipal(ctx context.Context, principal *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFrom returns the authenticated caller, nil outside of JWTMiddleware
func PrincipalFrom(ctx context.Context) *domain.Principal {
	principal, _ := ctx.Value(principalKey{}).(*domain.Principal)
	return principal
}
