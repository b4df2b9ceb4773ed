package middleware

import (
	"context"
	"net/http"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/handler/http/response"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

type claimsKey struct{}

// AuthRequired accepts verified access tokens that carry a company and stores their
// claims on the request context. It runs after jwtauth.Verifier.
func AuthRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claimsMap, err := jwtauth.FromContext(r.Context())
		if err != nil {
			response.Unauthorized(w, err.Error())
			return
		}

		if token == nil {
			response.HandleError(w, jwt.ErrInvalidToken)
			return
		}

		claims, err := jwt.ClaimsFromMap(claimsMap)
		if err != nil {
			response.HandleError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the claims stored by AuthRequired.
func ClaimsFromContext(ctx context.Context) (jwt.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(jwt.Claims)
	return claims, ok
}
