package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

const TokenHeader = "X-GYMTRACKER-TOKEN"

// TokenAuth guards mutating requests with a shared api token, taken from
// the Authorization bearer or the X-GYMTRACKER-TOKEN header. Reads are
// always allowed. An empty apiToken disables the check.
func TokenAuth(apiToken string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			if apiToken == "" || isReadOnly(r.Method) {
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			authToken := r.Header.Get(TokenHeader)
			if authToken == "" {
				authToken = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if authToken == "" {
				log.Tracef("[missing token] [auth middleware] unauthorized => %s", r.URL.Path)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "missing-auth-token")
				return
			}
			if subtle.ConstantTimeCompare([]byte(authToken), []byte(apiToken)) != 1 {
				log.Warnf("[invalid token] [auth middleware] unauthorized => %s %s", r.Method, r.URL.Path)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "invalid-auth-token")
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r)
		})
	}
}

func isReadOnly(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
