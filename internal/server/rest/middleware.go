package rest

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/progres-gateway/internal/common"
	"github.com/dmitrijs2005/progres-gateway/internal/logging"
	"github.com/dmitrijs2005/progres-gateway/internal/server/auth"
	"github.com/go-chi/chi/v5/middleware"
)

var redactedHeaders = []string{"Authorization", "Cookie", "Set-Cookie"}

func isNoisyPath(p string) bool {
	return p == "/healthz"
}

// accessLog writes one line per request and, for failures, a second line
// with the request headers. Credentials are never written.
func accessLog(l logging.Logger) func(http.Handler) http.Handler {
	l = l.With("module", "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || isNoisyPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := newRecorder(w)
			next.ServeHTTP(rec, r)
			dur := time.Since(start)

			ctx := r.Context()
			l.Info(ctx, "req",
				"req_id", middleware.GetReqID(ctx),
				"m", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"ms", dur.Milliseconds(),
				"bytes", rec.bytes,
			)

			if rec.status >= 400 {
				l.Warn(ctx, "req_detail",
					"req_id", middleware.GetReqID(ctx),
					"m", r.Method,
					"path", r.URL.Path,
					"status", rec.status,
					"remote", r.RemoteAddr,
					"headers", redactHeaders(r.Header),
				)
			}
		})
	}
}

func redactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if len(vv) == 0 {
			continue
		}
		v := vv[0]
		for _, secret := range redactedHeaders {
			if strings.EqualFold(k, secret) {
				v = "***redacted***"
				break
			}
		}
		out[k] = v
	}
	return out
}

func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", "default-src 'self'")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// requireBearer admits requests carrying a valid, non-revoked access token
// and puts the caller into the request context.
func requireBearer(verifier TokenVerifier, revocations RevocationChecker, l logging.Logger) func(http.Handler) http.Handler {
	l = l.With("module", "bearer_gate")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := common.ExtractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				writeServiceError(w, common.ErrUnauthenticated)
				return
			}

			revoked, err := revocations.IsRevoked(ctx, token)
			if err != nil {
				l.Error(ctx, "revocation lookup failed", "error", err)
				writeServiceError(w, err)
				return
			}
			if revoked {
				l.Warn(ctx, "revoked access token presented", "subject", claims.Subject)
				writeServiceError(w, common.ErrRevoked)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithCaller(ctx, auth.CallerFromClaims(claims))))
		})
	}
}
