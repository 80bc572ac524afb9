package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"idledata/pkg/auth"
	"idledata/pkg/logger"
)

type tokenKey struct{}

// tokenFrom returns the bearer token accepted by requireToken
func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// requireToken accepts only "Authorization: Bearer <token>" where the token
// starts with the configured prefix
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		reject := func(reason, message string) {
			s.logger.WarnWithFields("Rejected request", map[string]interface{}{
				"remote": r.RemoteAddr,
				"reason": reason,
			})
			http.Error(w, "Unauthorized: "+message, http.StatusUnauthorized)
		}

		if header == "" {
			reject("missing_header", "Missing Authorization header")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			reject("invalid_format", "Invalid Authorization format")
			return
		}
		if !strings.HasPrefix(token, s.cfg.TokenPrefix) {
			reject("invalid_token", "Invalid token format")
			return
		}

		s.logger.DebugWithFields("Authenticated request", map[string]interface{}{
			"remote": r.RemoteAddr,
			"token":  auth.MaskKey(token),
		})
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tokenKey{}, token)))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logger.LogRequest(s.logger.WithField("request_id", chimiddleware.GetReqID(r.Context())),
			r.Method, r.URL.Path, status, time.Since(start))
	})
}
