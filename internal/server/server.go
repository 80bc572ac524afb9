// Package server runs the local proxy the browser overlay talks to. It
// forwards /v1/* to the IdleMMO API after checking the bearer token, adds
// CORS headers, and serves ready-made overlay summaries.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"idledata/pkg/config"
	"idledata/pkg/logger"
	"idledata/pkg/overlay"
)

var (
	corsMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsHeaders = []string{"Content-Type", "Authorization", "User-Agent"}

	rateLimitHeaders = []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"}
)

// Server is the proxy and overlay HTTP server
type Server struct {
	cfg       config.ProxyConfig
	upstream  *url.URL
	proxy     *httputil.ReverseProxy
	newClient overlay.ClientFactory
	location  *time.Location
	logger    logger.Logger
	router    chi.Router
}

// New builds the server. newClient creates API clients for the overlay
// endpoint and may be nil to disable it.
func New(cfg config.ProxyConfig, newClient overlay.ClientFactory, log logger.Logger) (*Server, error) {
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q", cfg.Upstream)
	}

	s := &Server{
		cfg:       cfg,
		upstream:  upstream,
		newClient: newClient,
		location:  time.Local,
		logger:    logger.OrGlobal(log).WithField("component", "proxy"),
	}
	s.proxy = s.newReverseProxy()
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: corsMethods,
		AllowedHeaders: corsHeaders,
		MaxAge:         86400,
	}))
	if s.cfg.RequestsPerMinute > 0 {
		r.Use(httprate.LimitByIP(s.cfg.RequestsPerMinute, time.Minute))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Handle("/v1/*", s.proxy)
		if s.newClient != nil {
			r.Get("/overlay/item/{id}", s.handleOverlay)
		}
	})
	return r
}

func (s *Server) newReverseProxy() *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(s.upstream)
			s.logger.DebugWithFields("Proxying request", map[string]interface{}{
				"method": pr.Out.Method,
				"target": pr.Out.URL.String(),
			})
		},
		ModifyResponse: func(resp *http.Response) error {
			fields := map[string]interface{}{
				"status":       resp.StatusCode,
				"content_type": resp.Header.Get("Content-Type"),
			}
			for _, h := range rateLimitHeaders {
				if v := resp.Header.Get(h); v != "" {
					fields[strings.ToLower(strings.ReplaceAll(h, "-", "_"))] = v
				}
			}
			s.logger.DebugWithFields("Upstream response", fields)

			// The CORS middleware owns these headers.
			for name := range resp.Header {
				if strings.HasPrefix(name, "Access-Control-") {
					resp.Header.Del(name)
				}
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.logger.WithError(err).ErrorWithFields("Proxy error", map[string]interface{}{
				"method": r.Method,
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
			})
			http.Error(w, "Bad Gateway", http.StatusBadGateway)
		},
	}
}

// ListenAndServe serves on the configured port until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoWithFields("Starting proxy server", map[string]interface{}{
			"port":     s.cfg.Port,
			"upstream": s.upstream.String(),
		})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("Shutting down proxy server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
