package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

const defaultUpstreamTimeout = 60 * time.Second

type Options struct {
	// AllowedOrigins defaults to every origin.
	AllowedOrigins []string
	HTTPClient     *http.Client
	Verbose        bool
}

type Server struct {
	client  *http.Client
	verbose bool
	handler http.Handler
}

func NewServer(opts Options) *Server {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultUpstreamTimeout}
	}
	s := &Server{client: client, verbose: opts.Verbose}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	if opts.Verbose {
		r.Use(chimiddleware.Logger)
	}
	r.Get("/health", s.handleHealth)
	r.HandleFunc(DefaultPath, s.handleProxy)
	r.HandleFunc("/proxy_api", s.handleProxy)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.handler = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization", "Accept", "X-Api-Key", "Anthropic-Version"},
	}).Handler(r)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe runs the relay until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.infof("relay_start", "addr=%s", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("relay: listen %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.infof("relay_stop", "reason=%v", ctx.Err())
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Relay server is running",
	})
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": `Missing "url" query parameter`})
		return
	}
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid URL provided"})
		return
	}

	var body io.Reader
	if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}
	upReq, err := http.NewRequestWithContext(r.Context(), r.Method, u.String(), body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid URL provided"})
		return
	}
	copyRequestHeaders(upReq.Header, r.Header)
	if body != nil {
		upReq.ContentLength = r.ContentLength
	}

	s.infof("relay_forward", "method=%s host=%s path=%s", r.Method, u.Host, u.Path)

	resp, err := s.client.Do(upReq)
	if err != nil {
		s.warnf("relay_upstream_error", "host=%s err=%v", u.Host, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Proxy request failed",
			"message": err.Error(),
		})
		return
	}
	defer resp.Body.Close()

	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.warnf("relay_copy_error", "host=%s err=%v", u.Host, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) infof(event, format string, args ...any) {
	if !s.verbose {
		return
	}
	log.Printf("relay level=info event=%s "+format, append([]any{event}, args...)...)
}

func (s *Server) warnf(event, format string, args ...any) {
	log.Printf("relay level=warn event=%s "+format, append([]any{event}, args...)...)
}
