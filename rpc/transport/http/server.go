package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ValentinKolb/dbKV/lib/logging"
	"github.com/ValentinKolb/dbKV/rpc/common"
	"github.com/ValentinKolb/dbKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger(logging.HTTP)

const (
	// StorePath receives serialized request messages
	StorePath = "/store"
	// MetricsPath exposes the telemetry in Prometheus text format
	MetricsPath = "/metrics"
)

// ServerOption configures the HTTP server transport
type ServerOption func(t *httpServerTransport)

// WithMetrics serves write at GET /metrics
func WithMetrics(write func(w io.Writer)) ServerOption {
	return func(t *httpServerTransport) {
		t.metrics = write
	}
}

// WithRequestLogging logs every request at debug level
func WithRequestLogging() ServerOption {
	return func(t *httpServerTransport) {
		t.logRequests = true
	}
}

func NewHttpServerTransport(opts ...ServerOption) transport.IRPCServerTransport {
	t := &httpServerTransport{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type httpServerTransport struct {
	handler     transport.ServerHandleFunc
	metrics     func(w io.Writer)
	logRequests bool

	mu       sync.Mutex
	server   *http.Server
	shutdown bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *httpServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *httpServerTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return errors.New("no handler registered")
	}

	srv := &http.Server{
		Addr:    config.Transport.Endpoint,
		Handler: t.Handler(),
	}
	if config.TimeoutSecond > 0 {
		srv.ReadTimeout = time.Duration(config.TimeoutSecond) * time.Second
		srv.WriteTimeout = time.Duration(config.TimeoutSecond) * time.Second
	}

	t.mu.Lock()
	if t.shutdown {
		t.mu.Unlock()
		return nil
	}
	t.server = srv
	t.mu.Unlock()

	Logger.Infof("Starting HTTP server on %s", config.Transport.Endpoint)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (t *httpServerTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.shutdown = true
	srv := t.server
	t.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Handler returns the http.Handler used by Listen.
// It can be mounted on an existing server or an httptest.Server.
func (t *httpServerTransport) Handler() http.Handler {
	mux := http.NewServeMux()

	store := http.HandlerFunc(t.handleRequest)
	if t.logRequests {
		store = loggerMiddleware(store)
	}
	mux.Handle("POST "+StorePath, store)

	if t.metrics != nil {
		mux.HandleFunc("GET "+MetricsPath, t.handleMetrics)
	}

	return mux
}

// NewHandler registers handler on a new transport and returns its http.Handler
func NewHandler(handler transport.ServerHandleFunc, opts ...ServerOption) http.Handler {
	t := NewHttpServerTransport(opts...).(*httpServerTransport)
	t.RegisterHandler(handler)
	return t.Handler()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleRequest handles incoming HTTP requests and writes the response to the writer
func (t *httpServerTransport) handleRequest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()

	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}

	resp := t.handler(body)

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err = w.Write(resp); err != nil {
		Logger.Errorf("Failed to write response: %v", err)
	}
}

func (t *httpServerTransport) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	t.metrics(w)
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	}
}
