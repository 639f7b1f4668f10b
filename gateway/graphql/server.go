package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/gorilla/websocket"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/c360/phonebook/auth"
	"github.com/c360/phonebook/errors"
	"github.com/c360/phonebook/metric"
	"github.com/c360/phonebook/resolver"
)

// Gateway serves the phonebook GraphQL API over HTTP and, for the
// personAdded subscription, WebSocket.
type Gateway struct {
	config        Config
	executor      *executor
	subscriptions *subscriptionHandler
	contexts      *auth.ContextBuilder
	logger        *slog.Logger

	httpServer *http.Server
	mux        *http.ServeMux

	// Lifecycle
	running  bool
	mu       sync.RWMutex
	stopChan chan struct{}
	stopOnce sync.Once // Ensures stopChan is closed exactly once
}

// NewGateway creates a gateway binding the resolver set to the transport.
// The metrics recorder may be nil.
func NewGateway(config Config, res *resolver.Resolver, contexts *auth.ContextBuilder,
	metrics *metric.Metrics, logger *slog.Logger) (*Gateway, error) {

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if res == nil {
		return nil, errors.WrapFatal(fmt.Errorf("resolver is nil"), "Gateway", "NewGateway",
			"resolver is required")
	}
	if contexts == nil {
		return nil, errors.WrapFatal(fmt.Errorf("context builder is nil"), "Gateway", "NewGateway",
			"context builder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	exec := newExecutor(res, metrics, logger)
	subs := newSubscriptionHandler(exec, contexts, config.CORSOrigins, logger)
	if metrics != nil {
		subs.onSubscribe = metrics.ActiveSubscribers.Inc
		subs.onUnsubscribe = metrics.ActiveSubscribers.Dec
	}

	g := &Gateway{
		config:        config,
		executor:      exec,
		subscriptions: subs,
		contexts:      contexts,
		logger:        logger.With("component", "graphql-gateway"),
		mux:           http.NewServeMux(),
		stopChan:      make(chan struct{}),
	}

	g.mux.HandleFunc("/health", g.handleHealth)
	g.mux.HandleFunc(config.Path, g.handleGraphQL)
	if metrics != nil {
		g.mux.Handle("/metrics", metrics.Handler())
	}
	if config.EnablePlayground {
		g.mux.Handle("/", playground.Handler("Phonebook GraphQL", config.Path))
	}

	var handler http.Handler = g.mux
	if config.EnableCORS {
		handler = g.corsMiddleware(handler)
	}

	g.httpServer = &http.Server{
		Addr:        config.BindAddress,
		Handler:     handler,
		ReadTimeout: config.Timeout(),
		// WriteTimeout must stay unset: it would sever long-lived
		// subscription streams on the same listener.
		IdleTimeout: 60 * time.Second,
	}

	return g, nil
}

// Handler exposes the gateway's HTTP handler for tests
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Start starts the HTTP server. The ready channel is closed when the server
// is about to accept connections.
func (g *Gateway) Start(ctx context.Context, ready chan<- struct{}) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Gateway", "Start", "server already running")
	}
	g.running = true
	server := g.httpServer
	g.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		g.logger.Info("gateway starting",
			"address", g.config.BindAddress, "path", g.config.Path)

		if ready != nil {
			close(ready)
		}

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			g.logger.Error("HTTP server error", "error", err)
			select {
			case errChan <- err:
			case <-ctx.Done():
			case <-g.stopChan:
			}
		}
	}()

	select {
	case <-ctx.Done():
		g.logger.Info("gateway context cancelled, shutting down")
		return g.Stop(30 * time.Second)

	case <-g.stopChan:
		g.logger.Info("gateway stop requested")
		return nil

	case err := <-errChan:
		g.mu.Lock()
		g.running = false
		g.mu.Unlock()
		return errors.WrapFatal(err, "Gateway", "Start", "HTTP server failed")
	}
}

// Stop gracefully shuts down the HTTP server
func (g *Gateway) Stop(timeout time.Duration) error {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return nil
	}
	server := g.httpServer
	g.mu.Unlock()

	g.logger.Info("gateway stopping")

	g.stopOnce.Do(func() {
		close(g.stopChan)
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		g.logger.Error("failed to shutdown gateway gracefully", "error", err)
		return errors.WrapTransient(err, "Gateway", "Stop", "graceful shutdown")
	}

	g.mu.Lock()
	g.running = false
	g.mu.Unlock()

	g.logger.Info("gateway stopped")
	return nil
}

// handleGraphQL serves queries and mutations over POST and upgrades
// subscription connections to WebSocket
func (g *Gateway) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		g.subscriptions.ServeHTTP(w, r)
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.writeResponse(w, &Response{Errors: gqlerror.List{
			gqlerror.Errorf("invalid request body"),
		}})
		return
	}

	// Identity is resolved exactly once per request, before any resolver
	// runs. An invalid credential fails the whole request.
	ctx, err := g.contexts.Build(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		g.writeResponse(w, &Response{Errors: gqlerror.List{
			shapeError(err, "authorization"),
		}})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout())
	defer cancel()

	g.writeResponse(w, g.executor.Execute(ctx, req))
}

func (g *Gateway) writeResponse(w http.ResponseWriter, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// handleHealth handles health check requests
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	g.mu.RLock()
	running := g.running
	g.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if !running {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// corsMiddleware adds CORS headers to responses
func (g *Gateway) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range g.config.CORSOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// IsRunning returns whether the gateway is currently running
func (g *Gateway) IsRunning() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.running
}
