package graphql

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/c360/phonebook/auth"
)

// graphql-transport-ws message types
const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgPing           = "ping"
	msgPong           = "pong"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
)

// connectionInitTimeout bounds how long a client may take to initialize
const connectionInitTimeout = 10 * time.Second

// wsMessage is one frame of the graphql-transport-ws protocol
type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsConn wraps a WebSocket connection with a write lock so concurrent
// subscription streams on the same connection do not interleave frames
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) write(msg wsMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

// subscriptionHandler upgrades HTTP connections and serves the personAdded
// subscription stream
type subscriptionHandler struct {
	executor *executor
	contexts *auth.ContextBuilder
	upgrader websocket.Upgrader
	logger   *slog.Logger

	// onSubscribe/onUnsubscribe are metric hooks, may be nil
	onSubscribe   func()
	onUnsubscribe func()
}

func newSubscriptionHandler(exec *executor, contexts *auth.ContextBuilder,
	corsOrigins []string, logger *slog.Logger) *subscriptionHandler {

	if logger == nil {
		logger = slog.Default()
	}

	return &subscriptionHandler{
		executor: exec,
		contexts: contexts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{"graphql-transport-ws"},
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range corsOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
		logger: logger.With("component", "graphql-ws"),
	}
}

// ServeHTTP handles one WebSocket session
func (h *subscriptionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", "error", err)
		return
	}
	ws := &wsConn{conn: conn}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The session context carries the identity from either the HTTP
	// Authorization header or the connection_init payload.
	sessionCtx, err := h.contexts.Build(ctx, r.Header.Get("Authorization"))
	if err != nil {
		h.closeWith(conn, websocket.ClosePolicyViolation, "unauthorized")
		return
	}

	sessionCtx, ok := h.awaitInit(sessionCtx, ws)
	if !ok {
		return
	}

	h.readLoop(sessionCtx, ws)
}

// awaitInit waits for connection_init and acknowledges it. The init payload
// may carry an Authorization value for clients that cannot set headers on
// the upgrade request.
func (h *subscriptionHandler) awaitInit(ctx context.Context, ws *wsConn) (context.Context, bool) {
	_ = ws.conn.SetReadDeadline(time.Now().Add(connectionInitTimeout))

	var msg wsMessage
	if err := ws.conn.ReadJSON(&msg); err != nil {
		h.closeWith(ws.conn, websocket.CloseNormalClosure, "connection init timeout")
		return ctx, false
	}
	if msg.Type != msgConnectionInit {
		h.closeWith(ws.conn, websocket.CloseProtocolError, "expected connection_init")
		return ctx, false
	}

	if len(msg.Payload) > 0 {
		var params struct {
			Authorization string `json:"Authorization"`
		}
		if err := json.Unmarshal(msg.Payload, &params); err == nil && params.Authorization != "" {
			authedCtx, err := h.contexts.Build(ctx, params.Authorization)
			if err != nil {
				h.closeWith(ws.conn, websocket.ClosePolicyViolation, "unauthorized")
				return ctx, false
			}
			ctx = authedCtx
		}
	}

	_ = ws.conn.SetReadDeadline(time.Time{})
	if err := ws.write(wsMessage{Type: msgConnectionAck}); err != nil {
		return ctx, false
	}
	return ctx, true
}

// readLoop processes frames until the connection closes
func (h *subscriptionHandler) readLoop(ctx context.Context, ws *wsConn) {
	// Active subscription cancel funcs by operation id
	active := make(map[string]context.CancelFunc)
	var mu sync.Mutex
	defer func() {
		mu.Lock()
		for _, cancel := range active {
			cancel()
		}
		mu.Unlock()
	}()

	for {
		var msg wsMessage
		if err := ws.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case msgPing:
			if err := ws.write(wsMessage{Type: msgPong}); err != nil {
				return
			}

		case msgSubscribe:
			mu.Lock()
			_, exists := active[msg.ID]
			mu.Unlock()
			if exists {
				h.closeWith(ws.conn, websocket.CloseProtocolError, "subscriber id already exists")
				return
			}

			subCtx, cancel := context.WithCancel(ctx)
			mu.Lock()
			active[msg.ID] = cancel
			mu.Unlock()

			if err := h.startSubscription(subCtx, ws, msg, func() {
				mu.Lock()
				delete(active, msg.ID)
				mu.Unlock()
				cancel()
			}); err != nil {
				h.writeError(ws, msg.ID, err.Error())
				mu.Lock()
				delete(active, msg.ID)
				mu.Unlock()
				cancel()
			}

		case msgComplete:
			mu.Lock()
			if cancel, ok := active[msg.ID]; ok {
				cancel()
				delete(active, msg.ID)
			}
			mu.Unlock()
		}
	}
}

// startSubscription validates the operation and begins streaming events
func (h *subscriptionHandler) startSubscription(ctx context.Context, ws *wsConn,
	msg wsMessage, done func()) error {

	var req Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return err
	}

	doc, listErr := gqlparser.LoadQuery(schema, req.Query)
	if len(listErr) > 0 {
		return listErr
	}

	op := doc.Operations.ForName(req.OperationName)
	if op == nil || op.Operation != ast.Subscription {
		return errNotSubscription{}
	}

	fields := collectFields(op.SelectionSet)
	if len(fields) != 1 || fields[0].Name != "personAdded" {
		return errNotSubscription{}
	}
	selection := fields[0]

	sub, err := h.executor.resolver.SubscribePersonAdded(ctx)
	if err != nil {
		return err
	}
	if h.onSubscribe != nil {
		h.onSubscribe()
	}

	go func() {
		defer done()
		if h.onUnsubscribe != nil {
			defer h.onUnsubscribe()
		}
		defer sub.Unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case person, ok := <-sub.Events():
				if !ok {
					_ = ws.write(wsMessage{ID: msg.ID, Type: msgComplete})
					return
				}

				value, err := h.executor.personValue(ctx, person, selection.SelectionSet)
				if err != nil {
					h.writeError(ws, msg.ID, err.Error())
					return
				}

				payload, err := json.Marshal(Response{
					Data: map[string]any{selection.Alias: value},
				})
				if err != nil {
					return
				}
				if err := ws.write(wsMessage{ID: msg.ID, Type: msgNext, Payload: payload}); err != nil {
					return
				}
			}
		}
	}()

	return nil
}

func (h *subscriptionHandler) writeError(ws *wsConn, id, message string) {
	payload, err := json.Marshal([]map[string]any{{"message": message}})
	if err != nil {
		return
	}
	_ = ws.write(wsMessage{ID: id, Type: msgError, Payload: payload})
}

func (h *subscriptionHandler) closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
}

// errNotSubscription marks an operation that is not the personAdded
// subscription
type errNotSubscription struct{}

func (errNotSubscription) Error() string {
	return "only the personAdded subscription is supported on this transport"
}
