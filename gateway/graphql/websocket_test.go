package graphql

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/c360/phonebook/store"
)

// dialWS opens a graphql-transport-ws session against the gateway and
// completes the init handshake
func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/graphql"
	dialer := websocket.Dialer{Subprotocols: []string{"graphql-transport-ws"}}
	conn, _, err := dialer.Dial(url, http.Header{})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(wsMessage{Type: msgConnectionInit}))

	var ack wsMessage
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, msgConnectionAck, ack.Type)

	return conn
}

func subscribe(t *testing.T, conn *websocket.Conn, id string) {
	t.Helper()

	payload, err := json.Marshal(Request{
		Query: `subscription { personAdded { name phone address { street city } } }`,
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(wsMessage{ID: id, Type: msgSubscribe, Payload: payload}))
}

// readNext reads frames until a next message arrives and decodes its payload
func readNext(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, msgNext, msg.Type)

	var resp struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &resp))
	return resp.Data
}

func TestSubscriptionReceivesPersonAdded(t *testing.T) {
	tg := newTestGateway(t)
	server := httptest.NewServer(tg.gateway.Handler())
	defer server.Close()

	conn := dialWS(t, server)
	subscribe(t, conn, "1")

	// The subscribe frame is processed asynchronously; wait for the
	// registration to land before publishing.
	require.Eventually(t, func() bool {
		return tg.events.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	tg.events.Publish(store.Person{
		ID:     primitive.NewObjectID(),
		Name:   "Jack Stone",
		Phone:  "040-777777",
		Street: "F St",
		City:   "Kuopio",
	})

	data := readNext(t, conn)
	added := data["personAdded"].(map[string]any)
	assert.Equal(t, "Jack Stone", added["name"])
	assert.Equal(t, "040-777777", added["phone"])
	address := added["address"].(map[string]any)
	assert.Equal(t, "F St", address["street"])
	assert.Equal(t, "Kuopio", address["city"])
}

func TestSubscriptionNoReplayForLateSubscriber(t *testing.T) {
	tg := newTestGateway(t)
	server := httptest.NewServer(tg.gateway.Handler())
	defer server.Close()

	// Published before anyone subscribes, must never be delivered
	tg.events.Publish(store.Person{
		ID: primitive.NewObjectID(), Name: "Early Bird", Street: "G St", City: "Pori",
	})

	conn := dialWS(t, server)
	subscribe(t, conn, "1")

	require.Eventually(t, func() bool {
		return tg.events.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	tg.events.Publish(store.Person{
		ID: primitive.NewObjectID(), Name: "Late Event", Street: "H St", City: "Pori",
	})

	data := readNext(t, conn)
	added := data["personAdded"].(map[string]any)
	assert.Equal(t, "Late Event", added["name"])
}

func TestSubscriptionCompleteStopsStream(t *testing.T) {
	tg := newTestGateway(t)
	server := httptest.NewServer(tg.gateway.Handler())
	defer server.Close()

	conn := dialWS(t, server)
	subscribe(t, conn, "1")

	require.Eventually(t, func() bool {
		return tg.events.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(wsMessage{ID: "1", Type: msgComplete}))

	assert.Eventually(t, func() bool {
		return tg.events.SubscriberCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubscriptionDuplicateIDIsProtocolError(t *testing.T) {
	tg := newTestGateway(t)
	server := httptest.NewServer(tg.gateway.Handler())
	defer server.Close()

	conn := dialWS(t, server)
	subscribe(t, conn, "1")

	require.Eventually(t, func() bool {
		return tg.events.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	subscribe(t, conn, "1")

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsMessage
	err := conn.ReadJSON(&msg)
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseProtocolError))
}

func TestSubscriptionRejectsQueries(t *testing.T) {
	tg := newTestGateway(t)
	server := httptest.NewServer(tg.gateway.Handler())
	defer server.Close()

	conn := dialWS(t, server)

	payload, err := json.Marshal(Request{Query: `{ personCount }`})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(wsMessage{ID: "1", Type: msgSubscribe, Payload: payload}))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, msgError, msg.Type)
	assert.Equal(t, "1", msg.ID)
}

func TestSubscriptionPingPong(t *testing.T) {
	tg := newTestGateway(t)
	server := httptest.NewServer(tg.gateway.Handler())
	defer server.Close()

	conn := dialWS(t, server)

	require.NoError(t, conn.WriteJSON(wsMessage{Type: msgPing}))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, msgPong, msg.Type)
}

func TestSubscriptionInitRequired(t *testing.T) {
	tg := newTestGateway(t)
	server := httptest.NewServer(tg.gateway.Handler())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/graphql"
	dialer := websocket.Dialer{Subprotocols: []string{"graphql-transport-ws"}}
	conn, _, err := dialer.Dial(url, http.Header{})
	require.NoError(t, err)
	defer conn.Close()

	// Sending subscribe before connection_init violates the protocol
	payload, err := json.Marshal(Request{Query: `subscription { personAdded { name } }`})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(wsMessage{ID: "1", Type: msgSubscribe, Payload: payload}))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsMessage
	readErr := conn.ReadJSON(&msg)
	require.Error(t, readErr)
	assert.True(t, websocket.IsCloseError(readErr, websocket.CloseProtocolError))
}
