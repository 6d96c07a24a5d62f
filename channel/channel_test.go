package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/models"
)

func TestConnectAnnouncesJoinAndDispatchesInbound(t *testing.T) {
	upgrader := websocket.Upgrader{}
	joins := make(chan envelope, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "s1", r.URL.Query().Get("session"))

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var join envelope
		require.NoError(t, conn.ReadJSON(&join))
		joins <- join

		require.NoError(t, conn.WriteJSON(map[string]any{
			"type": "itemCreated",
			"payload": map[string]any{
				"item": map[string]any{"id": "x1", "text": "hello"},
			},
		}))

		// Hold the connection open until the client goes away
		conn.ReadMessage()
	}))
	defer srv.Close()

	c, err := New(Config{
		Hosts:     []string{"ws" + strings.TrimPrefix(srv.URL, "http")},
		SessionID: "s1",
		Identity:  "alice",
	})
	require.NoError(t, err)

	received := make(chan models.ItemCreatedEvent, 1)
	c.Subscribe(EventItemCreated, func(event any) {
		received <- event.(models.ItemCreatedEvent)
	})

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, StatusConnected, c.Status())

	select {
	case join := <-joins:
		assert.Equal(t, string(EventJoin), join.Type)
		var payload models.JoinPayload
		require.NoError(t, json.Unmarshal(join.Payload, &payload))
		assert.Equal(t, "s1", payload.SessionID)
		assert.Equal(t, "alice", payload.Identity)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the join announcement")
	}

	select {
	case evt := <-received:
		assert.Equal(t, "x1", evt.Item.ID)
		assert.Equal(t, "hello", evt.Item.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("itemCreated event was never dispatched")
	}

	c.Disconnect()
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestConnectFailsIntoDisconnectedStatus(t *testing.T) {
	c, err := New(Config{
		Hosts:     []string{"ws://127.0.0.1:1"},
		SessionID: "s1",
		Identity:  "alice",
	})
	require.NoError(t, err)

	err = c.Connect(context.Background())

	assert.Error(t, err)
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestConnectRequiresHosts(t *testing.T) {
	c, err := New(Config{SessionID: "s1"})
	require.NoError(t, err)

	assert.Error(t, c.Connect(context.Background()))
}

func TestPublishWithoutConnectionFails(t *testing.T) {
	c, err := New(Config{
		Hosts:     []string{"ws://localhost:0"},
		SessionID: "s1",
	})
	require.NoError(t, err)

	assert.Error(t, c.Publish(EventNewComment, models.NewCommentPayload{Text: "hello"}))
}
