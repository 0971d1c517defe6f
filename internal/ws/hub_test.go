package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/repository"
	"github.com/ignatzorin/autoclaim-backend/internal/logger"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(logger.Discard())
	go hub.Run(ctx)
	return hub
}

func dialAs(t *testing.T, hub *Hub, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, hub, userID)
		if hub.Register(client) {
			client.Run(r.Context())
		}
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.Connected(userID) == 1 }, time.Second, 10*time.Millisecond)
	return conn
}

func TestHub_DeliversEventToOwnerOnly(t *testing.T) {
	hub := startHub(t)
	owner := uuid.New()
	other := uuid.New()

	ownerConn := dialAs(t, hub, owner)
	otherConn := dialAs(t, hub, other)

	event := repository.ClaimEvent{
		Type:        repository.ClaimEventStatusChanged,
		ClaimID:     uuid.New(),
		ClaimNumber: "CLM-1-ABC",
		Status:      "approved",
	}
	hub.PublishClaimEvent(owner, event)

	_ = ownerConn.SetReadDeadline(time.Now().Add(time.Second))
	_, raw, err := ownerConn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Type string                `json:"type"`
		Data repository.ClaimEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, repository.ClaimEventStatusChanged, got.Type)
	assert.Equal(t, event, got.Data)

	_ = otherConn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = otherConn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_PublishWithoutClientsDoesNotBlock(t *testing.T) {
	hub := NewHub(logger.Discard())

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			hub.PublishClaimEvent(uuid.New(), repository.ClaimEvent{Type: repository.ClaimEventSubmitted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PublishClaimEvent заблокировался")
	}
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub := startHub(t)
	userID := uuid.New()

	conn := dialAs(t, hub, userID)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.Connected(userID) == 0 }, 2*time.Second, 10*time.Millisecond)
}
