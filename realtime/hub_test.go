package realtime

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

	"github.com/camden-git/facealbums/models"
	"github.com/camden-git/facealbums/services"
)

func TestHub_BroadcastsJobEvents(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	msg := "lease lost"
	hub.PublishJobEvent(services.JobEvent{
		Type:       services.EventPageProcessed,
		Page:       2,
		PageImages: 13,
		Job:        models.ProcessingJob{ID: "job-1", UserID: "u1", Status: models.JobStatusRunning, Error: &msg},
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, services.EventPageProcessed, got.Type)
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, "running", got.Status)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 13, got.PageImages)
	assert.Equal(t, "lease lost", got.Error)
	assert.NotZero(t, got.Timestamp)
	require.NotNil(t, got.Job)
	assert.Equal(t, "u1", got.Job.UserID)
}

func TestHub_UnregistersClosedClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
