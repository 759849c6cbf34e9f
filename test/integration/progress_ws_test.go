package integration

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

	"github.com/yourusername/sc-fetch-go/internal/domain"
)

func dialProgress(t *testing.T, serverURL, jobID string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/api/v1/jobs/" + jobID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestProgressWebSocket_StreamsUntilTerminal(t *testing.T) {
	s := setupServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	w := s.do(t, http.MethodPost, "/api/v1/jobs", `{"url":"https://soundcloud.com/artist/ws-track"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var submitted domain.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitted))

	conn := dialProgress(t, srv.URL, submitted.ID)
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var events []domain.ProgressEvent
	for {
		var ev domain.ProgressEvent
		require.NoError(t, conn.ReadJSON(&ev))
		events = append(events, ev)
		if ev.Stage == domain.StageComplete || ev.Stage == domain.StageError {
			break
		}
	}

	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Equal(t, submitted.ID, ev.JobID)
	}

	last := events[len(events)-1]
	assert.Equal(t, domain.StageComplete, last.Stage)
	assert.Equal(t, 100.0, last.Progress)

	// Progress never regresses across the stream
	lastPct := 0.0
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Progress, lastPct)
		lastPct = ev.Progress
	}
}

func TestProgressWebSocket_TerminalJobGetsSnapshotOnly(t *testing.T) {
	s := setupServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	w := s.do(t, http.MethodPost, "/api/v1/jobs", `{"url":"https://soundcloud.com/artist/done-track"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var submitted domain.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitted))
	s.jobMgr.Wait()

	conn := dialProgress(t, srv.URL, submitted.ID)
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var ev domain.ProgressEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, domain.StageComplete, ev.Stage)
	assert.Equal(t, 100.0, ev.Progress)

	// The server closes the stream after the terminal snapshot
	err := conn.ReadJSON(&ev)
	assert.Error(t, err)
}

func TestProgressWebSocket_UnknownJob(t *testing.T) {
	s := setupServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/jobs/nope/events"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
