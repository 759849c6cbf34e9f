package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/sc-fetch-go/internal/app"
	"github.com/yourusername/sc-fetch-go/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// ProgressWebSocketHandler streams per-job progress events over WebSocket
type ProgressWebSocketHandler struct {
	broadcaster *app.Broadcaster
	jobMgr      *app.JobManager
	logger      *zap.Logger
}

// NewProgressWebSocketHandler creates a new WebSocket progress handler
func NewProgressWebSocketHandler(broadcaster *app.Broadcaster, jobMgr *app.JobManager, logger *zap.Logger) *ProgressWebSocketHandler {
	return &ProgressWebSocketHandler{
		broadcaster: broadcaster,
		jobMgr:      jobMgr,
		logger:      logger,
	}
}

// wsSink adapts a WebSocket connection into a broadcaster sink. Events are
// buffered in a channel so a slow client never blocks the publisher.
type wsSink struct {
	events chan domain.ProgressEvent
	once   sync.Once
	closed chan struct{}
}

func newWSSink() *wsSink {
	return &wsSink{
		events: make(chan domain.ProgressEvent, 64),
		closed: make(chan struct{}),
	}
}

// Send queues an event for delivery; it drops instead of blocking when the
// client cannot keep up
func (s *wsSink) Send(event domain.ProgressEvent) error {
	select {
	case <-s.closed:
		return nil
	case s.events <- event:
		return nil
	default:
		return nil // client too slow, drop the event
	}
}

func (s *wsSink) close() {
	s.once.Do(func() { close(s.closed) })
}

// HandleProgress handles GET /api/v1/jobs/:id/events
func (h *ProgressWebSocketHandler) HandleProgress(c *gin.Context) {
	jobID := c.Param("id")

	job, err := h.jobMgr.GetJob(jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	sink := newWSSink()
	h.broadcaster.Subscribe(jobID, sink)
	defer func() {
		h.broadcaster.Unsubscribe(jobID, sink)
		sink.close()
	}()

	h.logger.Info("Progress subscriber connected",
		zap.String("job_id", jobID),
		zap.String("remote_addr", c.Request.RemoteAddr))

	// Re-fetch after subscribing: a terminal transition between the first
	// lookup and Subscribe would otherwise never reach this client
	if current, err := h.jobMgr.GetJob(jobID); err == nil {
		job = current
	}

	// Send the current job state first so late subscribers are not blind;
	// there is no event replay beyond this snapshot
	if err := conn.WriteJSON(job.Event("")); err != nil {
		return
	}

	// Already-terminal jobs produce no further events
	if job.IsTerminal() {
		return
	}

	// Read messages from client (for close detection and ping/pong)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case event := <-sink.events:
			if err := conn.WriteJSON(event); err != nil {
				return
			}
			if event.Stage == domain.StageComplete || event.Stage == domain.StageError {
				return
			}

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}
