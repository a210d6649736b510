package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/middleware"
	"github.com/stemsi/examguard-backend/internal/response"
	"github.com/stemsi/examguard-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // keeps a slow query from stalling the SSE loop
)

var pingPayload = []byte(`{"type":"ping"}`)

type MonitorHandler struct {
	monitorService *service.MonitorService
	proctor        *service.ProctorService
	log            zerolog.Logger
}

func NewMonitorHandler(
	monitorService *service.MonitorService,
	proctor *service.ProctorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		monitorService: monitorService,
		proctor:        proctor,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/teacher/exams/:exam_id/monitor
// Streams a roster snapshot, then every proctoring event and progress
// update published for the exam.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	exam := middleware.GetExam(c)
	reqCtx := c.Request.Context()

	snap, err := h.snapshot(reqCtx, exam.ID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.SSEvent("message", service.MonitorMessage{Type: service.MonitorTypeSnapshot, Data: snap})
	c.Writer.Flush()

	pubsub := h.proctor.Subscribe(reqCtx, exam.ID)
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()
	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Skip refreshes until something happens on the channel.
	dirty := false

	log := h.log.With().Str("exam_id", exam.ID.String()).Int("teacher_id", claims.UserID).Logger()
	log.Info().Msg("Teacher attached to live monitor")

	for {
		select {
		case <-reqCtx.Done():
			log.Info().Msg("Teacher detached from live monitor")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Payloads are already MonitorMessage JSON.
			writeSSEData(c, []byte(msg.Payload))
			dirty = true

		case <-refreshTicker.C:
			if !dirty {
				continue
			}
			dirty = false
			snap, err := h.snapshot(reqCtx, exam.ID, claims.UserID)
			if err != nil {
				log.Warn().Err(err).Msg("Monitor refresh failed")
				continue
			}
			c.SSEvent("message", service.MonitorMessage{Type: service.MonitorTypeSnapshot, Data: snap})
			c.Writer.Flush()

		case <-keepAliveTicker.C:
			writeSSEData(c, pingPayload)
		}
	}
}

func (h *MonitorHandler) snapshot(ctx context.Context, examID uuid.UUID, teacherID int) (*service.MonitorSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	return h.monitorService.GetSnapshot(ctx, examID, teacherID)
}

func writeSSEData(c *gin.Context, payload []byte) {
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(payload)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}
