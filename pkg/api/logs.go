package api

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/vibe-engine/vibe-engine/pkg/logfanout"
)

// streamJobLogsHandler serves GET /jobs/:id/logs as an SSE stream:
// existing events replayed first, then new ones tailed live, ending
// with a terminal "complete" event once the job reaches a terminal
// state (spec §4.9).
func (s *Server) streamJobLogsHandler(c *gin.Context) {
	jobID := c.Param("id")
	tenant := tenantID(c)

	if _, err := s.store.GetJob(c.Request.Context(), tenant, jobID); err != nil {
		respondStoreError(c, err)
		return
	}

	frames := s.fanout.Subscribe(c.Request.Context(), tenant, jobID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		frame, ok := <-frames
		if !ok {
			return false
		}
		switch frame.Type {
		case logfanout.FrameComplete:
			c.SSEvent("complete", gin.H{"state": frame.State})
			return false
		default:
			c.SSEvent("event", frame.Event)
			return true
		}
	})
}
