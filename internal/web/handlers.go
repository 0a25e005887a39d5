package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azmainm/standup-tickets/internal/engine"
	"github.com/azmainm/standup-tickets/internal/transcript"
)

// processRequest is the body of POST /api/process.
type processRequest struct {
	TranscriptID string                 `json:"transcript_id" binding:"required"`
	Lines        []transcript.RawRecord `json:"lines" binding:"required"`
}

func (s *Server) handleProcess(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := s.engine.ProcessTranscript(c.Request.Context(), req.TranscriptID, req.Lines)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrEmptyTranscript) {
			status = http.StatusBadRequest
		}
		if errors.Is(err, engine.ErrExtractionFailed) {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleListTasks(c *gin.Context) {
	var (
		tasks any
		err   error
	)
	if c.Query("all") == "true" {
		tasks, err = s.store.FindAllTasks()
	} else {
		tasks, err = s.store.FindActiveTasks()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (s *Server) handleGetTask(c *gin.Context) {
	t, err := s.store.GetTaskByTicketID(c.Param("ticketId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
