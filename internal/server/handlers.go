package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/careloop/triagelog/internal/report"
	"github.com/careloop/triagelog/internal/store"
	"github.com/careloop/triagelog/internal/triage"
)

type deleteEventRequest struct {
	ID int64 `json:"id"`
}

type textRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleHistory(c *gin.Context) {
	snap, err := s.store.Load()
	if err != nil {
		s.log.Error("load history failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleDeleteEvent(c *gin.Context) {
	var req deleteEventRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}

	if err := s.store.Delete(req.ID); err != nil {
		s.log.Error("delete event failed", zap.Int64("id", req.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	s.metrics.EventsDeleted.Inc()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleProcessText(c *gin.Context) {
	var req textRequest
	// A missing or malformed body behaves like empty text and fails
	// the length validation below.
	_ = c.ShouldBindJSON(&req)

	result, err := s.pipeline.Process(c.Request.Context(), req.Text)
	switch {
	case errors.Is(err, triage.ErrTextTooShort):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text too short"})
	case errors.Is(err, triage.ErrInference):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "AI processing failed"})
	case err != nil:
		s.log.Error("process text failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	default:
		c.JSON(http.StatusOK, gin.H{
			"ok":         true,
			"extraction": result.Extraction,
			"triage":     result.Triage,
		})
	}
}

// handleProcessImage is a placeholder; image analysis is not wired to
// the inference service.
func (s *Server) handleProcessImage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"triage": gin.H{
			"specialist":         "General Physician",
			"priority":           triage.PriorityMedium,
			"reason":             "Image analysis is currently unavailable.",
			"visual_observation": "Visual analysis disabled.",
		},
	})
}

func (s *Server) handleGenerateSOAP(c *gin.Context) {
	rep, err := s.synth.Generate(c.Request.Context())
	if err != nil {
		if !errors.Is(err, report.ErrSynthesis) {
			s.log.Error("soap generation failed", zap.Error(err))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "SOAP generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "soap_data": rep})
}

func (s *Server) handleAddHistory(c *gin.Context) {
	var req textRequest
	_ = c.ShouldBindJSON(&req)

	if req.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no text"})
		return
	}

	if _, err := s.store.Append(store.TypeHistory, req.Text, nil); err != nil {
		s.log.Error("append history event failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	s.metrics.EventsAppended.WithLabelValues(store.TypeHistory).Inc()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
