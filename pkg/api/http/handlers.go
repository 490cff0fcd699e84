package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/application/planner"
	"github.com/weftlabs/weft/internal/domain"
)

// RunSubmitRequest represents a workflow run submission.
type RunSubmitRequest struct {
	Workflow domain.Workflow `json:"workflow" binding:"required"`
}

// RunSubmitResponse represents a run submission response.
type RunSubmitResponse struct {
	RunID       string `json:"run_id"`
	Width       int    `json:"width"`
	Status      string `json:"status"`
	SubmittedAt string `json:"submitted_at"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorJSON(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// handleSubmitRun accepts a workflow and starts a run in the background.
func (s *Server) handleSubmitRun(c *gin.Context) {
	var req RunSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Error("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, errorJSON("INVALID_REQUEST", err.Error()))
		return
	}

	runID, width, err := s.coordinator.Submit(c.Request.Context(), &req.Workflow)
	if err != nil {
		s.logger.Error("failed to submit run", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, errorJSON("SUBMISSION_FAILED", err.Error()))
		return
	}

	c.JSON(http.StatusAccepted, RunSubmitResponse{
		RunID:       runID,
		Width:       width,
		Status:      string(domain.RunStatusSubmitted),
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleListRuns lists persisted run snapshots.
func (s *Server) handleListRuns(c *gin.Context) {
	runs, err := s.coordinator.List(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorJSON("LIST_FAILED", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

// handleGetRun returns a run's current snapshot.
func (s *Server) handleGetRun(c *gin.Context) {
	state, err := s.coordinator.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, errorJSON("NOT_FOUND", "Run not found"))
		return
	}

	c.JSON(http.StatusOK, state)
}

// handleGetResult returns the terminal-node output map of a finished run.
func (s *Server) handleGetResult(c *gin.Context) {
	state, err := s.coordinator.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, errorJSON("NOT_FOUND", "Run not found"))
		return
	}

	if !state.Status.Terminal() {
		c.JSON(http.StatusConflict, errorJSON("NOT_COMPLETED", "Run not yet finished"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":       state.RunID,
		"status":       state.Status,
		"outputs":      state.Outputs,
		"error":        state.Error,
		"completed_at": state.CompletedAt,
	})
}

// handleCancelRun cancels an active run.
func (s *Server) handleCancelRun(c *gin.Context) {
	runID := c.Param("id")

	if err := s.coordinator.Cancel(c.Request.Context(), runID); err != nil {
		status := http.StatusConflict
		if errors.Is(err, domain.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, errorJSON("CANCELLATION_FAILED", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": runID,
		"status": string(domain.RunStatusCancelled),
	})
}

// WidthRequest asks for the width of a workflow without running it.
type WidthRequest struct {
	Nodes []string      `json:"nodes" binding:"required"`
	Edges []domain.Edge `json:"edges"`
}

// handleWidth computes the maximum safe parallelism of a DAG.
func (s *Server) handleWidth(c *gin.Context) {
	var req WidthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorJSON("INVALID_REQUEST", err.Error()))
		return
	}

	width, err := planner.Width(req.Nodes, req.Edges)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorJSON("INVALID_WORKFLOW", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"width": width,
		"nodes": len(req.Nodes),
	})
}
