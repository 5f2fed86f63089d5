package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gleanerhq/gleaner/pkg/candidate"
	"github.com/gleanerhq/gleaner/pkg/scheduler"
)

// ErrorResponse is the JSON error body returned by all handlers.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ObserveRequest is the request body for the observe entry point.
type ObserveRequest struct {
	UserID    string              `json:"user_id"`
	SessionID string              `json:"session_id,omitempty"`
	Messages  []candidate.Message `json:"messages"`
	Score     *float64            `json:"score,omitempty"`
	Internal  bool                `json:"internal,omitempty"`
}

// ObserveResponse reports whether the turn was admitted to the queue.
type ObserveResponse struct {
	Admitted    bool   `json:"admitted"`
	CandidateID string `json:"candidate_id,omitempty"`
}

// ProcessRequest is the request body for the manual-trigger entry point.
type ProcessRequest struct {
	BatchSize int `json:"batch_size"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleObserve runs the fast-path admission filter for one turn.
func (s *Server) handleObserve(c *fiber.Ctx) error {
	agentID := c.Params("agent")

	var req ObserveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	id, admitted, err := s.sched.ObserveTurn(c.Context(), scheduler.Turn{
		AgentID:   agentID,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Messages:  req.Messages,
		Score:     req.Score,
		Internal:  req.Internal,
	})
	if err != nil {
		s.logger.Error("observe failed",
			zap.String("agent", agentID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(ObserveResponse{Admitted: admitted, CandidateID: id})
}

// handleAgentState returns the per-agent state snapshot.
func (s *Server) handleAgentState(c *fiber.Ctx) error {
	agentID := c.Params("agent")

	status, err := s.sched.AgentStatus(agentID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(status)
}

// handleListCandidates returns pending candidates, newest metadata only.
func (s *Server) handleListCandidates(c *fiber.Ctx) error {
	agentID := c.Params("agent")
	limit := c.QueryInt("limit", 20)

	infos, err := s.sched.PendingCandidates(agentID, limit)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(infos)
}

// handleProcess triggers an immediate processing pass for one agent.
func (s *Server) handleProcess(c *fiber.Ctx) error {
	agentID := c.Params("agent")

	var req ProcessRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
		}
	}

	result, err := s.sched.TriggerAgent(c.Context(), agentID, req.BatchSize)
	if err != nil {
		if errors.Is(err, scheduler.ErrBusy) {
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: "agent is already processing"})
		}
		s.logger.Error("trigger failed",
			zap.String("agent", agentID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(result)
}
